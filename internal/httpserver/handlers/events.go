package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MrSnakeDoc/snip/internal/httpserver/deps"
	"github.com/MrSnakeDoc/snip/internal/logger"
)

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type eventsWSInbound struct {
	Type string `json:"type"`
}

type eventsWSOutbound struct {
	Type     string `json:"type"`
	Accepted bool   `json:"accepted,omitempty"`
	Snippets int    `json:"snippets,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// Events streams sync notifications over a websocket. Clients may send
// {"type":"ping"} or {"type":"sync"} to queue a cycle.
func Events(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
		if err != nil {
			d.Logger.Debug("events ws upgrade failed", logger.Error(err))
			return
		}
		defer func() { _ = conn.Close() }()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
			d.Logger.Debug("events ws set read deadline failed", logger.Error(err))
			return
		}
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
		})

		writeCh := make(chan any, 32)
		writerDone := make(chan struct{})
		go func() {
			defer close(writerDone)
			ticker := time.NewTicker(eventsWSPingEvery)
			defer ticker.Stop()

			for {
				select {
				case <-ctx.Done():
					return
				case out := <-writeCh:
					if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
						return
					}
					if err := conn.WriteJSON(out); err != nil {
						return
					}
				case <-ticker.C:
					if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
						return
					}
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		subCh := d.Events.Subscribe(ctx)
		pushEventsWS(writeCh, eventsWSOutbound{
			Type:     "subscribed",
			Snippets: d.Index.Count(),
		})

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case evt, ok := <-subCh:
					if !ok {
						return
					}
					pushEventsWS(writeCh, evt)
				}
			}
		}()

		for {
			var in eventsWSInbound
			if err := conn.ReadJSON(&in); err != nil {
				cancel()
				<-writerDone
				return
			}

			switch strings.ToLower(strings.TrimSpace(in.Type)) {
			case "ping":
				pushEventsWS(writeCh, eventsWSOutbound{Type: "pong"})
			case "sync":
				pushEventsWS(writeCh, eventsWSOutbound{Type: "sync_queued", Accepted: d.Sync.Trigger()})
			case "":
				pushEventsWS(writeCh, eventsWSOutbound{
					Type:    "error",
					Code:    "invalid_argument",
					Message: "type is required",
				})
			default:
				pushEventsWS(writeCh, eventsWSOutbound{
					Type:    "error",
					Code:    "invalid_argument",
					Message: "unsupported type: " + in.Type,
				})
			}
		}
	}
}

// pushEventsWS never blocks: when the writer lags, the oldest queued message
// is dropped.
func pushEventsWS(ch chan any, out any) {
	select {
	case ch <- out:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- out:
		default:
		}
	}
}
