package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHubBroadcasts(t *testing.T) {
	h := NewHub(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := h.Subscribe(ctx)
	b := h.Subscribe(ctx)
	h.Publish(Event{Kind: SyncCompleted, Snippets: 3})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, SyncCompleted, e.Kind)
			assert.Equal(t, 3, e.Snippets)
			assert.False(t, e.At.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestSlowSubscriberDropsOldest(t *testing.T) {
	h := NewHub(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := h.Subscribe(ctx)
	for i := 1; i <= 3; i++ {
		h.Publish(Event{Kind: SyncCompleted, Snippets: i})
	}

	first := <-ch
	second := <-ch
	assert.Equal(t, 2, first.Snippets)
	assert.Equal(t, 3, second.Snippets)
}

func TestCancelUnsubscribes(t *testing.T) {
	h := NewHub(1)
	ctx, cancel := context.WithCancel(context.Background())
	ch := h.Subscribe(ctx)
	require.Equal(t, 1, h.Subscribers())

	cancel()
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	assert.Equal(t, 0, h.Subscribers())
}
