package utils

import (
	"fmt"
	"io"
	"sync"

	"go.uber.org/multierr"

	"github.com/MrSnakeDoc/snip/internal/logger"
)

// Close closes c and ignores any error.
// Use for best-effort cleanup in defer where error handling is not critical.
func Close(c io.Closer) {
	_ = c.Close()
}

// MustClose closes c and logs any error.
// Use for defer statements where we want to track close errors.
func MustClose(c io.Closer, name string, log logger.Logger) {
	if err := c.Close(); err != nil {
		log.Warn("failed to close", logger.String("resource", name), logger.Error(err))
	}
}

type namedCloser struct {
	name string
	c    io.Closer
}

// Closers collects resources opened during startup and closes them in
// reverse order.
type Closers struct {
	mu    sync.Mutex
	items []namedCloser
}

func (cs *Closers) Add(name string, c io.Closer) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.items = append(cs.items, namedCloser{name: name, c: c})
}

// Close closes every resource, last added first, and combines the errors.
// Calling it again is a no-op.
func (cs *Closers) Close() error {
	cs.mu.Lock()
	items := cs.items
	cs.items = nil
	cs.mu.Unlock()

	var errs error
	for i := len(items) - 1; i >= 0; i-- {
		if err := items[i].c.Close(); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", items[i].name, err))
		}
	}
	return errs
}
