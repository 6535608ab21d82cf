package hal

import (
	"context"
	"fmt"
	"log/slog"
)

// dispatcher runs timer callbacks and interrupt handlers one at a time on a
// single goroutine.
type dispatcher struct {
	q   chan func()
	log *slog.Logger
}

func newDispatcher(n int, log *slog.Logger) *dispatcher {
	return &dispatcher{q: make(chan func(), n), log: log}
}

func (d *dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-d.q:
			d.call(fn)
		}
	}
}

func (d *dispatcher) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	fn()
}

// post queues fn, blocking while the queue is full.
func (d *dispatcher) post(ctx context.Context, fn func()) bool {
	select {
	case d.q <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// sync returns once everything queued before it has run.
func (d *dispatcher) sync(ctx context.Context) error {
	done := make(chan struct{})
	if !d.post(ctx, func() { close(done) }) {
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
