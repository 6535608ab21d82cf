package hal

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"psoc6-go/types"
)

// IRQEvent is what a pin interrupt handler receives.
type IRQEvent struct {
	Pin   types.PinID
	Edge  types.Edge
	Level bool // physical level sampled in the ISR
	Time  time.Time
}

type IRQConfig struct {
	Trigger types.Edge
	Handler func(IRQEvent)
	// Debounce drops edges arriving within this window of the last
	// accepted one. Zero disables it.
	Debounce time.Duration
}

type isrEvent struct {
	pin   types.PinID
	gen   uint64
	level bool
	// barrier, when set, is closed once every earlier event has been
	// handed to the dispatcher.
	barrier chan struct{}
}

type watch struct {
	line      IRQLine
	gen       uint64
	trigger   types.Edge
	debounce  time.Duration
	handler   func(IRQEvent)
	lastEvent time.Time
}

// irqWorker moves edges out of interrupt context. The ISR side only does a
// non-blocking send; debounce and edge decoding happen on the worker, and
// handlers run on the dispatcher.
type irqWorker struct {
	clk  clockwork.Clock
	disp *dispatcher
	log  *slog.Logger

	isrQ  chan isrEvent
	drops atomic.Uint32

	mu      sync.Mutex
	nextGen uint64
	watches map[types.PinID]*watch
}

func newIRQWorker(clk clockwork.Clock, disp *dispatcher, log *slog.Logger) *irqWorker {
	return &irqWorker{
		clk:     clk,
		disp:    disp,
		log:     log,
		isrQ:    make(chan isrEvent, 64),
		watches: make(map[types.PinID]*watch),
	}
}

func (w *irqWorker) register(id types.PinID, line IRQLine, cfg IRQConfig) error {
	w.mu.Lock()
	w.nextGen++
	gen := w.nextGen
	w.mu.Unlock()

	wh := &watch{
		line:     line,
		gen:      gen,
		trigger:  cfg.Trigger,
		debounce: cfg.Debounce,
		handler:  cfg.Handler,
	}
	isr := func(level bool) {
		select {
		case w.isrQ <- isrEvent{pin: id, gen: gen, level: level}:
		default:
			w.drops.Add(1)
		}
	}
	// Publish the watch before enabling so the first edge finds it.
	w.mu.Lock()
	w.watches[id] = wh
	w.mu.Unlock()
	if err := line.SetIRQ(cfg.Trigger, isr); err != nil {
		w.unregister(id, gen)
		return err
	}
	return nil
}

// unregister removes the watch for id if it still has generation gen.
// gen 0 removes whatever is registered.
func (w *irqWorker) unregister(id types.PinID, gen uint64) {
	w.mu.Lock()
	wh := w.watches[id]
	if wh == nil || (gen != 0 && wh.gen != gen) {
		w.mu.Unlock()
		return
	}
	delete(w.watches, id)
	w.mu.Unlock()
	_ = wh.line.ClearIRQ()
}

func (w *irqWorker) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-w.isrQ:
			if ev.barrier != nil {
				close(ev.barrier)
				continue
			}
			w.handleISR(ctx, ev)
		}
	}
}

// flush returns once every edge queued before the call has been posted to
// the dispatcher.
func (w *irqWorker) flush(ctx context.Context) error {
	done := make(chan struct{})
	select {
	case w.isrQ <- isrEvent{barrier: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *irqWorker) handleISR(ctx context.Context, ev isrEvent) {
	w.mu.Lock()
	wh := w.watches[ev.pin]
	if wh == nil || wh.gen != ev.gen {
		w.mu.Unlock()
		return
	}
	now := w.clk.Now()
	if wh.debounce > 0 && !wh.lastEvent.IsZero() && now.Sub(wh.lastEvent) < wh.debounce {
		w.mu.Unlock()
		return
	}
	wh.lastEvent = now

	e := wh.trigger
	if e == types.EdgeBoth {
		// A both-edge interrupt is decoded from the level it left behind.
		e = types.EdgeFalling
		if ev.level {
			e = types.EdgeRising
		}
	}
	handler := wh.handler
	w.mu.Unlock()

	if handler == nil {
		return
	}
	out := IRQEvent{Pin: ev.pin, Edge: e, Level: ev.level, Time: now}
	w.disp.post(ctx, func() {
		if !w.live(ev.pin, ev.gen) {
			return
		}
		handler(out)
	})
}

func (w *irqWorker) live(id types.PinID, gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	wh := w.watches[id]
	return wh != nil && wh.gen == gen
}
