// Package hal exposes peripheral handles (pins, ADC, PWM, I2C, SPI, UART),
// timers and pin interrupts on top of a pluggable Backend.
//
// All timer callbacks and interrupt handlers run on one dispatcher
// goroutine, so they never interleave with each other. They do run
// concurrently with the caller's own goroutines: state shared with the main
// sequence must use sync/atomic or a mutex.
package hal

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"psoc6-go/errcode"
	"psoc6-go/types"
)

// Machine owns a backend plus the timer and interrupt machinery.
type Machine struct {
	be  Backend
	log *slog.Logger
	clk clockwork.Clock

	disp  *dispatcher
	sched *scheduler
	irq   *irqWorker

	mu      sync.Mutex
	claims  map[types.PinID]string // pin -> owner label
	buses   map[string]bool        // "i2c0", "uart1", ...
	timers  map[int]*Timer
	open    map[any]func() // live handles -> release
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type Option func(*Machine)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.log = l
		}
	}
}

// WithClock injects the clock used by timers, debounce and examples.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) {
		if c != nil {
			m.clk = c
		}
	}
}

// WithQueueSize sets the callback queue depth. Default 64.
func WithQueueSize(n int) Option {
	return func(m *Machine) {
		if n > 0 {
			m.disp = newDispatcher(n, m.log)
		}
	}
}

// New builds a machine. Call Start before relying on timers or interrupts.
func New(be Backend, opts ...Option) *Machine {
	m := &Machine{
		be:     be,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		clk:    clockwork.NewRealClock(),
		claims: make(map[types.PinID]string),
		buses:  make(map[string]bool),
		timers: make(map[int]*Timer),
		open:   make(map[any]func()),
	}
	for _, o := range opts {
		o(m)
	}
	if m.disp == nil {
		m.disp = newDispatcher(64, m.log)
	}
	m.disp.log = m.log
	m.sched = newScheduler(m.clk, m.disp)
	m.irq = newIRQWorker(m.clk, m.disp, m.log)
	return m
}

// Start launches the dispatcher, the timer scheduler and the interrupt
// worker. They stop when ctx ends or Close is called.
func (m *Machine) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(3)
	go func() { defer m.wg.Done(); m.disp.run(m.ctx) }()
	go func() { defer m.wg.Done(); m.sched.run(m.ctx) }()
	go func() { defer m.wg.Done(); m.irq.run(m.ctx) }()
	m.log.Debug("machine started", "backend", m.be.Name())
}

// Close deinitialises every timer and every handle still open, then stops
// the background goroutines.
func (m *Machine) Close() error {
	m.mu.Lock()
	timers := make([]*Timer, 0, len(m.timers))
	for _, t := range m.timers {
		timers = append(timers, t)
	}
	releases := make([]func(), 0, len(m.open))
	for _, r := range m.open {
		releases = append(releases, r)
	}
	cancel := m.cancel
	m.mu.Unlock()

	for _, t := range timers {
		_ = t.Deinit()
	}
	for _, r := range releases {
		r()
	}
	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
	if len(releases) > 0 {
		m.log.Debug("released handles left open", "count", len(releases))
	}
	return nil
}

// Sync waits until every callback queued so far has run, including
// handlers for edges the interrupt worker has not picked up yet. It must
// not be called from a timer callback or interrupt handler.
func (m *Machine) Sync() {
	m.mu.Lock()
	ctx := m.ctx
	m.mu.Unlock()
	if ctx == nil {
		return
	}
	if m.irq.flush(ctx) != nil {
		return
	}
	_ = m.disp.sync(ctx)
}

func (m *Machine) Clock() clockwork.Clock { return m.clk }
func (m *Machine) Logger() *slog.Logger   { return m.log }
func (m *Machine) Backend() Backend       { return m.be }

// ISRDrops reports interrupt events lost because the worker queue was full.
func (m *Machine) ISRDrops() uint32 { return m.irq.drops.Load() }

// Timer returns the timer slot id, creating it on first use.
func (m *Machine) Timer(id int) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.timers[id]
	if !ok {
		t = &Timer{id: id, m: m}
		m.timers[id] = t
	}
	return t
}

// ---- pin claims ----

func (m *Machine) claim(owner string, pins ...types.PinID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pins {
		if p.IsZero() {
			continue
		}
		if cur, busy := m.claims[p]; busy {
			return &errcode.E{C: errcode.PinInUse, Op: owner, Msg: p.String() + " held by " + cur}
		}
	}
	for _, p := range pins {
		if !p.IsZero() {
			m.claims[p] = owner
		}
	}
	return nil
}

func (m *Machine) release(pins ...types.PinID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pins {
		delete(m.claims, p)
	}
}

// claimBus reserves a controller together with its pins.
func (m *Machine) claimBus(bus string, pins ...types.PinID) error {
	m.mu.Lock()
	if m.buses[bus] {
		m.mu.Unlock()
		return errcode.New(errcode.Conflict, bus, "already open")
	}
	m.buses[bus] = true
	m.mu.Unlock()
	if err := m.claim(bus, pins...); err != nil {
		m.mu.Lock()
		delete(m.buses, bus)
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *Machine) releaseBus(bus string, pins ...types.PinID) {
	m.release(pins...)
	m.mu.Lock()
	delete(m.buses, bus)
	m.mu.Unlock()
}

// Owner reports which handle holds pin p.
func (m *Machine) Owner(p types.PinID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.claims[p]
	return o, ok
}

// track registers a live handle so Close can release it.
func (m *Machine) track(h any, release func()) {
	m.mu.Lock()
	m.open[h] = release
	m.mu.Unlock()
}

func (m *Machine) untrack(h any) {
	m.mu.Lock()
	delete(m.open, h)
	m.mu.Unlock()
}

func parsePin(op, s string) (types.PinID, error) {
	id, err := types.ParsePin(s)
	if err != nil {
		return types.PinID{}, &errcode.E{C: errcode.UnknownPin, Op: op, Msg: s, Err: err}
	}
	return id, nil
}
