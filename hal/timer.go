package hal

import (
	"sync"
	"time"

	"psoc6-go/errcode"
)

// TimerMode selects one-shot or periodic firing.
type TimerMode uint8

const (
	OneShot TimerMode = iota
	Periodic
)

func (m TimerMode) String() string {
	if m == Periodic {
		return "periodic"
	}
	return "oneshot"
}

// TimerState is Stopped or Armed.
type TimerState uint8

const (
	Stopped TimerState = iota
	Armed
)

func (s TimerState) String() string {
	if s == Armed {
		return "armed"
	}
	return "stopped"
}

type TimerConfig struct {
	Period   time.Duration
	Mode     TimerMode
	Callback func(*Timer)
}

// Timer is a software timer slot. Callbacks run on the machine's dispatcher.
type Timer struct {
	id int
	m  *Machine

	mu    sync.Mutex
	gen   uint64
	state TimerState
	mode  TimerMode
	cb    func(*Timer)
	fired uint32
}

func (t *Timer) ID() int { return t.id }

// Init (re)arms the timer. A previous arming is replaced and its pending
// firings are discarded.
func (t *Timer) Init(cfg TimerConfig) error {
	if t == nil || t.m == nil {
		return errcode.New(errcode.NotInitialised, "timer.init", "nil timer")
	}
	if cfg.Period <= 0 {
		return errcode.New(errcode.InvalidParams, "timer.init", "period must be positive")
	}
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.state = Armed
	t.mode = cfg.Mode
	t.cb = cfg.Callback
	t.fired = 0
	t.mu.Unlock()

	t.m.sched.arm(t, gen, cfg.Period, cfg.Mode == Periodic)
	t.m.log.Debug("timer armed", "id", t.id, "period", cfg.Period, "mode", cfg.Mode)
	return nil
}

// Deinit stops the timer. No callback starts after it returns. Safe to
// call from the timer's own callback, and more than once.
func (t *Timer) Deinit() error {
	if t == nil || t.m == nil {
		return nil
	}
	t.mu.Lock()
	was := t.state
	t.gen++
	t.state = Stopped
	t.mu.Unlock()

	t.m.sched.disarm(t)
	if was == Armed {
		t.m.log.Debug("timer stopped", "id", t.id)
	}
	return nil
}

func (t *Timer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Fired counts callbacks delivered since the last Init.
func (t *Timer) Fired() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

func (t *Timer) fire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != Armed {
		t.mu.Unlock()
		return
	}
	if t.mode == OneShot {
		t.state = Stopped
	}
	t.fired++
	cb := t.cb
	t.mu.Unlock()

	if cb != nil {
		cb(t)
	}
}
