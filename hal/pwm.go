package hal

import (
	"context"
	"sync"
	"time"

	"psoc6-go/errcode"
	"psoc6-go/types"
	"psoc6-go/x/mathx"
	"psoc6-go/x/ramp"
	"psoc6-go/x/timex"
)

// PWM is a claimed PWM output. Duty is always the logical value; with
// Invert set the hardware sees 65535-duty.
type PWM struct {
	m      *Machine
	id     types.PinID
	ch     PWMChannel
	invert bool

	mu     sync.Mutex
	freq   uint32
	duty   uint16
	closed bool
}

func (m *Machine) PWM(name string, cfg PWMConfig) (*PWM, error) {
	id, err := parsePin("pwm", name)
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := m.claim("pwm", id); err != nil {
		return nil, err
	}
	ch, err := m.be.PWM(id)
	if err != nil {
		m.release(id)
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "pwm", err)
	}
	p := &PWM{m: m, id: id, ch: ch, invert: cfg.Invert}
	if err := ch.Configure(cfg.Freq); err != nil {
		m.release(id)
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "pwm.configure", err)
	}
	p.freq = cfg.Freq
	if err := p.apply(cfg.Duty); err != nil {
		m.release(id)
		return nil, err
	}
	m.track(p, func() { _ = p.Deinit() })
	m.log.Debug("pwm configured", "pin", id, "freq", cfg.Freq, "duty", cfg.Duty)
	return p, nil
}

func (p *PWM) ID() types.PinID { return p.id }

func (p *PWM) check(op string) error {
	if p == nil || p.ch == nil {
		return errcode.New(errcode.NotInitialised, op, "pwm not initialised")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errcode.New(errcode.NotInitialised, op, p.id.String()+" is closed")
	}
	return nil
}

func (p *PWM) apply(duty uint16) error {
	hw := duty
	if p.invert {
		hw = mathx.FullScale - duty
	}
	if err := p.ch.Set(hw); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "pwm.duty", err)
	}
	p.mu.Lock()
	p.duty = duty
	p.mu.Unlock()
	return nil
}

func (p *PWM) Freq() (uint32, error) {
	if err := p.check("pwm.freq"); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.freq, nil
}

// SetFreq changes the frequency and reapplies the current duty.
func (p *PWM) SetFreq(hz uint32) error {
	if err := p.check("pwm.set_freq"); err != nil {
		return err
	}
	if hz == 0 {
		return errcode.New(errcode.InvalidParams, "pwm.set_freq", "frequency must be positive")
	}
	if err := p.ch.Configure(hz); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "pwm.set_freq", err)
	}
	p.mu.Lock()
	p.freq = hz
	d := p.duty
	p.mu.Unlock()
	return p.apply(d)
}

func (p *PWM) DutyU16() (uint16, error) {
	if err := p.check("pwm.duty"); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duty, nil
}

func (p *PWM) SetDutyU16(d uint16) error {
	if err := p.check("pwm.set_duty"); err != nil {
		return err
	}
	return p.apply(d)
}

// Fade walks the duty to 'to' in increments of step, waiting delay on the
// machine clock before each move. Cancelling ctx stops the fade at the last
// applied level without error.
func (p *PWM) Fade(ctx context.Context, to, step uint16, delay time.Duration) error {
	cur, err := p.DutyU16()
	if err != nil {
		return err
	}
	_, err = ramp.Fade(cur, to, step, delay, timex.Ticker(ctx, p.m.clk), p.SetDutyU16)
	return err
}

// Ramp moves the duty to 'to' over d in evenly spaced steps.
func (p *PWM) Ramp(ctx context.Context, to uint16, d time.Duration, steps uint16) error {
	cur, err := p.DutyU16()
	if err != nil {
		return err
	}
	_, err = ramp.Linear(cur, to, d, steps, timex.Ticker(ctx, p.m.clk), p.SetDutyU16)
	return err
}

// Deinit turns the output off and releases the pin. Idempotent.
func (p *PWM) Deinit() error {
	if p == nil || p.m == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	_ = p.apply(0)
	err := p.ch.Stop()

	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.m.release(p.id)
	p.m.untrack(p)
	if err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "pwm.deinit", err)
	}
	return nil
}
