package hal

import (
	"sync"

	"psoc6-go/errcode"
	"psoc6-go/types"
)

// Pin is a claimed digital pin.
type Pin struct {
	m    *Machine
	id   types.PinID
	line Line
	mode PinMode

	mu     sync.Mutex
	closed bool
	irq    bool
}

// Pin claims name (e.g. "P13_7") and configures it.
func (m *Machine) Pin(name string, cfg PinConfig) (*Pin, error) {
	id, err := parsePin("pin", name)
	if err != nil {
		return nil, err
	}
	if err := m.claim("pin", id); err != nil {
		return nil, err
	}
	line, err := m.be.Line(id)
	if err != nil {
		m.release(id)
		return nil, errcode.Wrap(errcode.Of(err), "pin", err)
	}
	if cfg.Mode == Out {
		err = line.ConfigureOutput(cfg.Initial)
	} else {
		err = line.ConfigureInput(cfg.Pull)
	}
	if err != nil {
		m.release(id)
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "pin.configure", err)
	}
	p := &Pin{m: m, id: id, line: line, mode: cfg.Mode}
	m.track(p, func() { _ = p.Close() })
	m.log.Debug("pin configured", "pin", id, "mode", cfg.Mode, "pull", cfg.Pull)
	return p, nil
}

func (p *Pin) ID() types.PinID { return p.id }
func (p *Pin) Mode() PinMode   { return p.mode }

func (p *Pin) check(op string) error {
	if p == nil || p.line == nil {
		return errcode.New(errcode.NotInitialised, op, "pin not initialised")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errcode.New(errcode.NotInitialised, op, p.id.String()+" is closed")
	}
	return nil
}

func (p *Pin) On() error  { return p.Set(true) }
func (p *Pin) Off() error { return p.Set(false) }

// Set drives the physical level. Input pins reject writes.
func (p *Pin) Set(level bool) error {
	if err := p.check("pin.set"); err != nil {
		return err
	}
	if p.mode != Out {
		return errcode.New(errcode.InvalidParams, "pin.set", p.id.String()+" is an input")
	}
	p.line.Set(level)
	return nil
}

func (p *Pin) Toggle() error {
	if err := p.check("pin.toggle"); err != nil {
		return err
	}
	if p.mode != Out {
		return errcode.New(errcode.InvalidParams, "pin.toggle", p.id.String()+" is an input")
	}
	p.line.Set(!p.line.Get())
	return nil
}

// Value reads the physical level.
func (p *Pin) Value() (bool, error) {
	if err := p.check("pin.value"); err != nil {
		return false, err
	}
	return p.line.Get(), nil
}

// IRQ attaches an edge handler, replacing any previous one.
func (p *Pin) IRQ(cfg IRQConfig) error {
	if err := p.check("pin.irq"); err != nil {
		return err
	}
	if cfg.Trigger == types.EdgeNone || cfg.Trigger&^types.EdgeBoth != 0 {
		return errcode.New(errcode.InvalidParams, "pin.irq", "trigger must be rising, falling or both")
	}
	if cfg.Handler == nil {
		return errcode.New(errcode.InvalidParams, "pin.irq", "nil handler")
	}
	il, ok := p.line.(IRQLine)
	if !ok {
		return errcode.New(errcode.Unsupported, "pin.irq", p.id.String()+" has no interrupt support")
	}
	if err := p.m.irq.register(p.id, il, cfg); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "pin.irq", err)
	}
	p.mu.Lock()
	p.irq = true
	p.mu.Unlock()
	p.m.log.Debug("irq enabled", "pin", p.id, "trigger", cfg.Trigger, "debounce", cfg.Debounce)
	return nil
}

// DisableIRQ detaches the handler. Queued edges are discarded.
func (p *Pin) DisableIRQ() error {
	if err := p.check("pin.irq_disable"); err != nil {
		return err
	}
	p.mu.Lock()
	had := p.irq
	p.irq = false
	p.mu.Unlock()
	if had {
		p.m.irq.unregister(p.id, 0)
	}
	return nil
}

// Close detaches any handler and releases the pin. Idempotent.
func (p *Pin) Close() error {
	if p == nil || p.m == nil {
		return nil
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	had := p.irq
	p.irq = false
	p.closed = true
	p.mu.Unlock()

	if had {
		p.m.irq.unregister(p.id, 0)
	}
	p.m.release(p.id)
	p.m.untrack(p)
	return nil
}
