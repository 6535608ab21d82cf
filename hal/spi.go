package hal

import (
	"strconv"
	"sync"

	"tinygo.org/x/drivers"

	"psoc6-go/errcode"
)

// SPI is an open SPI controller. It satisfies drivers.SPI.
type SPI struct {
	m    *Machine
	name string
	cfg  SPIConfig

	mu     sync.Mutex
	bus    drivers.SPI
	closed bool
}

var _ drivers.SPI = (*SPI)(nil)

func (m *Machine) SPI(cfg SPIConfig) (*SPI, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	name := "spi" + strconv.Itoa(cfg.ID)
	if err := m.claimBus(name, cfg.SCK, cfg.MOSI, cfg.MISO); err != nil {
		return nil, err
	}
	bus, err := m.be.SPI(cfg)
	if err != nil {
		m.releaseBus(name, cfg.SCK, cfg.MOSI, cfg.MISO)
		return nil, errcode.Wrap(errcode.MapDriverErr(err), name, err)
	}
	s := &SPI{m: m, name: name, cfg: cfg, bus: bus}
	m.track(s, func() { _ = s.Deinit() })
	m.log.Debug("spi configured", "bus", name, "baud", cfg.Baudrate, "mode", cfg.Mode())
	return s, nil
}

func (s *SPI) Config() SPIConfig { return s.cfg }

func (s *SPI) lock(op string) error {
	if s == nil || s.m == nil {
		return errcode.New(errcode.NotInitialised, op, "spi not initialised")
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errcode.New(errcode.NotInitialised, op, s.name+" is closed")
	}
	return nil
}

// Tx clocks w out while clocking r in. Either may be nil; when both are
// set they must have the same length.
func (s *SPI) Tx(w, r []byte) error {
	if err := s.lock("spi.tx"); err != nil {
		return err
	}
	defer s.mu.Unlock()
	if w != nil && r != nil && len(w) != len(r) {
		return errcode.New(errcode.InvalidParams, "spi.tx", "write and read buffers differ in length")
	}
	if err := s.bus.Tx(w, r); err != nil {
		return errcode.Wrap(errcode.MapDriverErr(err), "spi.tx", err)
	}
	return nil
}

func (s *SPI) Transfer(b byte) (byte, error) {
	if err := s.lock("spi.transfer"); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()
	v, err := s.bus.Transfer(b)
	if err != nil {
		return 0, errcode.Wrap(errcode.MapDriverErr(err), "spi.transfer", err)
	}
	return v, nil
}

func (s *SPI) Write(data []byte) error { return s.Tx(data, nil) }

// Read clocks n bytes in while sending fill.
func (s *SPI) Read(n int, fill byte) ([]byte, error) {
	if n <= 0 {
		return nil, errcode.New(errcode.InvalidParams, "spi.read", "length must be positive")
	}
	buf := make([]byte, n)
	if err := s.ReadInto(buf, fill); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *SPI) ReadInto(buf []byte, fill byte) error {
	w := make([]byte, len(buf))
	for i := range w {
		w[i] = fill
	}
	return s.Tx(w, buf)
}

func (s *SPI) WriteReadInto(w, r []byte) error {
	if len(w) != len(r) {
		return errcode.New(errcode.InvalidParams, "spi.write_readinto", "write and read buffers differ in length")
	}
	return s.Tx(w, r)
}

func (s *SPI) Deinit() error {
	if s == nil || s.m == nil {
		return nil
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	bus := s.bus
	s.mu.Unlock()

	var err error
	if c, ok := bus.(interface{ Close() error }); ok {
		err = c.Close()
	}
	s.m.releaseBus(s.name, s.cfg.SCK, s.cfg.MOSI, s.cfg.MISO)
	s.m.untrack(s)
	return err
}

// ChipSelect drives an active-low chip select line.
type ChipSelect struct {
	pin *Pin
}

// NewChipSelect wraps an output pin and deselects it.
func NewChipSelect(p *Pin) (*ChipSelect, error) {
	if p == nil {
		return nil, errcode.New(errcode.NotInitialised, "spi.cs", "nil pin")
	}
	if p.Mode() != Out {
		return nil, errcode.New(errcode.InvalidParams, "spi.cs", p.ID().String()+" is an input")
	}
	cs := &ChipSelect{pin: p}
	return cs, cs.Deselect()
}

func (c *ChipSelect) Select() error   { return c.pin.Off() }
func (c *ChipSelect) Deselect() error { return c.pin.On() }

// Selected reports whether the device is currently selected.
func (c *ChipSelect) Selected() bool {
	v, err := c.pin.Value()
	return err == nil && !v
}

// Do runs fn with the device selected and always deselects afterwards.
func (c *ChipSelect) Do(fn func() error) error {
	if err := c.Select(); err != nil {
		return err
	}
	err := fn()
	if derr := c.Deselect(); err == nil {
		err = derr
	}
	return err
}
