// Package periphhost is a hal.Backend for Linux single-board computers via
// periph.io. PSoC6 pin tokens are mapped onto host GPIO names through a
// table, so the same example code can drive a Raspberry Pi header.
package periphhost

import (
	"sync"
	"time"

	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"

	"psoc6-go/errcode"
	"psoc6-go/hal"
	"psoc6-go/types"
)

type Config struct {
	// Pins maps pin tokens to host GPIO names, e.g. P13_7 -> GPIO17.
	// Unmapped tokens are looked up verbatim.
	Pins map[types.PinID]string
	// I2C and SPI map controller ids to periph bus names. A missing id
	// opens the host's first bus.
	I2C map[int]string
	SPI map[int]string
	// ADC supplies analog inputs; periph has no registry for them.
	ADC map[types.PinID]analog.PinADC

	// Lookups are swappable for tests.
	ByName  func(string) gpio.PinIO
	OpenI2C func(string) (i2c.BusCloser, error)
	OpenSPI func(string) (spi.PortCloser, error)
}

type Backend struct {
	cfg Config
}

var _ hal.Backend = (*Backend)(nil)

// Open initialises the periph host drivers and returns the backend.
func Open(cfg Config) (*Backend, error) {
	if _, err := host.Init(); err != nil {
		return nil, errcode.Wrap(errcode.Unsupported, "periphhost.init", err)
	}
	return New(cfg), nil
}

// New builds the backend without touching host drivers.
func New(cfg Config) *Backend {
	if cfg.ByName == nil {
		cfg.ByName = gpioreg.ByName
	}
	if cfg.OpenI2C == nil {
		cfg.OpenI2C = i2creg.Open
	}
	if cfg.OpenSPI == nil {
		cfg.OpenSPI = spireg.Open
	}
	return &Backend{cfg: cfg}
}

func (b *Backend) Name() string { return "periphhost" }

func (b *Backend) pin(op string, id types.PinID) (gpio.PinIO, error) {
	name := id.String()
	if n, ok := b.cfg.Pins[id]; ok {
		name = n
	}
	p := b.cfg.ByName(name)
	if p == nil {
		return nil, errcode.New(errcode.UnknownPin, op, name+" not found on host")
	}
	return p, nil
}

func (b *Backend) Line(id types.PinID) (hal.Line, error) {
	p, err := b.pin("periphhost.line", id)
	if err != nil {
		return nil, err
	}
	return &line{p: p}, nil
}

func (b *Backend) ADC(id types.PinID) (hal.ADCChannel, error) {
	a, ok := b.cfg.ADC[id]
	if !ok {
		return nil, errcode.New(errcode.Unsupported, "periphhost.adc", id.String()+" has no analog input")
	}
	return adcChannel{a: a}, nil
}

func (b *Backend) PWM(id types.PinID) (hal.PWMChannel, error) {
	p, err := b.pin("periphhost.pwm", id)
	if err != nil {
		return nil, err
	}
	return &pwm{p: p}, nil
}

func (b *Backend) I2C(cfg hal.I2CConfig) (drivers.I2C, error) {
	bus, err := b.cfg.OpenI2C(b.cfg.I2C[cfg.ID])
	if err != nil {
		return nil, errcode.Wrap(errcode.UnknownBus, "periphhost.i2c", err)
	}
	// Many kernels pin the bus speed in the device tree and refuse this.
	_ = bus.SetSpeed(physic.Frequency(cfg.Freq) * physic.Hertz)
	return i2cBus{bus}, nil
}

func (b *Backend) SPI(cfg hal.SPIConfig) (drivers.SPI, error) {
	port, err := b.cfg.OpenSPI(b.cfg.SPI[cfg.ID])
	if err != nil {
		return nil, errcode.Wrap(errcode.UnknownBus, "periphhost.spi", err)
	}
	mode := spi.Mode(cfg.Mode())
	if cfg.FirstBit == hal.LSB {
		mode |= spi.LSBFirst
	}
	c, err := port.Connect(physic.Frequency(cfg.Baudrate)*physic.Hertz, mode, int(cfg.Bits))
	if err != nil {
		_ = port.Close()
		return nil, errcode.Wrap(errcode.InvalidParams, "periphhost.spi", err)
	}
	return &spiConn{port: port, c: c}, nil
}

// UART is not provided by periph; wrap the backend with serialport.Overlay.
func (b *Backend) UART(hal.UARTConfig) (hal.SerialPort, error) {
	return nil, errcode.New(errcode.Unsupported, "periphhost.uart", "use a serial overlay")
}

// ---- GPIO ----

func pullOf(p types.Pull) gpio.Pull {
	switch p {
	case types.PullUp:
		return gpio.PullUp
	case types.PullDown:
		return gpio.PullDown
	default:
		return gpio.Float
	}
}

func edgeOf(e types.Edge) gpio.Edge {
	switch e {
	case types.EdgeRising:
		return gpio.RisingEdge
	case types.EdgeFalling:
		return gpio.FallingEdge
	case types.EdgeBoth:
		return gpio.BothEdges
	default:
		return gpio.NoEdge
	}
}

// line emulates interrupts with a goroutine blocked in WaitForEdge.
type line struct {
	p gpio.PinIO

	mu   sync.Mutex
	pull gpio.Pull
	stop chan struct{}
	done chan struct{}
}

func (l *line) ConfigureInput(pull types.Pull) error {
	l.mu.Lock()
	l.pull = pullOf(pull)
	l.mu.Unlock()
	return l.p.In(pullOf(pull), gpio.NoEdge)
}

func (l *line) ConfigureOutput(initial bool) error { return l.p.Out(gpio.Level(initial)) }
func (l *line) Set(level bool)                    { _ = l.p.Out(gpio.Level(level)) }
func (l *line) Get() bool                         { return bool(l.p.Read()) }

func (l *line) SetIRQ(edge types.Edge, handler func(level bool)) error {
	_ = l.ClearIRQ()
	l.mu.Lock()
	pull := l.pull
	l.mu.Unlock()
	if err := l.p.In(pull, edgeOf(edge)); err != nil {
		return err
	}
	stop, done := make(chan struct{}), make(chan struct{})
	l.mu.Lock()
	l.stop, l.done = stop, done
	l.mu.Unlock()

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			default:
			}
			if l.p.WaitForEdge(100 * time.Millisecond) {
				handler(bool(l.p.Read()))
			}
		}
	}()
	return nil
}

func (l *line) ClearIRQ() error {
	l.mu.Lock()
	stop, done := l.stop, l.done
	l.stop, l.done = nil, nil
	pull := l.pull
	l.mu.Unlock()
	if stop == nil {
		return nil
	}
	close(stop)
	<-done
	return l.p.In(pull, gpio.NoEdge)
}

// ---- ADC / PWM ----

type adcChannel struct{ a analog.PinADC }

// ReadU16 rescales the converter's raw range onto 16 bits.
func (c adcChannel) ReadU16() (uint16, error) {
	s, err := c.a.Read()
	if err != nil {
		return 0, err
	}
	lo, hi := c.a.Range()
	span := int64(hi.Raw) - int64(lo.Raw)
	if span <= 0 {
		return 0, errcode.New(errcode.Error, "periphhost.adc", "empty range")
	}
	v := (int64(s.Raw) - int64(lo.Raw)) * 65535 / span
	return uint16(min(max(v, 0), 65535)), nil
}

type pwm struct {
	p    gpio.PinIO
	freq physic.Frequency
}

func (w *pwm) Configure(hz uint32) error {
	w.freq = physic.Frequency(hz) * physic.Hertz
	return nil
}

func (w *pwm) Set(duty uint16) error {
	d := gpio.Duty(uint64(duty) * uint64(gpio.DutyMax) / 65535)
	return w.p.PWM(d, w.freq)
}

func (w *pwm) Stop() error { return w.p.Halt() }

// ---- buses ----

type i2cBus struct{ b i2c.BusCloser }

func (i i2cBus) Tx(addr uint16, w, r []byte) error { return i.b.Tx(addr, w, r) }
func (i i2cBus) Close() error                      { return i.b.Close() }

type spiConn struct {
	port spi.PortCloser
	c    spi.Conn
}

func (s *spiConn) Tx(w, r []byte) error {
	if w == nil {
		w = make([]byte, len(r))
	}
	return s.c.Tx(w, r)
}

func (s *spiConn) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := s.c.Tx([]byte{b}, r[:])
	return r[0], err
}

func (s *spiConn) Close() error { return s.port.Close() }
