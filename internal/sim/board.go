// Package sim is an in-memory hal.Backend. Pins, analog inputs, PWM outputs,
// I2C and SPI devices and UART peers are all scriptable from tests and from
// the "sim" backend of the examples binary.
package sim

import (
	"sync"

	"tinygo.org/x/drivers"

	"psoc6-go/errcode"
	"psoc6-go/hal"
	"psoc6-go/types"
)

// ADCPort is the only port wired to the SAR ADC on PSoC6 kits.
const ADCPort = 10

type Board struct {
	mu     sync.Mutex
	lines  map[types.PinID]*Line
	analog map[types.PinID]uint16
	pwms   map[types.PinID]*PWM
	i2c    map[int]*I2CBus
	spi    map[int]*SPIBus
	uarts  map[int]*Serial
}

var _ hal.Backend = (*Board)(nil)

func New() *Board {
	return &Board{
		lines:  make(map[types.PinID]*Line),
		analog: make(map[types.PinID]uint16),
		pwms:   make(map[types.PinID]*PWM),
		i2c:    make(map[int]*I2CBus),
		spi:    make(map[int]*SPIBus),
		uarts:  make(map[int]*Serial),
	}
}

func (b *Board) Name() string { return "sim" }

// ---- GPIO ----

func (b *Board) line(id types.PinID) *Line {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.lines[id]
	if !ok {
		l = &Line{id: id}
		b.lines[id] = l
	}
	return l
}

func (b *Board) Line(id types.PinID) (hal.Line, error) {
	if id.IsZero() {
		return nil, errcode.New(errcode.UnknownPin, "sim.line", "zero pin")
	}
	return b.line(id), nil
}

// Drive sets the level an external circuit puts on pin (a button, a jumper).
// Matching edges fire the pin's interrupt handler synchronously.
func (b *Board) Drive(pin string, level bool) {
	b.line(types.MustPin(pin)).drive(level)
}

// Release stops driving pin externally; its pull takes over again.
func (b *Board) Release(pin string) {
	b.line(types.MustPin(pin)).release()
}

// Level reads the current physical level of pin.
func (b *Board) Level(pin string) bool {
	return b.line(types.MustPin(pin)).Get()
}

// Writes counts how many times firmware drove pin as an output.
func (b *Board) Writes(pin string) int {
	return b.line(types.MustPin(pin)).writes()
}

// Line is a simulated pad. Output writes and external drives both change
// the level; any transition matching the armed edge mask calls the handler.
type Line struct {
	id types.PinID

	mu      sync.Mutex
	level   bool
	out     bool
	pull    types.Pull
	driven  bool
	nwrites int
	edge    types.Edge
	handler func(level bool)
	watch   func(level bool)
}

var _ hal.IRQLine = (*Line)(nil)

func (l *Line) ConfigureInput(pull types.Pull) error {
	l.mu.Lock()
	l.out = false
	l.pull = pull
	if !l.driven {
		l.level = pull == types.PullUp
	}
	l.mu.Unlock()
	return nil
}

func (l *Line) ConfigureOutput(initial bool) error {
	l.mu.Lock()
	l.out = true
	l.level = initial
	l.mu.Unlock()
	return nil
}

func (l *Line) Set(level bool) {
	l.mu.Lock()
	l.nwrites++
	l.transition(level)
}

func (l *Line) Get() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

func (l *Line) SetIRQ(edge types.Edge, handler func(level bool)) error {
	l.mu.Lock()
	l.edge = edge
	l.handler = handler
	l.mu.Unlock()
	return nil
}

func (l *Line) ClearIRQ() error {
	l.mu.Lock()
	l.edge = types.EdgeNone
	l.handler = nil
	l.mu.Unlock()
	return nil
}

func (l *Line) drive(level bool) {
	l.mu.Lock()
	l.driven = true
	l.transition(level)
}

func (l *Line) release() {
	l.mu.Lock()
	l.driven = false
	if l.out {
		l.mu.Unlock()
		return
	}
	l.transition(l.pull == types.PullUp)
}

func (l *Line) writes() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nwrites
}

// transition is entered with l.mu held and releases it before calling the
// handler, the way an ISR runs outside the caller's critical section.
func (l *Line) transition(level bool) {
	e := types.EdgeFrom(l.level, level)
	l.level = level
	h, w := l.handler, l.watch
	fire := h != nil && l.edge.Has(e)
	l.mu.Unlock()
	if w != nil && e != types.EdgeNone {
		w(level)
	}
	if fire {
		h(level)
	}
}

// ---- ADC ----

// SetAnalog sets the 16-bit sample an analog pin will read.
func (b *Board) SetAnalog(pin string, raw uint16) {
	b.mu.Lock()
	b.analog[types.MustPin(pin)] = raw
	b.mu.Unlock()
}

type adcChannel struct {
	b  *Board
	id types.PinID
}

func (c adcChannel) ReadU16() (uint16, error) {
	c.b.mu.Lock()
	defer c.b.mu.Unlock()
	return c.b.analog[c.id], nil
}

func (b *Board) ADC(id types.PinID) (hal.ADCChannel, error) {
	if id.Port() != ADCPort {
		return nil, errcode.New(errcode.Unsupported, "sim.adc", id.String()+" is not an analog pin")
	}
	return adcChannel{b: b, id: id}, nil
}

// ---- PWM ----

// PWM records what firmware programmed on one output.
type PWM struct {
	mu      sync.Mutex
	freq    uint32
	duty    uint16
	running bool
	history []uint16
}

// PWMState is a snapshot of one PWM output.
type PWMState struct {
	Freq    uint32
	Duty    uint16
	Running bool
	Steps   int
}

func (p *PWM) Configure(freq uint32) error {
	if freq == 0 {
		return errcode.New(errcode.InvalidParams, "sim.pwm", "zero frequency")
	}
	p.mu.Lock()
	p.freq = freq
	p.running = true
	p.mu.Unlock()
	return nil
}

func (p *PWM) Set(duty uint16) error {
	p.mu.Lock()
	p.duty = duty
	p.history = append(p.history, duty)
	p.mu.Unlock()
	return nil
}

func (p *PWM) Stop() error {
	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (b *Board) PWM(id types.PinID) (hal.PWMChannel, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.pwms[id]
	if !ok {
		p = &PWM{}
		b.pwms[id] = p
	}
	return p, nil
}

// PWMState reports the programmed hardware state of pin.
func (b *Board) PWMState(pin string) PWMState {
	b.mu.Lock()
	p := b.pwms[types.MustPin(pin)]
	b.mu.Unlock()
	if p == nil {
		return PWMState{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return PWMState{Freq: p.freq, Duty: p.duty, Running: p.running, Steps: len(p.history)}
}

// PWMHistory returns every duty written to pin, oldest first.
func (b *Board) PWMHistory(pin string) []uint16 {
	b.mu.Lock()
	p := b.pwms[types.MustPin(pin)]
	b.mu.Unlock()
	if p == nil {
		return nil
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint16(nil), p.history...)
}

// ---- buses ----

// I2CBus returns bus id, creating it empty on first use.
func (b *Board) I2CBus(id int) *I2CBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.i2c[id]
	if !ok {
		bus = newI2CBus()
		b.i2c[id] = bus
	}
	return bus
}

// AttachI2C places dev at addr on bus id.
func (b *Board) AttachI2C(id int, addr uint16, dev I2CDevice) {
	b.I2CBus(id).Attach(addr, dev)
}

func (b *Board) I2C(cfg hal.I2CConfig) (drivers.I2C, error) {
	return b.I2CBus(cfg.ID), nil
}

// WireCS routes the active-low select line on pin to SPI bus id, so the
// attached device sees a transaction per select window instead of per
// transfer.
func (b *Board) WireCS(id int, pin string) {
	bus := b.SPIBus(id)
	bus.mu.Lock()
	bus.cs = true
	bus.mu.Unlock()
	l := b.line(types.MustPin(pin))
	l.mu.Lock()
	l.watch = bus.chipSelect
	l.mu.Unlock()
}

// SPIBus returns bus id, creating it with a loopback device on first use.
func (b *Board) SPIBus(id int) *SPIBus {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus, ok := b.spi[id]
	if !ok {
		bus = &SPIBus{dev: Loopback{}}
		b.spi[id] = bus
	}
	return bus
}

// AttachSPI replaces the device on bus id.
func (b *Board) AttachSPI(id int, dev SPIDevice) {
	b.SPIBus(id).Attach(dev)
}

func (b *Board) SPI(cfg hal.SPIConfig) (drivers.SPI, error) {
	bus := b.SPIBus(cfg.ID)
	bus.setMode(cfg.Mode(), cfg.Baudrate)
	return bus, nil
}

// Serial returns UART id's far end, creating it on first use.
func (b *Board) Serial(id int) *Serial {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.uarts[id]
	if !ok {
		s = newSerial()
		b.uarts[id] = s
	}
	return s
}

func (b *Board) UART(cfg hal.UARTConfig) (hal.SerialPort, error) {
	s := b.Serial(cfg.ID)
	s.open(cfg.Baudrate, cfg.Format())
	return s, nil
}
