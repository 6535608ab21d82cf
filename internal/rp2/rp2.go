//go:build rp2040

// Package rp2 is a hal.Backend for RP2040 boards under TinyGo. PSoC6 pin
// tokens are mapped to RP2040 GPIO numbers through a table so the examples
// run unchanged on a Pico wired like a PSoC6 prototyping kit.
package rp2

import (
	"context"
	"sync"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"
	"machine"
	"tinygo.org/x/drivers"

	"psoc6-go/errcode"
	"psoc6-go/hal"
	"psoc6-go/types"
)

// PicoPins wires the default PSoC6 board roles onto a Raspberry Pi Pico.
var PicoPins = map[types.PinID]int{
	types.MustPin("P13_7"): 25, // LED
	types.MustPin("P0_4"):  15, // button
	types.MustPin("P6_0"):  5,  // I2C0 SCL
	types.MustPin("P6_1"):  4,  // I2C0 SDA
	types.MustPin("P12_0"): 19, // SPI0 TX
	types.MustPin("P12_1"): 16, // SPI0 RX
	types.MustPin("P12_2"): 18, // SPI0 SCK
	types.MustPin("P12_3"): 17, // chip select
	types.MustPin("P5_1"):  0,  // UART0 TX
	types.MustPin("P5_0"):  1,  // UART0 RX
	types.MustPin("P10_0"): 26, // ADC0
	types.MustPin("P10_1"): 27, // ADC1
	types.MustPin("P10_2"): 28, // ADC2
}

type Backend struct {
	pins map[types.PinID]int

	adcOnce sync.Once
	mu      sync.Mutex
	slices  map[uint8]uint32 // PWM slice -> configured frequency
}

var _ hal.Backend = (*Backend)(nil)

// New builds the backend; nil pins uses PicoPins.
func New(pins map[types.PinID]int) *Backend {
	if pins == nil {
		pins = PicoPins
	}
	return &Backend{pins: pins, slices: make(map[uint8]uint32)}
}

func (b *Backend) Name() string { return "rp2" }

func (b *Backend) gpio(op string, id types.PinID) (machine.Pin, error) {
	n, ok := b.pins[id]
	if !ok || n < 0 || n > 29 {
		return 0, errcode.New(errcode.UnknownPin, op, id.String()+" is not wired")
	}
	return machine.Pin(n), nil
}

// ---- GPIO ----

type line struct{ p machine.Pin }

func (l *line) ConfigureInput(pull types.Pull) error {
	mode := machine.PinInput
	switch pull {
	case types.PullUp:
		mode = machine.PinInputPullup
	case types.PullDown:
		mode = machine.PinInputPulldown
	}
	l.p.Configure(machine.PinConfig{Mode: mode})
	return nil
}

func (l *line) ConfigureOutput(initial bool) error {
	l.p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	l.p.Set(initial)
	return nil
}

func (l *line) Set(level bool) { l.p.Set(level) }
func (l *line) Get() bool      { return l.p.Get() }

func (l *line) SetIRQ(edge types.Edge, handler func(level bool)) error {
	return l.p.SetInterrupt(pinChange(edge), func(p machine.Pin) { handler(p.Get()) })
}

func (l *line) ClearIRQ() error {
	var zero machine.PinChange
	return l.p.SetInterrupt(zero, nil)
}

func pinChange(e types.Edge) machine.PinChange {
	switch e {
	case types.EdgeRising:
		return machine.PinRising
	case types.EdgeFalling:
		return machine.PinFalling
	case types.EdgeBoth:
		return machine.PinToggle
	}
	var zero machine.PinChange
	return zero
}

func (b *Backend) Line(id types.PinID) (hal.Line, error) {
	p, err := b.gpio("rp2.line", id)
	if err != nil {
		return nil, err
	}
	return &line{p: p}, nil
}

// ---- ADC ----

type adc struct{ a machine.ADC }

// ReadU16 returns the 12-bit conversion left-aligned to 16 bits.
func (c adc) ReadU16() (uint16, error) { return c.a.Get(), nil }

func (b *Backend) ADC(id types.PinID) (hal.ADCChannel, error) {
	p, err := b.gpio("rp2.adc", id)
	if err != nil {
		return nil, err
	}
	if p < 26 || p > 29 {
		return nil, errcode.New(errcode.Unsupported, "rp2.adc", id.String()+" is not an ADC pin")
	}
	b.adcOnce.Do(machine.InitADC)
	a := machine.ADC{Pin: p}
	a.Configure(machine.ADCConfig{})
	return adc{a: a}, nil
}

// ---- PWM ----

// pwmCtrl is the slice surface machine exposes without naming its type.
type pwmCtrl interface {
	Configure(cfg machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Top() uint32
	Set(channel uint8, value uint32)
}

func pwmSlice(n uint8) pwmCtrl {
	switch n {
	case 0:
		return machine.PWM0
	case 1:
		return machine.PWM1
	case 2:
		return machine.PWM2
	case 3:
		return machine.PWM3
	case 4:
		return machine.PWM4
	case 5:
		return machine.PWM5
	case 6:
		return machine.PWM6
	default:
		return machine.PWM7
	}
}

type pwm struct {
	b     *Backend
	pin   machine.Pin
	slice uint8
	ctrl  pwmCtrl
	ch    uint8
}

// Configure sets the slice period. Both channels of a slice share it, so a
// second pin on the slice must ask for the same frequency.
func (w *pwm) Configure(hz uint32) error {
	hz = max(hz, 1)
	w.b.mu.Lock()
	defer w.b.mu.Unlock()
	if cur, ok := w.b.slices[w.slice]; ok && cur != hz {
		return errcode.New(errcode.Conflict, "rp2.pwm", "slice already runs at another frequency")
	}
	if err := w.ctrl.Configure(machine.PWMConfig{Period: 1e9 / uint64(hz)}); err != nil {
		return err
	}
	ch, err := w.ctrl.Channel(w.pin)
	if err != nil {
		return err
	}
	w.ch = ch
	w.b.slices[w.slice] = hz
	return nil
}

func (w *pwm) Set(duty uint16) error {
	w.ctrl.Set(w.ch, uint32(uint64(duty)*uint64(w.ctrl.Top())/0xFFFF))
	return nil
}

func (w *pwm) Stop() error {
	w.ctrl.Set(w.ch, 0)
	w.b.mu.Lock()
	delete(w.b.slices, w.slice)
	w.b.mu.Unlock()
	w.pin.Configure(machine.PinConfig{Mode: machine.PinInput})
	return nil
}

func (b *Backend) PWM(id types.PinID) (hal.PWMChannel, error) {
	p, err := b.gpio("rp2.pwm", id)
	if err != nil {
		return nil, err
	}
	slice, err := machine.PWMPeripheral(p)
	if err != nil {
		return nil, errcode.Wrap(errcode.Unsupported, "rp2.pwm", err)
	}
	return &pwm{b: b, pin: p, slice: slice, ctrl: pwmSlice(slice)}, nil
}

// ---- Buses ----

func (b *Backend) I2C(cfg hal.I2CConfig) (drivers.I2C, error) {
	var hw *machine.I2C
	switch cfg.ID {
	case 0:
		hw = machine.I2C0
	case 1:
		hw = machine.I2C1
	default:
		return nil, errcode.New(errcode.UnknownBus, "rp2.i2c", "no such controller")
	}
	scl, err := b.gpio("rp2.i2c", cfg.SCL)
	if err != nil {
		return nil, err
	}
	sda, err := b.gpio("rp2.i2c", cfg.SDA)
	if err != nil {
		return nil, err
	}
	if err := hw.Configure(machine.I2CConfig{SCL: scl, SDA: sda, Frequency: cfg.Freq}); err != nil {
		return nil, err
	}
	return hw, nil
}

func (b *Backend) SPI(cfg hal.SPIConfig) (drivers.SPI, error) {
	var hw *machine.SPI
	switch cfg.ID {
	case 0:
		hw = machine.SPI0
	case 1:
		hw = machine.SPI1
	default:
		return nil, errcode.New(errcode.UnknownBus, "rp2.spi", "no such controller")
	}
	var pins [3]machine.Pin
	for i, id := range []types.PinID{cfg.SCK, cfg.MOSI, cfg.MISO} {
		p, err := b.gpio("rp2.spi", id)
		if err != nil {
			return nil, err
		}
		pins[i] = p
	}
	err := hw.Configure(machine.SPIConfig{
		Frequency: cfg.Baudrate,
		SCK:       pins[0],
		SDO:       pins[1],
		SDI:       pins[2],
		LSBFirst:  cfg.FirstBit == hal.LSB,
		Mode:      cfg.Mode(),
	})
	if err != nil {
		return nil, err
	}
	return hw, nil
}

// serialPort adapts uartx to hal.SerialPort.
type serialPort struct{ u *uartx.UART }

func (p *serialPort) Write(b []byte) (int, error) { return p.u.Write(b) }
func (p *serialPort) RecvSomeContext(ctx context.Context, buf []byte) (int, error) {
	return p.u.RecvSomeContext(ctx, buf)
}

// Close leaves the peripheral configured; uartx has no teardown.
func (p *serialPort) Close() error { return nil }

func (b *Backend) UART(cfg hal.UARTConfig) (hal.SerialPort, error) {
	var hw *uartx.UART
	switch cfg.ID {
	case 0:
		hw = uartx.UART0
	case 1:
		hw = uartx.UART1
	default:
		return nil, errcode.New(errcode.UnknownBus, "rp2.uart", "no such uart")
	}
	tx, err := b.gpio("rp2.uart", cfg.TX)
	if err != nil {
		return nil, err
	}
	rx, err := b.gpio("rp2.uart", cfg.RX)
	if err != nil {
		return nil, err
	}
	if err := hw.Configure(uartx.UARTConfig{BaudRate: cfg.Baudrate, TX: tx, RX: rx}); err != nil {
		return nil, err
	}
	if err := hw.SetFormat(cfg.Bits, cfg.Stop, parity(cfg.Parity)); err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "rp2.uart", err)
	}
	return &serialPort{u: hw}, nil
}

func parity(p types.Parity) uartx.UARTParity {
	switch p {
	case types.ParityEven:
		return uartx.ParityEven
	case types.ParityOdd:
		return uartx.ParityOdd
	}
	return uartx.ParityNone
}
