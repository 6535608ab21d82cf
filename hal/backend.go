package hal

import (
	"context"

	"tinygo.org/x/drivers"

	"psoc6-go/types"
)

// ---- GPIO abstractions ----

// Line is the backend's view of one digital pin.
type Line interface {
	ConfigureInput(pull types.Pull) error
	ConfigureOutput(initial bool) error
	Set(level bool)
	Get() bool
}

// IRQLine extends Line with edge interrupts. The handler runs in interrupt
// context and MUST NOT block; level is the pin level sampled when the edge
// was taken.
type IRQLine interface {
	Line
	SetIRQ(edge types.Edge, handler func(level bool)) error
	ClearIRQ() error
}

// ---- Analog ----

// ADCChannel samples one analog input, scaled to 16 bits (0..65535).
type ADCChannel interface {
	ReadU16() (uint16, error)
}

// PWMChannel drives one PWM output. Duty is a 16-bit fraction.
type PWMChannel interface {
	Configure(freqHz uint32) error
	Set(duty uint16) error
	Stop() error
}

// ---- Buses ----
//
// I2C and SPI buses use the TinyGo drivers interfaces so the same bus value
// works with drivers from tinygo.org/x/drivers on MCU and host builds.

// SerialPort is a byte stream. RecvSomeContext blocks until at least one
// byte arrives, ctx ends, or the port is closed.
type SerialPort interface {
	Write(p []byte) (int, error)
	RecvSomeContext(ctx context.Context, p []byte) (int, error)
	Close() error
}

// Drainer is implemented by ports that can wait for queued TX bytes.
type Drainer interface {
	Drain() error
}

// Backend supplies hardware resources for one target.
type Backend interface {
	Name() string
	Line(id types.PinID) (Line, error)
	ADC(id types.PinID) (ADCChannel, error)
	PWM(id types.PinID) (PWMChannel, error)
	I2C(cfg I2CConfig) (drivers.I2C, error)
	SPI(cfg SPIConfig) (drivers.SPI, error)
	UART(cfg UARTConfig) (SerialPort, error)
}
