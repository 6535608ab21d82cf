package hal

import (
	"time"

	"psoc6-go/errcode"
	"psoc6-go/types"
)

// PinMode selects the direction of a digital pin.
type PinMode uint8

const (
	In PinMode = iota
	Out
)

func (m PinMode) String() string {
	if m == Out {
		return "out"
	}
	return "in"
}

// PinConfig configures a digital pin. Pull applies to inputs, Initial to outputs.
type PinConfig struct {
	Mode    PinMode
	Pull    types.Pull
	Initial bool
}

// ADCConfig configures an analog input.
type ADCConfig struct {
	// VRef is the full-scale voltage. Default 3.3.
	VRef float64
}

const DefaultVRef = 3.3

func (c *ADCConfig) setDefaults() {
	if c.VRef <= 0 {
		c.VRef = DefaultVRef
	}
}

// PWMConfig configures a PWM output.
type PWMConfig struct {
	// Freq in Hz. Default 1000.
	Freq uint32
	// Duty is the initial 16-bit duty.
	Duty uint16
	// Invert drives 65535-duty, for active-low loads.
	Invert bool
}

const DefaultPWMFreq = 1000

func (c *PWMConfig) setDefaults() {
	if c.Freq == 0 {
		c.Freq = DefaultPWMFreq
	}
}

// I2CConfig configures an I2C controller. Zero pins use the backend's wiring.
type I2CConfig struct {
	ID  int
	SCL types.PinID
	SDA types.PinID
	// Freq in Hz. Default 400 kHz.
	Freq uint32
	// Timeout bounds one transaction, queueing included. Default 250 ms.
	Timeout time.Duration
}

const (
	DefaultI2CFreq    = 400_000
	DefaultI2CTimeout = 250 * time.Millisecond
)

func (c *I2CConfig) setDefaults() {
	if c.Freq == 0 {
		c.Freq = DefaultI2CFreq
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultI2CTimeout
	}
}

func (c I2CConfig) validate() error {
	if c.ID < 0 {
		return errcode.New(errcode.InvalidParams, "i2c.init", "negative bus id")
	}
	if c.Freq > 3_400_000 {
		return errcode.New(errcode.InvalidParams, "i2c.init", "frequency above 3.4 MHz")
	}
	return nil
}

// BitOrder selects which bit goes first on the wire.
type BitOrder uint8

const (
	MSB BitOrder = iota
	LSB
)

// SPIConfig configures an SPI controller. Zero pins use the backend's wiring.
type SPIConfig struct {
	ID int
	// Baudrate in Hz. Default 1 MHz.
	Baudrate uint32
	Polarity uint8
	Phase    uint8
	// Bits per word. Default 8.
	Bits     uint8
	FirstBit BitOrder
	SCK      types.PinID
	MOSI     types.PinID
	MISO     types.PinID
}

const DefaultSPIBaudrate = 1_000_000

func (c *SPIConfig) setDefaults() {
	if c.Baudrate == 0 {
		c.Baudrate = DefaultSPIBaudrate
	}
	if c.Bits == 0 {
		c.Bits = 8
	}
}

// Mode returns the classic SPI mode number 0..3.
func (c SPIConfig) Mode() uint8 { return c.Polarity<<1 | c.Phase }

func (c SPIConfig) validate() error {
	switch {
	case c.ID < 0:
		return errcode.New(errcode.InvalidParams, "spi.init", "negative bus id")
	case c.Polarity > 1 || c.Phase > 1:
		return errcode.New(errcode.InvalidParams, "spi.init", "polarity and phase must be 0 or 1")
	case c.Bits != 8:
		return errcode.New(errcode.Unsupported, "spi.init", "only 8-bit words are supported")
	case c.FirstBit > LSB:
		return errcode.New(errcode.InvalidParams, "spi.init", "bad bit order")
	}
	return nil
}

// UARTConfig configures a UART. Zero pins use the backend's wiring.
type UARTConfig struct {
	ID       int
	Baudrate uint32
	Bits     uint8
	Parity   types.Parity
	Stop     uint8
	TX       types.PinID
	RX       types.PinID
	// Timeout bounds how long reads wait for data. Zero means the
	// default of one second; negative means reads never wait.
	Timeout time.Duration
	// RXBuffer is the receive ring size in bytes, rounded up to a power of two.
	RXBuffer int
}

const (
	DefaultBaudrate    = 115_200
	DefaultUARTTimeout = time.Second
	DefaultRXBuffer    = 256
)

func (c *UARTConfig) setDefaults() {
	if c.Baudrate == 0 {
		c.Baudrate = DefaultBaudrate
	}
	if c.Bits == 0 {
		c.Bits = 8
	}
	if c.Stop == 0 {
		c.Stop = 1
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultUARTTimeout
	}
	if c.RXBuffer <= 0 {
		c.RXBuffer = DefaultRXBuffer
	}
}

// Format returns the frame layout.
func (c UARTConfig) Format() types.SerialFormat {
	return types.SerialFormat{DataBits: c.Bits, StopBits: c.Stop, Parity: c.Parity}
}

func (c UARTConfig) validate() error {
	switch {
	case c.ID < 0:
		return errcode.New(errcode.InvalidParams, "uart.init", "negative uart id")
	case c.Bits < 5 || c.Bits > 9:
		return errcode.New(errcode.InvalidParams, "uart.init", "data bits must be 5..9")
	case c.Stop != 1 && c.Stop != 2:
		return errcode.New(errcode.InvalidParams, "uart.init", "stop bits must be 1 or 2")
	case c.Parity > types.ParityOdd:
		return errcode.New(errcode.InvalidParams, "uart.init", "bad parity")
	}
	return nil
}
