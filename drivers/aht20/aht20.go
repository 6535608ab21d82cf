// Package aht20 drives the Aosong AHT20 temperature/humidity sensor over
// any tinygo.org/x/drivers I2C bus.
//
// Measurement is two-phase:
//
//	d.Trigger()          // start a conversion (no wait)
//	err := d.Collect(&s) // ErrNotReady while the sensor is busy
//
// Read does both with bounded polling on the configured clock.
//
// I2C.Tx must issue a repeated start when both w and r are given.
package aht20

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"tinygo.org/x/drivers"

	"psoc6-go/errcode"
	"psoc6-go/x/timex"
)

const Address = 0x38

const (
	cmdTrigger    = 0xAC
	cmdInitialize = 0xBE
	cmdSoftReset  = 0xBA
	cmdStatus     = 0x71

	statusBusy       = 0x80
	statusCalibrated = 0x08
)

var (
	ErrTimeout  = errcode.New(errcode.Timeout, "aht20", "conversion did not finish")
	ErrNotReady = errcode.New(errcode.Busy, "aht20", "not ready")
	ErrCRC      = errcode.New(errcode.Error, "aht20", "checksum mismatch")
)

type Config struct {
	// Address defaults to 0x38.
	Address uint16
	// PollInterval is the wait between Collect attempts in Read. Default 15 ms.
	PollInterval time.Duration
	// CollectTimeout bounds Read. Default 250 ms.
	CollectTimeout time.Duration
	// TriggerHint is the nominal conversion time. Default 80 ms.
	TriggerHint time.Duration
	// CheckCRC verifies the trailing CRC byte of each frame.
	CheckCRC bool
	// Clock paces polling. Default real time.
	Clock clockwork.Clock
}

func (c *Config) setDefaults() {
	if c.Address == 0 {
		c.Address = Address
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 15 * time.Millisecond
	}
	if c.CollectTimeout <= 0 {
		c.CollectTimeout = 250 * time.Millisecond
	}
	if c.TriggerHint <= 0 {
		c.TriggerHint = 80 * time.Millisecond
	}
	if c.Clock == nil {
		c.Clock = clockwork.NewRealClock()
	}
}

type Device struct {
	bus  drivers.I2C
	cfg  Config
	buf  [7]byte
	last Sample
}

// New binds a device to bus without touching it.
func New(bus drivers.I2C, cfg Config) *Device {
	cfg.setDefaults()
	return &Device{bus: bus, cfg: cfg}
}

func (d *Device) Address() uint16 { return d.cfg.Address }

// Configure calibrates the sensor unless it already reports calibrated.
func (d *Device) Configure(ctx context.Context) error {
	st, err := d.Status()
	if err == nil && st&statusCalibrated != 0 {
		return nil
	}
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdInitialize, 0x08, 0x00}, nil); err != nil {
		return err
	}
	timex.Sleep(ctx, d.cfg.Clock, 10*time.Millisecond)
	return nil
}

// Reset issues a soft reset. Allow ~20 ms before the next command.
func (d *Device) Reset() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdSoftReset}, nil)
}

func (d *Device) Status() (byte, error) {
	var b [1]byte
	if err := d.bus.Tx(d.cfg.Address, []byte{cmdStatus}, b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (d *Device) Trigger() error {
	return d.bus.Tx(d.cfg.Address, []byte{cmdTrigger, 0x33, 0x00}, nil)
}

func (d *Device) TriggerHint() time.Duration { return d.cfg.TriggerHint }

// Collect reads one frame. It returns ErrNotReady while a conversion is in
// progress or before calibration.
func (d *Device) Collect(out *Sample) error {
	data := d.buf[:]
	if err := d.bus.Tx(d.cfg.Address, nil, data); err != nil {
		return err
	}
	if data[0]&statusCalibrated == 0 || data[0]&statusBusy != 0 {
		return ErrNotReady
	}
	if d.cfg.CheckCRC && crc8(data[:6]) != data[6] {
		return ErrCRC
	}
	s := Sample{
		RawHumidity: uint32(data[1])<<12 | uint32(data[2])<<4 | uint32(data[3])>>4,
		RawTemp:     uint32(data[3]&0x0F)<<16 | uint32(data[4])<<8 | uint32(data[5]),
	}
	d.last = s
	if out != nil {
		*out = s
	}
	return nil
}

// Read triggers a conversion and polls until it completes or
// CollectTimeout passes.
func (d *Device) Read(ctx context.Context) (Sample, error) {
	if err := d.Trigger(); err != nil {
		return Sample{}, err
	}
	clk := d.cfg.Clock
	deadline := clk.Now().Add(d.cfg.CollectTimeout)
	for {
		var s Sample
		err := d.Collect(&s)
		switch err {
		case nil:
			return s, nil
		case ErrNotReady:
			if !clk.Now().Before(deadline) {
				return Sample{}, ErrTimeout
			}
			if !timex.Sleep(ctx, clk, d.cfg.PollInterval) {
				return Sample{}, ctx.Err()
			}
		default:
			return Sample{}, err
		}
	}
}

// Last returns the most recent successful sample.
func (d *Device) Last() Sample { return d.last }

// Sample holds the 20-bit raw readings.
type Sample struct {
	RawHumidity uint32
	RawTemp     uint32
}

func (s Sample) DeciRelHumidity() int32 {
	v := int64(s.RawHumidity) * 1000
	return int32(v >> 20)
}

func (s Sample) DeciCelsius() int32 {
	v := int64(s.RawTemp) * 2000
	return int32(v>>20) - 500
}

func (s Sample) RelHumidity() float64 { return float64(s.RawHumidity) * 100 / (1 << 20) }
func (s Sample) Celsius() float64     { return float64(s.RawTemp)*200/(1<<20) - 50 }

func crc8(data []byte) byte {
	crc := byte(0xFF)
	for _, b := range data {
		crc ^= b
		for range 8 {
			if crc&0x80 != 0 {
				crc = crc<<1 ^ 0x31
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
