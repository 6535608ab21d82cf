// Package sensors identifies and reads the I2C sensors found on the PSoC6
// AI kit and common breakout boards.
package sensors

import (
	"context"
	"fmt"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/shtc3"

	"psoc6-go/drivers/aht20"
	"psoc6-go/errcode"
	"psoc6-go/types"
	"psoc6-go/x/mathx"
)

// Well-known addresses.
const (
	AddrBMI270    uint16 = 0x68
	AddrBMI270Alt uint16 = 0x69
	AddrBMM350    uint16 = 0x14
	AddrDPS368    uint16 = 0x77
	AddrDPS368Alt uint16 = 0x76
	AddrSHTC3     uint16 = 0x70
	AddrAHT20     uint16 = 0x38
	AddrTMP       uint16 = 0x48
)

// Chip id registers and the values a healthy part returns.
const (
	BMI270ChipIDReg uint8 = 0x00
	BMI270ChipID    uint8 = 0x24
	DPS368ProdIDReg uint8 = 0x0D
	DPS368ProdID    uint8 = 0x10
)

var known = map[uint16]string{
	AddrBMI270:    "BMI270 - 6-axis IMU (Accelerometer + Gyroscope)",
	AddrBMI270Alt: "BMI270 - 6-axis IMU (Alternative address)",
	AddrBMM350:    "BMM350 - 3-axis Magnetometer",
	AddrDPS368:    "DPS368 - Barometric Pressure Sensor",
	AddrDPS368Alt: "DPS368 - Barometric Pressure (Alternative address)",
	AddrSHTC3:     "SHTC3 - Temperature and Humidity",
	AddrAHT20:     "AHT20 - Temperature and Humidity",
	AddrTMP:       "TMP102/LM75 - Temperature Sensor",
}

// Name returns the known part at addr, or "Unknown device".
func Name(addr uint16) string {
	if n, ok := known[addr]; ok {
		return n
	}
	return "Unknown device"
}

// Describe names every scanned address.
func Describe(addrs []uint16) []types.I2CDeviceInfo {
	out := make([]types.I2CDeviceInfo, len(addrs))
	for i, a := range addrs {
		out[i] = types.I2CDeviceInfo{Addr: a, Name: Name(a)}
	}
	return out
}

// Interrupt lines wired from the AI kit sensors to the MCU.
var InterruptPins = map[string]types.PinID{
	"imu":          types.MustPin("P1_5"),
	"magnetometer": types.MustPin("P1_0"),
	"pressure":     types.MustPin("P1_4"),
}

// Identity is the result of one id register probe.
type Identity struct {
	Addr uint16
	Reg  uint8
	ID   uint8
	Want uint8
}

func (i Identity) Match() bool { return i.ID == i.Want }

func (i Identity) String() string {
	if i.Match() {
		return fmt.Sprintf("%s id 0x%02X at 0x%02X", Name(i.Addr), i.ID, i.Addr)
	}
	return fmt.Sprintf("unexpected id at 0x%02X (expected 0x%02X, got 0x%02X)", i.Addr, i.Want, i.ID)
}

// ProbeID reads register reg from addr. A mismatch is not an error;
// check Identity.Match.
func ProbeID(bus drivers.I2C, addr uint16, reg, want uint8) (Identity, error) {
	var id [1]byte
	if err := bus.Tx(addr, []byte{reg}, id[:]); err != nil {
		return Identity{Addr: addr, Reg: reg, Want: want}, err
	}
	return Identity{Addr: addr, Reg: reg, ID: id[0], Want: want}, nil
}

// IdentifyBMI270 probes the IMU at its default address.
func IdentifyBMI270(bus drivers.I2C) (Identity, error) {
	return ProbeID(bus, AddrBMI270, BMI270ChipIDReg, BMI270ChipID)
}

// IdentifyDPS368 probes the pressure sensor, falling back to the
// alternative address when the default does not answer.
func IdentifyDPS368(bus drivers.I2C) (Identity, error) {
	id, err := ProbeID(bus, AddrDPS368, DPS368ProdIDReg, DPS368ProdID)
	if err == nil {
		return id, nil
	}
	alt, err2 := ProbeID(bus, AddrDPS368Alt, DPS368ProdIDReg, DPS368ProdID)
	if err2 != nil {
		return id, fmt.Errorf("dps368 not responding at 0x%02X or 0x%02X: %w", AddrDPS368, AddrDPS368Alt, err2)
	}
	return alt, nil
}

// Reader produces one temperature and humidity reading.
type Reader interface {
	Read(ctx context.Context) (types.EnvReading, error)
}

// SHTC3 reads a Sensirion SHTC3 through the TinyGo driver.
type SHTC3 struct {
	dev shtc3.Device
}

func NewSHTC3(bus drivers.I2C) *SHTC3 { return &SHTC3{dev: shtc3.New(bus)} }

// Read wakes the sensor, measures and puts it back to sleep.
func (s *SHTC3) Read(ctx context.Context) (types.EnvReading, error) {
	if err := ctx.Err(); err != nil {
		return types.EnvReading{}, err
	}
	if err := s.dev.WakeUp(); err != nil {
		return types.EnvReading{}, errcode.Wrap(errcode.MapDriverErr(err), "shtc3.wakeup", err)
	}
	defer func() { _ = s.dev.Sleep() }()

	mc, rhx100, err := s.dev.ReadTemperatureHumidity()
	if err != nil {
		return types.EnvReading{}, errcode.Wrap(errcode.MapDriverErr(err), "shtc3.read", err)
	}
	rhx100 = mathx.Clamp(rhx100, 0, 10000)
	return types.EnvReading{
		Sensor:      "shtc3",
		Temperature: float64(mc) / 1000,
		Humidity:    float64(rhx100) / 100,
	}, nil
}

// AHT20 adapts the local AHT20 driver.
type AHT20 struct {
	dev *aht20.Device
}

func NewAHT20(bus drivers.I2C, cfg aht20.Config) *AHT20 { return &AHT20{dev: aht20.New(bus, cfg)} }

// Configure calibrates the sensor; call once before Read.
func (a *AHT20) Configure(ctx context.Context) error { return a.dev.Configure(ctx) }

func (a *AHT20) Read(ctx context.Context) (types.EnvReading, error) {
	s, err := a.dev.Read(ctx)
	if err != nil {
		return types.EnvReading{}, err
	}
	return types.EnvReading{
		Sensor:      "aht20",
		Temperature: s.Celsius(),
		Humidity:    mathx.Clamp(s.RelHumidity(), 0, 100),
	}, nil
}

var (
	_ Reader = (*SHTC3)(nil)
	_ Reader = (*AHT20)(nil)
)
