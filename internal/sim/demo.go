package sim

import (
	"psoc6-go/boards"
)

// NewDemo returns a board populated with the parts the examples look for,
// wired to the pins of b: a TMP102-style sensor at 0x48, the AI kit
// sensors, a register-mapped SPI device behind SPI_CS, a mid-scale level
// on A0 and a terminal that has typed a line and a few commands.
func NewDemo(b boards.Board) *Board {
	sb := New()

	sb.AttachI2C(0, 0x48, NewRegisterFile(map[uint8]byte{0x00: 0x19, 0x01: 0x80}))
	sb.AttachI2C(0, 0x68, NewRegisterFile(map[uint8]byte{0x00: 0x24}))
	sb.AttachI2C(0, 0x14, NewRegisterFile(map[uint8]byte{0x00: 0x33}))
	sb.AttachI2C(0, 0x77, NewRegisterFile(map[uint8]byte{0x0D: 0x10}))
	sb.AttachI2C(0, 0x70, NewSHTC3(25.5, 60.0))
	sb.AttachI2C(0, 0x38, NewAHT20(25.5, 60.0))

	sb.AttachSPI(0, NewSPIRegisters(map[uint8]byte{0x00: 0xD1}))
	if cs, err := b.Pin(boards.SPICS); err == nil {
		sb.WireCS(0, cs.String())
	}

	if a0, err := b.Pin(boards.A0); err == nil {
		sb.SetAnalog(a0.String(), 32768)
	}

	sb.Serial(0).InjectString("Hello PSoC6\nLED_ON\rSTATUS\rREBOOT\n")
	return sb
}
