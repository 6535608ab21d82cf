// Package boards holds the static pin table for supported PSoC6 boards.
//
// Each board is a value in a single table keyed by name. Code looks pins
// up by role (LED, BUTTON, I2C_SDA, ...) so the same example runs on every
// board; custom roles can be layered on with WithRoles.
package boards

import (
	"sort"

	"psoc6-go/errcode"
	"psoc6-go/types"
)

// Role is a logical pin name.
type Role string

const (
	LED       Role = "LED"
	LEDRed    Role = "LED_RED"
	LEDGreen  Role = "LED_GREEN"
	LEDBlue   Role = "LED_BLUE"
	LEDOrange Role = "LED_ORANGE"
	Button    Role = "BUTTON"
	SW2       Role = "SW2"

	I2CSCL  Role = "I2C_SCL"
	I2CSDA  Role = "I2C_SDA"
	SPISCK  Role = "SPI_SCK"
	SPIMOSI Role = "SPI_MOSI"
	SPIMISO Role = "SPI_MISO"
	SPICS   Role = "SPI_CS"
	UARTTX  Role = "UART_TX"
	UARTRX  Role = "UART_RX"
	A0      Role = "A0"
	A1      Role = "A1"
	A2      Role = "A2"
	A3      Role = "A3"
	A4      Role = "A4"
	A5      Role = "A5"
)

// DefaultName is the board used when nothing else is selected.
const DefaultName = "CY8CPROTO-062-4343W"

// Bus plans mirror the wiring a board exposes on its headers.
type I2CPlan struct {
	ID  int
	SCL types.PinID
	SDA types.PinID
	Hz  uint32
}

type SPIPlan struct {
	ID   int
	SCK  types.PinID
	MOSI types.PinID
	MISO types.PinID
	CS   types.PinID
}

type UARTPlan struct {
	ID   int
	TX   types.PinID
	RX   types.PinID
	Baud uint32
}

// Board is an immutable pin map for one board variant.
type Board struct {
	Name         string
	Description  string
	Features     string
	LEDActiveLow bool

	pins map[Role]types.PinID
	I2C  []I2CPlan
	SPI  []SPIPlan
	UART []UARTPlan
}

// Pin returns the pin bound to role.
func (b Board) Pin(role Role) (types.PinID, error) {
	p, ok := b.pins[role]
	if !ok {
		return types.PinID{}, &errcode.E{C: errcode.UnknownPin, Op: "board.pin", Msg: b.Name + " has no " + string(role)}
	}
	return p, nil
}

// Has reports whether role is bound.
func (b Board) Has(role Role) bool {
	_, ok := b.pins[role]
	return ok
}

// Roles lists bound roles in sorted order.
func (b Board) Roles() []Role {
	out := make([]Role, 0, len(b.pins))
	for r := range b.pins {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Analog returns the bound analog header pins, A0 first.
func (b Board) Analog() []types.PinID {
	var out []types.PinID
	for _, r := range []Role{A0, A1, A2, A3, A4, A5} {
		if p, ok := b.pins[r]; ok {
			out = append(out, p)
		}
	}
	return out
}

// WithRoles returns a copy of b with extra or overriding roles.
func (b Board) WithRoles(extra map[Role]types.PinID) Board {
	pins := make(map[Role]types.PinID, len(b.pins)+len(extra))
	for r, p := range b.pins {
		pins[r] = p
	}
	for r, p := range extra {
		pins[r] = p
	}
	b.pins = pins
	return b
}

func (b Board) String() string { return "<Board: " + b.Name + ">" }

// Lookup returns the board registered under name.
func Lookup(name string) (Board, error) {
	b, ok := table[name]
	if !ok {
		return Board{}, &errcode.E{C: errcode.UnknownBoard, Op: "boards.lookup", Msg: name}
	}
	return b, nil
}

// Default returns the default board.
func Default() Board { return table[DefaultName] }

// List returns every board in a stable order.
func List() []Board {
	out := make([]Board, 0, len(table))
	for _, n := range order {
		out = append(out, table[n])
	}
	return out
}

// Register adds or replaces a board, e.g. one loaded from configuration.
// It is meant to run during start-up, before boards are looked up concurrently.
func Register(b Board) error {
	if b.Name == "" {
		return &errcode.E{C: errcode.InvalidParams, Op: "boards.register", Msg: "empty board name"}
	}
	if _, ok := table[b.Name]; !ok {
		order = append(order, b.Name)
	}
	table[b.Name] = b
	return nil
}

// New builds a board from a role map; used for boards defined in config.
func New(name, description string, pins map[Role]types.PinID) Board {
	b := Board{Name: name, Description: description}.WithRoles(pins)
	b.I2C, b.SPI, b.UART = plansFromRoles(b.pins)
	return b
}

// Detect would identify the running board. Board detection is not
// implemented on any target, so it always reports nothing and callers fall
// back to the configured board.
func Detect() (string, bool) { return "", false }

func plansFromRoles(p map[Role]types.PinID) ([]I2CPlan, []SPIPlan, []UARTPlan) {
	var (
		i2c  []I2CPlan
		spi  []SPIPlan
		uart []UARTPlan
	)
	if scl, ok := p[I2CSCL]; ok {
		if sda, ok := p[I2CSDA]; ok {
			i2c = append(i2c, I2CPlan{ID: 0, SCL: scl, SDA: sda, Hz: 400_000})
		}
	}
	if sck, ok := p[SPISCK]; ok {
		spi = append(spi, SPIPlan{ID: 0, SCK: sck, MOSI: p[SPIMOSI], MISO: p[SPIMISO], CS: p[SPICS]})
	}
	if tx, ok := p[UARTTX]; ok {
		if rx, ok := p[UARTRX]; ok {
			uart = append(uart, UARTPlan{ID: 0, TX: tx, RX: rx, Baud: 115_200})
		}
	}
	return i2c, spi, uart
}
