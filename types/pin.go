package types

import (
	"strconv"
	"strings"

	"psoc6-go/errcode"
)

// PinID is a validated pin token of the form P<port>_<bit>, e.g. "P13_7".
// The zero value means "no pin".
type PinID struct {
	port uint8
	bit  uint8
	ok   bool
}

// Port and bit limits for PSoC6 parts.
const (
	MaxPort = 99
	MaxBit  = 7
)

// ParsePin validates s and returns its PinID.
func ParsePin(s string) (PinID, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "P")
	if !ok {
		return PinID{}, &errcode.E{C: errcode.UnknownPin, Op: "parse_pin", Msg: strconv.Quote(s)}
	}
	ps, bs, ok := strings.Cut(rest, "_")
	if !ok || ps == "" || bs == "" {
		return PinID{}, &errcode.E{C: errcode.UnknownPin, Op: "parse_pin", Msg: strconv.Quote(s)}
	}
	port, err := strconv.ParseUint(ps, 10, 8)
	if err != nil || port > MaxPort {
		return PinID{}, &errcode.E{C: errcode.UnknownPin, Op: "parse_pin", Msg: strconv.Quote(s)}
	}
	bit, err := strconv.ParseUint(bs, 10, 8)
	if err != nil || bit > MaxBit {
		return PinID{}, &errcode.E{C: errcode.UnknownPin, Op: "parse_pin", Msg: strconv.Quote(s)}
	}
	return PinID{port: uint8(port), bit: uint8(bit), ok: true}, nil
}

// MustPin is ParsePin for static tables; it panics on a bad token.
func MustPin(s string) PinID {
	p, err := ParsePin(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Pin builds a PinID from numbers without validation beyond the limits.
func Pin(port, bit int) (PinID, error) {
	if port < 0 || port > MaxPort || bit < 0 || bit > MaxBit {
		return PinID{}, &errcode.E{C: errcode.UnknownPin, Op: "pin", Msg: "P" + strconv.Itoa(port) + "_" + strconv.Itoa(bit)}
	}
	return PinID{port: uint8(port), bit: uint8(bit), ok: true}, nil
}

func (p PinID) Port() int { return int(p.port) }
func (p PinID) Bit() int  { return int(p.bit) }

// IsZero reports whether p is unset.
func (p PinID) IsZero() bool { return !p.ok }

func (p PinID) String() string {
	if !p.ok {
		return ""
	}
	return "P" + strconv.Itoa(int(p.port)) + "_" + strconv.Itoa(int(p.bit))
}

// MarshalText and UnmarshalText let PinID appear as a plain token in YAML and JSON.
func (p PinID) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *PinID) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*p = PinID{}
		return nil
	}
	v, err := ParsePin(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
