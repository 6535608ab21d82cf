package types

// ------------------------
// Serial
// ------------------------

type Parity uint8

const (
	ParityNone Parity = iota
	ParityEven
	ParityOdd
)

func (p Parity) String() string {
	switch p {
	case ParityEven:
		return "even"
	case ParityOdd:
		return "odd"
	default:
		return "none"
	}
}

func (p Parity) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (p *Parity) UnmarshalText(b []byte) error {
	switch string(b) {
	case "even", "E":
		*p = ParityEven
	case "odd", "O":
		*p = ParityOdd
	default:
		*p = ParityNone
	}
	return nil
}

// SerialFormat is the frame layout, e.g. 8N1.
type SerialFormat struct {
	DataBits uint8  `yaml:"data_bits" json:"data_bits"`
	StopBits uint8  `yaml:"stop_bits" json:"stop_bits"`
	Parity   Parity `yaml:"parity" json:"parity"`
}

func (f SerialFormat) String() string {
	p := "N"
	switch f.Parity {
	case ParityEven:
		p = "E"
	case ParityOdd:
		p = "O"
	}
	return string(rune('0'+f.DataBits)) + p + string(rune('0'+f.StopBits))
}

type SerialStats struct {
	RXBytes uint64 `json:"rx_bytes"`
	TXBytes uint64 `json:"tx_bytes"`
	RXDrops uint64 `json:"rx_drops"`
}
