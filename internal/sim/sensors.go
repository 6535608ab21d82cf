package sim

import (
	"sync"

	"psoc6-go/errcode"
)

// CRC8 is the Sensirion/Aosong checksum: poly 0x31, init 0xFF.
func CRC8(data []byte) byte {
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

// Climate is a settable temperature (°C) and relative humidity (%).
type Climate struct {
	mu   sync.Mutex
	temp float64
	rh   float64
}

func (c *Climate) Set(tempC, rh float64) {
	c.mu.Lock()
	c.temp, c.rh = tempC, rh
	c.mu.Unlock()
}

func (c *Climate) get() (float64, float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.temp, c.rh
}

func clampRaw(v float64, top float64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > top:
		return uint32(top)
	}
	return uint32(v + 0.5)
}

// SHTC3 models the Sensirion SHTC3 at 0x70: 16-bit commands, 6-byte
// measurement frames with a CRC after each word. Both temperature-first and
// humidity-first orders are honoured. A measurement command may be
// followed by the read in the same or a later transaction.
type SHTC3 struct {
	Climate

	mu      sync.Mutex
	asleep  bool
	pending []byte
}

const (
	shtc3Wakeup = 0x3517
	shtc3Sleep  = 0xB098
	shtc3Reset  = 0x805D
	shtc3ReadID = 0xEFC8
	shtc3ID     = 0x0807
)

func NewSHTC3(tempC, rh float64) *SHTC3 {
	s := &SHTC3{}
	s.Set(tempC, rh)
	return s
}

func word(v uint16) []byte {
	b := []byte{byte(v >> 8), byte(v)}
	return append(b, CRC8(b))
}

func (s *SHTC3) Tx(w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(w) >= 2 {
		cmd := uint16(w[0])<<8 | uint16(w[1])
		switch {
		case cmd == shtc3Wakeup:
			s.asleep = false
		case s.asleep:
			return errcode.New(errcode.NACK, "sim.shtc3", "asleep")
		case cmd == shtc3Sleep:
			s.asleep = true
		case cmd == shtc3Reset:
			s.pending = nil
		case cmd == shtc3ReadID:
			s.pending = word(shtc3ID)
		default:
			t, rh := s.get()
			traw := uint16(clampRaw((t+45)/175*65536, 65535))
			hraw := uint16(clampRaw(rh/100*65536, 65535))
			switch w[0] {
			case 0x7C, 0x78, 0x60, 0x64: // temperature first
				s.pending = append(word(traw), word(hraw)...)
			case 0x5C, 0x58, 0x44, 0x40: // humidity first
				s.pending = append(word(hraw), word(traw)...)
			default:
				return errcode.New(errcode.InvalidParams, "sim.shtc3", "unknown command")
			}
		}
	} else if len(w) == 1 {
		return errcode.New(errcode.InvalidParams, "sim.shtc3", "short command")
	}
	if len(r) > 0 {
		if s.asleep {
			return errcode.New(errcode.NACK, "sim.shtc3", "asleep")
		}
		n := copy(r, s.pending)
		for i := n; i < len(r); i++ {
			r[i] = 0xFF
		}
		s.pending = nil
	}
	return nil
}

// AHT20 models the Aosong AHT20 at 0x38. A trigger (0xAC) makes the next
// read return a ready 7-byte frame with status, 20-bit humidity, 20-bit
// temperature and CRC. BusyReads keeps the status busy for that many reads
// after each trigger.
type AHT20 struct {
	Climate

	mu         sync.Mutex
	calibrated bool
	busyLeft   int
	BusyReads  int
	triggered  bool
}

func NewAHT20(tempC, rh float64) *AHT20 {
	a := &AHT20{}
	a.Set(tempC, rh)
	return a
}

func (a *AHT20) Tx(w, r []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(w) > 0 {
		switch w[0] {
		case 0xBE:
			a.calibrated = true
		case 0xBA:
			a.calibrated = false
			a.triggered = false
		case 0xAC:
			a.triggered = true
			a.busyLeft = a.BusyReads
		case 0x71:
		default:
			return errcode.New(errcode.InvalidParams, "sim.aht20", "unknown command")
		}
	}
	if len(r) == 0 {
		return nil
	}
	st := byte(0x18)
	if !a.calibrated {
		st = 0x10
	}
	if a.busyLeft > 0 {
		a.busyLeft--
		st |= 0x80
	}
	frame := make([]byte, 7)
	frame[0] = st
	if a.triggered && st&0x80 == 0 {
		t, rh := a.get()
		h := clampRaw(rh/100*(1<<20), 1<<20-1)
		tr := clampRaw((t+50)/200*(1<<20), 1<<20-1)
		frame[1] = byte(h >> 12)
		frame[2] = byte(h >> 4)
		frame[3] = byte(h<<4) | byte(tr>>16&0x0F)
		frame[4] = byte(tr >> 8)
		frame[5] = byte(tr)
	}
	frame[6] = CRC8(frame[:6])
	copy(r, frame)
	return nil
}
