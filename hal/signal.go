package hal

import "psoc6-go/errcode"

// Physical maps a logical level onto the wire level for a given polarity.
func Physical(level, invert bool) bool { return level != invert }

// Signal gives a pin a logical on/off independent of its wiring polarity.
// It borrows the pin; closing the pin remains the caller's job.
type Signal struct {
	pin    *Pin
	invert bool
}

func NewSignal(p *Pin, invert bool) *Signal { return &Signal{pin: p, invert: invert} }

func (s *Signal) Inverted() bool { return s.invert }
func (s *Signal) Pin() *Pin      { return s.pin }

func (s *Signal) On() error  { return s.Set(true) }
func (s *Signal) Off() error { return s.Set(false) }

func (s *Signal) Set(on bool) error {
	if s == nil {
		return errcode.New(errcode.NotInitialised, "signal.set", "nil signal")
	}
	return s.pin.Set(Physical(on, s.invert))
}

// Value reports the logical state.
func (s *Signal) Value() (bool, error) {
	if s == nil {
		return false, errcode.New(errcode.NotInitialised, "signal.value", "nil signal")
	}
	v, err := s.pin.Value()
	if err != nil {
		return false, err
	}
	return Physical(v, s.invert), nil
}
