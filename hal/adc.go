package hal

import (
	"sync"

	"psoc6-go/errcode"
	"psoc6-go/types"
	"psoc6-go/x/mathx"
)

// Voltage converts a 16-bit sample to volts against vref.
func Voltage(raw uint16, vref float64) float64 { return mathx.ScaleU16(raw, vref) }

type ADC struct {
	m    *Machine
	id   types.PinID
	ch   ADCChannel
	vref float64

	mu     sync.Mutex
	closed bool
}

func (m *Machine) ADC(name string, cfg ADCConfig) (*ADC, error) {
	id, err := parsePin("adc", name)
	if err != nil {
		return nil, err
	}
	cfg.setDefaults()
	if err := m.claim("adc", id); err != nil {
		return nil, err
	}
	ch, err := m.be.ADC(id)
	if err != nil {
		m.release(id)
		return nil, errcode.Wrap(errcode.MapDriverErr(err), "adc", err)
	}
	a := &ADC{m: m, id: id, ch: ch, vref: cfg.VRef}
	m.track(a, func() { _ = a.Deinit() })
	return a, nil
}

func (a *ADC) ID() types.PinID { return a.id }
func (a *ADC) VRef() float64   { return a.vref }

func (a *ADC) ReadU16() (uint16, error) {
	if a == nil || a.ch == nil {
		return 0, errcode.New(errcode.NotInitialised, "adc.read", "adc not initialised")
	}
	a.mu.Lock()
	closed := a.closed
	a.mu.Unlock()
	if closed {
		return 0, errcode.New(errcode.NotInitialised, "adc.read", a.id.String()+" is closed")
	}
	v, err := a.ch.ReadU16()
	if err != nil {
		return 0, errcode.Wrap(errcode.MapDriverErr(err), "adc.read", err)
	}
	return v, nil
}

func (a *ADC) ReadVoltage() (float64, error) {
	raw, err := a.ReadU16()
	if err != nil {
		return 0, err
	}
	return Voltage(raw, a.vref), nil
}

// Read returns both forms of one sample as a bus payload.
func (a *ADC) Read() (types.ADCValue, error) {
	raw, err := a.ReadU16()
	if err != nil {
		return types.ADCValue{}, err
	}
	return types.ADCValue{Pin: a.id.String(), Raw: raw, Voltage: Voltage(raw, a.vref)}, nil
}

func (a *ADC) Deinit() error {
	if a == nil || a.m == nil {
		return nil
	}
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()
	a.m.release(a.id)
	a.m.untrack(a)
	return nil
}
