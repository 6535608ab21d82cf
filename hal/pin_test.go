package hal_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/errcode"
	"psoc6-go/hal"
	"psoc6-go/internal/sim"
	"psoc6-go/types"
)

func newMachine(t *testing.T, opts ...hal.Option) (*hal.Machine, *sim.Board) {
	t.Helper()
	b := sim.New()
	m := hal.New(b, opts...)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		_ = m.Close()
		cancel()
	})
	return m, b
}

func TestPinOutput(t *testing.T) {
	m, b := newMachine(t)
	led, err := m.Pin("P13_7", hal.PinConfig{Mode: hal.Out, Initial: true})
	require.NoError(t, err)
	assert.True(t, b.Level("P13_7"))

	require.NoError(t, led.Off())
	assert.False(t, b.Level("P13_7"))
	require.NoError(t, led.Toggle())
	v, err := led.Value()
	require.NoError(t, err)
	assert.True(t, v)
	require.NoError(t, led.Set(false))
	assert.False(t, b.Level("P13_7"))
}

func TestPinInputPull(t *testing.T) {
	m, b := newMachine(t)
	btn, err := m.Pin("P0_4", hal.PinConfig{Mode: hal.In, Pull: types.PullUp})
	require.NoError(t, err)

	v, _ := btn.Value()
	assert.True(t, v, "pull-up idles high")

	b.Drive("P0_4", false)
	v, _ = btn.Value()
	assert.False(t, v)

	b.Release("P0_4")
	v, _ = btn.Value()
	assert.True(t, v)

	assert.Equal(t, errcode.InvalidParams, errcode.Of(btn.On()))
}

func TestPinClaims(t *testing.T) {
	m, _ := newMachine(t)
	p, err := m.Pin("P13_7", hal.PinConfig{Mode: hal.Out})
	require.NoError(t, err)

	_, err = m.Pin("P13_7", hal.PinConfig{Mode: hal.Out})
	assert.Equal(t, errcode.PinInUse, errcode.Of(err))
	_, err = m.PWM("P13_7", hal.PWMConfig{})
	assert.Equal(t, errcode.PinInUse, errcode.Of(err))

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	_, ok := m.Owner(types.MustPin("P13_7"))
	assert.False(t, ok)

	_, err = m.Pin("P13_7", hal.PinConfig{Mode: hal.Out})
	assert.NoError(t, err)
}

func TestPinRejectsBadToken(t *testing.T) {
	m, _ := newMachine(t)
	_, err := m.Pin("GP25", hal.PinConfig{})
	assert.Equal(t, errcode.UnknownPin, errcode.Of(err))
}

func TestClosedAndNilHandles(t *testing.T) {
	m, _ := newMachine(t)
	p, err := m.Pin("P13_7", hal.PinConfig{Mode: hal.Out})
	require.NoError(t, err)
	require.NoError(t, p.Close())
	assert.Equal(t, errcode.NotInitialised, errcode.Of(p.On()))
	_, err = p.Value()
	assert.Equal(t, errcode.NotInitialised, errcode.Of(err))

	var nilPin *hal.Pin
	assert.Equal(t, errcode.NotInitialised, errcode.Of(nilPin.Toggle()))
	var nilADC *hal.ADC
	_, err = nilADC.ReadU16()
	assert.Equal(t, errcode.NotInitialised, errcode.Of(err))
	var nilUART *hal.UART
	_, err = nilUART.Write([]byte("x"))
	assert.Equal(t, errcode.NotInitialised, errcode.Of(err))
}

func TestSignal(t *testing.T) {
	for _, x := range []bool{false, true} {
		for _, inv := range []bool{false, true} {
			assert.Equal(t, x, hal.Physical(hal.Physical(x, inv), inv))
		}
	}

	m, b := newMachine(t)
	p, err := m.Pin("P13_7", hal.PinConfig{Mode: hal.Out})
	require.NoError(t, err)

	led := hal.NewSignal(p, true)
	require.NoError(t, led.On())
	assert.False(t, b.Level("P13_7"), "active-low LED is on when the pin is low")
	on, err := led.Value()
	require.NoError(t, err)
	assert.True(t, on)

	require.NoError(t, led.Off())
	assert.True(t, b.Level("P13_7"))

	plain := hal.NewSignal(p, false)
	require.NoError(t, plain.On())
	assert.True(t, b.Level("P13_7"))
}

func TestCloseReleasesHandles(t *testing.T) {
	b := sim.New()
	m := hal.New(b)
	m.Start(context.Background())
	_, err := m.Pin("P13_7", hal.PinConfig{Mode: hal.Out})
	require.NoError(t, err)
	pwm, err := m.PWM("P6_3", hal.PWMConfig{Duty: 1000})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, ok := m.Owner(types.MustPin("P13_7"))
	assert.False(t, ok)
	assert.False(t, b.PWMState("P6_3").Running)
	_, err = pwm.DutyU16()
	assert.Equal(t, errcode.NotInitialised, errcode.Of(err))
}
