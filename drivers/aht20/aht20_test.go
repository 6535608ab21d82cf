package aht20

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/errcode"
	"psoc6-go/internal/sim"
)

func TestReadConverts(t *testing.T) {
	b := sim.New()
	b.AttachI2C(0, Address, sim.NewAHT20(23.5, 41.0))
	d := New(b.I2CBus(0), Config{CheckCRC: true, PollInterval: time.Millisecond})
	require.NoError(t, d.Configure(context.Background()))

	s, err := d.Read(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 23.5, s.Celsius(), 0.01)
	assert.InDelta(t, 41.0, s.RelHumidity(), 0.01)
	assert.InDelta(t, 235, s.DeciCelsius(), 1)
	assert.InDelta(t, 410, s.DeciRelHumidity(), 1)
	assert.Equal(t, s, d.Last())
}

func TestReadPollsWhileBusy(t *testing.T) {
	b := sim.New()
	dev := sim.NewAHT20(20, 50)
	dev.BusyReads = 3
	b.AttachI2C(0, Address, dev)
	d := New(b.I2CBus(0), Config{PollInterval: time.Millisecond})
	require.NoError(t, d.Configure(context.Background()))

	_, err := d.Read(context.Background())
	require.NoError(t, err)

	require.NoError(t, d.Trigger())
	var s Sample
	assert.Equal(t, ErrNotReady, d.Collect(&s))
}

func TestReadTimesOut(t *testing.T) {
	b := sim.New()
	dev := sim.NewAHT20(20, 50)
	dev.BusyReads = 1000
	b.AttachI2C(0, Address, dev)
	d := New(b.I2CBus(0), Config{PollInterval: time.Millisecond, CollectTimeout: 10 * time.Millisecond})
	require.NoError(t, d.Configure(context.Background()))

	_, err := d.Read(context.Background())
	assert.Equal(t, errcode.Timeout, errcode.Of(err))
}

func TestMissingSensorNACKs(t *testing.T) {
	b := sim.New()
	d := New(b.I2CBus(0), Config{})
	_, err := d.Read(context.Background())
	assert.Equal(t, errcode.NACK, errcode.Of(err))
}
