package hal_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/errcode"
	"psoc6-go/hal"
)

func TestPeriodicTimersFireFloorDOverT(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m, _ := newMachine(t, hal.WithClock(clk))

	var fast, slow atomic.Int32
	require.NoError(t, m.Timer(0).Init(hal.TimerConfig{
		Period: 200 * time.Millisecond, Mode: hal.Periodic,
		Callback: func(*hal.Timer) { fast.Add(1) },
	}))
	require.NoError(t, m.Timer(1).Init(hal.TimerConfig{
		Period: time.Second, Mode: hal.Periodic,
		Callback: func(*hal.Timer) { slow.Add(1) },
	}))

	clk.Advance(5 * time.Second)
	require.Eventually(t, func() bool { return fast.Load() == 25 && slow.Load() == 5 },
		2*time.Second, time.Millisecond)

	require.NoError(t, m.Timer(0).Deinit())
	require.NoError(t, m.Timer(1).Deinit())
	clk.Advance(5 * time.Second)
	m.Sync()
	assert.Equal(t, int32(25), fast.Load())
	assert.Equal(t, int32(5), slow.Load())
	assert.Equal(t, hal.Stopped, m.Timer(0).State())
	assert.Equal(t, uint32(25), m.Timer(0).Fired())
}

func TestOneShotFiresOnce(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m, _ := newMachine(t, hal.WithClock(clk))

	var n atomic.Int32
	tm := m.Timer(3)
	require.NoError(t, tm.Init(hal.TimerConfig{
		Period:   2 * time.Second,
		Callback: func(*hal.Timer) { n.Add(1) },
	}))
	assert.Equal(t, hal.Armed, tm.State())

	clk.Advance(time.Second)
	m.Sync()
	assert.Equal(t, int32(0), n.Load())

	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, hal.Stopped, tm.State())

	clk.Advance(10 * time.Second)
	m.Sync()
	assert.Equal(t, int32(1), n.Load())
}

func TestTimerSlotIsStable(t *testing.T) {
	m, _ := newMachine(t)
	assert.Same(t, m.Timer(7), m.Timer(7))
	assert.Equal(t, 7, m.Timer(7).ID())
	err := m.Timer(7).Init(hal.TimerConfig{Period: 0})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
	assert.Equal(t, hal.Stopped, m.Timer(7).State())
}

func TestDeinitDiscardsQueuedFirings(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m, _ := newMachine(t, hal.WithClock(clk))

	started := make(chan struct{})
	release := make(chan struct{})
	var n atomic.Int32
	tm := m.Timer(0)
	require.NoError(t, tm.Init(hal.TimerConfig{
		Period: 100 * time.Millisecond, Mode: hal.Periodic,
		Callback: func(*hal.Timer) {
			if n.Add(1) == 1 {
				close(started)
				<-release
			}
		},
	}))

	clk.Advance(500 * time.Millisecond)
	<-started
	require.NoError(t, tm.Deinit())
	close(release)
	m.Sync()
	assert.Equal(t, int32(1), n.Load())
}

func TestDeinitFromCallback(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m, _ := newMachine(t, hal.WithClock(clk))

	var n atomic.Int32
	require.NoError(t, m.Timer(0).Init(hal.TimerConfig{
		Period: 100 * time.Millisecond, Mode: hal.Periodic,
		Callback: func(tm *hal.Timer) {
			if n.Add(1) == 3 {
				_ = tm.Deinit()
			}
		},
	}))
	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
	m.Sync()
	assert.Equal(t, int32(3), n.Load())
}

func TestReinitReplacesArming(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m, _ := newMachine(t, hal.WithClock(clk))

	var a, b atomic.Int32
	tm := m.Timer(0)
	require.NoError(t, tm.Init(hal.TimerConfig{
		Period: 100 * time.Millisecond, Mode: hal.Periodic,
		Callback: func(*hal.Timer) { a.Add(1) },
	}))
	require.NoError(t, tm.Init(hal.TimerConfig{
		Period: 250 * time.Millisecond, Mode: hal.Periodic,
		Callback: func(*hal.Timer) { b.Add(1) },
	}))
	clk.Advance(time.Second)
	require.Eventually(t, func() bool { return b.Load() == 4 }, time.Second, time.Millisecond)
	m.Sync()
	assert.Equal(t, int32(0), a.Load())
}

func TestCallbackPanicIsContained(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m, _ := newMachine(t, hal.WithClock(clk))

	var after atomic.Int32
	require.NoError(t, m.Timer(0).Init(hal.TimerConfig{
		Period:   time.Second,
		Callback: func(*hal.Timer) { panic("boom") },
	}))
	require.NoError(t, m.Timer(1).Init(hal.TimerConfig{
		Period:   2 * time.Second,
		Callback: func(*hal.Timer) { after.Add(1) },
	}))
	clk.Advance(2 * time.Second)
	require.Eventually(t, func() bool { return after.Load() == 1 }, time.Second, time.Millisecond)
}
