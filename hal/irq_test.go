package hal_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/errcode"
	"psoc6-go/hal"
	"psoc6-go/types"
)

func recvIRQ(t *testing.T, ch <-chan hal.IRQEvent) hal.IRQEvent {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for interrupt")
		return hal.IRQEvent{}
	}
}

func TestIRQFallingOnly(t *testing.T) {
	m, b := newMachine(t)
	btn, err := m.Pin("P0_4", hal.PinConfig{Mode: hal.In, Pull: types.PullUp})
	require.NoError(t, err)

	events := make(chan hal.IRQEvent, 8)
	require.NoError(t, btn.IRQ(hal.IRQConfig{
		Trigger: types.EdgeFalling,
		Handler: func(ev hal.IRQEvent) { events <- ev },
	}))

	b.Drive("P0_4", false)
	ev := recvIRQ(t, events)
	assert.Equal(t, types.EdgeFalling, ev.Edge)
	assert.False(t, ev.Level)
	assert.Equal(t, "P0_4", ev.Pin.String())

	b.Drive("P0_4", true)
	b.Drive("P0_4", false)
	ev = recvIRQ(t, events)
	assert.Equal(t, types.EdgeFalling, ev.Edge)
	m.Sync()
	assert.Empty(t, events, "rising edges are not in the mask")

	require.NoError(t, btn.DisableIRQ())
	b.Drive("P0_4", true)
	b.Drive("P0_4", false)
	m.Sync()
	assert.Empty(t, events)
}

func TestIRQBothEdges(t *testing.T) {
	m, b := newMachine(t)
	btn, err := m.Pin("P0_4", hal.PinConfig{Mode: hal.In, Pull: types.PullUp})
	require.NoError(t, err)

	events := make(chan hal.IRQEvent, 8)
	require.NoError(t, btn.IRQ(hal.IRQConfig{
		Trigger: types.EdgeBoth,
		Handler: func(ev hal.IRQEvent) { events <- ev },
	}))

	b.Drive("P0_4", false)
	assert.Equal(t, types.EdgeFalling, recvIRQ(t, events).Edge)
	b.Release("P0_4")
	ev := recvIRQ(t, events)
	assert.Equal(t, types.EdgeRising, ev.Edge)
	assert.True(t, ev.Level)
}

func TestIRQDebounce(t *testing.T) {
	m, b := newMachine(t)
	btn, err := m.Pin("P0_4", hal.PinConfig{Mode: hal.In, Pull: types.PullUp})
	require.NoError(t, err)

	events := make(chan hal.IRQEvent, 8)
	require.NoError(t, btn.IRQ(hal.IRQConfig{
		Trigger:  types.EdgeBoth,
		Debounce: 200 * time.Millisecond,
		Handler:  func(ev hal.IRQEvent) { events <- ev },
	}))

	b.Drive("P0_4", false)
	recvIRQ(t, events)
	// Contact bounce inside the window.
	b.Drive("P0_4", true)
	b.Drive("P0_4", false)
	time.Sleep(250 * time.Millisecond)
	m.Sync()
	assert.Empty(t, events)

	b.Drive("P0_4", true)
	assert.Equal(t, types.EdgeRising, recvIRQ(t, events).Edge)
}

func TestIRQValidation(t *testing.T) {
	m, _ := newMachine(t)
	btn, err := m.Pin("P0_4", hal.PinConfig{Mode: hal.In})
	require.NoError(t, err)

	err = btn.IRQ(hal.IRQConfig{Trigger: types.EdgeNone, Handler: func(hal.IRQEvent) {}})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
	err = btn.IRQ(hal.IRQConfig{Trigger: types.EdgeRising})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
	assert.NoError(t, btn.DisableIRQ(), "disabling an idle pin is a no-op")
}

func TestSyncWaitsForPendingEdges(t *testing.T) {
	m, b := newMachine(t)
	btn, err := m.Pin("P0_4", hal.PinConfig{Mode: hal.In, Pull: types.PullUp})
	require.NoError(t, err)

	var n atomic.Int32
	require.NoError(t, btn.IRQ(hal.IRQConfig{
		Trigger: types.EdgeFalling,
		Handler: func(hal.IRQEvent) { n.Add(1) },
	}))

	for i := range 200 {
		b.Drive("P0_4", false)
		m.Sync()
		require.Equal(t, int32(i+1), n.Load(), "edge %d", i)
		b.Drive("P0_4", true)
	}
}

func TestISRQueueOverflowCountsDrops(t *testing.T) {
	m, b := newMachine(t, hal.WithQueueSize(1))
	btn, err := m.Pin("P0_4", hal.PinConfig{Mode: hal.In, Pull: types.PullUp})
	require.NoError(t, err)

	const edges = 200
	gate := make(chan struct{})
	var handled atomic.Int32
	require.NoError(t, btn.IRQ(hal.IRQConfig{
		Trigger: types.EdgeFalling,
		Handler: func(hal.IRQEvent) {
			<-gate
			handled.Add(1)
		},
	}))

	for range edges {
		b.Drive("P0_4", false)
		b.Drive("P0_4", true)
	}
	// At most one running handler, one queued callback, one edge held by
	// the worker and a full 64-slot ISR queue survive.
	assert.GreaterOrEqual(t, m.ISRDrops(), uint32(edges-67))

	close(gate)
	m.Sync()
	assert.Equal(t, uint32(edges), uint32(handled.Load())+m.ISRDrops())
}
