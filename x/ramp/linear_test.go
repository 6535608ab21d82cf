package ramp

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func always(time.Duration) bool { return true }

func TestFadeUpAndDown(t *testing.T) {
	var seen []uint16
	set := func(l uint16) error { seen = append(seen, l); return nil }

	last, err := Fade(0, 65535, 256, 10*time.Millisecond, always, set)
	require.NoError(t, err)
	assert.Equal(t, uint16(65535), last)
	assert.Len(t, seen, 256)
	assert.Equal(t, uint16(256), seen[0])
	assert.Equal(t, uint16(65535), seen[len(seen)-1])

	seen = nil
	last, err = Fade(65535, 0, 256, 10*time.Millisecond, always, set)
	require.NoError(t, err)
	assert.Equal(t, uint16(0), last)
	assert.Len(t, seen, 256)
}

func TestFadeCancelled(t *testing.T) {
	n := 0
	tick := func(time.Duration) bool { n++; return n <= 3 }
	last, err := Fade(0, 1000, 100, time.Millisecond, tick, func(uint16) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, uint16(300), last)
}

func TestFadeSetError(t *testing.T) {
	boom := errors.New("boom")
	last, err := Fade(0, 1000, 100, 0, always, func(l uint16) error {
		if l == 200 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, uint16(100), last)
}

func TestLinearExactEnd(t *testing.T) {
	var seen []uint16
	var waited time.Duration
	tick := func(d time.Duration) bool { waited += d; return true }
	last, err := Linear(0, 1000, 100*time.Millisecond, 10, tick, func(l uint16) error { seen = append(seen, l); return nil })
	require.NoError(t, err)
	assert.Equal(t, uint16(1000), last)
	assert.Equal(t, uint16(1000), seen[len(seen)-1])
	assert.Equal(t, 100*time.Millisecond, waited)
	for i := 1; i < len(seen); i++ {
		assert.GreaterOrEqual(t, seen[i], seen[i-1])
	}
}

func TestLinearSnap(t *testing.T) {
	var seen []uint16
	last, err := Linear(10, 20, 0, 5, always, func(l uint16) error { seen = append(seen, l); return nil })
	require.NoError(t, err)
	assert.Equal(t, uint16(20), last)
	assert.Equal(t, []uint16{20}, seen)
}
