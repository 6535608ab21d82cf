package timex

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func TestPeriodFromHz(t *testing.T) {
	assert.Equal(t, time.Millisecond, PeriodFromHz(1000))
	assert.Equal(t, time.Second, PeriodFromHz(0))
}

func TestSleepFakeClock(t *testing.T) {
	fc := clockwork.NewFakeClock()
	done := make(chan bool, 1)
	go func() { done <- Sleep(context.Background(), fc, time.Second) }()

	fc.BlockUntil(1)
	fc.Advance(time.Second)
	select {
	case ok := <-done:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("sleep did not return after advance")
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, Sleep(ctx, clockwork.NewFakeClock(), time.Hour))
	assert.False(t, Sleep(ctx, nil, 0))
}
