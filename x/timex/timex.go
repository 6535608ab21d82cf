package timex

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// PeriodFromHz returns the period for a requested frequency.
// hz==0 is coerced to 1 to avoid division by zero.
func PeriodFromHz(hz uint32) time.Duration {
	if hz == 0 {
		hz = 1
	}
	return time.Second / time.Duration(hz)
}

// Sleep waits for d on clk and reports false if ctx ended first.
// A nil clk uses the real clock.
func Sleep(ctx context.Context, clk clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	t := clk.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.Chan():
		return true
	}
}

// Ticker returns a Tick-style func bound to ctx, for ramps and fades.
func Ticker(ctx context.Context, clk clockwork.Clock) func(time.Duration) bool {
	return func(d time.Duration) bool { return Sleep(ctx, clk, d) }
}
