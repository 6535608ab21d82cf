package ramp

import (
	"time"

	"psoc6-go/x/mathx"
)

// Step applies a new 16-bit level.
type Step func(level uint16) error

// Tick waits for d and reports whether to continue (false => cancelled).
type Tick func(d time.Duration) bool

// Fade walks from cur to 'to' in increments of step, waiting delay before
// each move. It returns the last level applied and the first error from set.
// A cancelled tick leaves the output at the last applied level.
func Fade(cur, to, step uint16, delay time.Duration, tick Tick, set Step) (uint16, error) {
	for cur != to {
		if !tick(delay) {
			return cur, nil
		}
		next := mathx.StepToward(cur, to, step)
		if err := set(next); err != nil {
			return cur, err
		}
		cur = next
	}
	return cur, nil
}

// Linear spreads the move from cur to 'to' over d in the given number of
// evenly timed steps, using integer error accumulation so the final level
// is exact. steps==0 or d<=0 snaps to 'to'.
func Linear(cur, to uint16, d time.Duration, steps uint16, tick Tick, set Step) (uint16, error) {
	if steps == 0 || d <= 0 {
		return to, set(to)
	}
	delta := int32(to) - int32(cur)
	st := int32(steps)
	acc := int32(0)
	lvl := int32(cur)
	stepDur := max(d/time.Duration(steps), time.Millisecond)

	for i := uint16(1); i < steps; i++ {
		if !tick(stepDur) {
			return uint16(lvl), nil
		}
		acc += delta
		inc := acc / st
		if inc == 0 {
			continue
		}
		acc -= inc * st
		lvl = mathx.Clamp(lvl+inc, 0, mathx.FullScale)
		if err := set(uint16(lvl)); err != nil {
			return uint16(lvl), err
		}
	}
	if !tick(stepDur) {
		return uint16(lvl), nil
	}
	return to, set(to)
}
