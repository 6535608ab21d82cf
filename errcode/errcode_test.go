package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOf(t *testing.T) {
	assert.Equal(t, OK, Of(nil))
	assert.Equal(t, NACK, Of(NACK))
	assert.Equal(t, Timeout, Of(&E{C: Timeout, Op: "i2c.tx"}))
	assert.Equal(t, UnknownPin, Of(fmt.Errorf("open led: %w", UnknownPin)))
	assert.Equal(t, Error, Of(errors.New("boom")))
}

func TestWrapAndIs(t *testing.T) {
	assert.NoError(t, Wrap(NACK, "i2c.readfrom", nil))

	cause := errors.New("no ack at 0x48")
	err := Wrap(NACK, "i2c.readfrom", cause)
	assert.ErrorIs(t, err, NACK)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "i2c.readfrom: nack: no ack at 0x48", err.Error())

	err = New(InvalidParams, "timer.init", "period must be positive")
	assert.Equal(t, "timer.init: invalid_params: period must be positive", err.Error())
}

func TestMapDriverErr(t *testing.T) {
	assert.Equal(t, OK, MapDriverErr(nil))
	assert.Equal(t, Busy, MapDriverErr(fmt.Errorf("bus: %w", Busy)))
	assert.Equal(t, Unsupported, MapDriverErr(errors.ErrUnsupported))
	assert.Equal(t, Error, MapDriverErr(errors.New("x")))
}
