package sim

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/errcode"
	"psoc6-go/types"
)

func TestCRC8(t *testing.T) {
	// Datasheet example: 0xBEEF -> 0x92.
	assert.Equal(t, byte(0x92), CRC8([]byte{0xBE, 0xEF}))
}

func TestMissingI2CDeviceNACKs(t *testing.T) {
	b := New()
	err := b.I2CBus(0).Tx(0x40, nil, make([]byte, 1))
	assert.Equal(t, errcode.NACK, errcode.Of(err))
	require.Len(t, b.I2CBus(0).Log(), 1)
}

func TestSHTC3Orders(t *testing.T) {
	s := NewSHTC3(25, 50)
	tf := make([]byte, 6)
	require.NoError(t, s.Tx([]byte{0x7C, 0xA2}, tf))
	hf := make([]byte, 6)
	require.NoError(t, s.Tx([]byte{0x5C, 0x24}, nil))
	require.NoError(t, s.Tx(nil, hf))

	assert.Equal(t, tf[:3], hf[3:])
	assert.Equal(t, tf[3:], hf[:3])
	assert.Equal(t, CRC8(tf[:2]), tf[2])

	traw := float64(uint16(tf[0])<<8 | uint16(tf[1]))
	assert.InDelta(t, 25.0, -45+175*traw/65536, 0.01)

	require.NoError(t, s.Tx([]byte{0xB0, 0x98}, nil))
	assert.Equal(t, errcode.NACK, errcode.Of(s.Tx([]byte{0x7C, 0xA2}, nil)))
	require.NoError(t, s.Tx([]byte{0x35, 0x17}, nil))
}

func TestAHT20Busy(t *testing.T) {
	a := NewAHT20(20, 40)
	a.BusyReads = 1
	require.NoError(t, a.Tx([]byte{0xBE, 0x08, 0x00}, nil))
	require.NoError(t, a.Tx([]byte{0xAC, 0x33, 0x00}, nil))

	f := make([]byte, 7)
	require.NoError(t, a.Tx(nil, f))
	assert.NotZero(t, f[0]&0x80)
	require.NoError(t, a.Tx(nil, f))
	assert.Zero(t, f[0]&0x80)
	assert.NotZero(t, f[0]&0x08)
	assert.Equal(t, CRC8(f[:6]), f[6])
}

func TestLineIRQAndPull(t *testing.T) {
	b := New()
	l, err := b.Line(types.MustPin("P0_4"))
	require.NoError(t, err)
	require.NoError(t, l.ConfigureInput(types.PullUp))
	assert.True(t, l.Get())

	var seen []bool
	il := l.(*Line)
	require.NoError(t, il.SetIRQ(types.EdgeFalling, func(level bool) { seen = append(seen, level) }))
	b.Drive("P0_4", false)
	b.Drive("P0_4", true)
	b.Drive("P0_4", false)
	assert.Equal(t, []bool{false, false}, seen)
}

func TestSerialPeer(t *testing.T) {
	b := New()
	s := b.Serial(0)
	s.Responder = func(p []byte) []byte { return p }
	s.open(9600, types.SerialFormat{DataBits: 8, StopBits: 1})

	_, err := s.Write([]byte("ping"))
	require.NoError(t, err)
	buf := make([]byte, 8)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := s.RecvSomeContext(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "ping", string(buf[:n]))

	require.NoError(t, s.Close())
	_, err = s.RecvSomeContext(ctx, buf)
	assert.Equal(t, errcode.Closed, errcode.Of(err))
}
