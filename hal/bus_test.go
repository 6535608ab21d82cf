package hal_test

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tinygo.org/x/drivers"

	"psoc6-go/errcode"
	"psoc6-go/hal"
	"psoc6-go/internal/sim"
	"psoc6-go/types"
)

func TestI2CScanAndMemory(t *testing.T) {
	m, b := newMachine(t)
	temp := sim.NewRegisterFile(map[uint8]byte{0x00: 0x19, 0x01: 0x80})
	b.AttachI2C(0, 0x48, temp)
	b.AttachI2C(0, 0x68, sim.NewRegisterFile(map[uint8]byte{0x00: 0x24}))
	b.AttachI2C(0, 0x05, sim.NewRegisterFile(nil)) // reserved, never scanned

	bus, err := m.I2C(hal.I2CConfig{})
	require.NoError(t, err)
	assert.Equal(t, uint32(hal.DefaultI2CFreq), bus.Config().Freq)

	found, err := bus.Scan()
	require.NoError(t, err)
	assert.Equal(t, []uint16{0x48, 0x68}, found)

	got, err := bus.ReadFromMem(0x48, 0x00, 2)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x19, 0x80}, got)

	require.NoError(t, bus.WriteToMem(0x48, 0x10, []byte{0xAA, 0xBB}))
	assert.Equal(t, byte(0xAA), temp.Reg(0x10))
	assert.Equal(t, byte(0xBB), temp.Reg(0x11))

	require.NoError(t, bus.WriteTo(0x48, []byte{0x10}))
	got, err = bus.ReadFrom(0x48, 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA}, got)
}

func TestI2CErrors(t *testing.T) {
	m, _ := newMachine(t)
	bus, err := m.I2C(hal.I2CConfig{ID: 1})
	require.NoError(t, err)

	_, err = bus.ReadFrom(0x50, 1)
	assert.Equal(t, errcode.NACK, errcode.Of(err))
	assert.True(t, hal.IsNACK(err))

	_, err = bus.ReadFrom(0x80, 1)
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
	_, err = bus.ReadFrom(0x48, 0)
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	_, err = m.I2C(hal.I2CConfig{ID: 1})
	assert.Equal(t, errcode.Conflict, errcode.Of(err))

	require.NoError(t, bus.Deinit())
	assert.Equal(t, errcode.NotInitialised, errcode.Of(bus.WriteTo(0x48, []byte{1})))
	_, err = m.I2C(hal.I2CConfig{ID: 1})
	assert.NoError(t, err)
}

// stalledBus holds every transaction until release is closed, then fills
// the read buffer.
type stalledBus struct {
	entered  chan struct{}
	release  chan struct{}
	finished chan struct{}
}

func (s *stalledBus) Tx(_ uint16, _, r []byte) error {
	close(s.entered)
	<-s.release
	for i := range r {
		r[i] = 0xAA
	}
	close(s.finished)
	return nil
}

type stalledBackend struct {
	*sim.Board
	bus drivers.I2C
}

func (s stalledBackend) I2C(hal.I2CConfig) (drivers.I2C, error) { return s.bus, nil }

func TestI2CTimeoutLeavesReadBufferAlone(t *testing.T) {
	clk := clockwork.NewFakeClock()
	slow := &stalledBus{
		entered:  make(chan struct{}),
		release:  make(chan struct{}),
		finished: make(chan struct{}),
	}
	m := hal.New(stalledBackend{Board: sim.New(), bus: slow}, hal.WithClock(clk))
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx)
	t.Cleanup(func() {
		_ = m.Close()
		cancel()
	})

	bus, err := m.I2C(hal.I2CConfig{Timeout: 20 * time.Millisecond})
	require.NoError(t, err)

	buf := make([]byte, 4)
	errc := make(chan error, 1)
	go func() { errc <- bus.Tx(0x48, []byte{0x00}, buf) }()

	<-slow.entered
	clk.BlockUntil(1)
	clk.Advance(20 * time.Millisecond)
	err = <-errc
	assert.Equal(t, errcode.Timeout, errcode.Of(err))

	// The caller owns buf again and may reuse it while the bus finishes.
	buf[0] = 0x11
	close(slow.release)
	<-slow.finished
	assert.Equal(t, []byte{0x11, 0, 0, 0}, buf)
}

func TestSPILoopback(t *testing.T) {
	m, b := newMachine(t)
	spi, err := m.SPI(hal.SPIConfig{})
	require.NoError(t, err)
	mode, baud := b.SPIBus(0).Mode()
	assert.Equal(t, uint8(0), mode)
	assert.Equal(t, uint32(hal.DefaultSPIBaudrate), baud)

	r := make([]byte, 3)
	require.NoError(t, spi.WriteReadInto([]byte{1, 2, 3}, r))
	assert.Equal(t, []byte{1, 2, 3}, r)

	got, err := spi.Read(2, 0xFF)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF}, got)

	v, err := spi.Transfer(0x5A)
	require.NoError(t, err)
	assert.Equal(t, byte(0x5A), v)

	assert.Equal(t, errcode.InvalidParams, errcode.Of(spi.WriteReadInto([]byte{1}, make([]byte, 2))))

	_, err = m.SPI(hal.SPIConfig{ID: 1, Bits: 16})
	assert.Equal(t, errcode.Unsupported, errcode.Of(err))
	_, err = m.SPI(hal.SPIConfig{ID: 1, Polarity: 2})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestSPIChipSelectRegisters(t *testing.T) {
	m, b := newMachine(t)
	dev := sim.NewSPIRegisters(map[uint8]byte{0x0F: 0x33})
	b.AttachSPI(0, dev)
	b.WireCS(0, "P12_3")

	spi, err := m.SPI(hal.SPIConfig{Polarity: 1, Phase: 1})
	require.NoError(t, err)
	csPin, err := m.Pin("P12_3", hal.PinConfig{Mode: hal.Out, Initial: true})
	require.NoError(t, err)
	cs, err := hal.NewChipSelect(csPin)
	require.NoError(t, err)
	assert.False(t, cs.Selected())

	var id []byte
	require.NoError(t, cs.Do(func() error {
		if err := spi.Write([]byte{0x0F | 0x80}); err != nil {
			return err
		}
		var err error
		id, err = spi.Read(1, 0x00)
		return err
	}))
	assert.Equal(t, []byte{0x33}, id)
	assert.False(t, cs.Selected())

	require.NoError(t, cs.Do(func() error { return spi.Write([]byte{0x20, 0x47, 0x48}) }))
	assert.Equal(t, byte(0x47), dev.Reg(0x20))
	assert.Equal(t, byte(0x48), dev.Reg(0x21))

	in, err := m.Pin("P12_4", hal.PinConfig{Mode: hal.In})
	require.NoError(t, err)
	_, err = hal.NewChipSelect(in)
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
}

func TestUARTReadPaths(t *testing.T) {
	m, b := newMachine(t)
	u, err := m.UART(hal.UARTConfig{ID: 1, Timeout: 50 * time.Millisecond})
	require.NoError(t, err)
	baud, f := b.Serial(1).Settings()
	assert.Equal(t, uint32(115200), baud)
	assert.Equal(t, "8N1", f.String())

	n, err := u.WriteString("Hello UART!\r\n")
	require.NoError(t, err)
	assert.Equal(t, 13, n)
	assert.Equal(t, "Hello UART!\r\n", string(b.Serial(1).Sent()))

	got, err := u.Read(4)
	require.NoError(t, err)
	assert.Nil(t, got, "timeout with no data is not an error")

	b.Serial(1).InjectString("LED_ON\r\nrest")
	line, err := u.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "LED_ON\r\n", string(line))

	require.Eventually(t, func() bool { return u.Any() == 4 }, time.Second, time.Millisecond)
	line, err = u.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "rest", string(line), "partial line on timeout")

	b.Serial(1).InjectString("abcdef")
	got, err = u.Read(6)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(got))

	b.Serial(1).InjectString("xyz")
	got, err = u.ReadAll()
	require.NoError(t, err)
	assert.NotEmpty(t, got)

	require.NoError(t, u.Flush())
	st := u.Stats()
	assert.Equal(t, uint64(13), st.TXBytes)
	assert.Equal(t, uint64(0), st.RXDrops)

	require.NoError(t, u.Deinit())
	_, err = u.Write([]byte("x"))
	assert.Equal(t, errcode.NotInitialised, errcode.Of(err))
	_, err = m.UART(hal.UARTConfig{ID: 1})
	assert.NoError(t, err)
}

func TestUARTReadTimeoutFollowsMachineClock(t *testing.T) {
	clk := clockwork.NewFakeClock()
	m, _ := newMachine(t, hal.WithClock(clk))
	u, err := m.UART(hal.UARTConfig{ID: 2, Timeout: time.Hour})
	require.NoError(t, err)

	type result struct {
		b   []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		b, err := u.ReadAll()
		done <- result{b, err}
	}()

	clk.BlockUntil(1)
	select {
	case <-done:
		t.Fatal("read returned before the timeout elapsed")
	default:
	}
	clk.Advance(time.Hour)
	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Nil(t, r.b)
	case <-time.After(time.Second):
		t.Fatal("read did not time out on the machine clock")
	}
}

func TestUARTOverflowCountsDrops(t *testing.T) {
	m, b := newMachine(t)
	u, err := m.UART(hal.UARTConfig{RXBuffer: 8, Timeout: -1})
	require.NoError(t, err)

	b.Serial(0).Inject(make([]byte, 20))
	require.Eventually(t, func() bool { return u.Stats().RXBytes == 20 }, time.Second, time.Millisecond)
	assert.Equal(t, 8, u.Any())
	assert.Equal(t, uint64(12), u.Stats().RXDrops)
}

func TestUARTValidation(t *testing.T) {
	m, _ := newMachine(t)
	_, err := m.UART(hal.UARTConfig{Bits: 4})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))
	_, err = m.UART(hal.UARTConfig{Stop: 3})
	assert.Equal(t, errcode.InvalidParams, errcode.Of(err))

	u, err := m.UART(hal.UARTConfig{TX: types.MustPin("P5_1"), RX: types.MustPin("P5_0")})
	require.NoError(t, err)
	_, err = m.Pin("P5_1", hal.PinConfig{})
	assert.Equal(t, errcode.PinInUse, errcode.Of(err))
	require.NoError(t, u.Deinit())
}
