package config

import (
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/boards"
	"psoc6-go/bus"
	"psoc6-go/errcode"
	"psoc6-go/types"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, boards.DefaultName, c.Board)
	assert.Equal(t, BackendSim, c.Backend)
	assert.Equal(t, 10*time.Second, c.Monitor.Heartbeat)
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
board: CY8CKIT-062-BLE
backend: periph
log_level: debug
serial:
  ports:
    1: /dev/ttyUSB0
periph:
  pins:
    P13_7: GPIO17
  i2c:
    0: "1"
timings:
  blink_period: 250ms
monitor:
  heartbeat: 2s
`))
	require.NoError(t, err)
	assert.Equal(t, BackendPeriph, c.Backend)
	assert.Equal(t, "/dev/ttyUSB0", c.Serial.Ports[1])
	assert.Equal(t, "GPIO17", c.Periph.Pins[types.MustPin("P13_7")])
	assert.Equal(t, 250*time.Millisecond, c.Timings["blink_period"])
	assert.Equal(t, 2*time.Second, c.Monitor.Heartbeat)
	assert.Equal(t, []string{"#"}, c.Monitor.Topics)

	lvl, err := c.Level()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}

func TestParseRejects(t *testing.T) {
	for _, in := range []string{
		"backend: arduino\n",
		"log_level: loud\n",
		"periph:\n  pins:\n    GP25: GPIO25\n",
		"boards:\n  - pins: {LED: P1_1}\n",
		"monitor:\n  heartbeat: -1s\n",
	} {
		_, err := Parse([]byte(in))
		assert.Equal(t, errcode.InvalidParams, errcode.Of(err), in)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psoc6.yaml")
	c := Default()
	c.Backend = BackendPeriph
	c.Timings = map[string]time.Duration{"pwm_delay": 5 * time.Millisecond}
	require.NoError(t, c.Save(path))

	back, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, c, back)
}

func TestCustomBoards(t *testing.T) {
	c, err := Parse([]byte(`
board: MY-PROTO
boards:
  - name: MY-PROTO
    base: CY8CPROTO-062-4343W
    pins:
      LED: P9_6
  - name: BARE
    description: hand wired
    pins:
      BUTTON: P1_2
`))
	require.NoError(t, err)

	b, err := c.SelectedBoard()
	require.NoError(t, err)
	led, err := b.Pin(boards.LED)
	require.NoError(t, err)
	assert.Equal(t, "P9_6", led.String())
	assert.True(t, b.Has(boards.I2CSDA))

	bare, err := boards.Lookup("BARE")
	require.NoError(t, err)
	assert.Equal(t, "hand wired", bare.Description)
	assert.False(t, bare.Has(boards.LED))

	c.Boards = []BoardSpec{{Name: "X", Base: "NOPE"}}
	assert.Equal(t, errcode.UnknownBoard, errcode.Of(c.RegisterBoards()))
}

func TestPublishRetainsSections(t *testing.T) {
	b := bus.NewBus(8)
	conn := b.NewConnection("cfg")
	Default().Publish(conn)

	sub := b.NewConnection("reader").Subscribe(bus.T("config", "board"))
	select {
	case m := <-sub.Channel():
		assert.Equal(t, boards.DefaultName, m.Payload)
		assert.True(t, m.Retained)
	case <-time.After(time.Second):
		t.Fatal("no retained board section")
	}
}
