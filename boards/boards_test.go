package boards

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"psoc6-go/errcode"
	"psoc6-go/types"
)

func TestDefaultBoard(t *testing.T) {
	b := Default()
	assert.Equal(t, "CY8CPROTO-062-4343W", b.Name)

	led, err := b.Pin(LED)
	require.NoError(t, err)
	assert.Equal(t, "P13_7", led.String())

	btn, err := b.Pin(Button)
	require.NoError(t, err)
	assert.Equal(t, "P0_4", btn.String())

	require.Len(t, b.I2C, 1)
	assert.Equal(t, "P6_0", b.I2C[0].SCL.String())
	assert.Equal(t, "P6_1", b.I2C[0].SDA.String())
	assert.Equal(t, uint32(400_000), b.I2C[0].Hz)

	require.Len(t, b.UART, 1)
	assert.Equal(t, "P5_1", b.UART[0].TX.String())
	assert.Equal(t, "P5_0", b.UART[0].RX.String())
	assert.True(t, b.LEDActiveLow)
}

func TestAllBoardsListed(t *testing.T) {
	var names []string
	for _, b := range List() {
		names = append(names, b.Name)
		assert.True(t, b.Has(LED), b.Name)
		assert.True(t, b.Has(Button), b.Name)
		assert.NotEmpty(t, b.Analog(), b.Name)
	}
	assert.Equal(t, []string{
		"CY8CPROTO-062-4343W",
		"CY8CPROTO-063-BLE",
		"CY8CKIT-062-BLE",
		"CY8CKIT-062-WIFI-BT",
		"CY8CKIT-062S2-43012",
	}, names)
}

func TestBoardVariants(t *testing.T) {
	ble, err := Lookup("CY8CPROTO-063-BLE")
	require.NoError(t, err)
	led, _ := ble.Pin(LED)
	assert.Equal(t, "P6_3", led.String())
	assert.Len(t, ble.Analog(), 4)
	_, err = ble.Pin(A5)
	assert.Equal(t, errcode.UnknownPin, errcode.Of(err))

	s2, err := Lookup("CY8CKIT-062S2-43012")
	require.NoError(t, err)
	g, _ := s2.Pin(LEDGreen)
	assert.Equal(t, "P11_1", g.String())

	_, err = Lookup("CY8CNOPE")
	assert.Equal(t, errcode.UnknownBoard, errcode.Of(err))
}

func TestWithRolesDoesNotMutateTable(t *testing.T) {
	custom := Default().WithRoles(map[Role]types.PinID{"MY_SENSOR": types.MustPin("P9_0")})
	assert.True(t, custom.Has("MY_SENSOR"))
	assert.False(t, Default().Has("MY_SENSOR"))
}

func TestRegisterAndDetect(t *testing.T) {
	b := New("TEST-BOARD", "bench fixture", map[Role]types.PinID{
		LED:    types.MustPin("P1_0"),
		I2CSCL: types.MustPin("P2_0"),
		I2CSDA: types.MustPin("P2_1"),
	})
	require.NoError(t, Register(b))
	got, err := Lookup("TEST-BOARD")
	require.NoError(t, err)
	assert.Len(t, got.I2C, 1)
	assert.Empty(t, got.UART)

	assert.Error(t, Register(Board{}))

	name, ok := Detect()
	assert.False(t, ok)
	assert.Empty(t, name)
}
