package boards

import "psoc6-go/types"

var mustPin = types.MustPin

// Header wiring shared by every supported board.
func common() map[Role]types.PinID {
	return map[Role]types.PinID{
		Button:  mustPin("P0_4"),
		SW2:     mustPin("P0_4"),
		I2CSCL:  mustPin("P6_0"),
		I2CSDA:  mustPin("P6_1"),
		SPIMOSI: mustPin("P12_0"),
		SPIMISO: mustPin("P12_1"),
		SPISCK:  mustPin("P12_2"),
		SPICS:   mustPin("P12_3"),
		UARTTX:  mustPin("P5_1"),
		UARTRX:  mustPin("P5_0"),
		A0:      mustPin("P10_0"),
		A1:      mustPin("P10_1"),
		A2:      mustPin("P10_2"),
		A3:      mustPin("P10_3"),
		A4:      mustPin("P10_4"),
		A5:      mustPin("P10_5"),
	}
}

func board(name, desc, features string, roles map[Role]types.PinID, drop ...Role) Board {
	pins := common()
	for r, v := range roles {
		pins[r] = v
	}
	for _, r := range drop {
		delete(pins, r)
	}
	b := New(name, desc, pins)
	b.Features = features
	b.LEDActiveLow = true
	return b
}

var order = []string{
	"CY8CPROTO-062-4343W",
	"CY8CPROTO-063-BLE",
	"CY8CKIT-062-BLE",
	"CY8CKIT-062-WIFI-BT",
	"CY8CKIT-062S2-43012",
}

var table = map[string]Board{
	"CY8CPROTO-062-4343W": board("CY8CPROTO-062-4343W",
		"PSoC 6 Wi-Fi BT Prototyping Kit",
		"Wi-Fi 802.11bgn, Bluetooth 5.0, Arduino headers",
		map[Role]types.PinID{LED: mustPin("P13_7"), LEDRed: mustPin("P13_7")}),

	"CY8CPROTO-063-BLE": board("CY8CPROTO-063-BLE",
		"PSoC 6 BLE Prototyping Kit",
		"Bluetooth Low Energy 5.0",
		map[Role]types.PinID{LED: mustPin("P6_3"), LEDOrange: mustPin("P6_3")},
		A4, A5),

	"CY8CKIT-062-BLE": board("CY8CKIT-062-BLE",
		"PSoC 6 BLE Pioneer Kit",
		"BLE, CapSense, Arduino headers",
		map[Role]types.PinID{
			LED: mustPin("P13_7"), LEDOrange: mustPin("P13_7"),
			LEDRed: mustPin("P1_5"), LEDGreen: mustPin("P0_5"), LEDBlue: mustPin("P1_1"),
		}),

	"CY8CKIT-062-WIFI-BT": board("CY8CKIT-062-WIFI-BT",
		"PSoC 6 Wi-Fi BT Pioneer Kit",
		"Wi-Fi, Bluetooth, Arduino headers",
		map[Role]types.PinID{
			LED: mustPin("P13_7"), LEDOrange: mustPin("P13_7"),
			LEDRed: mustPin("P1_5"), LEDGreen: mustPin("P0_5"), LEDBlue: mustPin("P1_1"),
		}),

	"CY8CKIT-062S2-43012": board("CY8CKIT-062S2-43012",
		"PSoC 62S2 Wi-Fi BT Pioneer Kit",
		"Wi-Fi, Bluetooth, Secure Boot",
		map[Role]types.PinID{
			LED: mustPin("P13_7"), LEDOrange: mustPin("P13_7"),
			LEDRed: mustPin("P1_5"), LEDGreen: mustPin("P11_1"), LEDBlue: mustPin("P1_1"),
		}),
}
