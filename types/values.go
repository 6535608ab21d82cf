package types

// Payloads published on the bus by the examples.

type ButtonValue struct {
	Pressed bool `json:"pressed"`
}

type LEDValue struct {
	On bool `json:"on"`
}

type ADCValue struct {
	Pin     string  `json:"pin"`
	Raw     uint16  `json:"raw"`
	Voltage float64 `json:"voltage"`
}

type PWMValue struct {
	Pin  string `json:"pin"`
	Duty uint16 `json:"duty_u16"`
}

type TimerTick struct {
	Timer int    `json:"timer"`
	Count uint32 `json:"count"`
}

type IRQValue struct {
	Pin   string `json:"pin"`
	Edge  string `json:"edge"`
	Level bool   `json:"level"`
	Count uint32 `json:"count"`
}

type EnvReading struct {
	Sensor      string  `json:"sensor,omitempty"`
	Temperature float64 `json:"temp"`
	Humidity    float64 `json:"humidity"`
	Pressure    float64 `json:"pressure,omitempty"`
}

type I2CDeviceInfo struct {
	Addr uint16 `json:"addr"`
	Name string `json:"name,omitempty"`
}
