// Package catalog describes the examples by level and groups them into
// learning paths.
package catalog

import (
	"strings"

	"psoc6-go/errcode"
)

type Level string

const (
	Beginner     Level = "beginner"
	Intermediate Level = "intermediate"
	Advanced     Level = "advanced"
	Utilities    Level = "utilities"
)

// Entry describes one example. Runnable entries have a registered
// example of the same name.
type Entry struct {
	Name        string
	File        string
	Title       string
	Description string
	Concepts    []string
	Hardware    []string
	Difficulty  int
	Rating      string
	Level       Level
	Runnable    bool
}

// Stars renders the difficulty as asterisks, e.g. "** Intermediate".
func (e Entry) Stars() string { return strings.Repeat("*", e.Difficulty) + " " + e.Rating }

// Section is one level with its blurb.
type Section struct {
	Level       Level
	Description string
	Entries     []Entry
}

var sections = []Section{
	{Beginner, "Start here if you are new to embedded programming", []Entry{
		{Name: "blink", File: "01_led_blink", Title: "LED Blink",
			Description: "Basic GPIO control - blinks the onboard LED",
			Concepts:    []string{"GPIO output", "Pin control", "Delays", "Loops"},
			Hardware:    []string{"Onboard LED"}, Difficulty: 1, Rating: "Beginner", Runnable: true},
		{Name: "signal", File: "02_led_on_signal", Title: "LED Control with Signal",
			Description: "Using Signal for active-low LEDs",
			Concepts:    []string{"Signal", "Active-low logic", "Pin inversion"},
			Hardware:    []string{"Onboard LED"}, Difficulty: 1, Rating: "Beginner", Runnable: true},
		{Name: "button", File: "03_button_input", Title: "Button Input",
			Description: "Reading digital input from a button",
			Concepts:    []string{"GPIO input", "Pull-up resistors", "Debouncing"},
			Hardware:    []string{"Button", "LED"}, Difficulty: 1, Rating: "Beginner", Runnable: true},
		{Name: "repl", File: "08_repl_examples", Title: "REPL Examples",
			Description: "Interactive commands reference for the REPL",
			Concepts:    []string{"REPL usage", "Interactive programming", "Quick testing"},
			Hardware:    []string{"None required"}, Difficulty: 1, Rating: "Beginner"},
	}},
	{Intermediate, "Peripheral interfacing and data handling", []Entry{
		{Name: "adc", File: "04_adc_analog_input", Title: "Analog Input (ADC)",
			Description: "Reading analog sensors using ADC",
			Concepts:    []string{"ADC", "Analog-to-digital conversion", "Voltage reading"},
			Hardware:    []string{"Potentiometer or analog sensor"}, Difficulty: 2, Rating: "Intermediate", Runnable: true},
		{Name: "pwm", File: "05_pwm_led_fade", Title: "PWM LED Fade",
			Description: "Smooth LED brightness control using PWM",
			Concepts:    []string{"PWM", "Duty cycle", "Frequency control"},
			Hardware:    []string{"LED"}, Difficulty: 2, Rating: "Intermediate", Runnable: true},
		{Name: "files", File: "07_file_operations", Title: "File Operations",
			Description: "Reading, writing, and managing files",
			Concepts:    []string{"Filesystem", "Data logging", "CSV format"},
			Hardware:    []string{"None required"}, Difficulty: 2, Rating: "Intermediate", Runnable: true},
		{Name: "timers", File: "11_timer_interrupt", Title: "Timers and Interrupts",
			Description: "Non-blocking timing and event handling",
			Concepts:    []string{"Timers", "Interrupts", "Callbacks", "Event-driven programming"},
			Hardware:    []string{"LED", "Button (optional)"}, Difficulty: 3, Rating: "Intermediate-Advanced", Runnable: true},
	}},
	{Advanced, "Communication protocols and complex interfacing", []Entry{
		{Name: "i2c", File: "06_i2c_communication", Title: "I2C Communication",
			Description: "Interfacing with I2C sensors and peripherals",
			Concepts:    []string{"I2C protocol", "Bus scanning", "Multi-device communication"},
			Hardware:    []string{"I2C sensor (e.g., temperature sensor, accelerometer)"}, Difficulty: 3, Rating: "Advanced", Runnable: true},
		{Name: "spi", File: "09_spi_communication", Title: "SPI Communication",
			Description: "High-speed data transfer using SPI",
			Concepts:    []string{"SPI protocol", "Full-duplex communication", "Chip select"},
			Hardware:    []string{"SPI device (e.g., SD card, display, sensor)"}, Difficulty: 3, Rating: "Advanced", Runnable: true},
		{Name: "uart", File: "10_uart_serial", Title: "UART Serial Communication",
			Description: "Serial communication with external devices",
			Concepts:    []string{"UART", "Serial protocol", "Command parsing", "Data formats"},
			Hardware:    []string{"UART device (e.g., GPS, Bluetooth module)"}, Difficulty: 3, Rating: "Advanced", Runnable: true},
		{Name: "sensors", File: "12_cy8ckit_062s2_ai_sensors", Title: "AI Kit Sensors",
			Description: "Identifying and reading the onboard sensors of the CY8CKIT-062S2-AI",
			Concepts:    []string{"I2C scanning", "Chip id registers", "Sensor drivers"},
			Hardware:    []string{"CY8CKIT-062S2-AI"}, Difficulty: 3, Rating: "Advanced", Runnable: true},
	}},
	{Utilities, "Helper modules and configurations", []Entry{
		{Name: "boards", File: "board_config", Title: "Board Configuration",
			Description: "Pin definitions for all supported boards",
			Concepts:    []string{"Board abstraction", "Code portability", "Pin mapping"},
			Hardware:    []string{"Any PSoC 6 board"}, Difficulty: 1, Rating: "Beginner"},
	}},
}

var paths = map[string][]string{
	"absolute_beginner":  {"repl", "blink", "signal", "button", "adc"},
	"embedded_developer": {"blink", "pwm", "timers", "i2c", "spi", "uart"},
	"iot_developer":      {"adc", "files", "i2c", "uart", "timers"},
}

func init() {
	for i := range sections {
		for j := range sections[i].Entries {
			sections[i].Entries[j].Level = sections[i].Level
		}
	}
}

// Levels returns every section in teaching order.
func Levels() []Section { return sections }

// All returns every entry in teaching order.
func All() []Entry {
	var out []Entry
	for _, s := range sections {
		out = append(out, s.Entries...)
	}
	return out
}

// Find looks an entry up by example name or original file stem.
func Find(name string) (Entry, bool) {
	name = strings.TrimSuffix(name, ".py")
	for _, s := range sections {
		for _, e := range s.Entries {
			if e.Name == name || e.File == name {
				return e, true
			}
		}
	}
	return Entry{}, false
}

// PathNames lists the learning paths in a stable order.
func PathNames() []string {
	return []string{"absolute_beginner", "embedded_developer", "iot_developer"}
}

// Path returns the entries of a learning path in order.
func Path(name string) ([]Entry, error) {
	names, ok := paths[name]
	if !ok {
		return nil, errcode.New(errcode.InvalidParams, "catalog.path",
			"unknown learning path "+name+"; available: "+strings.Join(PathNames(), ", "))
	}
	out := make([]Entry, 0, len(names))
	for _, n := range names {
		e, _ := Find(n)
		out = append(out, e)
	}
	return out, nil
}

// Title renders a path name for display, e.g. "Iot Developer".
func Title(path string) string {
	words := strings.Split(path, "_")
	for i, w := range words {
		if w != "" {
			words[i] = strings.ToUpper(w[:1]) + w[1:]
		}
	}
	return strings.Join(words, " ")
}
