// Package config loads the psoc6-examples YAML configuration and publishes
// its sections on the bus as retained messages.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"psoc6-go/boards"
	"psoc6-go/bus"
	"psoc6-go/errcode"
	"psoc6-go/types"
)

const configPrefix = "config"

// Backends selectable with the backend key.
const (
	BackendSim    = "sim"
	BackendPeriph = "periph"
	BackendRP2    = "rp2"
)

type Config struct {
	Board    string `yaml:"board"`
	Backend  string `yaml:"backend"`
	LogLevel string `yaml:"log_level"`
	// DataDir holds data.txt and sensor_log.csv.
	DataDir string `yaml:"data_dir"`

	Serial  Serial      `yaml:"serial"`
	Periph  Periph      `yaml:"periph"`
	Boards  []BoardSpec `yaml:"boards,omitempty"`
	Monitor Monitor     `yaml:"monitor"`

	// Timings override example parameters by name, e.g. blink_period: 250ms.
	Timings map[string]time.Duration `yaml:"timings,omitempty"`
}

// Serial routes UART ids to host serial devices.
type Serial struct {
	Ports map[int]string `yaml:"ports,omitempty"`
}

// Periph maps board pins and buses onto a Linux host.
type Periph struct {
	Pins map[types.PinID]string `yaml:"pins,omitempty"`
	I2C  map[int]string         `yaml:"i2c,omitempty"`
	SPI  map[int]string         `yaml:"spi,omitempty"`
}

// BoardSpec defines an extra board, optionally layered on a built-in one.
type BoardSpec struct {
	Name        string                      `yaml:"name"`
	Description string                      `yaml:"description,omitempty"`
	Base        string                      `yaml:"base,omitempty"`
	Pins        map[boards.Role]types.PinID `yaml:"pins"`
}

// Monitor controls the bus logger.
type Monitor struct {
	Heartbeat time.Duration `yaml:"heartbeat"`
	Topics    []string      `yaml:"topics,omitempty"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	c := &Config{}
	c.ensureDefaults()
	return c
}

func (c *Config) ensureDefaults() {
	if c.Board == "" {
		c.Board = boards.DefaultName
	}
	if c.Backend == "" {
		c.Backend = BackendSim
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.Monitor.Heartbeat == 0 {
		c.Monitor.Heartbeat = 10 * time.Second
	}
	if len(c.Monitor.Topics) == 0 {
		c.Monitor.Topics = []string{bus.MultiWild}
	}
}

// Load reads path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("config read %s: %w", path, err)
	}
	return Parse(b)
}

// Parse decodes YAML, fills defaults and validates.
func Parse(b []byte) (*Config, error) {
	c := &Config{}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, errcode.Wrap(errcode.InvalidParams, "config.parse", err)
	}
	c.ensureDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Save writes c as YAML.
func (c *Config) Save(path string) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("config write %s: %w", path, err)
	}
	return nil
}

// Validate checks the fields that do not depend on board registration.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendSim, BackendPeriph, BackendRP2:
	default:
		return errcode.New(errcode.InvalidParams, "config.validate", fmt.Sprintf("unknown backend %q", c.Backend))
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	for i, s := range c.Boards {
		if s.Name == "" {
			return errcode.New(errcode.InvalidParams, "config.validate", fmt.Sprintf("boards[%d] has no name", i))
		}
	}
	if c.Monitor.Heartbeat < 0 {
		return errcode.New(errcode.InvalidParams, "config.validate", "negative heartbeat")
	}
	return nil
}

// Level parses LogLevel.
func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, errcode.Wrap(errcode.InvalidParams, "config.log_level", err)
	}
	return l, nil
}

// RegisterBoards adds the configured boards to the board table.
func (c *Config) RegisterBoards() error {
	for _, s := range c.Boards {
		var b boards.Board
		if s.Base == "" {
			b = boards.New(s.Name, s.Description, s.Pins)
		} else {
			base, err := boards.Lookup(s.Base)
			if err != nil {
				return fmt.Errorf("board %s: %w", s.Name, err)
			}
			b = base.WithRoles(s.Pins)
			b.Name = s.Name
			if s.Description != "" {
				b.Description = s.Description
			}
		}
		if err := boards.Register(b); err != nil {
			return err
		}
	}
	return nil
}

// SelectedBoard registers configured boards and returns the chosen one.
func (c *Config) SelectedBoard() (boards.Board, error) {
	if err := c.RegisterBoards(); err != nil {
		return boards.Board{}, err
	}
	return boards.Lookup(c.Board)
}

// Publish emits every section as a retained config/<section> message.
func (c *Config) Publish(conn *bus.Connection) {
	sections := map[string]any{
		"board":   c.Board,
		"backend": c.Backend,
		"serial":  c.Serial,
		"periph":  c.Periph,
		"monitor": c.Monitor,
		"timings": c.Timings,
	}
	for k, v := range sections {
		conn.Publish(conn.NewMessage(bus.T(configPrefix, k), v, true))
	}
}
