// Package config holds the tapctl configuration file format.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Adapter kinds.
const (
	KindSimulator = "simulator"
	KindCMSISDAP  = "cmsis-dap"
)

// Config is the tapctl configuration.
//
//	adapter:
//	  kind: cmsis-dap
//	  vendor_id: 0x2e8a
//	  product_id: 0x000c
//	  speed_hz: 4000000
//	use_trst: true
//	log_level: debug
//	simulator:
//	  ir_length: 4
//	  idcode: 0x4ba00477
type Config struct {
	Adapter   Adapter   `yaml:"adapter"`
	UseTRST   bool      `yaml:"use_trst"`
	LogLevel  string    `yaml:"log_level"`
	Simulator Simulator `yaml:"simulator"`

	level slog.Level
}

// Adapter selects and tunes the probe.
type Adapter struct {
	Kind      string `yaml:"kind"`
	VendorID  uint16 `yaml:"vendor_id"`
	ProductID uint16 `yaml:"product_id"`
	SpeedHz   int    `yaml:"speed_hz"`
}

// Simulator describes the device emulated by the simulator adapter.
type Simulator struct {
	IRLength int    `yaml:"ir_length"`
	IDCode   uint32 `yaml:"idcode"`
}

// Default returns a configuration that drives the simulator.
func Default() *Config {
	return &Config{
		Adapter: Adapter{
			Kind:      KindSimulator,
			VendorID:  0x2E8A,
			ProductID: 0x000C,
			SpeedHz:   1_000_000,
		},
		LogLevel: "info",
		Simulator: Simulator{
			IRLength: 4,
			IDCode:   0x4BA00477,
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
// Unknown keys are rejected.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode is Load for an already open stream.
func Decode(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate normalizes the configuration and checks it for errors. Zero
// values fall back to their defaults.
func (c *Config) Validate() error {
	def := Default()

	switch strings.ToLower(c.Adapter.Kind) {
	case "", "sim", KindSimulator:
		c.Adapter.Kind = KindSimulator
	case "cmsisdap", KindCMSISDAP:
		c.Adapter.Kind = KindCMSISDAP
	default:
		return fmt.Errorf("config: unknown adapter kind %q", c.Adapter.Kind)
	}
	if c.Adapter.SpeedHz <= 0 {
		c.Adapter.SpeedHz = def.Adapter.SpeedHz
	}
	if c.Adapter.VendorID == 0 && c.Adapter.ProductID == 0 {
		c.Adapter.VendorID = def.Adapter.VendorID
		c.Adapter.ProductID = def.Adapter.ProductID
	}

	if c.Simulator.IRLength == 0 {
		c.Simulator.IRLength = def.Simulator.IRLength
	}
	// IEEE 1149.1 needs two bits for the 01 capture pattern.
	if c.Simulator.IRLength < 2 || c.Simulator.IRLength > 64 {
		return fmt.Errorf("config: simulator ir_length %d out of range [2, 64]", c.Simulator.IRLength)
	}

	if c.LogLevel == "" {
		c.LogLevel = def.LogLevel
	}
	if err := c.level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level returns the parsed log level. Only meaningful after Validate.
func (c *Config) Level() slog.Level {
	return c.level
}
