// Package config loads and validates sfbridge configuration.
//
// Values start from Default, are overlaid by an optional TOML file and are
// validated before use. Command-line flags are applied by the caller after
// Load and must be followed by another Validate.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Engine selects the synthesis engine and its instrument bank.
type Engine struct {
	// Module is a path to a WebAssembly engine module, or the name of a
	// native engine such as "piano".
	Module string `toml:"module"`
	// Bank is a path to the instrument bank. Empty selects the built-in
	// bank of the CLI.
	Bank string `toml:"bank"`
}

// Audio contains output stream settings.
type Audio struct {
	SampleRate int `toml:"sample_rate"`
	BlockSize  int `toml:"block_size"`
	Channels   int `toml:"channels"`
}

// Bridge contains queue sizes of the control channel.
type Bridge struct {
	CommandQueue int `toml:"command_queue"`
	AckQueue     int `toml:"ack_queue"`
}

// Logging contains configuration for log output.
type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // auto, console or json
}

// Config encapsulates all configuration values for sfbridge.
type Config struct {
	Engine  Engine  `toml:"engine"`
	Audio   Audio   `toml:"audio"`
	Bridge  Bridge  `toml:"bridge"`
	Logging Logging `toml:"logging"`
}

const (
	defaultModule       = "piano"
	defaultSampleRate   = 48000
	defaultBlockSize    = 128
	defaultChannels     = 2
	defaultCommandQueue = 256
	defaultAckQueue     = 16
	defaultLogLevel     = "info"
	defaultLogFormat    = "auto"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Engine: Engine{Module: defaultModule},
		Audio: Audio{
			SampleRate: defaultSampleRate,
			BlockSize:  defaultBlockSize,
			Channels:   defaultChannels,
		},
		Bridge: Bridge{
			CommandQueue: defaultCommandQueue,
			AckQueue:     defaultAckQueue,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}

// Load reads the TOML file at path over the defaults and validates the
// result. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SampleConfig returns an annotated configuration file with every default.
func SampleConfig() string {
	return sampleConfig
}
