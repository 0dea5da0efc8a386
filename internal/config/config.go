// Package config loads the YAML host profile used by the command-line tools.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tphakala/go-audio-reblock/internal/engine"
)

// Defaults.
const (
	DefaultBlockSize  = 512
	DefaultRefreshHz  = 30
	DefaultJitterSeed = 1
	DefaultMode       = "stereo"

	maxBlockSize = 1 << 16
)

// ErrInvalidConfig indicates a profile that fails validation.
var ErrInvalidConfig = errors.New("invalid config")

// Config is a host profile: how the simulated host calls the processor and
// which engine it drives.
type Config struct {
	Host      HostConfig      `yaml:"host"`
	Processor ProcessorConfig `yaml:"processor"`
	Engine    EngineConfig    `yaml:"engine"`
	Meter     MeterConfig     `yaml:"meter"`
}

// HostConfig describes the audio callbacks.
type HostConfig struct {
	// SampleRate overrides the input file's rate when non-zero.
	SampleRate int          `yaml:"sample_rate"`
	BlockSize  int          `yaml:"block_size"`
	Jitter     JitterConfig `yaml:"jitter"`
}

// JitterConfig makes callback sizes vary uniformly in [Min, Max]. Zero
// values disable jitter.
type JitterConfig struct {
	Min  int    `yaml:"min"`
	Max  int    `yaml:"max"`
	Seed uint64 `yaml:"seed"`
}

// Enabled reports whether callback sizes vary.
func (j JitterConfig) Enabled() bool {
	return j.Min > 0 || j.Max > 0
}

// ProcessorConfig mirrors reblock.Config.
type ProcessorConfig struct {
	MaxDelay int  `yaml:"max_delay"`
	Strict   bool `yaml:"strict"`
}

// EngineConfig selects the demo engine chain.
type EngineConfig struct {
	Mode      string  `yaml:"mode"`
	GainDB    float64 `yaml:"gain_db"`
	MuteA     bool    `yaml:"mute_a"`
	MuteB     bool    `yaml:"mute_b"`
	Impulse   string  `yaml:"impulse"`
	LowpassHz float64 `yaml:"lowpass_hz"`
}

// MeterConfig controls the level display.
type MeterConfig struct {
	RefreshHz int `yaml:"refresh_hz"`
}

// Default returns the profile used when no file is given.
func Default() *Config {
	return &Config{
		Host: HostConfig{
			BlockSize: DefaultBlockSize,
			Jitter:    JitterConfig{Seed: DefaultJitterSeed},
		},
		Engine: EngineConfig{Mode: DefaultMode},
		Meter:  MeterConfig{RefreshHz: DefaultRefreshHz},
	}
}

// Load reads a profile from path. Keys missing from the file keep their
// default values; unknown keys are an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse yaml: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	h := c.Host
	if h.SampleRate < 0 {
		return fmt.Errorf("%w: host.sample_rate must not be negative (got %d)", ErrInvalidConfig, h.SampleRate)
	}
	if h.BlockSize <= 0 || h.BlockSize > maxBlockSize {
		return fmt.Errorf("%w: host.block_size must be in [1, %d] (got %d)", ErrInvalidConfig, maxBlockSize, h.BlockSize)
	}
	if j := h.Jitter; j.Enabled() {
		if j.Min < 1 || j.Max < j.Min {
			return fmt.Errorf("%w: host.jitter needs 1 <= min <= max (got %d..%d)", ErrInvalidConfig, j.Min, j.Max)
		}
		if j.Max > h.BlockSize {
			return fmt.Errorf("%w: host.jitter.max %d exceeds block size %d", ErrInvalidConfig, j.Max, h.BlockSize)
		}
	}
	if c.Processor.MaxDelay < 0 {
		return fmt.Errorf("%w: processor.max_delay must not be negative (got %d)", ErrInvalidConfig, c.Processor.MaxDelay)
	}
	if _, err := engine.ParseMode(c.Engine.Mode); err != nil {
		return fmt.Errorf("%w: engine.mode: %w", ErrInvalidConfig, err)
	}
	if c.Engine.LowpassHz < 0 {
		return fmt.Errorf("%w: engine.lowpass_hz must not be negative (got %g)", ErrInvalidConfig, c.Engine.LowpassHz)
	}
	if c.Meter.RefreshHz < 0 {
		return fmt.Errorf("%w: meter.refresh_hz must not be negative (got %d)", ErrInvalidConfig, c.Meter.RefreshHz)
	}
	return nil
}
