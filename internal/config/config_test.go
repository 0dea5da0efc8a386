package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/go-audio-reblock/internal/engine"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "host.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
host:
  sample_rate: 44100
  block_size: 1000
  jitter:
    min: 100
    max: 1000
    seed: 42
processor:
  strict: true
engine:
  mode: dual
  gain_db: -6
  mute_b: true
  lowpass_hz: 5000
meter:
  refresh_hz: 60
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 44100, cfg.Host.SampleRate)
	assert.Equal(t, 1000, cfg.Host.BlockSize)
	assert.Equal(t, JitterConfig{Min: 100, Max: 1000, Seed: 42}, cfg.Host.Jitter)
	assert.True(t, cfg.Host.Jitter.Enabled())
	assert.True(t, cfg.Processor.Strict)
	assert.Zero(t, cfg.Processor.MaxDelay)
	assert.Equal(t, "dual", cfg.Engine.Mode)
	assert.InDelta(t, -6.0, cfg.Engine.GainDB, 1e-9)
	assert.False(t, cfg.Engine.MuteA)
	assert.True(t, cfg.Engine.MuteB)
	assert.InDelta(t, 5000.0, cfg.Engine.LowpassHz, 1e-9)
	assert.Equal(t, 60, cfg.Meter.RefreshHz)
}

func TestLoad_KeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "engine:\n  gain_db: 3\n"))
	require.NoError(t, err)

	want := Default()
	want.Engine.GainDB = 3
	assert.Equal(t, want, cfg)
}

func TestLoad_EmptyFile(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "read config")
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		invalid bool
	}{
		{"unknown_key", "host:\n  blocksize: 10\n", false},
		{"bad_type", "host:\n  block_size: big\n", false},
		{"zero_block", "host:\n  block_size: 0\n", true},
		{"huge_block", "host:\n  block_size: 1000000\n", true},
		{"negative_rate", "host:\n  sample_rate: -1\n", true},
		{"jitter_inverted", "host:\n  jitter: {min: 300, max: 200}\n", true},
		{"jitter_over_block", "host:\n  block_size: 256\n  jitter: {min: 1, max: 512}\n", true},
		{"negative_max_delay", "processor:\n  max_delay: -5\n", true},
		{"bad_mode", "engine:\n  mode: surround\n", true},
		{"negative_lowpass", "engine:\n  lowpass_hz: -100\n", true},
		{"negative_refresh", "meter:\n  refresh_hz: -1\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			if tt.invalid {
				require.ErrorIs(t, err, ErrInvalidConfig)
			} else {
				assert.Contains(t, err.Error(), "parse yaml")
			}
		})
	}
}

func TestValidate_BadModeWrapsEngineError(t *testing.T) {
	cfg := Default()
	cfg.Engine.Mode = "quad"
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidConfig)
	require.ErrorIs(t, err, engine.ErrInvalidMode)
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
	assert.False(t, Default().Host.Jitter.Enabled())
}
