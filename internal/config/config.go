// Package config loads and validates the receiver configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Receiver ReceiverConfig `yaml:"receiver"`
	Input    InputConfig    `yaml:"input"`
	Server   ServerConfig   `yaml:"server"`
}

// ReceiverConfig parameterizes the synchronization pipeline.
type ReceiverConfig struct {
	NFFT          int  `yaml:"nfft"`            // FFT order, 8..11
	HalfCPAdvance bool `yaml:"half_cp_advance"` // sample windows half a CP early
	InitialShift  uint `yaml:"initial_shift"`   // acquisition threshold exponent
	TrackingShift uint `yaml:"tracking_shift"`  // threshold exponent after first lock
	Consecutive   int  `yaml:"consecutive"`     // exceedances required per peak
	MultReuse     int  `yaml:"mult_reuse"`      // correlator multiplier reuse factor
	CFOMode       int  `yaml:"cfo_mode"`        // 0 coarse+fine over two peaks, 1 fine-only
	CFOTracking   bool `yaml:"cfo_tracking"`    // refine CFO at every peak
	WatchdogMS    int  `yaml:"watchdog_ms"`     // drop sync after this long without a peak
	LLRQueue      int  `yaml:"llr_queue"`       // LLR FIFO capacity in words
	DemapHard     bool `yaml:"demap_hard"`      // emit sign decisions instead of soft LLRs
}

// InputConfig selects the sample source.
type InputConfig struct {
	// Source is "file" for a raw interleaved int16 I/Q capture, or
	// "audio" for stereo line input through PortAudio.
	Source string `yaml:"source"`
	Path   string `yaml:"path"`   // capture file for the file source
	Device string `yaml:"device"` // substring match on the audio device name
	// Rate is the capture rate of the source in Hz. When it differs from
	// the numerology's rate the front end resamples.
	Rate float64 `yaml:"rate"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr    string `yaml:"addr"`
	Enabled bool   `yaml:"enabled"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Receiver: ReceiverConfig{
			NFFT:          8,
			InitialShift:  4,
			TrackingShift: 3,
			Consecutive:   1,
			MultReuse:     1,
			CFOMode:       1,
			LLRQueue:      16384,
		},
		Input: InputConfig{Source: "file"},
		Server: ServerConfig{
			Addr:    "127.0.0.1:8880",
			Enabled: true,
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	r := &c.Receiver
	if r.NFFT < 8 || r.NFFT > 11 {
		return fmt.Errorf("config: nfft %d outside 8..11", r.NFFT)
	}
	if r.InitialShift > 16 || r.TrackingShift > 16 {
		return fmt.Errorf("config: threshold shift above 16")
	}
	if r.Consecutive < 1 {
		return fmt.Errorf("config: consecutive must be at least 1")
	}
	if r.MultReuse < 1 {
		return fmt.Errorf("config: mult_reuse must be at least 1")
	}
	if r.CFOMode != 0 && r.CFOMode != 1 {
		return fmt.Errorf("config: cfo_mode %d, want 0 or 1", r.CFOMode)
	}
	if r.WatchdogMS < 0 {
		return fmt.Errorf("config: negative watchdog")
	}
	if r.LLRQueue < 1024 {
		return fmt.Errorf("config: llr_queue %d below 1024", r.LLRQueue)
	}
	switch c.Input.Source {
	case "file":
		if c.Input.Path == "" {
			return fmt.Errorf("config: file source needs a path")
		}
	case "audio":
	default:
		return fmt.Errorf("config: unknown input source %q", c.Input.Source)
	}
	if c.Server.Enabled && c.Server.Addr == "" {
		return fmt.Errorf("config: server enabled without an address")
	}
	return nil
}
