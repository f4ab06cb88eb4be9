// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"streamcore/internal/board"
	"streamcore/internal/dispatch"
	"streamcore/internal/filter"
	"streamcore/internal/log"
)

// Config is the application configuration, loaded from YAML.
type Config struct {
	Debug       bool              `yaml:"debug"`
	LogLevel    string            `yaml:"log_level"`
	Variant     string            `yaml:"variant"`
	TUI         bool              `yaml:"tui"`
	Stream      StreamConfig      `yaml:"stream"`
	Control     ControlConfig     `yaml:"control"`
	Board       BoardConfig       `yaml:"board"`
	Recording   RecordingConfig   `yaml:"recording"`
	Diagnostics DiagnosticsConfig `yaml:"diagnostics"`
}

// StreamConfig describes the peripheral side of the stream.
type StreamConfig struct {
	SampleRate    float64 `yaml:"sample_rate"`
	BufferLen     int     `yaml:"buffer_len"` // 0 selects the variant default
	Source        string  `yaml:"source"`
	WAVPath       string  `yaml:"wav_path"`
	Loop          bool    `yaml:"loop"`
	ToneFrequency float64 `yaml:"tone_frequency"`
	InputDevice   int     `yaml:"input_device"`
	OutputDevice  int     `yaml:"output_device"`
	LowLatency    bool    `yaml:"low_latency"`
	Paced         bool    `yaml:"paced"`  // simulated transfers follow the sample clock
	Frames        uint64  `yaml:"frames"` // simulated transfers before exit, 0 runs forever
	FaultEvery    uint64  `yaml:"fault_every"`
}

// ControlConfig configures the tick handler and fault policy.
type ControlConfig struct {
	TickRate    int    `yaml:"tick_rate"`
	ShortTicks  int    `yaml:"short_ticks"`
	LongTicks   int    `yaml:"long_ticks"`
	InitialFIR  uint8  `yaml:"initial_fir"`
	InitialIIR  uint8  `yaml:"initial_iir"`
	FaultPolicy string `yaml:"fault_policy"`
	Button      string `yaml:"button"`
	GPIOChip    string `yaml:"gpio_chip"`
	GPIOLine    int    `yaml:"gpio_line"`
}

// BoardConfig is the bring-up configuration.
type BoardConfig struct {
	Clock        board.Clock   `yaml:"clock"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"`
}

// RecordingConfig captures the output stream to WAV.
type RecordingConfig struct {
	Enabled   bool   `yaml:"enabled"`
	OutputDir string `yaml:"output_dir"`
}

// DiagnosticsConfig configures the diagnostic channels.
type DiagnosticsConfig struct {
	Console          bool          `yaml:"console"`
	WebSocketAddr    string        `yaml:"websocket_addr"` // empty disables
	StatsInterval    time.Duration `yaml:"stats_interval"`
	RatePerSecond    float64       `yaml:"rate_per_second"`
	Burst            int           `yaml:"burst"`
	UDPEnabled       bool          `yaml:"udp_enabled"`
	UDPTargetAddress string        `yaml:"udp_target_address"`
	UDPSendInterval  time.Duration `yaml:"udp_send_interval"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Variant:  DefaultVariant,
		Stream: StreamConfig{
			SampleRate:    DefaultSampleRate,
			Source:        DefaultSource,
			ToneFrequency: DefaultToneFrequency,
			InputDevice:   DefaultDevice,
			OutputDevice:  DefaultDevice,
			Paced:         true,
		},
		Control: ControlConfig{
			TickRate:    DefaultTickRate,
			ShortTicks:  DefaultShortTicks,
			LongTicks:   DefaultLongTicks,
			FaultPolicy: DefaultFaultPolicy,
			Button:      DefaultButton,
			GPIOChip:    "gpiochip0",
		},
		Board: BoardConfig{
			Clock:        board.DefaultClock,
			ReadyTimeout: DefaultReadyTimeout,
		},
		Recording: RecordingConfig{
			OutputDir: "./recordings",
		},
		Diagnostics: DiagnosticsConfig{
			Console:          true,
			StatsInterval:    DefaultStatsInterval,
			RatePerSecond:    20,
			Burst:            10,
			UDPTargetAddress: "127.0.0.1:9090",
			UDPSendInterval:  DefaultUDPInterval,
		},
	}
}

// LoadConfig loads configuration from a YAML file specified by path. If path
// is empty it looks for "config.yaml" in the working directory and falls
// back to the built-in defaults. Environment overrides are applied last,
// then the result is validated.
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if !slices.Contains(dispatch.Variants, c.Variant) {
		return fmt.Errorf("unknown variant %q, want one of %v", c.Variant, dispatch.Variants)
	}
	if _, ok := log.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}

	s := c.Stream
	if s.SampleRate < MinSampleRate || s.SampleRate > MaxSampleRate {
		return fmt.Errorf("stream.sample_rate %.0f outside %d..%d", s.SampleRate, MinSampleRate, MaxSampleRate)
	}
	n := c.BufferLen()
	if n < 1 || n > MaxBufferFrames {
		return fmt.Errorf("stream.buffer_len %d outside 1..%d", n, MaxBufferFrames)
	}
	if c.Variant == dispatch.VariantAcquire && n != filter.Taps {
		return fmt.Errorf("stream.buffer_len %d must equal the FIR length %d for %s", n, filter.Taps, c.Variant)
	}
	switch s.Source {
	case SourceTone:
		if s.ToneFrequency <= 0 || s.ToneFrequency >= s.SampleRate/2 {
			return fmt.Errorf("stream.tone_frequency %.1f outside (0, %.1f)", s.ToneFrequency, s.SampleRate/2)
		}
	case SourceWAV:
		if s.WAVPath == "" {
			return fmt.Errorf("stream.wav_path is required for the wav source")
		}
	case SourcePortAudio:
	default:
		return fmt.Errorf("unknown stream.source %q", s.Source)
	}

	ctl := c.Control
	if ctl.TickRate <= 0 {
		return fmt.Errorf("control.tick_rate must be positive, got %d", ctl.TickRate)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("control: %w", err)
	}
	if _, err := c.FaultPolicy(); err != nil {
		return fmt.Errorf("control.fault_policy: %w", err)
	}
	if int(ctl.InitialFIR) >= len(filter.FIRBanks) {
		return fmt.Errorf("control.initial_fir %d, only %d banks", ctl.InitialFIR, len(filter.FIRBanks))
	}
	if int(ctl.InitialIIR) >= len(filter.IIRBanks) {
		return fmt.Errorf("control.initial_iir %d, only %d banks", ctl.InitialIIR, len(filter.IIRBanks))
	}
	switch ctl.Button {
	case ButtonNone, ButtonScript:
	case ButtonGPIO:
		if ctl.GPIOChip == "" || ctl.GPIOLine < 0 {
			return fmt.Errorf("control.gpio_chip and control.gpio_line are required for the gpio button")
		}
	default:
		return fmt.Errorf("unknown control.button %q", ctl.Button)
	}

	if err := c.Board.Clock.Validate(); err != nil {
		return fmt.Errorf("board.clock: %w", err)
	}

	d := c.Diagnostics
	if d.UDPEnabled {
		if d.UDPTargetAddress == "" {
			return fmt.Errorf("diagnostics.udp_target_address must be set when UDP is enabled")
		}
		if d.UDPSendInterval <= 0 {
			return fmt.Errorf("diagnostics.udp_send_interval must be positive when UDP is enabled")
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	// ENV_DEBUG
	if val, ok := os.LookupEnv("ENV_DEBUG"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Debug = bVal
			log.Debugf("configuration: overriding debug from env: %v", bVal)
		}
	}
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	// ENV_VARIANT
	if val, ok := os.LookupEnv("ENV_VARIANT"); ok {
		c.Variant = val
		log.Debugf("configuration: overriding variant from env: %s", val)
	}
	// ENV_FAULT_POLICY
	if val, ok := os.LookupEnv("ENV_FAULT_POLICY"); ok {
		c.Control.FaultPolicy = val
	}
	// ENV_WS_ADDR
	if val, ok := os.LookupEnv("ENV_WS_ADDR"); ok {
		c.Diagnostics.WebSocketAddr = val
	}

	// ENV_UDP_ENABLED
	if val, ok := os.LookupEnv("ENV_UDP_ENABLED"); ok {
		if bVal, err := strconv.ParseBool(val); err == nil {
			c.Diagnostics.UDPEnabled = bVal
		}
	}
	// ENV_UDP_TARGET_ADDRESS
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		c.Diagnostics.UDPTargetAddress = val
	}
	// ENV_UDP_SEND_INTERVAL
	if val, ok := os.LookupEnv("ENV_UDP_SEND_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			c.Diagnostics.UDPSendInterval = dur
		}
	}
}
