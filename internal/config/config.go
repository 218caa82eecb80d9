package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"
)

// DefaultServerURL is used when no flag, env var or config file names a server
const DefaultServerURL = "http://localhost:5051"

// Keyboard trigger backends
const (
	TriggerAuto  = "auto"  // evdev, falling back to the X11 hook when a display is available
	TriggerEvdev = "evdev" // /dev/input devices; works under Wayland and X11
	TriggerX11   = "x11"   // global X11 hook; misses native Wayland windows
)

// Config holds all configuration for the dictation engine
type Config struct {
	// Transcription service. Resolved as NEMOSPEECH_URL > config file > default;
	// the --server flag overrides all of them.
	ServerURL string `ignored:"true"`

	// Optional TOML config file; defaults to $XDG_CONFIG_HOME/justspeak/config.toml
	ConfigFile string `envconfig:"JUSTSPEAK_CONFIG" default:""`

	// Feature toggles
	StreamingEnabled bool `envconfig:"STREAMING_ENABLED" default:"true"` // Live partials over /ws/stream
	OverlayEnabled   bool `envconfig:"OVERLAY_ENABLED" default:"true"`   // Console overlay with live text

	// Streaming pipeline timings
	StreamTickInterval int `envconfig:"STREAM_TICK_INTERVAL" default:"100"`   // Milliseconds between audio frames
	StreamFinalTimeout int `envconfig:"STREAM_FINAL_TIMEOUT" default:"10000"` // Milliseconds to wait for final after done
	StreamDialTimeout  int `envconfig:"STREAM_DIAL_TIMEOUT" default:"5000"`   // Milliseconds
	BatchTimeout       int `envconfig:"BATCH_TIMEOUT" default:"60"`           // Seconds for the fallback upload

	// Audio and delivery
	MinRecording     int `envconfig:"MIN_RECORDING" default:"300"`      // Milliseconds; shorter sessions are discarded
	FramesPerBuffer  int `envconfig:"FRAMES_PER_BUFFER" default:"1024"` // Capture callback size in samples
	PasteSettleDelay int `envconfig:"PASTE_SETTLE_DELAY" default:"150"` // Milliseconds before pasting

	// Triggers
	TriggerBackend    string `envconfig:"TRIGGER_BACKEND" default:"auto"`     // auto, evdev or x11
	TriggerKeycode    int    `envconfig:"TRIGGER_KEYCODE" default:"100"`      // evdev code; 100 is Right Alt (AltGr)
	X11TriggerKeycode int    `envconfig:"X11_TRIGGER_KEYCODE" default:"3640"` // Raw keycode for the X11 hook fallback
	MIDIPort          string `envconfig:"MIDI_PORT" default:"FS-1-WL"`        // Foot pedal port name match; empty disables
	MIDIController    int    `envconfig:"MIDI_CONTROLLER" default:"85"`       // Control change number of the pedal

	// Resilience configuration
	CircuitBreakerMaxFailures  int `envconfig:"CIRCUIT_BREAKER_MAX_FAILURES" default:"3"`   // Failed dials before streaming is skipped
	CircuitBreakerResetTimeout int `envconfig:"CIRCUIT_BREAKER_RESET_TIMEOUT" default:"30"` // Seconds before a dial is retried
	RetryMaxAttempts           int `envconfig:"RETRY_MAX_ATTEMPTS" default:"3"`             // Startup health check attempts
	RetryInitialBackoff        int `envconfig:"RETRY_INITIAL_BACKOFF" default:"500"`        // Initial backoff in milliseconds

	// Observability configuration
	LogLevel       string `envconfig:"LOG_LEVEL" default:"info"`             // Log level: debug, info, warn, error
	LogPretty      bool   `envconfig:"LOG_PRETTY" default:"true"`            // Console log output instead of JSON
	MetricsEnabled bool   `envconfig:"METRICS_ENABLED" default:"false"`      // Serve /health, /ready and /metrics
	StatusAddr     string `envconfig:"STATUS_ADDR" default:"127.0.0.1:9464"` // Status server listen address

	// Set when the config file exists but could not be read; the default URL is used
	ConfigFileErr error `ignored:"true"`
}

// Override adjusts loaded values before validation. Command-line flags use it
// so they take precedence over env and file values.
type Override func(*Config)

// Load reads configuration from environment variables and the config file.
// It first attempts to load from .env file if it exists.
func Load(overrides ...Override) (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	return LoadFromEnv(overrides...)
}

// LoadFromEnv loads configuration without attempting to load a .env file
func LoadFromEnv(overrides ...Override) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.ConfigFile == "" {
		cfg.ConfigFile = ConfigFilePath()
	}

	serverURL, err := resolveServerURL(cfg.ConfigFile)
	if err != nil {
		cfg.ConfigFileErr = err
	}
	cfg.ServerURL = serverURL

	for _, override := range overrides {
		override(&cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// resolveServerURL applies NEMOSPEECH_URL > config file server.url > default.
// A broken config file is reported but does not prevent startup.
func resolveServerURL(path string) (string, error) {
	v := viper.New()
	v.SetDefault("server.url", DefaultServerURL)
	if err := v.BindEnv("server.url", "NEMOSPEECH_URL"); err != nil {
		return DefaultServerURL, err
	}

	var fileErr error
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("toml")
			if err := v.ReadInConfig(); err != nil {
				fileErr = fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			fileErr = fmt.Errorf("failed to stat config file %s: %w", path, err)
		}
	}

	return v.GetString("server.url"), fileErr
}

// ConfigFilePath returns $XDG_CONFIG_HOME/justspeak/config.toml, falling back to ~/.config
func ConfigFilePath() string {
	base := GetEnv("XDG_CONFIG_HOME", "")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return ""
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "justspeak", "config.toml")
}

// Validate checks the configuration for values the engine cannot run with
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url %q: %w", c.ServerURL, err)
	}
	switch u.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("invalid server url %q: scheme must be http or https", c.ServerURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid server url %q: missing host", c.ServerURL)
	}

	positive := map[string]int{
		"STREAM_TICK_INTERVAL":          c.StreamTickInterval,
		"STREAM_FINAL_TIMEOUT":          c.StreamFinalTimeout,
		"STREAM_DIAL_TIMEOUT":           c.StreamDialTimeout,
		"BATCH_TIMEOUT":                 c.BatchTimeout,
		"MIN_RECORDING":                 c.MinRecording,
		"FRAMES_PER_BUFFER":             c.FramesPerBuffer,
		"TRIGGER_KEYCODE":               c.TriggerKeycode,
		"CIRCUIT_BREAKER_MAX_FAILURES":  c.CircuitBreakerMaxFailures,
		"CIRCUIT_BREAKER_RESET_TIMEOUT": c.CircuitBreakerResetTimeout,
		"RETRY_MAX_ATTEMPTS":            c.RetryMaxAttempts,
	}
	for name, v := range positive {
		if v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", name, v)
		}
	}
	if c.PasteSettleDelay < 0 || c.RetryInitialBackoff < 0 {
		return fmt.Errorf("delays must not be negative")
	}
	if c.TriggerKeycode > 0xFFFF {
		return fmt.Errorf("TRIGGER_KEYCODE out of range: %d", c.TriggerKeycode)
	}
	if c.X11TriggerKeycode <= 0 || c.X11TriggerKeycode > 0xFFFF {
		return fmt.Errorf("X11_TRIGGER_KEYCODE out of range: %d", c.X11TriggerKeycode)
	}
	switch c.TriggerBackend {
	case TriggerAuto, TriggerEvdev, TriggerX11:
	default:
		return fmt.Errorf("TRIGGER_BACKEND must be auto, evdev or x11, got %q", c.TriggerBackend)
	}
	if c.MIDIController < 0 || c.MIDIController > 127 {
		return fmt.Errorf("MIDI_CONTROLLER out of range: %d", c.MIDIController)
	}
	return nil
}

// Duration helpers

func (c *Config) TickInterval() time.Duration {
	return time.Duration(c.StreamTickInterval) * time.Millisecond
}

func (c *Config) FinalTimeout() time.Duration {
	return time.Duration(c.StreamFinalTimeout) * time.Millisecond
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.StreamDialTimeout) * time.Millisecond
}

func (c *Config) BatchRequestTimeout() time.Duration {
	return time.Duration(c.BatchTimeout) * time.Second
}

func (c *Config) MinRecordingDuration() time.Duration {
	return time.Duration(c.MinRecording) * time.Millisecond
}

func (c *Config) PasteSettle() time.Duration {
	return time.Duration(c.PasteSettleDelay) * time.Millisecond
}

func (c *Config) BreakerResetTimeout() time.Duration {
	return time.Duration(c.CircuitBreakerResetTimeout) * time.Second
}

func (c *Config) RetryBackoff() time.Duration {
	return time.Duration(c.RetryInitialBackoff) * time.Millisecond
}

// GetEnv returns the value of an environment variable or a default value
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
