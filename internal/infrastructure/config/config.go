package config

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Session   SessionConfig   `yaml:"session"`
	Process   ProcessConfig   `yaml:"process"`
	Preview   PreviewConfig   `yaml:"preview"`
	Logging   LogConfig       `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"8000" yaml:"port"`
	Host string `envconfig:"HOST" default:"0.0.0.0" yaml:"host"`
}

// WorkspaceConfig holds the on-disk mirror configuration.
type WorkspaceConfig struct {
	Root string `envconfig:"WORKSPACE_ROOT" default:"./workspace" yaml:"root"`
}

// SessionConfig holds session lifecycle configuration.
type SessionConfig struct {
	// GracePeriod is how long a session with zero connected clients
	// survives before the registry removes it.
	GracePeriod time.Duration `envconfig:"SESSION_GRACE_PERIOD" default:"5m" yaml:"grace_period"`
}

// ProcessConfig holds process executor configuration.
type ProcessConfig struct {
	// OutputBufferBytes caps the per-stream history kept for late joiners.
	OutputBufferBytes int `envconfig:"PROCESS_OUTPUT_BUFFER" default:"262144" yaml:"output_buffer_bytes"`
	// KillGrace is how long an interrupted process gets before SIGKILL.
	KillGrace time.Duration `envconfig:"PROCESS_KILL_GRACE" default:"3s" yaml:"kill_grace"`
	// DefaultShell backs interactive terminals.
	DefaultShell string `envconfig:"PROCESS_SHELL" default:"/bin/bash" yaml:"default_shell"`
}

// PreviewConfig holds preview surface configuration.
type PreviewConfig struct {
	// BaseURL is the externally reachable address preview URLs are built
	// from. Empty means derive from the request host.
	BaseURL string `envconfig:"PREVIEW_BASE_URL" default:"" yaml:"base_url"`
	// ReadyDelay is the fixed delay after a session's first spawn before
	// the synthetic preview-ready event fires. Readiness is assumed, not
	// probed; this is part of the protocol's startup contract.
	ReadyDelay time.Duration `envconfig:"PREVIEW_READY_DELAY" default:"2s" yaml:"ready_delay"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info" yaml:"level"`
	Development bool   `envconfig:"LOG_DEV" default:"false" yaml:"development"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100" yaml:"requests_per_second"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200" yaml:"burst"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true" yaml:"enabled"`
	// Scope selects the bucket layout: "ip" for one bucket per client
	// address, "global" for one shared bucket (use when a fronting proxy
	// collapses client addresses).
	Scope string `envconfig:"RATE_LIMIT_SCOPE" default:"ip" yaml:"scope"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadWithFile loads configuration from the environment, then overlays
// values from a YAML file when path is non-empty. Keys present in the
// file win over environment values; flags applied by the caller win
// over both.
func LoadWithFile(path string) (*Config, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8000",
			Host: "0.0.0.0",
		},
		Workspace: WorkspaceConfig{
			Root: "./workspace",
		},
		Session: SessionConfig{
			GracePeriod: 5 * time.Minute,
		},
		Process: ProcessConfig{
			OutputBufferBytes: 262144,
			KillGrace:         3 * time.Second,
			DefaultShell:      "/bin/bash",
		},
		Preview: PreviewConfig{
			BaseURL:    "",
			ReadyDelay: 2 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
			Scope:             "ip",
		},
	}
}
