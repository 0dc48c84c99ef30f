package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Shell     ShellConfig
	Provision ProvisionConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string        `envconfig:"PORT" default:"8000"`
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// ShellConfig holds remote shell session configuration.
type ShellConfig struct {
	// Transport selects the channel dialer: "ssh" or "local".
	Transport      string        `envconfig:"SHELL_TRANSPORT" default:"ssh"`
	ConnectTimeout time.Duration `envconfig:"SHELL_CONNECT_TIMEOUT" default:"10s"`
	ExecTimeout    time.Duration `envconfig:"SHELL_EXEC_TIMEOUT" default:"10s"`
	SettleDelay    time.Duration `envconfig:"SHELL_SETTLE_DELAY" default:"150ms"`
	QuiescenceGap  time.Duration `envconfig:"SHELL_QUIESCENCE_GAP" default:"400ms"`
	PollInterval   time.Duration `envconfig:"SHELL_POLL_INTERVAL" default:"50ms"`
	ProbeTimeout   time.Duration `envconfig:"SHELL_PROBE_TIMEOUT" default:"2s"`
	IdleTimeout    time.Duration `envconfig:"SHELL_IDLE_TIMEOUT" default:"30m"`
	SweepInterval  time.Duration `envconfig:"SHELL_SWEEP_INTERVAL" default:"1m"`
	KnownHosts     string        `envconfig:"SHELL_KNOWN_HOSTS"`
	UseSSHConfig   bool          `envconfig:"SHELL_USE_SSH_CONFIG" default:"true"`
	LocalShell     string        `envconfig:"SHELL_LOCAL_SHELL" default:"/bin/sh"`
}

// ProvisionConfig holds game server provisioning configuration.
type ProvisionConfig struct {
	BaseDir         string        `envconfig:"PROVISION_BASE_DIR" default:"/opt/gameservers"`
	InventoryPath   string        `envconfig:"PROVISION_INVENTORY" default:"gameservers.json"`
	CatalogPath     string        `envconfig:"PROVISION_CATALOG"`
	Locale          string        `envconfig:"PROVISION_LOCALE" default:"de"`
	CommandTimeout  time.Duration `envconfig:"PROVISION_COMMAND_TIMEOUT" default:"30s"`
	DownloadTimeout time.Duration `envconfig:"PROVISION_DOWNLOAD_TIMEOUT" default:"10m"`
	TaskRetention   time.Duration `envconfig:"PROVISION_TASK_RETENTION" default:"24h"`
	DefaultRAM      int           `envconfig:"PROVISION_DEFAULT_RAM" default:"4"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects settings the shell and provisioning layers cannot run with.
func (c *Config) Validate() error {
	switch c.Shell.Transport {
	case "ssh", "local":
	default:
		return fmt.Errorf("invalid SHELL_TRANSPORT %q: want ssh or local", c.Shell.Transport)
	}
	if c.Shell.ExecTimeout <= 0 || c.Shell.PollInterval <= 0 || c.Shell.QuiescenceGap <= 0 {
		return fmt.Errorf("shell timings must be positive")
	}
	if c.Provision.BaseDir == "" {
		return fmt.Errorf("PROVISION_BASE_DIR must not be empty")
	}
	switch c.Provision.Locale {
	case "de", "en":
	default:
		return fmt.Errorf("invalid PROVISION_LOCALE %q: want de or en", c.Provision.Locale)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            "8000",
			Host:            "0.0.0.0",
			ShutdownTimeout: 15 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
		Shell: ShellConfig{
			Transport:      "ssh",
			ConnectTimeout: 10 * time.Second,
			ExecTimeout:    10 * time.Second,
			SettleDelay:    150 * time.Millisecond,
			QuiescenceGap:  400 * time.Millisecond,
			PollInterval:   50 * time.Millisecond,
			ProbeTimeout:   2 * time.Second,
			IdleTimeout:    30 * time.Minute,
			SweepInterval:  time.Minute,
			UseSSHConfig:   true,
			LocalShell:     "/bin/sh",
		},
		Provision: ProvisionConfig{
			BaseDir:         "/opt/gameservers",
			InventoryPath:   "gameservers.json",
			Locale:          "de",
			CommandTimeout:  30 * time.Second,
			DownloadTimeout: 10 * time.Minute,
			TaskRetention:   24 * time.Hour,
			DefaultRAM:      4,
		},
	}
}
