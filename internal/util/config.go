// Package util provides common utilities for authlens.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Analysis backend
	ServerURL       string        `mapstructure:"server_url"`
	Token           string        `mapstructure:"token"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	MaxPollFailures int           `mapstructure:"max_poll_failures"`

	// Report settings
	ReportOutputDir string `mapstructure:"report_output_dir"`
	HistoryLimit    int    `mapstructure:"history_limit"`

	// Web view
	WebPort int    `mapstructure:"web_port"`
	TileURL string `mapstructure:"tile_url"`
}

// DefaultTileURL is the public OpenStreetMap tile template.
const DefaultTileURL = "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png"

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".authlens")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  filepath.Join(dataDir, "authlens.log"),

		ServerURL:       "http://127.0.0.1:5000",
		RequestTimeout:  30 * time.Second,
		PollInterval:    800 * time.Millisecond,
		MaxPollFailures: 5,

		ReportOutputDir: filepath.Join(dataDir, "reports"),
		HistoryLimit:    20,

		WebPort: 8080,
		TileURL: DefaultTileURL,
	}
}

// LoadConfigFrom loads configuration into v. An explicit path overrides the
// default search locations.
func LoadConfigFrom(v *viper.Viper, path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(cfg.DataDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("authlens")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// Set defaults in viper
	v.SetDefault("data_dir", cfg.DataDir)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("server_url", cfg.ServerURL)
	v.SetDefault("token", cfg.Token)
	v.SetDefault("request_timeout", cfg.RequestTimeout)
	v.SetDefault("poll_interval", cfg.PollInterval)
	v.SetDefault("max_poll_failures", cfg.MaxPollFailures)
	v.SetDefault("report_output_dir", cfg.ReportOutputDir)
	v.SetDefault("history_limit", cfg.HistoryLimit)
	v.SetDefault("web_port", cfg.WebPort)
	v.SetDefault("tile_url", cfg.TileURL)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if path != "" || !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if err := EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	c.ServerURL = strings.TrimRight(c.ServerURL, "/")
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if !strings.HasPrefix(c.ServerURL, "http://") && !strings.HasPrefix(c.ServerURL, "https://") {
		return fmt.Errorf("server_url must start with http:// or https://: %q", c.ServerURL)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.MaxPollFailures < 1 {
		c.MaxPollFailures = 1
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	if c.TileURL == "" {
		c.TileURL = DefaultTileURL
	}
	return nil
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
