package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// TomlFeedbin holds credentials for Feedbin accounts. The username lives
// in the account's settings file; only the secret belongs here.
type TomlFeedbin struct {
	BaseURL  string `toml:"base_url,omitempty"`
	Password string `toml:"password,omitempty"`
}

// TomlRefresh controls the periodic background refresh.
type TomlRefresh struct {
	IntervalMinutes int `toml:"interval_minutes"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	DataDir          string      `toml:"data_dir"`
	Port             int         `toml:"port"`
	UserAgent        string      `toml:"user_agent,omitempty"`
	SaveDelaySeconds int         `toml:"save_delay_seconds,omitempty"`
	Refresh          TomlRefresh `toml:"refresh"`
	Feedbin          TomlFeedbin `toml:"feedbin"`
}

// Default returns the configuration used when no config file is given.
func Default() *TomlConfig {
	return &TomlConfig{
		DataDir: "data",
		Port:    3000,
		Refresh: TomlRefresh{IntervalMinutes: 30},
	}
}

func LoadConfig(path string) (*TomlConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	config := Default()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return config, nil
}

// SaveDelay converts the configured debounce delay, zero meaning the
// account package default.
func (c *TomlConfig) SaveDelay() time.Duration {
	return time.Duration(c.SaveDelaySeconds) * time.Second
}

// RefreshInterval returns the background refresh period.
func (c *TomlConfig) RefreshInterval() time.Duration {
	if c.Refresh.IntervalMinutes <= 0 {
		return 30 * time.Minute
	}
	return time.Duration(c.Refresh.IntervalMinutes) * time.Minute
}
