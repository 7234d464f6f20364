package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/loykin/upkeep/internal/history"
	"github.com/loykin/upkeep/internal/logger"
	"github.com/loykin/upkeep/internal/precheck"
)

// FileConfig represents the top-level TOML structure.
type FileConfig struct {
	Sources  SourcesConfig  `toml:"sources" mapstructure:"sources"`
	Precheck precheck.Gates `toml:"precheck" mapstructure:"precheck"`
	History  history.Config `toml:"history" mapstructure:"history"`
	Log      logger.Config  `toml:"log" mapstructure:"log"`
	Notify   NotifyConfig   `toml:"notify" mapstructure:"notify"`
	Server   ServerConfig   `toml:"server" mapstructure:"server"`
}

type SourcesConfig struct {
	Enabled           []string      `toml:"enabled" mapstructure:"enabled"`
	Exclude           []string      `toml:"exclude" mapstructure:"exclude"`
	Concurrency       int           `toml:"concurrency" mapstructure:"concurrency"`
	SourceTimeout     time.Duration `toml:"source_timeout" mapstructure:"source_timeout"`
	ContinueOnFailure bool          `toml:"continue_on_failure" mapstructure:"continue_on_failure"`
}

type NotifyConfig struct {
	Enabled bool `toml:"enabled" mapstructure:"enabled"`
}

type ServerConfig struct {
	Listen string `toml:"listen" mapstructure:"listen"`
}

// Default returns the configuration used when no file is present.
func Default() FileConfig {
	return FileConfig{
		Sources: SourcesConfig{
			Enabled:       []string{"macos", "homebrew", "appstore", "pip", "npm"},
			Concurrency:   1,
			SourceTimeout: 30 * time.Minute,
		},
		Precheck: precheck.Gates{
			SkipOnBattery:     true,
			MinBatteryPercent: 50,
			MinDiskSpaceGB:    10,
		},
		History: history.Config{
			DSN: "sqlite://upkeep_history.db",
		},
		Log: logger.Config{
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
		},
		Notify: NotifyConfig{Enabled: true},
		Server: ServerConfig{Listen: "127.0.0.1:8611"},
	}
}

// Load reads a TOML config file, layering it over the defaults. A missing
// file is not an error; the defaults apply unchanged.
func Load(path string) (FileConfig, error) {
	fc := Default()
	if path == "" {
		return fc, nil
	}
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return fc, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			return fc, nil
		}
		return fc, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&fc); err != nil {
		return fc, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := fc.Validate(); err != nil {
		return fc, err
	}
	return fc, nil
}

// Validate rejects values no run could honor.
func (fc FileConfig) Validate() error {
	if fc.Sources.Concurrency < 0 {
		return fmt.Errorf("sources.concurrency must be >= 0, got %d", fc.Sources.Concurrency)
	}
	if fc.Sources.SourceTimeout < 0 {
		return fmt.Errorf("sources.source_timeout must be >= 0")
	}
	if fc.Precheck.MinBatteryPercent < 0 || fc.Precheck.MinBatteryPercent > 100 {
		return fmt.Errorf("precheck.min_battery_percent must be 0..100, got %d", fc.Precheck.MinBatteryPercent)
	}
	if fc.Precheck.MinDiskSpaceGB < 0 {
		return fmt.Errorf("precheck.min_disk_space_gb must be >= 0")
	}
	return nil
}
