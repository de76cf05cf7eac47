// Package config loads and validates the daemon configuration. Validation
// is strict and happens before any core component is constructed: a
// malformed configuration fails the process fast rather than starting a
// partial pipeline.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/ayusman/paperframe/internal/schedule"
)

// ErrInvalid marks a configuration the daemon refuses to start with.
var ErrInvalid = errors.New("config: invalid configuration")

// Config is the validated daemon configuration handed to the core.
type Config struct {
	UpdateTime string        `mapstructure:"update_time"`
	Timezone   string        `mapstructure:"timezone"`
	DataDir    string        `mapstructure:"data_dir"`
	Listen     string        `mapstructure:"listen"`
	Display    DisplayConfig `mapstructure:"display"`
	Cache      CacheConfig   `mapstructure:"cache"`

	// Derived during validation.
	At       schedule.UpdateTime `mapstructure:"-"`
	Location *time.Location      `mapstructure:"-"`
}

// DisplayConfig describes the attached panel. Method selects the color
// mapping: "nearest" (calibration-aware distance) or "legacy" (the fixed
// threshold heuristic older panels shipped with); legacy cannot be combined
// with a calibration profile.
type DisplayConfig struct {
	Driver      string `mapstructure:"driver"`
	Width       int    `mapstructure:"width"`
	Height      int    `mapstructure:"height"`
	Rotation    int    `mapstructure:"rotation"`
	Calibration string `mapstructure:"calibration"`
	Method      string `mapstructure:"method"`
}

// CacheConfig bounds the artifact cache.
type CacheConfig struct {
	MaxMB         int `mapstructure:"max_mb"`
	RetentionDays int `mapstructure:"retention_days"`
}

// Default returns the configuration used when the file omits a key.
func Default() *Config {
	return &Config{
		UpdateTime: "06:00",
		Timezone:   "Local",
		Listen:     ":8090",
		Display: DisplayConfig{
			Driver: "acep7",
			Width:  800,
			Height: 480,
			Method: "nearest",
		},
		Cache: CacheConfig{
			MaxMB:         64,
			RetentionDays: 7,
		},
	}
}

// Load reads the configuration file at path (or the default search
// locations when path is empty), applies defaults and validates the
// result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("paperframe")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".paperframe"))
		}
		v.AddConfigPath("/etc/paperframe")
	}

	def := Default()
	v.SetDefault("update_time", def.UpdateTime)
	v.SetDefault("timezone", def.Timezone)
	v.SetDefault("listen", def.Listen)
	v.SetDefault("display.driver", def.Display.Driver)
	v.SetDefault("display.width", def.Display.Width)
	v.SetDefault("display.height", def.Display.Height)
	v.SetDefault("display.rotation", def.Display.Rotation)
	v.SetDefault("display.method", def.Display.Method)
	v.SetDefault("cache.max_mb", def.Cache.MaxMB)
	v.SetDefault("cache.retention_days", def.Cache.RetentionDays)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			// No file anywhere: run on defaults.
		} else {
			return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}

	if cfg.DataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: no data_dir and no home directory: %v", ErrInvalid, err)
		}
		cfg.DataDir = filepath.Join(home, ".paperframe")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	at, err := schedule.ParseUpdateTime(c.UpdateTime)
	if err != nil {
		return fmt.Errorf("%w: update_time: %v", ErrInvalid, err)
	}
	c.At = at

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalid, c.Timezone, err)
	}
	c.Location = loc

	switch c.Display.Driver {
	case "acep7", "mock":
	default:
		return fmt.Errorf("%w: display.driver %q (want acep7 or mock)", ErrInvalid, c.Display.Driver)
	}
	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return fmt.Errorf("%w: display geometry %dx%d", ErrInvalid, c.Display.Width, c.Display.Height)
	}
	switch c.Display.Rotation {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("%w: display.rotation %d (want 0, 90, 180 or 270)", ErrInvalid, c.Display.Rotation)
	}
	switch c.Display.Method {
	case "nearest":
	case "legacy":
		if c.Display.Calibration != "" {
			return fmt.Errorf("%w: display.method legacy ignores calibration %q", ErrInvalid, c.Display.Calibration)
		}
	default:
		return fmt.Errorf("%w: display.method %q (want nearest or legacy)", ErrInvalid, c.Display.Method)
	}

	if c.Cache.MaxMB < 0 || c.Cache.RetentionDays < 0 {
		return fmt.Errorf("%w: cache bounds must be non-negative", ErrInvalid)
	}
	return nil
}
