// Package config loads the booking-timeline configuration file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/penwyp/go-booking-timeline/internal/util"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	DefaultConfigDir  = "~/.booking-timeline"
	DefaultConfigFile = DefaultConfigDir + "/config.yaml"
	EnvPrefix         = "BOOKING_TIMELINE"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// SourceConfig selects where bookings come from
type SourceConfig struct {
	Type    string        `mapstructure:"type" yaml:"type" validate:"required,oneof=sqlite json http"`
	Path    string        `mapstructure:"path" yaml:"path" validate:"required_unless=Type http"`
	URL     string        `mapstructure:"url" yaml:"url,omitempty" validate:"required_if=Type http,omitempty,url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gte=0"`
}

// TimelineConfig holds navigation and cache parameters
type TimelineConfig struct {
	DaysToMove       int           `mapstructure:"days_to_move" yaml:"days_to_move" validate:"gt=0"`
	MonthsAhead      int           `mapstructure:"months_ahead" yaml:"months_ahead" validate:"gte=0"`
	MonthsBehind     int           `mapstructure:"months_behind" yaml:"months_behind" validate:"gte=0"`
	Timezone         string        `mapstructure:"timezone" yaml:"timezone" validate:"iana_tz"`
	Scale            string        `mapstructure:"scale" yaml:"scale" validate:"oneof=day week month year"`
	ThrottleInterval time.Duration `mapstructure:"throttle_interval" yaml:"throttle_interval" validate:"gt=0"`
	PageSize         int           `mapstructure:"page_size" yaml:"page_size" validate:"gte=0"`
}

// Config is the top-level configuration
type Config struct {
	Source   SourceConfig   `mapstructure:"source" yaml:"source"`
	Timeline TimelineConfig `mapstructure:"timeline" yaml:"timeline"`
	StateDir string         `mapstructure:"state_dir" yaml:"state_dir" validate:"required"`
	LogFile  string         `mapstructure:"log_file" yaml:"log_file"`
	LogLevel string         `mapstructure:"log_level" yaml:"log_level" validate:"oneof=debug info warn error"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Type:    "sqlite",
			Path:    DefaultConfigDir + "/bookings.db",
			Timeout: 30 * time.Second,
		},
		Timeline: TimelineConfig{
			DaysToMove:       7,
			MonthsAhead:      2,
			MonthsBehind:     1,
			Timezone:         "Local",
			Scale:            "month",
			ThrottleInterval: 100 * time.Millisecond,
			PageSize:         0,
		},
		StateDir: DefaultConfigDir + "/state",
		LogFile:  DefaultConfigDir + "/logs/app.log",
		LogLevel: "info",
	}
}

// Load reads the YAML file at path (DefaultConfigFile when empty), applies
// BOOKING_TIMELINE_* environment overrides and validates the result.
// A missing file yields the defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if path == "" {
		path = DefaultConfigFile
	}
	v.SetConfigFile(util.ExpandPath(path))
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		util.LogDebugf("No config file at %s, using defaults", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("source.type", d.Source.Type)
	v.SetDefault("source.path", d.Source.Path)
	v.SetDefault("source.url", d.Source.URL)
	v.SetDefault("source.timeout", d.Source.Timeout)
	v.SetDefault("timeline.days_to_move", d.Timeline.DaysToMove)
	v.SetDefault("timeline.months_ahead", d.Timeline.MonthsAhead)
	v.SetDefault("timeline.months_behind", d.Timeline.MonthsBehind)
	v.SetDefault("timeline.timezone", d.Timeline.Timezone)
	v.SetDefault("timeline.scale", d.Timeline.Scale)
	v.SetDefault("timeline.throttle_interval", d.Timeline.ThrottleInterval)
	v.SetDefault("timeline.page_size", d.Timeline.PageSize)
	v.SetDefault("state_dir", d.StateDir)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("log_level", d.LogLevel)
}

// Normalize expands paths and lowercases enumerations
func (c *Config) Normalize() {
	c.Source.Type = strings.ToLower(strings.TrimSpace(c.Source.Type))
	if c.Source.Path != "" {
		c.Source.Path = util.ExpandPath(c.Source.Path)
	}
	if c.StateDir != "" {
		c.StateDir = util.ExpandPath(c.StateDir)
	}
	if c.LogFile != "" {
		c.LogFile = util.ExpandPath(c.LogFile)
	}
	c.LogLevel = strings.ToLower(c.LogLevel)
	c.Timeline.Scale = strings.ToLower(c.Timeline.Scale)
	if c.Timeline.Timezone == "" {
		c.Timeline.Timezone = "Local"
	}
}

var validate = mustValidator()

func mustValidator() *validator.Validate {
	v, err := newValidator()
	if err != nil {
		panic(err)
	}
	return v
}

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	err := v.RegisterValidation("iana_tz", func(fl validator.FieldLevel) bool {
		tz := fl.Field().String()
		if tz == "" || tz == "Local" {
			return true
		}
		_, err := time.LoadLocation(tz)
		return err == nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to register timezone validation: %w", err)
	}
	return v, nil
}

// Validate checks the configuration against its constraints
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s failed %s=%s (got %v)", ns, fe.Tag(), fe.Param(), fe.Value()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s failed %s (got %v)", ns, fe.Tag(), fe.Value()))
		}
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}

// Save writes cfg as YAML via a temp file and rename, with 0600 permissions
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}
	path = util.ExpandPath(path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".booking-timeline-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
