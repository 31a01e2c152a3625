// Package config loads daemon configuration with viper: defaults,
// then an optional YAML config file, then REPOMOTION_* environment
// overrides, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved daemon configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Secret    SecretConfig    `mapstructure:"secret"`
	Output    OutputConfig    `mapstructure:"output"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type SecretConfig struct {
	// Key decrypts caller-supplied access tokens. Required whenever
	// private repositories are in play; supplied via config file or
	// REPOMOTION_SECRET_KEY.
	Key string `mapstructure:"key"`
}

type OutputConfig struct {
	// Dir holds generated video artifacts, one file per job id.
	Dir string `mapstructure:"dir"`
}

type JobsConfig struct {
	// RatePerSecond bounds how fast submitted jobs may start work.
	// Zero disables the limiter.
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`

	// HideFilenamesOver is the total-commit cutoff for hiding
	// filenames in the rendered video.
	HideFilenamesOver int `mapstructure:"hide_filenames_over"`
}

type RetentionConfig struct {
	// MaxAge is how long artifacts live before the sweeper deletes them.
	MaxAge time.Duration `mapstructure:"max_age"`

	// SweepInterval is how often the sweeper runs.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// Addr returns the host:port the HTTP server binds.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8081)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")

	v.SetDefault("secret.key", "")

	v.SetDefault("output.dir", "/var/lib/repomotion/videos")

	v.SetDefault("jobs.rate_per_second", 1.0)
	v.SetDefault("jobs.rate_burst", 4)
	v.SetDefault("jobs.hide_filenames_over", 100)

	v.SetDefault("retention.max_age", 24*time.Hour)
	v.SetDefault("retention.sweep_interval", time.Hour)
}

// Load reads configuration. path may be empty, in which case only
// defaults and environment variables apply; a missing file at an
// explicit path is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("REPOMOTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects configurations the daemon cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Output.Dir == "" {
		return errors.New("output.dir is required")
	}
	if c.Retention.MaxAge <= 0 {
		return errors.New("retention.max_age must be > 0")
	}
	if c.Retention.SweepInterval <= 0 {
		return errors.New("retention.sweep_interval must be > 0")
	}
	return nil
}
