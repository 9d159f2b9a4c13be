// Package config manages server configuration using Viper: built-in
// defaults, an optional config file, and NSBM_*-prefixed environment
// overrides, in that order of precedence.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// Config wraps the viper instance behind typed getters.
type Config struct {
	v *viper.Viper
}

// New creates a configuration with defaults and environment overrides
// (e.g. NSBM_SERVER_ADDRESS, NSBM_JOBS_MAX_WORKERS).
func New() *Config {
	v := viper.New()

	// HTTP server
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)

	// Job processing
	v.SetDefault("jobs.max_workers", 4)
	v.SetDefault("jobs.timeout", 10*time.Minute)
	v.SetDefault("jobs.cleanup_interval", 5*time.Minute)
	v.SetDefault("jobs.ttl", time.Hour)

	// Logging
	v.SetDefault("logging.level", "info")

	v.SetEnvPrefix("NSBM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Config{v: v}
}

// LoadFromFile merges configuration from a file on top of the defaults.
func (c *Config) LoadFromFile(path string) error {
	c.v.SetConfigFile(path)
	return c.v.ReadInConfig()
}

func (c *Config) ServerAddress() string          { return c.v.GetString("server.address") }
func (c *Config) ReadTimeout() time.Duration     { return c.v.GetDuration("server.read_timeout") }
func (c *Config) WriteTimeout() time.Duration    { return c.v.GetDuration("server.write_timeout") }
func (c *Config) MaxWorkers() int                { return c.v.GetInt("jobs.max_workers") }
func (c *Config) JobTimeout() time.Duration      { return c.v.GetDuration("jobs.timeout") }
func (c *Config) CleanupInterval() time.Duration { return c.v.GetDuration("jobs.cleanup_interval") }
func (c *Config) JobTTL() time.Duration          { return c.v.GetDuration("jobs.ttl") }
func (c *Config) LogLevel() string               { return c.v.GetString("logging.level") }

// Set allows dynamic configuration changes.
func (c *Config) Set(key string, value interface{}) {
	c.v.Set(key, value)
}

// CreateLogger creates a zerolog console logger at the configured level.
func (c *Config) CreateLogger() zerolog.Logger {
	level, err := zerolog.ParseLevel(c.LogLevel())
	if err != nil {
		level = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	}).Level(level).With().Timestamp().Str("service", "nsbm").Logger()
}
