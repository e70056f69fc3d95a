// Package config loads trainedml settings from defaults, an optional config
// file and TRAINEDML_* environment variables.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/trainedml/pkg/errors"
)

// EnvPrefix is prepended to every environment variable, e.g. TRAINEDML_LOG_LEVEL.
const EnvPrefix = "TRAINEDML"

type Config struct {
	Cache    CacheConfig
	HTTP     HTTPConfig
	Logger   LoggerConfig
	Output   OutputConfig
	Server   ServerConfig
	Seed     int64
	TestSize float64
	Progress bool
}

type CacheConfig struct {
	Dir           string
	MemoryEntries int
}

type HTTPConfig struct {
	Timeout time.Duration
}

type LoggerConfig struct {
	Level  string
	Format string
}

type OutputConfig struct {
	Dir string
}

type ServerConfig struct {
	Addr        string
	MaxTrainers int
}

// Load reads the configuration. path may be empty, in which case only
// TRAINEDML_CONFIG (when set), defaults and environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("cache.dir", defaultCacheDir())
	v.SetDefault("cache.memory_entries", 16)
	v.SetDefault("http.timeout", "60s")
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "console")
	v.SetDefault("output.dir", "figures")
	v.SetDefault("progress", true)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.max_trainers", 64)
	v.SetDefault("seed", 42)
	v.SetDefault("test_size", 0.3)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WithHint(
				errors.Wrapf(err, "read config %s", path),
				"supported formats are yaml, json and toml",
			)
		}
	}

	cfg := &Config{
		Cache: CacheConfig{
			Dir:           v.GetString("cache.dir"),
			MemoryEntries: v.GetInt("cache.memory_entries"),
		},
		HTTP: HTTPConfig{
			Timeout: v.GetDuration("http.timeout"),
		},
		Logger: LoggerConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Output: OutputConfig{
			Dir: v.GetString("output.dir"),
		},
		Server: ServerConfig{
			Addr:        v.GetString("server.addr"),
			MaxTrainers: v.GetInt("server.max_trainers"),
		},
		Seed:     v.GetInt64("seed"),
		TestSize: v.GetFloat64("test_size"),
		Progress: v.GetBool("progress"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges that viper cannot express.
func (c *Config) Validate() error {
	if c.TestSize <= 0 || c.TestSize >= 1 {
		return errors.NewValidationError("test_size", "must be in (0, 1)", c.TestSize)
	}
	if c.Cache.MemoryEntries < 1 {
		return errors.NewValidationError("cache.memory_entries", "must be at least 1", c.Cache.MemoryEntries)
	}
	if c.Server.MaxTrainers < 1 {
		return errors.NewValidationError("server.max_trainers", "must be at least 1", c.Server.MaxTrainers)
	}
	if c.HTTP.Timeout <= 0 {
		return errors.NewValidationError("http.timeout", "must be positive", c.HTTP.Timeout)
	}
	return nil
}

func defaultCacheDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "trainedml")
}
