// Package config loads settings for programs built on the fsrs engine.
//
// Settings come from an optional YAML file and are then overridden by
// environment variables with the FSRS_ prefix. LoadDotEnv populates the
// environment from a .env file first when one is present.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/huanunited/fsrs"
	"github.com/huanunited/fsrs/optimizer"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds all settings.
type Config struct {
	Database   DatabaseConfig  `yaml:"database"`
	Parameters fsrs.Parameters `yaml:"parameters"`
	Optimizer  OptimizerConfig `yaml:"optimizer"`
	Log        LogConfig       `yaml:"log"`
}

// DatabaseConfig selects the persistence backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres (default: sqlite)
	DSN    string `yaml:"dsn"`    // default: fsrs.db
}

// OptimizerConfig mirrors optimizer.OptimizerConfig. Zero values select the
// optimizer defaults.
type OptimizerConfig struct {
	Epochs        int     `yaml:"epochs"`
	MiniBatchSize int     `yaml:"mini_batch_size"`
	LearningRate  float64 `yaml:"learning_rate"`
	MaxSeqLen     int     `yaml:"max_seq_len"`
}

// LogConfig controls the slog level.
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: info)
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "fsrs.db",
		},
		Parameters: fsrs.DefaultParameters(),
		Log:        LogConfig{Level: "info"},
	}
}

// LoadDotEnv loads environment variables from the given .env files, or
// ".env" when none are named. A missing file is not an error; variables
// already set in the environment win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: failed to load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the YAML file at path over the defaults, applies FSRS_
// environment overrides and validates the result. An empty path skips the
// file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Database.Driver = getEnv("FSRS_DB_DRIVER", c.Database.Driver)
	c.Database.DSN = getEnv("FSRS_DB_DSN", c.Database.DSN)
	c.Log.Level = getEnv("FSRS_LOG_LEVEL", c.Log.Level)

	if v := os.Getenv("FSRS_DESIRED_RETENTION"); v != "" {
		dr, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%w: FSRS_DESIRED_RETENTION=%q: %v", ErrInvalidConfig, v, err)
		}
		c.Parameters.DesiredRetention = dr
	}
	return nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("%w: database driver %q (want sqlite or postgres)", ErrInvalidConfig, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("%w: database dsn is empty", ErrInvalidConfig)
	}
	if err := c.Parameters.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Optimizer.Epochs < 0 || c.Optimizer.MiniBatchSize < 0 || c.Optimizer.MaxSeqLen < 0 || c.Optimizer.LearningRate < 0 {
		return fmt.Errorf("%w: optimizer settings must not be negative", ErrInvalidConfig)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// SlogLevel returns the configured log level. Unknown names map to Info;
// Validate reports them.
func (c *Config) SlogLevel() slog.Level {
	l, err := parseLevel(c.Log.Level)
	if err != nil {
		return slog.LevelInfo
	}
	return l
}

// OptimizerConfig converts the optimizer section for optimizer.NewOptimizer.
func (c *Config) OptimizerConfig(logger *slog.Logger) optimizer.OptimizerConfig {
	return optimizer.OptimizerConfig{
		Epochs:        c.Optimizer.Epochs,
		MiniBatchSize: c.Optimizer.MiniBatchSize,
		LearningRate:  c.Optimizer.LearningRate,
		MaxSeqLen:     c.Optimizer.MaxSeqLen,
		Logger:        logger,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("%w: log level %q", ErrInvalidConfig, s)
	}
	return l, nil
}

// getEnv retrieves an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
