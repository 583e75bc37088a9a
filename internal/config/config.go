// Package config loads the reference server configuration from YAML, then
// applies E3KIT_* overrides from the environment and optional .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// Config is the server configuration.
type Config struct {
	Listen          string          `yaml:"listen"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	Storage         StorageConfig   `yaml:"storage"`
	Auth            AuthConfig      `yaml:"auth"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	Log             LogConfig       `yaml:"log"`
}

type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Path      string `yaml:"path"`
	CacheSize int    `yaml:"cacheSize"`
}

type AuthConfig struct {
	// Secret signs bearer tokens. It is normally supplied through
	// E3KIT_TOKEN_SECRET rather than the YAML file.
	Secret   string        `yaml:"secret"`
	TokenTTL time.Duration `yaml:"tokenTTL"`
}

// RateLimitConfig throttles cloud entry reads per identity.
type RateLimitConfig struct {
	RPS     float64       `yaml:"rps"`
	Burst   int           `yaml:"burst"`
	IdleTTL time.Duration `yaml:"idleTTL"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:          ":8080",
		ShutdownTimeout: 10 * time.Second,
		Storage: StorageConfig{
			Driver:    DriverMemory,
			CacheSize: 4096,
		},
		Auth: AuthConfig{
			TokenTTL: 15 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			RPS:     1,
			Burst:   10,
			IdleTTL: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration. path may be empty to skip the YAML file.
// envFiles that do not exist are ignored; variables already present in the
// process environment take precedence over them.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	env, err := readEnv(envFiles)
	if err != nil {
		return Config{}, err
	}
	if err := applyEnv(&cfg, env); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is empty"))
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for the sqlite driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}
	if len(c.Auth.Secret) < 32 {
		errs = append(errs, errors.New("auth secret must be at least 32 bytes (set E3KIT_TOKEN_SECRET)"))
	}
	if c.Auth.TokenTTL <= 0 {
		errs = append(errs, errors.New("auth.tokenTTL must be positive"))
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		errs = append(errs, errors.New("rate limit values must not be negative"))
	}
	return errors.Join(errs...)
}

func readEnv(files []string) (map[string]string, error) {
	env := make(map[string]string)
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		vals, err := godotenv.Read(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f, err)
		}
		for k, v := range vals {
			if _, seen := env[k]; !seen {
				env[k] = v
			}
		}
	}
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, "E3KIT_") {
			env[k] = v
		}
	}
	return env, nil
}

func applyEnv(cfg *Config, env map[string]string) error {
	get := func(key string) (string, bool) {
		v, ok := env[key]
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get("E3KIT_LISTEN"); ok {
		cfg.Listen = v
	}
	if v, ok := get("E3KIT_STORAGE_DRIVER"); ok {
		cfg.Storage.Driver = v
	}
	if v, ok := get("E3KIT_STORAGE_PATH"); ok {
		cfg.Storage.Path = v
	}
	if v, ok := get("E3KIT_TOKEN_SECRET"); ok {
		cfg.Auth.Secret = v
	}
	if v, ok := get("E3KIT_TOKEN_TTL"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("E3KIT_TOKEN_TTL: %w", err)
		}
		cfg.Auth.TokenTTL = d
	}
	if v, ok := get("E3KIT_RATE_RPS"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("E3KIT_RATE_RPS: %w", err)
		}
		cfg.RateLimit.RPS = f
	}
	if v, ok := get("E3KIT_RATE_BURST"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("E3KIT_RATE_BURST: %w", err)
		}
		cfg.RateLimit.Burst = n
	}
	if v, ok := get("E3KIT_LOG_LEVEL"); ok {
		cfg.Log.Level = v
	}
	if v, ok := get("E3KIT_LOG_FORMAT"); ok {
		cfg.Log.Format = v
	}
	return nil
}
