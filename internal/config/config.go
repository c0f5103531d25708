package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hallgren/cfpack/internal/progress"
)

// Config defines configuration for the cfpack CLI.
type Config struct {
	APIKey     string        `yaml:"api_key"`
	BaseURL    string        `yaml:"base_url"`
	GameDir    string        `yaml:"game_dir"`
	Instance   string        `yaml:"instance"`
	Workers    int           `yaml:"workers"`
	Timeout    time.Duration `yaml:"timeout"`
	ChunkSize  int64         `yaml:"chunk_size"`
	Cache      CacheConfig   `yaml:"cache"`
	Backup     bool          `yaml:"backup"`
	KeepBackup bool          `yaml:"keep_backup"`
	Overwrite  bool          `yaml:"overwrite"`
	Retry      RetryConfig   `yaml:"retry"`
}

// CacheConfig defines metadata cache behavior.
type CacheConfig struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

// RetryConfig defines retry behavior.
type RetryConfig struct {
	Attempts   int           `yaml:"attempts"`
	Backoff    time.Duration `yaml:"backoff"`
	MaxBackoff time.Duration `yaml:"max_backoff"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		BaseURL: "https://api.curseforge.com",
		Workers: 4,
		Timeout: 30 * time.Second,
		Backup:  true,
		Cache: CacheConfig{
			TTL: 15 * time.Minute,
		},
		Retry: RetryConfig{
			Attempts:   4,
			Backoff:    600 * time.Millisecond,
			MaxBackoff: 30 * time.Second,
		},
	}
}

// yamlConfig is used for YAML unmarshaling with string durations.
type yamlConfig struct {
	APIKey     string          `yaml:"api_key"`
	BaseURL    string          `yaml:"base_url"`
	GameDir    string          `yaml:"game_dir"`
	Instance   string          `yaml:"instance"`
	Workers    int             `yaml:"workers"`
	Timeout    string          `yaml:"timeout"`
	ChunkSize  string          `yaml:"chunk_size"`
	Cache      yamlCacheConfig `yaml:"cache"`
	Backup     *bool           `yaml:"backup"`
	KeepBackup bool            `yaml:"keep_backup"`
	Overwrite  bool            `yaml:"overwrite"`
	Retry      yamlRetryConfig `yaml:"retry"`
}

type yamlCacheConfig struct {
	Dir string `yaml:"dir"`
	TTL string `yaml:"ttl"`
}

type yamlRetryConfig struct {
	Attempts   int    `yaml:"attempts"`
	Backoff    string `yaml:"backoff"`
	MaxBackoff string `yaml:"max_backoff"`
}

// LoadFromFile loads configuration from a YAML file.
func LoadFromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var yc yamlConfig
	if err := yaml.Unmarshal(data, &yc); err != nil {
		return Config{}, fmt.Errorf("parse config file: %w", err)
	}

	cfg := Default()

	if yc.APIKey != "" {
		cfg.APIKey = yc.APIKey
	}
	if yc.BaseURL != "" {
		cfg.BaseURL = yc.BaseURL
	}
	if yc.GameDir != "" {
		cfg.GameDir = yc.GameDir
	}
	if yc.Instance != "" {
		cfg.Instance = yc.Instance
	}
	if yc.Workers != 0 {
		cfg.Workers = yc.Workers
	}
	if yc.Timeout != "" {
		d, err := time.ParseDuration(yc.Timeout)
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}
	if yc.ChunkSize != "" {
		n, err := progress.ParseBytes(yc.ChunkSize)
		if err != nil {
			return Config{}, fmt.Errorf("parse chunk_size: %w", err)
		}
		cfg.ChunkSize = n
	}
	if yc.Cache.Dir != "" {
		cfg.Cache.Dir = yc.Cache.Dir
	}
	if yc.Cache.TTL != "" {
		d, err := time.ParseDuration(yc.Cache.TTL)
		if err != nil {
			return Config{}, fmt.Errorf("parse cache.ttl: %w", err)
		}
		cfg.Cache.TTL = d
	}
	if yc.Backup != nil {
		cfg.Backup = *yc.Backup
	}
	cfg.KeepBackup = yc.KeepBackup
	cfg.Overwrite = yc.Overwrite
	if yc.Retry.Attempts != 0 {
		cfg.Retry.Attempts = yc.Retry.Attempts
	}
	if yc.Retry.Backoff != "" {
		d, err := time.ParseDuration(yc.Retry.Backoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.backoff: %w", err)
		}
		cfg.Retry.Backoff = d
	}
	if yc.Retry.MaxBackoff != "" {
		d, err := time.ParseDuration(yc.Retry.MaxBackoff)
		if err != nil {
			return Config{}, fmt.Errorf("parse retry.max_backoff: %w", err)
		}
		cfg.Retry.MaxBackoff = d
	}

	return cfg, nil
}

// LoadDotEnv loads a .env file from the working directory into the
// process environment when one exists. Missing files are not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the CFPACK_ prefix.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("CFPACK_API_KEY"); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv("CFPACK_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("CFPACK_GAME_DIR"); v != "" {
		c.GameDir = v
	}
	if v := os.Getenv("CFPACK_INSTANCE"); v != "" {
		c.Instance = v
	}
	if v := os.Getenv("CFPACK_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CFPACK_WORKERS: %w", err)
		}
		c.Workers = n
	}
	if v := os.Getenv("CFPACK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CFPACK_TIMEOUT: %w", err)
		}
		c.Timeout = d
	}
	if v := os.Getenv("CFPACK_CHUNK_SIZE"); v != "" {
		n, err := progress.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("parse CFPACK_CHUNK_SIZE: %w", err)
		}
		c.ChunkSize = n
	}
	if v := os.Getenv("CFPACK_CACHE_DIR"); v != "" {
		c.Cache.Dir = v
	}
	if v := os.Getenv("CFPACK_CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CFPACK_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = d
	}
	if v := os.Getenv("CFPACK_BACKUP"); v != "" {
		c.Backup = v == "true" || v == "1"
	}
	if v := os.Getenv("CFPACK_KEEP_BACKUP"); v != "" {
		c.KeepBackup = v == "true" || v == "1"
	}
	if v := os.Getenv("CFPACK_OVERWRITE"); v != "" {
		c.Overwrite = v == "true" || v == "1"
	}
	if v := os.Getenv("CFPACK_RETRY_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse CFPACK_RETRY_ATTEMPTS: %w", err)
		}
		c.Retry.Attempts = n
	}
	if v := os.Getenv("CFPACK_RETRY_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CFPACK_RETRY_BACKOFF: %w", err)
		}
		c.Retry.Backoff = d
	}
	if v := os.Getenv("CFPACK_RETRY_MAX_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("parse CFPACK_RETRY_MAX_BACKOFF: %w", err)
		}
		c.Retry.MaxBackoff = d
	}

	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return errors.New("config: api key is required")
	}
	if c.BaseURL == "" {
		return errors.New("config: base url is required")
	}
	if c.Workers <= 0 {
		return errors.New("config: workers must be positive")
	}
	if c.Retry.Attempts <= 0 {
		return errors.New("config: retry attempts must be positive")
	}
	return nil
}

// Merge merges override values into c, returning a new Config.
// Zero values in override are ignored.
func (c Config) Merge(override Config) Config {
	if override.APIKey != "" {
		c.APIKey = override.APIKey
	}
	if override.BaseURL != "" {
		c.BaseURL = override.BaseURL
	}
	if override.GameDir != "" {
		c.GameDir = override.GameDir
	}
	if override.Instance != "" {
		c.Instance = override.Instance
	}
	if override.Workers != 0 {
		c.Workers = override.Workers
	}
	if override.Timeout != 0 {
		c.Timeout = override.Timeout
	}
	if override.ChunkSize != 0 {
		c.ChunkSize = override.ChunkSize
	}
	if override.Cache.Dir != "" {
		c.Cache.Dir = override.Cache.Dir
	}
	if override.Cache.TTL != 0 {
		c.Cache.TTL = override.Cache.TTL
	}
	if override.KeepBackup {
		c.KeepBackup = override.KeepBackup
	}
	if override.Overwrite {
		c.Overwrite = override.Overwrite
	}
	if override.Retry.Attempts != 0 {
		c.Retry.Attempts = override.Retry.Attempts
	}
	if override.Retry.Backoff != 0 {
		c.Retry.Backoff = override.Retry.Backoff
	}
	if override.Retry.MaxBackoff != 0 {
		c.Retry.MaxBackoff = override.Retry.MaxBackoff
	}
	return c
}
