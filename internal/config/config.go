// Package config loads nameyourink configuration from an optional YAML file
// and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. NYI_REDIS_ADDR.
const EnvPrefix = "NYI"

// Cache backends.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
	CacheBackendNone   = "none"
)

// Config holds the main configuration for the application.
type Config struct {
	Server     Server     `mapstructure:"server"`
	Log        Log        `mapstructure:"log"`
	TextStudio TextStudio `mapstructure:"textstudio"`
	Redis      Redis      `mapstructure:"redis"`
	Cache      Cache      `mapstructure:"cache"`
	Preview    Preview    `mapstructure:"preview"`
	Storage    Storage    `mapstructure:"storage"`
	Styles     []Style    `mapstructure:"styles"`
}

// Server holds HTTP server-related configuration.
type Server struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"` // per upstream call
}

// Log holds logging configuration.
type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// TextStudio holds the upstream rendering API configuration.
type TextStudio struct {
	URL            string        `mapstructure:"url"`
	APIKey         string        `mapstructure:"api_key"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
}

// Redis holds the connection parameters of the cache Redis.
type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Cache holds preview cache configuration.
type Cache struct {
	Backend       string `mapstructure:"backend"` // redis, memory or none
	SchemaVersion string `mapstructure:"schema_version"`
	MaxEntries    int    `mapstructure:"max_entries"` // memory backend only, 0 = unbounded
}

// Preview holds preview loader configuration.
type Preview struct {
	BackendURL  string        `mapstructure:"backend_url"`
	Concurrency int           `mapstructure:"concurrency"`
	Text        string        `mapstructure:"text"`
	Dedupe      bool          `mapstructure:"dedupe"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Storage holds configuration for the generated-image archive.
type Storage struct {
	Enabled    bool   `mapstructure:"enabled"`
	Endpoint   string `mapstructure:"endpoint"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	UseSSL     bool   `mapstructure:"use_ssl"`
}

// Style is one entry of the served style catalog.
type Style struct {
	ID   string `mapstructure:"id"`
	Name string `mapstructure:"name"`
}

// DefaultStyles is the catalog served when none is configured.
func DefaultStyles() []Style {
	return []Style{
		{ID: "261", Name: "Golden 3D"},
		{ID: "3475", Name: "Green Announcement"},
		{ID: "4500", Name: "Cyber Neon"},
		{ID: "1234", Name: "Retro Wave"},
		{ID: "888", Name: "Pink Barbie"},
		{ID: "567", Name: "Street Graffiti"},
		{ID: "99", Name: "Liquid Silver"},
		{ID: "202", Name: "Comic Boom"},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.request_timeout", 45*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("textstudio.url", "https://api.textstudio.com/generate")
	v.SetDefault("textstudio.api_key", "")
	v.SetDefault("textstudio.timeout", 30*time.Second)
	v.SetDefault("textstudio.max_attempts", 3)
	v.SetDefault("textstudio.initial_backoff", 500*time.Millisecond)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.backend", CacheBackendRedis)
	v.SetDefault("cache.schema_version", "v1")
	v.SetDefault("cache.max_entries", 0)

	v.SetDefault("preview.backend_url", "http://localhost:8080")
	v.SetDefault("preview.concurrency", 3)
	v.SetDefault("preview.text", "ABC")
	v.SetDefault("preview.dedupe", false)
	v.SetDefault("preview.timeout", 30*time.Second)

	v.SetDefault("storage.enabled", false)
	v.SetDefault("storage.endpoint", "localhost:9000")
	v.SetDefault("storage.access_key", "")
	v.SetDefault("storage.secret_key", "")
	v.SetDefault("storage.bucket_name", "nameyourink")
	v.SetDefault("storage.use_ssl", false)

	styles := make([]map[string]any, 0, len(DefaultStyles()))
	for _, s := range DefaultStyles() {
		styles = append(styles, map[string]any{"id": s.ID, "name": s.Name})
	}
	v.SetDefault("styles", styles)
}

// bindEnv binds keys whose environment names do not follow the NYI_ scheme.
func bindEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"textstudio.api_key": {EnvPrefix + "_TEXTSTUDIO_API_KEY", "TEXTSTUDIO_API_KEY"},
	}

	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("bind env %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the configuration. path may be empty, in which case only
// defaults and environment variables are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	c.TextStudio.APIKey = strings.TrimSpace(c.TextStudio.APIKey)
	for i := range c.Styles {
		c.Styles[i].ID = strings.TrimSpace(c.Styles[i].ID)
	}
	if len(c.Styles) == 0 {
		c.Styles = DefaultStyles()
	}
}

// Validate checks the settings shared by all commands.
func (c *Config) Validate() error {
	var errs []error

	if c.Preview.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("preview.concurrency must be at least 1 (got %d)", c.Preview.Concurrency))
	}
	switch c.Cache.Backend {
	case CacheBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("redis.addr is required for the redis cache backend"))
		}
	case CacheBackendMemory, CacheBackendNone:
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be redis, memory or none (got %q)", c.Cache.Backend))
	}
	if c.Cache.MaxEntries < 0 {
		errs = append(errs, errors.New("cache.max_entries must not be negative"))
	}
	if c.Storage.Enabled && c.Storage.BucketName == "" {
		errs = append(errs, errors.New("storage.bucket_name is required when storage is enabled"))
	}

	seen := make(map[string]bool, len(c.Styles))
	for i, s := range c.Styles {
		if s.ID == "" {
			errs = append(errs, fmt.Errorf("styles[%d] has no id", i))
			continue
		}
		if seen[s.ID] {
			errs = append(errs, fmt.Errorf("styles[%d]: duplicate id %s", i, s.ID))
		}
		seen[s.ID] = true
	}

	return errors.Join(errs...)
}

// ValidateServer checks the settings the backend server needs in addition to
// Validate.
func (c *Config) ValidateServer() error {
	err := c.Validate()
	if c.TextStudio.APIKey == "" {
		err = errors.Join(err, errors.New("textstudio api key is required (TEXTSTUDIO_API_KEY)"))
	}
	if c.TextStudio.MaxAttempts < 1 {
		err = errors.Join(err, fmt.Errorf("textstudio.max_attempts must be at least 1 (got %d)", c.TextStudio.MaxAttempts))
	}
	return err
}
