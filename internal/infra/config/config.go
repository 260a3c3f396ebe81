package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	HTTP           HTTPConfig           `yaml:"http"`
	Weather        WeatherConfig        `yaml:"weather"`
	Analysis       AnalysisConfig       `yaml:"analysis"`
	Session        SessionConfig        `yaml:"session"`
	Recommendation RecommendationConfig `yaml:"recommendation"`
	Valkey         ValkeyConfig         `yaml:"valkey"`
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address        string          `yaml:"address"`
	ReadTimeout    time.Duration   `yaml:"readTimeout"`
	WriteTimeout   time.Duration   `yaml:"writeTimeout"`
	AllowedOrigins []string        `yaml:"allowedOrigins"`
	MaxUploadBytes int64           `yaml:"maxUploadBytes"`
	RateLimit      RateLimitConfig `yaml:"rateLimit"`
	Retry          RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent requests.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// WeatherConfig controls the simulated weather provider.
type WeatherConfig struct {
	Latency      time.Duration  `yaml:"latency"`
	CacheTTL     time.Duration  `yaml:"cacheTtl"`
	PopularLimit int            `yaml:"popularLimit"`
	Seed         int64          `yaml:"seed"`
	Postgres     PostgresConfig `yaml:"postgres"`
}

// AnalysisConfig controls the classification stub and capture storage.
type AnalysisConfig struct {
	Latency time.Duration `yaml:"latency"`
	Seed    int64         `yaml:"seed"`
	Storage StorageConfig `yaml:"storage"`
}

// StorageConfig selects where captured images are staged.
type StorageConfig struct {
	Driver    string `yaml:"driver"`
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
}

// SessionConfig controls session lifetime and locking.
type SessionConfig struct {
	TTL          time.Duration `yaml:"ttl"`
	LockTTL      time.Duration `yaml:"lockTtl"`
	LockTimeout  time.Duration `yaml:"lockTimeout"`
	AsyncCapture bool          `yaml:"asyncCapture"`
}

// RecommendationConfig controls tip selection in the plan engine.
type RecommendationConfig struct {
	RandomizeTips bool  `yaml:"randomizeTips"`
	Seed          int64 `yaml:"seed"`
}

// ValkeyConfig contains connection information for the shared cache.
type ValkeyConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
	Prefix  string `yaml:"prefix"`
}

// PostgresConfig contains DSN and pooling settings.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
}

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_BASE_BACKOFF"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.HTTP.Retry.BaseBackoff = parsed
		}
	}
	if v := os.Getenv("WEATHER_LATENCY"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Weather.Latency = parsed
		}
	}
	if v := os.Getenv("WEATHER_CACHE_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Weather.CacheTTL = parsed
		}
	}
	if v := os.Getenv("WEATHER_SEED"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Weather.Seed = parsed
		}
	}
	if v := os.Getenv("WEATHER_POSTGRES_DSN"); v != "" {
		cfg.Weather.Postgres.DSN = v
	}
	if v := os.Getenv("WEATHER_POSTGRES_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Weather.Postgres.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("ANALYSIS_LATENCY"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.Latency = parsed
		}
	}
	if v := os.Getenv("ANALYSIS_SEED"); v != "" {
		if parsed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Analysis.Seed = parsed
		}
	}
	if v := os.Getenv("STORAGE_DRIVER"); v != "" {
		cfg.Analysis.Storage.Driver = v
	}
	if v := os.Getenv("STORAGE_ENDPOINT"); v != "" {
		cfg.Analysis.Storage.Endpoint = v
	}
	if v := os.Getenv("STORAGE_ACCESS_KEY"); v != "" {
		cfg.Analysis.Storage.AccessKey = v
	}
	if v := os.Getenv("STORAGE_SECRET_KEY"); v != "" {
		cfg.Analysis.Storage.SecretKey = v
	}
	if v := os.Getenv("STORAGE_BUCKET"); v != "" {
		cfg.Analysis.Storage.Bucket = v
	}
	if v := os.Getenv("STORAGE_REGION"); v != "" {
		cfg.Analysis.Storage.Region = v
	}
	if v := os.Getenv("SESSION_TTL"); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			cfg.Session.TTL = parsed
		}
	}
	if v := os.Getenv("SESSION_ASYNC_CAPTURE"); v != "" {
		cfg.Session.AsyncCapture = parseBool(v)
	}
	if v := os.Getenv("RECOMMENDATION_RANDOMIZE_TIPS"); v != "" {
		cfg.Recommendation.RandomizeTips = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ENABLED"); v != "" {
		cfg.Valkey.Enabled = parseBool(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.Valkey.Addr = v
	}
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func defaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Address:        ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   15 * time.Second,
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 10 << 20,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             30,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 3,
				BaseBackoff: 150 * time.Millisecond,
				Exclude: []string{
					"/api/v1/analyses",
					"/api/v1/sessions/*/captures",
				},
			},
		},
		Weather: WeatherConfig{
			Latency:      time.Second,
			CacheTTL:     10 * time.Minute,
			PopularLimit: 10,
			Postgres: PostgresConfig{
				MaxConns: 4,
			},
		},
		Analysis: AnalysisConfig{
			Latency: 3 * time.Second,
			Storage: StorageConfig{
				Driver: "memory",
				Bucket: "zephyre-captures",
				Region: "auto",
			},
		},
		Session: SessionConfig{
			TTL:         2 * time.Hour,
			LockTTL:     30 * time.Second,
			LockTimeout: 5 * time.Second,
		},
		Valkey: ValkeyConfig{
			Prefix: "zephyre",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		return errors.New("http.maxUploadBytes must be positive")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	if c.Weather.Latency < 0 {
		return errors.New("weather.latency cannot be negative")
	}
	if c.Weather.CacheTTL < 0 {
		return errors.New("weather.cacheTtl cannot be negative")
	}
	if c.Analysis.Latency < 0 {
		return errors.New("analysis.latency cannot be negative")
	}
	switch strings.ToLower(strings.TrimSpace(c.Analysis.Storage.Driver)) {
	case "", "memory":
	case "s3":
		if strings.TrimSpace(c.Analysis.Storage.Endpoint) == "" {
			return errors.New("analysis.storage.endpoint cannot be empty for the s3 driver")
		}
		if strings.TrimSpace(c.Analysis.Storage.Bucket) == "" {
			return errors.New("analysis.storage.bucket cannot be empty for the s3 driver")
		}
	default:
		return fmt.Errorf("analysis.storage.driver %q is not supported", c.Analysis.Storage.Driver)
	}
	if c.Session.TTL <= 0 {
		return errors.New("session.ttl must be positive")
	}
	if c.Session.LockTimeout < 0 || c.Session.LockTTL < 0 {
		return errors.New("session lock durations cannot be negative")
	}
	if c.Valkey.Enabled && strings.TrimSpace(c.Valkey.Addr) == "" {
		return errors.New("valkey.addr cannot be empty when valkey is enabled")
	}
	return nil
}
