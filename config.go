package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by LoadConfig. A
// double underscore separates sections: SOCIAPI_DATABASE__HOST.
const EnvPrefix = "SOCIAPI_"

type Config struct {
	Port      int             `koanf:"port" validate:"min=1,max=65535"`
	Env       string          `koanf:"env" validate:"oneof=dev prod"`
	ClientURL string          `koanf:"client_url"`
	Database  DatabaseConfig  `koanf:"database"`
	Cache     CacheConfig     `koanf:"cache"`
	Auth      AuthConfig      `koanf:"auth"`
	Github    GithubConfig    `koanf:"github"`
	NATS      NATSConfig      `koanf:"nats"`
	Zipkin    ZipkinConfig    `koanf:"zipkin"`
	Log       LogConfig       `koanf:"log"`
	Uploads   UploadsConfig   `koanf:"uploads"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Jobs      JobsConfig      `koanf:"jobs"`
	Mail      MailConfig      `koanf:"mail"`
}

func (c Config) IsProd() bool {
	return c.Env == "prod"
}

type DatabaseConfig struct {
	Driver   string `koanf:"driver" validate:"oneof=postgres memory"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Name     string `koanf:"name"`
	SSLMode  string `koanf:"sslmode"`
}

func (dc DatabaseConfig) ConnectionInfo() string {
	if dc.Password == "" {
		return fmt.Sprintf("host=%s port=%d user=%s dbname=%s sslmode=%s",
			dc.Host, dc.Port, dc.User, dc.Name, dc.SSLMode)
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dc.Host, dc.Port, dc.User, dc.Password, dc.Name, dc.SSLMode)
}

type CacheConfig struct {
	Backend  string        `koanf:"backend" validate:"oneof=redis memcache none"`
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"`
	TTL      time.Duration `koanf:"ttl"`
	Breaker  BreakerConfig `koanf:"breaker"`
}

type BreakerConfig struct {
	Failures uint32        `koanf:"failures"`
	Timeout  time.Duration `koanf:"timeout"`
}

type AuthConfig struct {
	AccessSecret  string        `koanf:"access_secret" validate:"required"`
	RefreshSecret string        `koanf:"refresh_secret" validate:"required"`
	AccessTTL     time.Duration `koanf:"access_ttl" validate:"gt=0"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl" validate:"gt=0"`
	Pepper        string        `koanf:"pepper" validate:"required"`
	HMACKey       string        `koanf:"hmac_key" validate:"required"`
}

type GithubConfig struct {
	ID          string `koanf:"id"`
	Secret      string `koanf:"secret"`
	RedirectURL string `koanf:"redirect_url"`
}

// Enabled reports whether GitHub login is configured.
func (gc GithubConfig) Enabled() bool {
	return gc.ID != "" && gc.Secret != ""
}

type NATSConfig struct {
	URL    string `koanf:"url"`
	Prefix string `koanf:"prefix"`
}

type ZipkinConfig struct {
	URL         string `koanf:"url"`
	ServiceName string `koanf:"service_name"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

type UploadsConfig struct {
	Dir      string `koanf:"dir" validate:"required"`
	MaxBytes int64  `koanf:"max_bytes" validate:"gt=0"`
}

type RateLimitConfig struct {
	RequestsPerMinute int `koanf:"requests_per_minute" validate:"min=0"`
}

// MailConfig points at an SMTP relay. Without a host, mail is logged.
type MailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	From     string `koanf:"from" validate:"required_with=Host"`
	StartTLS bool   `koanf:"starttls"`
}

type JobsConfig struct {
	ReconcileSchedule string `koanf:"reconcile_schedule"`
}

func DefaultConfig() Config {
	return Config{
		Port:      1111,
		Env:       "dev",
		ClientURL: "http://localhost:3000",
		Database: DatabaseConfig{
			Driver:  "postgres",
			Host:    "localhost",
			Port:    5432,
			User:    "postgres",
			Name:    "sociapi",
			SSLMode: "disable",
		},
		Cache: CacheConfig{
			Backend: "redis",
			Addr:    "localhost:6379",
			TTL:     1800 * time.Second,
			Breaker: BreakerConfig{Failures: 5, Timeout: 30 * time.Second},
		},
		Auth: AuthConfig{
			AccessSecret:  "dev-access-secret",
			RefreshSecret: "dev-refresh-secret",
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    168 * time.Hour,
			Pepper:        "dev-pepper",
			HMACKey:       "dev-hmac-key",
		},
		NATS:      NATSConfig{Prefix: "sociapi"},
		Zipkin:    ZipkinConfig{ServiceName: "sociapi"},
		Log:       LogConfig{Level: "info", Format: "console"},
		Uploads:   UploadsConfig{Dir: "uploads", MaxBytes: 30 << 20},
		RateLimit: RateLimitConfig{RequestsPerMinute: 600},
		Jobs:      JobsConfig{ReconcileSchedule: "@every 15m"},
		Mail:      MailConfig{Port: 587, StartTLS: true},
	}
}

// LoadConfig layers the defaults, the YAML file at path if it exists, and
// the environment. A .env file is read into the environment first. In
// production the secrets must have been changed from their defaults.
func LoadConfig(path string, isProd bool) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("err loading .env: %w", err)
	}

	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("err loading defaults: %w", err)
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("err loading config file %s: %w", path, err)
			}
		} else if isProd {
			return nil, fmt.Errorf("config file %s required in production: %w", path, err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("err loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("err decoding config: %w", err)
	}
	if isProd {
		cfg.Env = "prod"
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if cfg.IsProd() {
		if err := checkSecrets(cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// envKey maps SOCIAPI_CACHE__BREAKER__TIMEOUT to cache.breaker.timeout.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

func checkSecrets(cfg Config) error {
	def := DefaultConfig().Auth
	switch {
	case cfg.Auth.AccessSecret == def.AccessSecret,
		cfg.Auth.RefreshSecret == def.RefreshSecret,
		cfg.Auth.Pepper == def.Pepper,
		cfg.Auth.HMACKey == def.HMACKey:
		return errors.New("auth secrets must be set in production")
	}
	return nil
}
