package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// ErrMissingAPIKey is returned when no quote API key is configured.
// The server refuses to start without one.
var ErrMissingAPIKey = errors.New("QUOTE_API_KEY (or API_KEY) not set")

// Config holds all configuration for the application
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Quote    QuoteConfig    `mapstructure:"quote"`
	Session  SessionConfig  `mapstructure:"session"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Log      LogConfig      `mapstructure:"log"`
}

type AppConfig struct {
	Port string `mapstructure:"port"`
	Env  string `mapstructure:"env"` // "local", "prod"
}

type DatabaseConfig struct {
	// URL wins over the discrete fields when set
	URL             string        `mapstructure:"url"`
	Host            string        `mapstructure:"host"`
	Port            string        `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the lib/pq connection string
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// RedisConfig is optional: an empty Addr keeps sessions and the quote cache in memory.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool { return r.Addr != "" }

type QuoteConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
	CacheSize      int           `mapstructure:"cache_size"`
	StreamInterval time.Duration `mapstructure:"stream_interval"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
	CacheSize  int           `mapstructure:"cache_size"`
}

type AuthConfig struct {
	BcryptCost int `mapstructure:"bcrypt_cost"`
}

type TradingConfig struct {
	StartingCash string `mapstructure:"starting_cash"`
}

type LogConfig struct {
	Level   string `mapstructure:"level"`
	File    string `mapstructure:"file"` // empty means stdout
	MaxSize int    `mapstructure:"max_size"`
	JSON    bool   `mapstructure:"json"`
}

// Load reads configuration from .env files, environment variables, and defaults.
// With no arguments it looks for ".env" in the working directory.
func Load(envFiles ...string) (*Config, error) {
	v := viper.New()

	// .env entries become real env vars; a missing file is fine
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	setDefaults(v)

	// "quote.api_key" -> "QUOTE_API_KEY"
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit binds so Unmarshal sees flat env vars for nested keys
	for _, key := range v.AllKeys() {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("binding env for %s: %w", key, err)
		}
	}
	// older deployments set a bare API_KEY
	if err := v.BindEnv("quote.api_key", "QUOTE_API_KEY", "API_KEY"); err != nil {
		return nil, fmt.Errorf("binding env for quote.api_key: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.port", ":8080")
	v.SetDefault("app.env", "local")

	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5433")
	v.SetDefault("database.user", "trader")
	v.SetDefault("database.password", "trading123")
	v.SetDefault("database.name", "trading_db")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("quote.api_key", "")
	v.SetDefault("quote.base_url", "https://cloud.iexapis.com/stable")
	v.SetDefault("quote.timeout", 5*time.Second)
	v.SetDefault("quote.cache_ttl", time.Minute)
	v.SetDefault("quote.cache_size", 512)
	v.SetDefault("quote.stream_interval", 15*time.Second)

	v.SetDefault("session.cookie_name", "session")
	v.SetDefault("session.ttl", 24*time.Hour)
	v.SetDefault("session.secure", false)
	v.SetDefault("session.cache_size", 10000)

	v.SetDefault("auth.bcrypt_cost", bcrypt.DefaultCost)

	v.SetDefault("trading.starting_cash", "10000.00")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 50)
	v.SetDefault("log.json", true)
}

// Validate checks the settings the server cannot run without
func (c *Config) Validate() error {
	if c.Quote.APIKey == "" {
		return ErrMissingAPIKey
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("auth.bcrypt_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	if c.Session.CacheSize <= 0 || c.Quote.CacheSize <= 0 {
		return errors.New("cache sizes must be positive")
	}
	return nil
}

// IsProduction reports whether gin should run in release mode
func (c *Config) IsProduction() bool {
	return c.App.Env == "prod" || c.App.Env == "release"
}
