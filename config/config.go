package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default cross-origin allow-list: the local development front end and the deployed one.
var DefaultAllowedOrigins = []string{"http://localhost:3000", "https://ctb-agh.netlify.app"}

// DefaultTrustedProxies are the peer networks whose forwarding headers are
// believed: loopback and the private ranges a reverse proxy usually sits in.
var DefaultTrustedProxies = []string{
	"127.0.0.0/8",
	"::1/128",
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"fc00::/7",
}

// EnvPrefix is the prefix for environment variable overrides (CTB_API_PORT, ...).
const EnvPrefix = "CTB"

// RateLimitConfig controls per-client request throttling.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"` // <= 0 disables the limiter
	Burst             int     `mapstructure:"burst"`
}

// APIConfig holds the HTTP surface settings
type APIConfig struct {
	Host            string          `mapstructure:"host"`
	Port            int             `mapstructure:"port"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	ReadTimeout     time.Duration   `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration   `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout"`
	TrustProxy      bool            `mapstructure:"trust_proxy"`
	TrustedProxies  []string        `mapstructure:"trusted_proxies"` // CIDRs or single IPs
	SwaggerEnabled  bool            `mapstructure:"swagger_enabled"`
	BodyLimit       int64           `mapstructure:"body_limit"` // bytes
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// Addr returns the listen address in host:port form.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds the SQLite settings.
type DatabaseConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"`
}

// RedisConfig holds the optional Redis cache settings.
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	PoolSize int           `mapstructure:"pool_size"`
	QuoteTTL time.Duration `mapstructure:"quote_ttl"`
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	JWTExpiry time.Duration `mapstructure:"jwt_expiry"`
	Issuer    string        `mapstructure:"issuer"`
}

// LogConfig selects the logger level and encoding.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // console or json
}

// Config holds all configuration for the ctb server
type Config struct {
	App struct {
		Name string `mapstructure:"name"`
	} `mapstructure:"app"`

	API      APIConfig      `mapstructure:"api"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`

	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`

	Log LogConfig `mapstructure:"log"`
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ctb")

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 5000)
	v.SetDefault("api.allowed_origins", DefaultAllowedOrigins)
	v.SetDefault("api.read_timeout", 15*time.Second)
	v.SetDefault("api.write_timeout", 30*time.Second)
	v.SetDefault("api.shutdown_timeout", 10*time.Second)
	v.SetDefault("api.trust_proxy", true) // served behind a reverse proxy
	v.SetDefault("api.trusted_proxies", DefaultTrustedProxies)
	v.SetDefault("api.swagger_enabled", false)
	v.SetDefault("api.body_limit", 1<<20)
	v.SetDefault("api.rate_limit.requests_per_second", 50)
	v.SetDefault("api.rate_limit.burst", 100)

	v.SetDefault("database.sqlite_path", "./data/ctb.db")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.quote_ttl", 30*time.Second)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_expiry", 24*time.Hour)
	v.SetDefault("auth.issuer", "ctb")

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// newViper returns a viper instance with defaults and env overrides applied.
func newViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig loads configuration from file and environment variables.
// An empty path searches for config.yaml in . and ./config; a missing file
// is not an error and yields defaults plus env overrides.
func LoadConfig(path string) (*Config, string, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, "", fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateConfig(&cfg); err != nil {
		return nil, "", fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, v.ConfigFileUsed(), nil
}

// Default returns the built-in configuration without reading files or the environment.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// validateConfig validates the configuration for security and correctness
func validateConfig(config *Config) error {
	if strings.TrimSpace(config.App.Name) == "" {
		return errors.New("app.name cannot be empty")
	}

	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid API port: %d (must be 1-65535)", config.API.Port)
	}

	if len(config.API.AllowedOrigins) == 0 {
		return errors.New("api.allowed_origins must list at least one origin")
	}
	for _, origin := range config.API.AllowedOrigins {
		if err := validateOrigin(origin); err != nil {
			return err
		}
	}

	for _, proxy := range config.API.TrustedProxies {
		if err := validateTrustedProxy(proxy); err != nil {
			return err
		}
	}

	if config.API.BodyLimit <= 0 {
		return fmt.Errorf("api.body_limit must be positive, got %d", config.API.BodyLimit)
	}
	if config.API.RateLimit.RequestsPerSecond > 0 && config.API.RateLimit.Burst < 1 {
		return fmt.Errorf("api.rate_limit.burst must be at least 1 when rate limiting is enabled, got %d", config.API.RateLimit.Burst)
	}

	if strings.TrimSpace(config.Database.SQLitePath) == "" {
		return errors.New("database.sqlite_path cannot be empty")
	}

	if config.Redis.Enabled && strings.TrimSpace(config.Redis.Addr) == "" {
		return errors.New("redis.addr cannot be empty when redis is enabled")
	}

	if config.Auth.JWTSecret != "" && len(config.Auth.JWTSecret) < 32 {
		return errors.New("auth.jwt_secret must be at least 32 characters (256 bits)")
	}
	if config.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("auth.jwt_expiry must be positive, got %v", config.Auth.JWTExpiry)
	}

	switch config.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", config.Log.Format)
	}

	return nil
}

// validateOrigin accepts only explicit scheme://host[:port] origins.
func validateOrigin(origin string) error {
	if origin == "*" || strings.Contains(origin, "*") {
		return fmt.Errorf("invalid allowed origin %q: wildcards are not permitted", origin)
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return fmt.Errorf("invalid allowed origin %q: %w", origin, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid allowed origin %q: scheme must be http or https", origin)
	}
	if parsed.Host == "" || parsed.Path != "" || parsed.RawQuery != "" {
		return fmt.Errorf("invalid allowed origin %q: must be scheme://host[:port]", origin)
	}
	return nil
}

// validateTrustedProxy accepts a CIDR network or a single IP address.
func validateTrustedProxy(entry string) error {
	if strings.Contains(entry, "/") {
		if _, _, err := net.ParseCIDR(entry); err != nil {
			return fmt.Errorf("invalid trusted proxy %q: %w", entry, err)
		}
		return nil
	}
	if net.ParseIP(entry) == nil {
		return fmt.Errorf("invalid trusted proxy %q: not an IP address or CIDR", entry)
	}
	return nil
}
