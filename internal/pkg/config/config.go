package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Search    SearchConfig    `mapstructure:"search"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json or text
}

// UpstreamConfig points at the external listing data source.
type UpstreamConfig struct {
	BaseURL  string `mapstructure:"base_url"`
	ProxyURL string `mapstructure:"proxy_url"` // empty = direct connection
	Timeout  int    `mapstructure:"timeout"`   // seconds
	Currency string `mapstructure:"currency"`
	Language string `mapstructure:"language"`
	Zoom     int    `mapstructure:"zoom"`
}

// SearchConfig tunes the comps search.
type SearchConfig struct {
	BoxPolicy          string  `mapstructure:"box_policy"` // "flat" or "corrected"
	MaxRadiusMiles     float64 `mapstructure:"max_radius_miles"`
	DefaultRadiusMiles float64 `mapstructure:"default_radius_miles"`
	CacheTTL           int     `mapstructure:"cache_ttl"` // seconds
}

// AuthConfig carries the API token. An empty token disables authentication;
// there is intentionally no baked-in default.
type AuthConfig struct {
	Token string `mapstructure:"token"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type DatabaseConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	OTLPAddr    string `mapstructure:"otlp_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15)
	v.SetDefault("server.write_timeout", 60)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("upstream.base_url", "https://www.airbnb.com")
	v.SetDefault("upstream.proxy_url", "")
	v.SetDefault("upstream.timeout", 60)
	v.SetDefault("upstream.currency", "USD")
	v.SetDefault("upstream.language", "en")
	v.SetDefault("upstream.zoom", 12)
	v.SetDefault("search.box_policy", "corrected")
	v.SetDefault("search.max_radius_miles", 50.0)
	v.SetDefault("search.default_radius_miles", 5.0)
	v.SetDefault("search.cache_ttl", 300)
	v.SetDefault("auth.token", "")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "aircomps")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "aircomps")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.otlp_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", false)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: AIRCOMPS_UPSTREAM_PROXY_URL → upstream.proxy_url
	v.SetEnvPrefix("AIRCOMPS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Upstream.BaseURL == "" {
		errs = append(errs, "upstream.base_url is required")
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, "upstream.timeout must be positive")
	}
	if p := c.Search.BoxPolicy; p != "flat" && p != "corrected" {
		errs = append(errs, fmt.Sprintf("search.box_policy must be flat or corrected, got %q", p))
	}
	if c.Search.MaxRadiusMiles <= 0 {
		errs = append(errs, "search.max_radius_miles must be positive")
	}
	if c.Search.DefaultRadiusMiles <= 0 || c.Search.DefaultRadiusMiles > c.Search.MaxRadiusMiles {
		errs = append(errs, "search.default_radius_miles must be positive and <= search.max_radius_miles")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Database.Enabled {
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required when database.enabled")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required when database.enabled")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required when database.enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
