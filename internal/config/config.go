package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"

	AuthModeJWT    = "jwt"
	AuthModeHeader = "header"
)

type RouteRule struct {
	Methods    []string `mapstructure:"methods"`
	PathPrefix string   `mapstructure:"path_prefix"`
}

type Config struct {
	Server struct {
		Addr         string        `mapstructure:"addr"`
		Mode         string        `mapstructure:"mode"`
		ReadTimeout  time.Duration `mapstructure:"read_timeout"`
		WriteTimeout time.Duration `mapstructure:"write_timeout"`
	} `mapstructure:"server"`

	Membership struct {
		CacheTTLMinutes int           `mapstructure:"cache_ttl_minutes"`
		CacheBackend    string        `mapstructure:"cache_backend"`
		LookupTimeout   time.Duration `mapstructure:"lookup_timeout"`
		JanitorInterval time.Duration `mapstructure:"janitor_interval"`
		MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	} `mapstructure:"membership"`

	Redis struct {
		URL      string `mapstructure:"url"`
		PoolSize int    `mapstructure:"pool_size"`
	} `mapstructure:"redis"`

	Directory struct {
		BaseURL    string        `mapstructure:"base_url"`
		Token      string        `mapstructure:"token"`
		Timeout    time.Duration `mapstructure:"timeout"`
		RetryCount int           `mapstructure:"retry_count"`
	} `mapstructure:"directory"`

	Auth struct {
		Mode string `mapstructure:"mode"`
		JWT  struct {
			Secret   string `mapstructure:"secret"`
			Issuer   string `mapstructure:"issuer"`
			Audience string `mapstructure:"audience"`
		} `mapstructure:"jwt"`
		HeaderKeys struct {
			ObjectID string `mapstructure:"object_id"`
		} `mapstructure:"header_keys"`
	} `mapstructure:"auth"`

	Gate struct {
		Rules []RouteRule `mapstructure:"rules"`
	} `mapstructure:"gate"`

	Upstream struct {
		URL            string `mapstructure:"url"`
		ForwardHeaders struct {
			TeamID string `mapstructure:"team_id"`
			UserID string `mapstructure:"user_id"`
		} `mapstructure:"forward_headers"`
	} `mapstructure:"upstream"`

	Observability struct {
		ServiceVersion     string        `mapstructure:"service_version"`
		TraceEnabled       bool          `mapstructure:"trace_enabled"`
		TracingEndpointURL string        `mapstructure:"tracing_endpoint_url"`
		MetricsEnabled     bool          `mapstructure:"metrics_enabled"`
		MetricsEndpointURL string        `mapstructure:"metrics_endpoint_url"`
		MetricsInterval    time.Duration `mapstructure:"metrics_interval"`
		LogLevel           string        `mapstructure:"log_level"`
		Format             string        `mapstructure:"log_format"`
		LogSource          bool          `mapstructure:"log_source"`
	} `mapstructure:"observability"`
}

// CacheTTL is the membership cache TTL as a duration.
func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Membership.CacheTTLMinutes) * time.Minute
}

func (c *Config) Validate() error {
	var errs []error

	if c.Membership.CacheTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("membership.cache_ttl_minutes must be positive, got %d", c.Membership.CacheTTLMinutes))
	}

	switch c.Membership.CacheBackend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required when membership.cache_backend is redis"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown membership.cache_backend %q", c.Membership.CacheBackend))
	}

	if _, err := url.ParseRequestURI(c.Directory.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("directory.base_url: %w", err))
	}
	if _, err := url.ParseRequestURI(c.Upstream.URL); err != nil {
		errs = append(errs, fmt.Errorf("upstream.url: %w", err))
	}

	switch c.Auth.Mode {
	case AuthModeJWT:
		if c.Auth.JWT.Secret == "" {
			errs = append(errs, errors.New("auth.jwt.secret is required in jwt mode"))
		}
	case AuthModeHeader:
		if c.Auth.HeaderKeys.ObjectID == "" {
			errs = append(errs, errors.New("auth.header_keys.object_id is required in header mode"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown auth.mode %q", c.Auth.Mode))
	}

	for i, rule := range c.Gate.Rules {
		if !strings.HasPrefix(rule.PathPrefix, "/") {
			errs = append(errs, fmt.Errorf("gate.rules[%d].path_prefix must start with /", i))
		}
	}

	return errors.Join(errs...)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)

	v.SetDefault("membership.cache_ttl_minutes", 5)
	v.SetDefault("membership.cache_backend", CacheBackendMemory)
	v.SetDefault("membership.lookup_timeout", 5*time.Second)
	v.SetDefault("membership.janitor_interval", time.Minute)
	v.SetDefault("membership.max_body_bytes", 1<<20)

	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("directory.timeout", 10*time.Second)
	v.SetDefault("directory.retry_count", 0)

	v.SetDefault("auth.mode", AuthModeJWT)
	v.SetDefault("auth.header_keys.object_id", "X-Auth-Request-Oid")

	v.SetDefault("gate.rules", []map[string]any{
		{
			"methods":     []string{"POST", "PUT", "PATCH", "DELETE"},
			"path_prefix": "/api/",
		},
	})

	v.SetDefault("upstream.forward_headers.team_id", "X-Team-Id")
	v.SetDefault("upstream.forward_headers.user_id", "X-User-Id")

	v.SetDefault("observability.service_version", "dev")
	v.SetDefault("observability.metrics_interval", 30*time.Second)
	v.SetDefault("observability.log_level", "info")
	v.SetDefault("observability.log_format", "json")
}

func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvPrefix("TEAMS_GATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		v.SetConfigName(fmt.Sprintf("config.%s", env))
		if err := v.MergeInConfig(); err != nil {
			slog.Info("No environment-specific config (optional)", slog.String("env", env))
		} else {
			slog.Info("Environment-specific config loaded", slog.String("env", env))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		slog.Default().Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	return cfg
}
