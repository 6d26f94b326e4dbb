// Package config loads service settings from an optional YAML file with
// MEMBERGRAPH_ environment overrides (MEMBERGRAPH_GRAPHQL_MAX_DEPTH=7).
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hanpama/membergraph/internal/store"
	"github.com/hanpama/membergraph/internal/validation"
)

// Store drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MEMBERGRAPH"

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	GraphQL GraphQLConfig `mapstructure:"graphql"`
	Store   StoreConfig   `mapstructure:"store"`
	Log     LogConfig     `mapstructure:"log"`
	Metrics MetricsConfig `mapstructure:"metrics"`
	OTel    OTelConfig    `mapstructure:"otel"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`

	// Timeout bounds every request, store calls included. 0 disables it.
	Timeout time.Duration `mapstructure:"timeout"`

	Pretty       bool     `mapstructure:"pretty"`
	MaxBodyBytes int64    `mapstructure:"max_body_bytes"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
}

type GraphQLConfig struct {
	MaxDepth int `mapstructure:"max_depth"`
}

type StoreConfig struct {
	Driver string      `mapstructure:"driver"`
	Redis  RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	UseSentinel   bool          `mapstructure:"use_sentinel"`
	SentinelAddrs []string      `mapstructure:"sentinel_addrs"`
	MasterName    string        `mapstructure:"master_name"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	MaxRetries    int           `mapstructure:"max_retries"`
	DialTimeout   time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	PoolSize      int           `mapstructure:"pool_size"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// OTelConfig enables tracing when Endpoint is set.
type OTelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

// Load reads path, or config.yaml from the working directory and
// /etc/membergraph when path is empty. A missing default file is not an
// error.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/membergraph")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	redis := store.DefaultRedisConfig()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.timeout", "10s")
	v.SetDefault("server.pretty", false)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{})

	v.SetDefault("graphql.max_depth", validation.DefaultMaxDepth)

	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.redis.addr", redis.Addr)
	v.SetDefault("store.redis.key_prefix", redis.KeyPrefix)
	v.SetDefault("store.redis.max_retries", redis.MaxRetries)
	v.SetDefault("store.redis.dial_timeout", redis.DialTimeout)
	v.SetDefault("store.redis.read_timeout", redis.ReadTimeout)
	v.SetDefault("store.redis.write_timeout", redis.WriteTimeout)
	v.SetDefault("store.redis.pool_size", redis.PoolSize)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service", "membergraph")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("invalid server.timeout %s (must not be negative)", c.Server.Timeout)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid server.max_body_bytes %d (must not be negative)", c.Server.MaxBodyBytes)
	}
	if c.GraphQL.MaxDepth < 1 {
		return fmt.Errorf("invalid graphql.max_depth %d (must be at least 1)", c.GraphQL.MaxDepth)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Store.Redis.UseSentinel {
			if c.Store.Redis.MasterName == "" || len(c.Store.Redis.SentinelAddrs) == 0 {
				return errors.New("store.redis.master_name and store.redis.sentinel_addrs are required with sentinel")
			}
		} else if c.Store.Redis.Addr == "" {
			return errors.New("store.redis.addr is required")
		}
		if c.Store.Redis.DB < 0 || c.Store.Redis.DB > 15 {
			return fmt.Errorf("invalid store.redis.db %d (must be 0-15)", c.Store.Redis.DB)
		}
	default:
		return fmt.Errorf("unknown store.driver %q (must be %s or %s)", c.Store.Driver, DriverMemory, DriverRedis)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log.format %q (must be json or console)", c.Log.Format)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics.path %q (must start with /)", c.Metrics.Path)
	}
	return nil
}

// RedisStoreConfig converts the redis section for store.NewRedis.
func (c *Config) RedisStoreConfig() *store.RedisConfig {
	r := c.Store.Redis
	return &store.RedisConfig{
		Addr:          r.Addr,
		Password:      r.Password,
		DB:            r.DB,
		UseSentinel:   r.UseSentinel,
		SentinelAddrs: r.SentinelAddrs,
		MasterName:    r.MasterName,
		KeyPrefix:     r.KeyPrefix,
		MaxRetries:    r.MaxRetries,
		DialTimeout:   r.DialTimeout,
		ReadTimeout:   r.ReadTimeout,
		WriteTimeout:  r.WriteTimeout,
		PoolSize:      r.PoolSize,
	}
}
