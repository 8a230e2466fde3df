package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Catalog        CatalogConfig        `mapstructure:"catalog"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Kafka          KafkaConfig          `mapstructure:"kafka"`
	Session        SessionConfig        `mapstructure:"session"`
	Recommendation RecommendationConfig `mapstructure:"recommendation"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	Security       SecurityConfig       `mapstructure:"security"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

// RedisConfig configures the recommendation cache. An empty Addr disables
// caching entirely; the service then runs with an always-miss store.
type RedisConfig struct {
	Addr       string        `mapstructure:"addr"`
	Namespace  string        `mapstructure:"namespace"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
	OpTimeout  time.Duration `mapstructure:"op_timeout"`
	RecentTTL  time.Duration `mapstructure:"recent_ttl"`
	RecentMax  int64         `mapstructure:"recent_max"`
}

// KafkaConfig configures the behavioral event sink. No brokers means the
// sink degrades to a no-op at construction.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type SessionConfig struct {
	MaxSeeds int           `mapstructure:"max_seeds"`
	MaxIdle  time.Duration `mapstructure:"max_idle"`
}

type RecommendationConfig struct {
	DefaultLimit int           `mapstructure:"default_limit"`
	MaxLimit     int           `mapstructure:"max_limit"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type SecurityConfig struct {
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

func Load() (*Config, error) {
	viper.SetConfigName("app")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	setDefaults()

	// Environment variable overrides
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional, continue with env vars and defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.mode", "development")

	viper.SetDefault("catalog.path", "./data/tracks.csv")

	// Redis defaults; addr intentionally empty so a bare checkout runs
	// cacheless instead of failing.
	viper.SetDefault("redis.addr", "")
	viper.SetDefault("redis.namespace", "rec")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.op_timeout", "500ms")
	viper.SetDefault("redis.recent_ttl", "1h")
	viper.SetDefault("redis.recent_max", 100)

	viper.SetDefault("kafka.brokers", []string{})
	viper.SetDefault("kafka.topic", "track-events")
	viper.SetDefault("kafka.write_timeout", "2s")

	viper.SetDefault("session.max_seeds", 20)
	viper.SetDefault("session.max_idle", "1h")

	viper.SetDefault("recommendation.default_limit", 50)
	viper.SetDefault("recommendation.max_limit", 200)
	viper.SetDefault("recommendation.cache_ttl", "15m")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "text")

	viper.SetDefault("security.cors.allowed_origins", []string{"*"})
	viper.SetDefault("security.cors.allowed_methods", []string{"GET", "POST", "OPTIONS"})
	viper.SetDefault("security.cors.allowed_headers", []string{"*"})
}
