package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Worker   WorkerConfig
	Gateway  GatewayConfig
}

type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeoutSeconds"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

type WorkerConfig struct {
	PollInterval        time.Duration `mapstructure:"poll_interval"`
	SendTimeout         time.Duration `mapstructure:"send_timeout"`
	DispatchBatchSize   int           `mapstructure:"dispatch_batch_size"`
	DispatchInterval    time.Duration `mapstructure:"dispatch_interval"`
	ReconcileInterval   time.Duration `mapstructure:"reconcile_interval"`
	ReconcileStaleAfter time.Duration `mapstructure:"reconcile_stale_after"`
}

type GatewayConfig struct {
	ProviderCacheTTL time.Duration `mapstructure:"provider_cache_ttl"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.timeoutSeconds", 30)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("redis.url", "redis://localhost:6379/0")
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("worker.poll_interval", time.Second)
	viper.SetDefault("worker.send_timeout", 15*time.Second)
	viper.SetDefault("worker.dispatch_batch_size", 100)
	viper.SetDefault("worker.dispatch_interval", time.Minute)
	viper.SetDefault("worker.reconcile_interval", 5*time.Minute)
	viper.SetDefault("worker.reconcile_stale_after", 10*time.Minute)
	viper.SetDefault("gateway.provider_cache_ttl", 5*time.Minute)

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine; defaults plus env cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}
