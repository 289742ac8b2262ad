package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Provider   ProviderConfig   `mapstructure:"provider"`
	Generation GenerationConfig `mapstructure:"generation"`
	Breaker    BreakerConfig    `mapstructure:"breaker"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Log        LogConfig        `mapstructure:"log"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Mode            string        `mapstructure:"mode"` // gin mode: debug, release, test
}

// ProviderConfig holds image provider configuration.
type ProviderConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"` // empty selects the getimg.ai default
	Timeout time.Duration `mapstructure:"timeout"`
}

// GenerationConfig holds task lifecycle configuration.
type GenerationConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	WaitTimeout   time.Duration `mapstructure:"wait_timeout"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	TaskTTL       time.Duration `mapstructure:"task_ttl"`
}

// BreakerConfig holds provider circuit breaker configuration.
type BreakerConfig struct {
	FailureThreshold uint32        `mapstructure:"failure_threshold"`
	MaxRequests      uint32        `mapstructure:"max_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
}

// HTTPClientConfig holds HTTP client configuration for connection pooling.
type HTTPClientConfig struct {
	// Connection pool settings
	MaxIdleConns        int           `mapstructure:"max_idle_conns"`
	MaxIdleConnsPerHost int           `mapstructure:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `mapstructure:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `mapstructure:"idle_conn_timeout"`

	// Timeout settings
	DialTimeout         time.Duration `mapstructure:"dial_timeout"`
	TLSHandshakeTimeout time.Duration `mapstructure:"tls_handshake_timeout"`
	ResponseTimeout     time.Duration `mapstructure:"response_timeout"`

	KeepAlive time.Duration `mapstructure:"keep_alive"`
}

// RedisConfig holds Redis configuration. An empty address keeps tasks in memory.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether Redis is configured.
func (c *RedisConfig) Enabled() bool {
	return c.Address != ""
}

// StorageConfig holds object storage configuration for public artifacts.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`
	Prefix          string `mapstructure:"prefix"`
	PublicBaseURL   string `mapstructure:"public_base_url"`
}

// Enabled reports whether artifact publishing is configured.
func (c *StorageConfig) Enabled() bool {
	return c.Bucket != ""
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	AllowOrigins []string `mapstructure:"allow_origins"`
}

// MetricsConfig holds Prometheus configuration.
type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

// Load loads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/imagegen")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults and env
	}

	// IMAGEGEN_PROVIDER_BASE_URL maps to provider.base_url
	v.SetEnvPrefix("IMAGEGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Short names for secrets
	if key := os.Getenv("IMAGEGEN_API_KEY"); key != "" {
		cfg.Provider.APIKey = key
	}
	if password := os.Getenv("IMAGEGEN_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}
	if key := os.Getenv("IMAGEGEN_STORAGE_SECRET_KEY"); key != "" {
		cfg.Storage.SecretAccessKey = key
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 3*time.Minute)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.mode", "release")

	// Provider defaults
	v.SetDefault("provider.api_key", "")
	v.SetDefault("provider.base_url", "")
	v.SetDefault("provider.timeout", 2*time.Minute)

	// Generation defaults
	v.SetDefault("generation.poll_interval", time.Second)
	v.SetDefault("generation.wait_timeout", 2*time.Minute)
	v.SetDefault("generation.max_concurrent", 10)
	v.SetDefault("generation.task_ttl", time.Hour)

	// Breaker defaults
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.max_requests", 1)
	v.SetDefault("breaker.interval", 60*time.Second)
	v.SetDefault("breaker.timeout", 30*time.Second)

	// HTTP client defaults
	v.SetDefault("http_client.max_idle_conns", 100)
	v.SetDefault("http_client.max_idle_conns_per_host", 10)
	v.SetDefault("http_client.max_conns_per_host", 0)
	v.SetDefault("http_client.idle_conn_timeout", 90*time.Second)
	v.SetDefault("http_client.dial_timeout", 10*time.Second)
	v.SetDefault("http_client.tls_handshake_timeout", 10*time.Second)
	v.SetDefault("http_client.response_timeout", 0)
	v.SetDefault("http_client.keep_alive", 30*time.Second)

	// Redis defaults
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Storage defaults
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.region", "auto")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.prefix", "generations/")
	v.SetDefault("storage.public_base_url", "")

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// CORS defaults
	v.SetDefault("cors.allow_origins", []string{"*"})

	// Metrics defaults
	v.SetDefault("metrics.namespace", "imagegen")
}
