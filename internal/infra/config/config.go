package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Upload     UploadConfig     `mapstructure:"upload"`
	Broker     BrokerConfig     `mapstructure:"broker"`
	HTTPClient HTTPClientConfig `mapstructure:"http_client"`
	Redis      RedisConfig      `mapstructure:"redis"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	EnableSwagger   bool          `mapstructure:"enable_swagger"`
}

// StorageConfig holds object storage and authorization settings.
type StorageConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	Bucket          string `mapstructure:"bucket"`

	// PublicBaseURL prefixes keys in media listings. Empty derives the
	// virtual-hosted AWS URL from bucket and region.
	PublicBaseURL string `mapstructure:"public_base_url"`

	PresignExpiry       time.Duration `mapstructure:"presign_expiry"`
	KeyRandomSuffix     bool          `mapstructure:"key_random_suffix"`
	AllowedContentTypes []string      `mapstructure:"allowed_content_types"`
	ListPrefix          string        `mapstructure:"list_prefix"`
	ListMaxKeys         int32         `mapstructure:"list_max_keys"`
}

// ResolvedPublicBaseURL returns PublicBaseURL or the default AWS bucket URL.
func (c *StorageConfig) ResolvedPublicBaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com", c.Bucket, c.Region)
}

// UploadConfig holds client-side orchestrator settings. Sizes accept
// human-readable strings such as "50MiB".
type UploadConfig struct {
	SizeThreshold        string        `mapstructure:"size_threshold"`
	ChunkSize            string        `mapstructure:"chunk_size"`
	PartConcurrency      int           `mapstructure:"part_concurrency"`
	MaxConcurrentUploads int           `mapstructure:"max_concurrent_uploads"`
	AbortOnFailure       bool          `mapstructure:"abort_on_failure"`
	RetireDelay          time.Duration `mapstructure:"retire_delay"`
}

// SizeThresholdBytes parses SizeThreshold.
func (c *UploadConfig) SizeThresholdBytes() (int64, error) {
	return parseSize("upload.size_threshold", c.SizeThreshold)
}

// ChunkSizeBytes parses ChunkSize.
func (c *UploadConfig) ChunkSizeBytes() (int64, error) {
	return parseSize("upload.chunk_size", c.ChunkSize)
}

// BrokerConfig holds settings for talking to the authorization broker.
type BrokerConfig struct {
	BaseURL string `mapstructure:"base_url"`

	// Circuit breaker settings
	BreakerMaxRequests      uint32        `mapstructure:"breaker_max_requests"`
	BreakerInterval         time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout          time.Duration `mapstructure:"breaker_timeout"`
	BreakerFailureThreshold uint32        `mapstructure:"breaker_failure_threshold"`
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

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// RateLimitConfig limits authorization requests per client IP.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load loads configuration from a .env file, config.yaml and environment.
func Load() (*Config, error) {
	return LoadWith(viper.New())
}

// LoadWith loads configuration into v. Callers bind flags to v before
// calling it.
func LoadWith(v *viper.Viper) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	v.AddConfigPath("/etc/mediaupload")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix("MEDIAUPLOAD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	applyStorageEnv(&cfg.Storage)
	if password := os.Getenv("MEDIAUPLOAD_REDIS_PASSWORD"); password != "" {
		cfg.Redis.Password = password
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyStorageEnv applies the conventional AWS variable names on top of
// file and prefixed values.
func applyStorageEnv(s *StorageConfig) {
	if region := os.Getenv("AWS_REGION"); region != "" {
		s.Region = region
	}
	if id := os.Getenv("AWS_ACCESS_KEY_ID"); id != "" {
		s.AccessKeyID = id
	}
	if secret := os.Getenv("AWS_SECRET_ACCESS_KEY"); secret != "" {
		s.SecretAccessKey = secret
	}
	if bucket := os.Getenv("AWS_S3_MEDIA_BUCKET"); bucket != "" {
		s.Bucket = bucket
	}
	if base := os.Getenv("AWS_S3_PUBLIC_BASE_URL"); base != "" {
		s.PublicBaseURL = base
	}
}

// Validate checks values that cannot be caught by unmarshalling.
func (c *Config) Validate() error {
	if _, err := c.Upload.SizeThresholdBytes(); err != nil {
		return err
	}
	if _, err := c.Upload.ChunkSizeBytes(); err != nil {
		return err
	}
	if c.Upload.PartConcurrency < 1 {
		return fmt.Errorf("upload.part_concurrency must be at least 1, got %d", c.Upload.PartConcurrency)
	}
	return nil
}

func parseSize(name, s string) (int64, error) {
	n, err := units.RAMInBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %q", name, s)
	}
	return n, nil
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.enable_swagger", true)

	// Storage defaults
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presign_expiry", 5*time.Minute)
	v.SetDefault("storage.key_random_suffix", true)
	v.SetDefault("storage.allowed_content_types", []string{})
	v.SetDefault("storage.list_max_keys", 1000)

	// Upload defaults
	v.SetDefault("upload.size_threshold", "50MiB")
	v.SetDefault("upload.chunk_size", "8MiB")
	v.SetDefault("upload.part_concurrency", 1)
	v.SetDefault("upload.max_concurrent_uploads", 0)
	v.SetDefault("upload.abort_on_failure", false)
	v.SetDefault("upload.retire_delay", 1500*time.Millisecond)

	// Broker client defaults
	v.SetDefault("broker.base_url", "http://localhost:8080")
	v.SetDefault("broker.breaker_max_requests", 1)
	v.SetDefault("broker.breaker_interval", 60*time.Second)
	v.SetDefault("broker.breaker_timeout", 30*time.Second)
	v.SetDefault("broker.breaker_failure_threshold", 5)

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
	v.SetDefault("redis.db", 0)

	// Rate limit defaults
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.limit", 120)
	v.SetDefault("rate_limit.window", time.Minute)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}
