package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Server   ServerConfig
	Worker   WorkerConfig
	Fetch    FetchConfig
	Provider ProviderConfig
	Cache    CacheConfig
	Redis    RedisConfig
	Database DatabaseConfig
	MinIO    MinIOConfig
	RabbitMQ RabbitMQConfig
}

type ServerConfig struct {
	Port            int           `envconfig:"API_PORT" default:"5001"`
	ReadTimeout     time.Duration `envconfig:"API_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"API_WRITE_TIMEOUT" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"API_SHUTDOWN_TIMEOUT" default:"10s"`
	AllowedOrigins  []string      `envconfig:"API_ALLOWED_ORIGINS" default:"*"`
}

type WorkerConfig struct {
	MaxRetries      int           `envconfig:"WORKER_MAX_RETRIES" default:"3"`
	ShutdownTimeout time.Duration `envconfig:"WORKER_SHUTDOWN_TIMEOUT" default:"30s"`
	PurgeInterval   time.Duration `envconfig:"WORKER_PURGE_INTERVAL" default:"10m"`
	MessageTTL      time.Duration `envconfig:"WORKER_MESSAGE_TTL" default:"1h"`
}

// FetchConfig controls the fetch engine shared by the API, CLI and worker.
type FetchConfig struct {
	CacheTTL        time.Duration `envconfig:"FETCH_CACHE_TTL" default:"30m"`
	PageCap         int           `envconfig:"FETCH_PAGE_CAP" default:"50"`
	DefaultKeywords string        `envconfig:"FETCH_DEFAULT_KEYWORDS" default:"KPOP DEMON HUNTERS"`
	DefaultLimit    int           `envconfig:"FETCH_DEFAULT_LIMIT" default:"100"`
	MaxLimit        int           `envconfig:"FETCH_MAX_LIMIT" default:"500"`
}

// Keywords splits DefaultKeywords on commas.
func (c FetchConfig) Keywords() []string {
	return strings.Split(c.DefaultKeywords, ",")
}

type ProviderConfig struct {
	SearchURL      string        `envconfig:"PROVIDER_SEARCH_URL" default:"https://www.tiktok.com/api/search/general/full/"`
	Timeout        time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"15s"`
	RequestsPerSec float64       `envconfig:"PROVIDER_RPS" default:"2"`
	Burst          int           `envconfig:"PROVIDER_BURST" default:"1"`
	UserAgent      string        `envconfig:"PROVIDER_USER_AGENT" default:"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"`
	Cookie         string        `envconfig:"PROVIDER_COOKIE"`
}

// CacheConfig selects the cache backend. Backend is one of redis, postgres, bolt or none.
type CacheConfig struct {
	Backend     string        `envconfig:"CACHE_BACKEND" default:"redis"`
	PingTimeout time.Duration `envconfig:"CACHE_PING_TIMEOUT" default:"3s"`
	BoltPath    string        `envconfig:"BOLT_PATH" default:"clipscout.db"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type DatabaseConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"clipscout"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"clipscout"`
	DBName   string `envconfig:"POSTGRES_DB" default:"clipscout"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type MinIOConfig struct {
	Enabled   bool   `envconfig:"MINIO_ENABLED" default:"false"`
	Endpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	AccessKey string `envconfig:"MINIO_ACCESS_KEY" default:"minioadmin"`
	SecretKey string `envconfig:"MINIO_SECRET_KEY" default:"minioadmin"`
	Bucket    string `envconfig:"MINIO_BUCKET" default:"snapshots"`
	UseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
	Create    bool   `envconfig:"MINIO_CREATE_BUCKET" default:"true"`
}

type RabbitMQConfig struct {
	Enabled  bool   `envconfig:"RABBITMQ_ENABLED" default:"false"`
	Host     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	Port     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	User     string `envconfig:"RABBITMQ_USER" default:"clipscout"`
	Password string `envconfig:"RABBITMQ_PASSWORD" default:"clipscout"`
	VHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
}

func (c RabbitMQConfig) URL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%d%s",
		c.User, c.Password, c.Host, c.Port, c.VHost,
	)
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Fetch.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// validate rejects values the cache backends would interpret differently.
// Redis treats a zero TTL as no expiry while bolt and postgres treat it as already expired.
func (c FetchConfig) validate() error {
	if c.CacheTTL <= 0 {
		return fmt.Errorf("FETCH_CACHE_TTL must be positive, got %s", c.CacheTTL)
	}
	if c.PageCap < 1 {
		return fmt.Errorf("FETCH_PAGE_CAP must be at least 1, got %d", c.PageCap)
	}
	if c.DefaultLimit < 1 || c.DefaultLimit > c.MaxLimit {
		return fmt.Errorf("FETCH_DEFAULT_LIMIT must be between 1 and FETCH_MAX_LIMIT (%d), got %d", c.MaxLimit, c.DefaultLimit)
	}
	return nil
}
