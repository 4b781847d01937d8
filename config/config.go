// Package config provides configuration management for recall.
package config

import (
	"fmt"
	"time"
)

// Config is the global configuration for recall.
type Config struct {
	// App is the application configuration.
	App AppConfig `mapstructure:"app" validate:"required"`

	// Server is the HTTP server configuration.
	Server ServerConfig `mapstructure:"server" validate:"required"`

	// Log is the logging configuration.
	Log LogConfig `mapstructure:"log" validate:"required"`

	// Storage selects and configures the memory store adapter.
	Storage StorageConfig `mapstructure:"storage"`

	// Redis is the optional embedding cache.
	Redis RedisConfig `mapstructure:"redis"`

	// Embedding configures the embedding provider.
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Memory tunes retrieval and scoring.
	Memory MemoryConfig `mapstructure:"memory"`

	// Retention configures the TASK-tier sweeper.
	Retention RetentionConfig `mapstructure:"retention"`

	// Metrics is the observability configuration.
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `mapstructure:"tracing"`
}

// AppConfig holds application metadata and settings.
type AppConfig struct {
	// Name is the application name.
	Name string `mapstructure:"name" validate:"required"`

	// Version is the application version.
	Version string `mapstructure:"version"`

	// Environment is the runtime environment (development, staging, production).
	Environment string `mapstructure:"environment" validate:"env"`

	// Debug enables debug mode with verbose logging.
	Debug bool `mapstructure:"debug"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP API port.
	Port int `mapstructure:"port" validate:"required,min=1,max=65535"`

	// HTTP is the HTTP server configuration.
	HTTP HTTPConfig `mapstructure:"http"`

	// CORS is the CORS configuration.
	CORS CORSConfig `mapstructure:"cors"`
}

// HTTPConfig holds HTTP-specific settings.
type HTTPConfig struct {
	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// RequestTimeout bounds each API handler's context. Zero disables it.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"min=0"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`
}

// CORSConfig holds CORS settings.
type CORSConfig struct {
	// Enabled enables CORS support.
	Enabled bool `mapstructure:"enabled"`

	// AllowedOrigins is the list of allowed origins.
	AllowedOrigins []string `mapstructure:"allowed_origins"`

	// AllowedMethods is the list of allowed HTTP methods.
	AllowedMethods []string `mapstructure:"allowed_methods"`

	// AllowedHeaders is the list of allowed headers.
	AllowedHeaders []string `mapstructure:"allowed_headers"`

	// ExposedHeaders lists response headers browsers may read.
	ExposedHeaders []string `mapstructure:"exposed_headers"`

	// AllowCredentials indicates whether credentials are allowed.
	AllowCredentials bool `mapstructure:"allow_credentials"`

	// MaxAge is the maximum age of CORS preflight cache in seconds.
	MaxAge int `mapstructure:"max_age"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	// Level is the log level (debug, info, warn, error).
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`

	// Format is the output format (json, text).
	Format string `mapstructure:"format" validate:"oneof=json text"`

	// Output is the output destination (stdout, stderr, or file path).
	Output string `mapstructure:"output"`
}

// StorageConfig holds persistence settings.
type StorageConfig struct {
	// Type is the store adapter (memory, badger, sqlite).
	Type string `mapstructure:"type" validate:"oneof=memory badger sqlite"`

	// Badger is the BadgerDB configuration.
	Badger BadgerConfig `mapstructure:"badger"`

	// SQLite is the SQLite configuration.
	SQLite SQLiteConfig `mapstructure:"sqlite"`

	// Cache sizes the badger store's decoded-record cache.
	Cache CacheConfig `mapstructure:"cache"`
}

// BadgerConfig holds BadgerDB-specific settings.
type BadgerConfig struct {
	// Path is the database directory path.
	Path string `mapstructure:"path"`

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool `mapstructure:"sync_writes"`

	// ValueLogFileSize is the maximum size of value log files in bytes.
	ValueLogFileSize int64 `mapstructure:"value_log_file_size" validate:"min=0"`

	// NumVersionsToKeep is the number of versions to keep per key.
	NumVersionsToKeep int `mapstructure:"num_versions_to_keep" validate:"min=0"`
}

// SQLiteConfig holds SQLite-specific settings.
type SQLiteConfig struct {
	// Path is the database file, or ":memory:".
	Path string `mapstructure:"path"`
}

// CacheConfig sizes an in-process ristretto cache. MaxCost counts records.
type CacheConfig struct {
	NumCounters int64 `mapstructure:"num_counters" validate:"min=0"`
	MaxCost     int64 `mapstructure:"max_cost" validate:"min=0"`
}

// RedisConfig holds the embedding cache settings.
type RedisConfig struct {
	// Enabled puts a Redis cache in front of the embedding backend.
	Enabled bool `mapstructure:"enabled"`

	// Address is the Redis server address.
	Address string `mapstructure:"address"`

	// Password is the Redis password.
	Password string `mapstructure:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db" validate:"min=0"`

	// KeyPrefix is prepended to every cache key.
	KeyPrefix string `mapstructure:"key_prefix"`

	// TTL bounds the lifetime of cached vectors. Zero keeps them forever.
	TTL time.Duration `mapstructure:"ttl"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	// Provider is the backend (openai, hash).
	Provider string `mapstructure:"provider" validate:"oneof=openai hash"`

	// BaseURL is the OpenAI-compatible API root.
	BaseURL string `mapstructure:"base_url"`

	// APIKey authenticates against BaseURL.
	APIKey string `mapstructure:"api_key"`

	// Model is the embedding model name.
	Model string `mapstructure:"model"`

	// Dimension is the vector length D shared by the provider and the stores.
	Dimension int `mapstructure:"dimension" validate:"min=1"`

	// MaxInputChars truncates longer inputs before embedding.
	MaxInputChars int `mapstructure:"max_input_chars" validate:"min=0"`

	// Timeout bounds one HTTP request to the backend.
	Timeout time.Duration `mapstructure:"timeout"`

	// BatchSize caps the texts sent in one backend call.
	BatchSize int `mapstructure:"batch_size" validate:"min=0"`

	Retry     RetryConfig     `mapstructure:"retry"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RetryConfig holds the embedding retry policy.
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
	Multiplier  float64       `mapstructure:"multiplier" validate:"gte=1"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// RateLimitConfig bounds embedding requests. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"min=0"`
	Burst             int     `mapstructure:"burst" validate:"min=0"`
}

// MemoryConfig holds retrieval engine settings.
type MemoryConfig struct {
	// OverFetch multiplies the caller's limit when querying the store.
	OverFetch int `mapstructure:"over_fetch" validate:"min=1"`

	// DefaultLimit applies when a search omits its limit.
	DefaultLimit int `mapstructure:"default_limit" validate:"min=1"`

	// DefaultThreshold applies when a search omits its threshold.
	DefaultThreshold float64 `mapstructure:"default_threshold" validate:"min=0,max=1"`

	// QueryTimeout bounds one store vector query.
	QueryTimeout time.Duration `mapstructure:"query_timeout"`

	// EmbedTimeout bounds one query embedding.
	EmbedTimeout time.Duration `mapstructure:"embed_timeout"`

	Scoring   ScoringConfig   `mapstructure:"scoring"`
	Strategic StrategicConfig `mapstructure:"strategic"`
}

// ScoringConfig holds the hybrid scorer tuning.
type ScoringConfig struct {
	RecencyWeight   float64 `mapstructure:"recency_weight" validate:"min=0,max=1"`
	HalfLifeDays    float64 `mapstructure:"half_life_days" validate:"gt=0"`
	FrequencyWeight float64 `mapstructure:"frequency_weight" validate:"min=0,max=1"`
	FrequencyCap    float64 `mapstructure:"frequency_cap" validate:"min=0,max=1"`
}

// StrategicConfig holds the three-bucket context shape.
type StrategicConfig struct {
	PersonalLimit     int      `mapstructure:"personal_limit" validate:"min=0"`
	ProjectLimit      int      `mapstructure:"project_limit" validate:"min=0"`
	TaskLimit         int      `mapstructure:"task_limit" validate:"min=0"`
	ProjectThreshold  float64  `mapstructure:"project_threshold" validate:"min=0,max=1"`
	TaskThreshold     float64  `mapstructure:"task_threshold" validate:"min=0,max=1"`
	TaskRecencyWeight float64  `mapstructure:"task_recency_weight" validate:"min=0,max=1"`
	GoalKeywords      []string `mapstructure:"goal_keywords"`
}

// RetentionConfig holds TASK-tier retention settings.
type RetentionConfig struct {
	// Enabled starts the periodic sweeper with the server.
	Enabled bool `mapstructure:"enabled"`

	// Window is the maximum age of a TASK memory.
	Window time.Duration `mapstructure:"window" validate:"gt=0"`

	// Interval is the time between sweeps.
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

// MetricsConfig holds observability settings.
type MetricsConfig struct {
	// Enabled enables metrics collection.
	Enabled bool `mapstructure:"enabled"`

	// Path is the metrics endpoint path.
	Path string `mapstructure:"path"`

	// Port is the metrics server port.
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// Enabled enables distributed tracing.
	Enabled bool `mapstructure:"enabled"`

	// Exporter is the span exporter (otlp).
	Exporter string `mapstructure:"exporter" validate:"oneof=otlp"`

	// Endpoint is the OTLP/gRPC collector endpoint.
	Endpoint string `mapstructure:"endpoint"`

	// Timeout bounds one export.
	Timeout time.Duration `mapstructure:"timeout"`

	// Headers are sent with every export.
	Headers map[string]string `mapstructure:"headers"`

	// Sampler is always_on, always_off or ratio.
	Sampler string `mapstructure:"sampler" validate:"oneof=always_on always_off ratio"`

	// SampleRate is the fraction of traces to sample (0.0-1.0).
	SampleRate float64 `mapstructure:"sample_rate" validate:"min=0,max=1"`
}

// Validate performs validation on the configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// String returns a string representation of the configuration (without sensitive data).
func (c *Config) String() string {
	return fmt.Sprintf("Config{App: %s, Server: :%d, Env: %s, Storage: %s, Embedding: %s/%d}",
		c.App.Name, c.Server.Port, c.App.Environment, c.Storage.Type, c.Embedding.Provider, c.Embedding.Dimension)
}
