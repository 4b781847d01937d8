package config

import (
	"time"

	"github.com/goclaw/recall/pkg/embedding"
	"github.com/goclaw/recall/pkg/memory"
)

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	engine := memory.DefaultEngineConfig()
	scoring, strategic := engine.Scoring, engine.Strategic
	cache := embedding.DefaultRedisCacheConfig()

	return &Config{
		App: AppConfig{
			Name:        "recall",
			Version:     "dev",
			Environment: "development",
			Debug:       false,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
			HTTP: HTTPConfig{
				ReadTimeout:     30 * time.Second,
				WriteTimeout:    60 * time.Second,
				IdleTimeout:     120 * time.Second,
				RequestTimeout:  10 * time.Second,
				ShutdownTimeout: 15 * time.Second,
				MaxHeaderBytes:  1 << 20, // 1MB
			},
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"Content-Type", "Authorization", "X-Request-ID"},
				ExposedHeaders: []string{"X-Request-ID"},
				MaxAge:         300,
			},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Storage: StorageConfig{
			Type: "memory",
			Badger: BadgerConfig{
				Path:              "./data/badger",
				SyncWrites:        true,
				ValueLogFileSize:  1 << 28, // 256MB
				NumVersionsToKeep: 1,
			},
			SQLite: SQLiteConfig{
				Path: "./data/recall.db",
			},
			Cache: CacheConfig{
				NumCounters: 100000,
				MaxCost:     10000,
			},
		},
		Redis: RedisConfig{
			Enabled:   false,
			Address:   "localhost:6379",
			Password:  "",
			DB:        0,
			KeyPrefix: cache.KeyPrefix,
			TTL:       cache.TTL,
		},
		Embedding: EmbeddingConfig{
			Provider:      "openai",
			BaseURL:       "https://api.openai.com/v1",
			Model:         "text-embedding-3-small",
			Dimension:     1536,
			MaxInputChars: 8000,
			Timeout:       30 * time.Second,
			BatchSize:     64,
			Retry: RetryConfig{
				MaxAttempts: 3,
				BaseDelay:   time.Second,
				Multiplier:  2,
				MaxDelay:    30 * time.Second,
			},
		},
		Memory: MemoryConfig{
			OverFetch:        engine.OverFetch,
			DefaultLimit:     engine.DefaultLimit,
			DefaultThreshold: engine.DefaultThreshold,
			QueryTimeout:     engine.QueryTimeout,
			EmbedTimeout:     engine.EmbedTimeout,
			Scoring: ScoringConfig{
				RecencyWeight:   scoring.RecencyWeight,
				HalfLifeDays:    scoring.HalfLifeDays,
				FrequencyWeight: scoring.FrequencyWeight,
				FrequencyCap:    scoring.FrequencyCap,
			},
			Strategic: StrategicConfig{
				PersonalLimit:     strategic.PersonalLimit,
				ProjectLimit:      strategic.ProjectLimit,
				TaskLimit:         strategic.TaskLimit,
				ProjectThreshold:  strategic.ProjectThreshold,
				TaskThreshold:     strategic.TaskThreshold,
				TaskRecencyWeight: strategic.TaskRecencyWeight,
				GoalKeywords:      append([]string(nil), strategic.GoalKeywords...),
			},
		},
		Retention: RetentionConfig{
			Enabled:  true,
			Window:   memory.DefaultRetentionPolicy().Window,
			Interval: memory.DefaultSweepInterval,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9091,
		},
		Tracing: TracingConfig{
			Enabled:    false,
			Exporter:   "otlp",
			Endpoint:   "localhost:4317",
			Timeout:    10 * time.Second,
			Sampler:    "ratio",
			SampleRate: 0.1,
		},
	}
}
