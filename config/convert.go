package config

import (
	"github.com/redis/go-redis/v9"

	"github.com/goclaw/recall/pkg/embedding"
	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/metrics"
)

// ToEngineConfig converts the memory section to a memory.EngineConfig.
func (c *Config) ToEngineConfig() memory.EngineConfig {
	m := c.Memory
	return memory.EngineConfig{
		Dimension:        c.Embedding.Dimension,
		OverFetch:        m.OverFetch,
		DefaultLimit:     m.DefaultLimit,
		DefaultThreshold: m.DefaultThreshold,
		EmbedTimeout:     m.EmbedTimeout,
		QueryTimeout:     m.QueryTimeout,
		Scoring:          m.Scoring.ToScoringConfig(),
		Strategic:        m.Strategic.ToStrategicConfig(),
	}
}

// ToScoringConfig converts to memory.ScoringConfig.
func (s ScoringConfig) ToScoringConfig() memory.ScoringConfig {
	return memory.ScoringConfig{
		RecencyWeight:   s.RecencyWeight,
		HalfLifeDays:    s.HalfLifeDays,
		FrequencyWeight: s.FrequencyWeight,
		FrequencyCap:    s.FrequencyCap,
	}
}

// ToStrategicConfig converts to memory.StrategicConfig. An empty keyword
// list falls back to memory.DefaultGoalKeywords.
func (s StrategicConfig) ToStrategicConfig() memory.StrategicConfig {
	keywords := s.GoalKeywords
	if len(keywords) == 0 {
		keywords = memory.DefaultGoalKeywords
	}
	return memory.StrategicConfig{
		PersonalLimit:     s.PersonalLimit,
		ProjectLimit:      s.ProjectLimit,
		TaskLimit:         s.TaskLimit,
		ProjectThreshold:  s.ProjectThreshold,
		TaskThreshold:     s.TaskThreshold,
		TaskRecencyWeight: s.TaskRecencyWeight,
		GoalKeywords:      append([]string(nil), keywords...),
	}
}

// ToProviderConfig converts the embedding section to an embedding.Config.
func (e *EmbeddingConfig) ToProviderConfig() embedding.Config {
	return embedding.Config{
		MaxInputChars: e.MaxInputChars,
		BatchSize:     e.BatchSize,
		Retry: embedding.RetryConfig{
			MaxAttempts: e.Retry.MaxAttempts,
			BaseDelay:   e.Retry.BaseDelay,
			Multiplier:  e.Retry.Multiplier,
			MaxDelay:    e.Retry.MaxDelay,
		},
		RateLimit: embedding.RateLimitConfig{
			RequestsPerSecond: e.RateLimit.RequestsPerSecond,
			Burst:             e.RateLimit.Burst,
		},
	}
}

// ToOpenAIConfig converts the embedding section to an embedding.OpenAIConfig.
func (e *EmbeddingConfig) ToOpenAIConfig() embedding.OpenAIConfig {
	return embedding.OpenAIConfig{
		BaseURL:   e.BaseURL,
		APIKey:    e.APIKey,
		Model:     e.Model,
		Dimension: e.Dimension,
		Timeout:   e.Timeout,
	}
}

// ToRedisOptions converts the redis section to go-redis client options.
func (r *RedisConfig) ToRedisOptions() *redis.Options {
	return &redis.Options{
		Addr:     r.Address,
		Password: r.Password,
		DB:       r.DB,
	}
}

// ToRedisCacheConfig converts the redis section to an embedding.RedisCacheConfig.
func (r *RedisConfig) ToRedisCacheConfig() embedding.RedisCacheConfig {
	return embedding.RedisCacheConfig{
		KeyPrefix: r.KeyPrefix,
		TTL:       r.TTL,
	}
}

// ToRetentionPolicy converts the retention section to a memory.RetentionPolicy.
func (r *RetentionConfig) ToRetentionPolicy() memory.RetentionPolicy {
	return memory.RetentionPolicy{Window: r.Window}
}

// ToMetricsConfig converts the metrics section to a metrics.Config.
func (m *MetricsConfig) ToMetricsConfig() metrics.Config {
	cfg := metrics.DefaultConfig()
	cfg.Enabled = m.Enabled
	cfg.Port = m.Port
	cfg.Path = m.Path
	return cfg
}
