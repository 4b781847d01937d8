package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/goclaw/recall/config"
	"github.com/goclaw/recall/pkg/api/handlers"
	"github.com/goclaw/recall/pkg/embedding"
	"github.com/goclaw/recall/pkg/logger"
	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/metrics"
	"github.com/goclaw/recall/pkg/storage/badger"
	memstore "github.com/goclaw/recall/pkg/storage/memory"
	"github.com/goclaw/recall/pkg/storage/sqlite"
)

// readinessOwner is listed by the readiness check; no real owner uses it.
const readinessOwner = "_readiness"

// app holds the components shared by every subcommand.
type app struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *metrics.Manager

	store    memory.Store
	redis    *redis.Client
	provider *embedding.Provider
	engine   *memory.Engine
	sweeper  *memory.Sweeper
}

func newLogger(cfg *config.Config) logger.Logger {
	logCfg := &logger.Config{
		Level:   logger.ParseLevel(cfg.Log.Level),
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	}
	if cfg.App.Debug {
		logCfg.Level = logger.DebugLevel
	}
	return logger.New(logCfg)
}

// newApp wires store, provider, engine and sweeper from cfg.
func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, mgr *metrics.Manager) (*app, error) {
	a := &app{cfg: cfg, log: log, metrics: mgr}

	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	a.store = store
	log.Info("Initialized storage", "type", cfg.Storage.Type, "dimension", cfg.Embedding.Dimension)

	a.provider = a.newProvider(ctx)

	policy := cfg.Retention.ToRetentionPolicy()
	a.engine, err = memory.NewEngine(store, a.provider, cfg.ToEngineConfig(),
		memory.WithLogger(log.With("component", "engine")),
		memory.WithRecorder(mgr),
		memory.WithRetention(policy),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	a.sweeper = memory.NewSweeper(store, policy, cfg.Retention.Interval,
		memory.WithSweepLogger(log.With("component", "retention")),
		memory.WithSweepRecorder(mgr),
	)
	return a, nil
}

func openStore(cfg *config.Config) (memory.Store, error) {
	dim := cfg.Embedding.Dimension
	switch cfg.Storage.Type {
	case "badger":
		s, err := badger.NewStore(&badger.Config{
			Path:              cfg.Storage.Badger.Path,
			SyncWrites:        cfg.Storage.Badger.SyncWrites,
			ValueLogFileSize:  cfg.Storage.Badger.ValueLogFileSize,
			NumVersionsToKeep: cfg.Storage.Badger.NumVersionsToKeep,
			Dimension:         dim,
			CacheCounters:     cfg.Storage.Cache.NumCounters,
			CacheMaxCost:      cfg.Storage.Cache.MaxCost,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open badger storage: %w", err)
		}
		return s, nil
	case "sqlite":
		s, err := sqlite.NewStore(sqlite.Config{Path: cfg.Storage.SQLite.Path, Dimension: dim})
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
		}
		return s, nil
	case "memory", "":
		return memstore.NewStore(memstore.Config{Dimension: dim}), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Storage.Type)
	}
}

func newBackend(cfg *config.Config) embedding.Backend {
	if cfg.Embedding.Provider == "hash" {
		return embedding.NewHashBackend(cfg.Embedding.Dimension)
	}
	return embedding.NewOpenAIBackend(cfg.Embedding.ToOpenAIConfig())
}

func (a *app) newProvider(ctx context.Context) *embedding.Provider {
	backend := newBackend(a.cfg)
	opts := []embedding.Option{
		embedding.WithLogger(a.log.With("component", "embedding")),
		embedding.WithRecorder(a.metrics),
	}

	if a.cfg.Redis.Enabled {
		a.redis = embedding.NewRedisClient(a.cfg.Redis.ToRedisOptions())
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := embedding.PingRedis(pingCtx, a.redis); err != nil {
			// The cache degrades to backend calls, so keep going.
			a.log.Warn("Redis embedding cache unreachable", "address", a.cfg.Redis.Address, "error", err)
		}
		cancel()
		opts = append(opts, embedding.WithCache(embedding.NewRedisCache(a.redis, a.cfg.Redis.ToRedisCacheConfig())))
	}

	a.log.Info("Initialized embedding provider",
		"model", backend.Model(),
		"dimension", backend.Dimensions(),
		"cache", a.cfg.Redis.Enabled,
	)
	return embedding.NewProvider(backend, a.cfg.Embedding.ToProviderConfig(), opts...)
}

// checks returns the readiness checks for the wired components.
func (a *app) checks() []handlers.Check {
	checks := []handlers.Check{{
		Name: "store",
		Run:  func(ctx context.Context) error {
			_, err := a.store.List(ctx, readinessOwner, memory.TierTask)
			return err
		},
	}}
	if a.redis != nil {
		checks = append(checks, handlers.Check{
			Name: "redis",
			Run:  func(ctx context.Context) error {
				return embedding.PingRedis(ctx, a.redis)
			},
		})
	}
	return checks
}

// reload applies the hot-reloadable part of cfg.
func (a *app) reload(prev, next config.HotReloadableConfig) {
	if prev.LogLevel != next.LogLevel {
		a.log.SetLevel(logger.ParseLevel(next.LogLevel))
		a.log.Info("Log level changed", "from", prev.LogLevel, "to", next.LogLevel)
	}
	if prev.Scoring != next.Scoring {
		a.engine.SetScoring(next.Scoring.ToScoringConfig())
		a.log.Info("Scoring configuration reloaded",
			"recency_weight", next.Scoring.RecencyWeight,
			"half_life_days", next.Scoring.HalfLifeDays,
		)
	}
	if prev.StrategicChanged(next) {
		a.engine.SetStrategic(next.Strategic.ToStrategicConfig())
		a.log.Info("Strategic context configuration reloaded")
	}
}

// Close releases the store and the cache client.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
