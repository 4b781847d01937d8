// Package embedding turns text into dense vectors. The Provider wraps a
// Backend with input validation, truncation, rate limiting, bounded
// exponential retry, an optional shared cache and batch fallback.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/time/rate"

	"github.com/goclaw/recall/pkg/memory"
)

// Backend produces embeddings for a batch of non-blank texts.
type Backend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

// RetryConfig configures the retry wrapper around backend calls.
type RetryConfig struct {
	// MaxAttempts counts the first call.
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
	MaxDelay    time.Duration
}

// RateLimitConfig bounds the backend request rate. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// Config configures a Provider.
type Config struct {
	// MaxInputChars truncates longer inputs, counted in characters.
	MaxInputChars int
	// BatchSize caps the number of texts sent in one backend call.
	BatchSize int
	Retry     RetryConfig
	RateLimit RateLimitConfig
}

// DefaultConfig returns the reference provider settings: three attempts,
// one second base delay, doubling.
func DefaultConfig() Config {
	return Config{
		MaxInputChars: 8000,
		BatchSize:     64,
		Retry: RetryConfig{
			MaxAttempts: 3,
			BaseDelay:   time.Second,
			Multiplier:  2,
			MaxDelay:    30 * time.Second,
		},
	}
}

// Logger is the logging interface used by the provider.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}

// Recorder receives provider measurements.
type Recorder interface {
	RecordEmbedding(status string, duration time.Duration)
	RecordEmbeddingRetry()
	RecordEmbeddingCache(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordEmbedding(string, time.Duration) {}
func (nopRecorder) RecordEmbeddingRetry()                 {}
func (nopRecorder) RecordEmbeddingCache(string)           {}

// Provider is the embedding entry point used by the retrieval engine.
type Provider struct {
	backend  Backend
	cfg      Config
	limiter  *rate.Limiter
	cache    Cache
	logger   Logger
	recorder Recorder
}

// Option customizes a Provider.
type Option func(*Provider)

// WithCache puts cache in front of the backend.
func WithCache(c Cache) Option {
	return func(p *Provider) { p.cache = c }
}

// WithLogger sets the provider logger.
func WithLogger(l Logger) Option {
	return func(p *Provider) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(p *Provider) {
		if r != nil {
			p.recorder = r
		}
	}
}

// NewProvider wraps backend.
func NewProvider(backend Backend, cfg Config, opts ...Option) *Provider {
	def := DefaultConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.Retry.MaxAttempts <= 0 {
		cfg.Retry.MaxAttempts = def.Retry.MaxAttempts
	}
	if cfg.Retry.BaseDelay <= 0 {
		cfg.Retry.BaseDelay = def.Retry.BaseDelay
	}
	if cfg.Retry.Multiplier < 1 {
		cfg.Retry.Multiplier = def.Retry.Multiplier
	}
	if cfg.Retry.MaxDelay <= 0 {
		cfg.Retry.MaxDelay = def.Retry.MaxDelay
	}

	limit := rate.Inf
	if cfg.RateLimit.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RateLimit.RequestsPerSecond)
	}
	burst := cfg.RateLimit.Burst
	if burst <= 0 {
		burst = 1
	}

	p := &Provider{
		backend:  backend,
		cfg:      cfg,
		limiter:  rate.NewLimiter(limit, burst),
		logger:   nopLogger{},
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ memory.Embedder = (*Provider)(nil)

// Dimensions returns the vector length the backend produces.
func (p *Provider) Dimensions() int {
	return p.backend.Dimensions()
}

// Model returns the backend model name.
func (p *Provider) Model() string {
	return p.backend.Model()
}

// Embed returns the embedding of text. Blank text fails with ErrEmptyInput
// without touching the network. Upstream failures are retried and surface
// as *UnavailableError once the attempts are exhausted.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyInput
	}
	text = p.truncate(text)

	key := CacheKey(p.backend.Model(), text)
	if vec, ok := p.cacheGet(ctx, key); ok {
		return vec, nil
	}

	vecs, err := p.call(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	p.cacheSet(ctx, key, vecs[0])
	return vecs[0], nil
}

// EmbedBatch embeds texts preserving order. Blank or failed items are nil
// in the result. A failed batch call falls back to one call per item. The
// error is non-nil only when ctx ends before all items were attempted.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var pending []int
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		t := p.truncate(text)
		if vec, ok := p.cacheGet(ctx, CacheKey(p.backend.Model(), t)); ok {
			out[i] = vec
			continue
		}
		pending = append(pending, i)
	}

	for start := 0; start < len(pending); start += p.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		end := min(start+p.cfg.BatchSize, len(pending))
		chunk := pending[start:end]

		inputs := make([]string, len(chunk))
		for j, idx := range chunk {
			inputs[j] = p.truncate(texts[idx])
		}

		vecs, err := p.call(ctx, inputs)
		if err == nil {
			for j, idx := range chunk {
				out[idx] = vecs[j]
				p.cacheSet(ctx, CacheKey(p.backend.Model(), inputs[j]), vecs[j])
			}
			continue
		}

		p.logger.Warn("batch embedding failed, falling back to single calls",
			"size", len(chunk), "error", err)
		for j, idx := range chunk {
			if err := ctx.Err(); err != nil {
				return out, err
			}
			vec, err := p.call(ctx, inputs[j:j+1])
			if err != nil {
				p.logger.Warn("embedding item failed", "index", idx, "error", err)
				continue
			}
			out[idx] = vec[0]
			p.cacheSet(ctx, CacheKey(p.backend.Model(), inputs[j]), vec[0])
		}
	}
	return out, nil
}

// call invokes the backend with retry and validates the result.
func (p *Provider) call(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	attempts := 0

	op := func() ([][]float32, error) {
		attempts++
		if attempts > 1 {
			p.recorder.RecordEmbeddingRetry()
		}
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, backoff.Permanent(err)
		}

		vecs, err := p.backend.EmbedBatch(ctx, texts)
		if err != nil {
			var se *StatusError
			if errors.As(err, &se) && !se.Retryable() {
				return nil, backoff.Permanent(err)
			}
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			p.logger.Debug("embedding attempt failed", "attempt", attempts, "error", err)
			return nil, err
		}
		if err := p.checkDimensions(vecs, len(texts)); err != nil {
			return nil, backoff.Permanent(err)
		}
		return vecs, nil
	}

	vecs, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(p.newBackOff()),
		backoff.WithMaxTries(uint(p.cfg.Retry.MaxAttempts)),
	)
	if err == nil {
		p.recorder.RecordEmbedding("success", time.Since(start))
		return vecs, nil
	}

	switch {
	case errors.Is(err, ErrDimension):
		p.recorder.RecordEmbedding("invalid", time.Since(start))
		return nil, err
	case ctx.Err() != nil:
		p.recorder.RecordEmbedding("cancelled", time.Since(start))
		return nil, fmt.Errorf("embedding: %w", ctx.Err())
	}
	p.recorder.RecordEmbedding("error", time.Since(start))
	return nil, &UnavailableError{Attempts: attempts, Cause: err}
}

func (p *Provider) newBackOff() backoff.BackOff {
	return &backoff.ExponentialBackOff{
		InitialInterval:     p.cfg.Retry.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          p.cfg.Retry.Multiplier,
		MaxInterval:         p.cfg.Retry.MaxDelay,
	}
}

func (p *Provider) checkDimensions(vecs [][]float32, want int) error {
	if len(vecs) != want {
		return fmt.Errorf("%w: got %d vectors for %d inputs", ErrDimension, len(vecs), want)
	}
	dim := p.backend.Dimensions()
	for _, v := range vecs {
		if len(v) != dim {
			return fmt.Errorf("%w: %w", ErrDimension, &memory.DimensionMismatchError{Expected: dim, Got: len(v)})
		}
	}
	return nil
}

func (p *Provider) truncate(text string) string {
	limit := p.cfg.MaxInputChars
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	n := 0
	for i := range text {
		if n == limit {
			return text[:i]
		}
		n++
	}
	return text
}

func (p *Provider) cacheGet(ctx context.Context, key string) ([]float32, bool) {
	if p.cache == nil {
		return nil, false
	}
	vec, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		p.recorder.RecordEmbeddingCache("error")
		p.logger.Warn("embedding cache read failed", "error", err)
		return nil, false
	case !ok || len(vec) != p.backend.Dimensions():
		p.recorder.RecordEmbeddingCache("miss")
		return nil, false
	}
	p.recorder.RecordEmbeddingCache("hit")
	return vec, true
}

func (p *Provider) cacheSet(ctx context.Context, key string, vec []float32) {
	if p.cache == nil || vec == nil {
		return
	}
	if err := p.cache.Set(ctx, key, vec); err != nil {
		p.logger.Warn("embedding cache write failed", "error", err)
	}
}
