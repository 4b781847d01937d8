package memory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "recall.memory"

// DefaultOverFetch is the factor by which the candidate count requested from
// the store exceeds the caller's limit, to absorb threshold filtering.
const DefaultOverFetch = 3

// Metadata keys written by StoreSummary.
const (
	MetaIsSummary     = "isSummary"
	MetaSourceContext = "sourceContext"
)

// Search operation names used for metrics and spans.
const (
	OpSemanticSearch   = "semantic_search"
	OpStrategicContext = "strategic_context"
)

// EngineConfig configures the retrieval engine.
type EngineConfig struct {
	// Dimension is the embedding dimension D. Zero adopts the embedder's.
	Dimension int

	OverFetch        int
	DefaultLimit     int
	DefaultThreshold float64

	// EmbedTimeout bounds each embedding call; QueryTimeout bounds each
	// store vector query. Zero disables the bound.
	EmbedTimeout time.Duration
	QueryTimeout time.Duration

	Scoring   ScoringConfig
	Strategic StrategicConfig
}

// DefaultEngineConfig returns the reference engine configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Dimension:        1536,
		OverFetch:        DefaultOverFetch,
		DefaultLimit:     10,
		DefaultThreshold: 0.5,
		EmbedTimeout:     30 * time.Second,
		QueryTimeout:     5 * time.Second,
		Scoring:          DefaultScoringConfig(),
		Strategic:        DefaultStrategicConfig(),
	}
}

// Engine orchestrates query embedding, store lookup, scoring and result
// assembly. It is safe for concurrent use; independent queries share no
// mutable state apart from hot-reloadable tuning.
type Engine struct {
	store    Store
	embedder Embedder
	cfg      EngineConfig
	logger   Logger
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time
	newID    func() string

	// retention, when set, hides TASK memories that are already due for
	// pruning but have not been swept yet.
	retention *RetentionPolicy

	mu        sync.RWMutex
	scorer    *HybridScorer
	strategic StrategicConfig
	cues      *cueMatcher
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithIDGenerator overrides memory id generation.
func WithIDGenerator(gen func() string) EngineOption {
	return func(e *Engine) {
		if gen != nil {
			e.newID = gen
		}
	}
}

// WithRetention hides memories the policy would prune from retrieval
// results, so a daily sweep does not leave a window of stale TASK context.
func WithRetention(p RetentionPolicy) EngineOption {
	return func(e *Engine) {
		e.retention = &p
	}
}

// NewEngine creates a retrieval engine over store and embedder.
func NewEngine(store Store, embedder Embedder, cfg EngineConfig, opts ...EngineOption) (*Engine, error) {
	if store == nil {
		return nil, errors.New("memory: store is required")
	}
	if embedder == nil {
		return nil, errors.New("memory: embedder is required")
	}
	if cfg.Dimension == 0 {
		cfg.Dimension = embedder.Dimensions()
	}
	if cfg.Dimension != embedder.Dimensions() {
		return nil, fmt.Errorf("memory: engine dimension %d does not match embedder dimension %d",
			cfg.Dimension, embedder.Dimensions())
	}
	if cfg.OverFetch < 1 {
		cfg.OverFetch = DefaultOverFetch
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}

	e := &Engine{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		logger:   nopLogger{},
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
		newID:    func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	e.SetScoring(cfg.Scoring)
	e.SetStrategic(cfg.Strategic)
	return e, nil
}

// Dimension returns the embedding dimension the engine enforces.
func (e *Engine) Dimension() int {
	return e.cfg.Dimension
}

// SetScoring replaces the scorer tuning.
func (e *Engine) SetScoring(cfg ScoringConfig) {
	e.mu.Lock()
	e.scorer = NewHybridScorer(cfg)
	e.mu.Unlock()
}

// SetStrategic replaces the strategic bucket tuning.
func (e *Engine) SetStrategic(cfg StrategicConfig) {
	if len(cfg.GoalKeywords) == 0 {
		cfg.GoalKeywords = DefaultGoalKeywords
	}
	e.mu.Lock()
	e.strategic = cfg
	e.cues = newCueMatcher(cfg.GoalKeywords)
	e.mu.Unlock()
}

func (e *Engine) tuning() (*HybridScorer, StrategicConfig, *cueMatcher) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.scorer, e.strategic, e.cues
}

// SearchRequest is the input of SemanticSearch.
type SearchRequest struct {
	Owner string
	Query string
	// Tiers restricts the search; empty means all tiers.
	Tiers []Tier
	Limit int
	// Threshold is the raw-similarity gate. Nil uses the engine default.
	Threshold *float64
}

// SemanticSearch embeds the query, over-fetches candidates, gates them on
// raw similarity, ranks them with the hybrid scorer and truncates to limit.
func (e *Engine) SemanticSearch(ctx context.Context, req SearchRequest) (results []ScoredMemory, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "memory.SemanticSearch")
	defer func() {
		e.finish(span, OpSemanticSearch, start, len(results), err)
	}()

	if strings.TrimSpace(req.Owner) == "" {
		return nil, ErrInvalidOwner
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, ErrEmptyQuery
	}
	for _, t := range req.Tiers {
		if !t.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidTier, t)
		}
	}

	limit := req.Limit
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}
	threshold := e.cfg.DefaultThreshold
	if req.Threshold != nil {
		threshold = *req.Threshold
	}
	span.SetAttributes(
		attribute.Int("memory.limit", limit),
		attribute.Float64("memory.threshold", threshold),
	)

	vec, err := e.embedQuery(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	scorer, _, _ := e.tuning()
	return e.search(ctx, req.Owner, vec, req.Tiers, limit, threshold, scorer)
}

// StrategicContext retrieves the personal, project and task buckets used to
// assemble LLM context. The project bucket is non-empty only when the query
// carries a goal or plan cue; every bucket is a non-nil slice.
func (e *Engine) StrategicContext(ctx context.Context, owner, query string) (sc *StrategicContext, err error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "memory.StrategicContext")
	defer func() {
		n := 0
		if sc != nil {
			n = len(sc.Personal) + len(sc.Project) + len(sc.Task)
		}
		e.finish(span, OpStrategicContext, start, n, err)
	}()

	if strings.TrimSpace(owner) == "" {
		return nil, ErrInvalidOwner
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	vec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	scorer, cfg, cues := e.tuning()
	withProject := cues.Match(query)
	span.SetAttributes(attribute.Bool("memory.project_cue", withProject))

	out := &StrategicContext{
		Personal: []ScoredMemory{},
		Project:  []ScoredMemory{},
		Task:     []ScoredMemory{},
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Ranked, never gated.
		res, err := e.search(gctx, owner, vec, []Tier{TierPersonal}, cfg.PersonalLimit, 0, scorer)
		if err != nil {
			return err
		}
		out.Personal = res
		return nil
	})
	if withProject {
		g.Go(func() error {
			res, err := e.search(gctx, owner, vec, []Tier{TierProject}, cfg.ProjectLimit, cfg.ProjectThreshold, scorer)
			if err != nil {
				return err
			}
			out.Project = res
			return nil
		})
	}
	g.Go(func() error {
		taskScorer := scorer.WithRecencyWeight(cfg.TaskRecencyWeight)
		res, err := e.search(gctx, owner, vec, []Tier{TierTask}, cfg.TaskLimit, cfg.TaskThreshold, taskScorer)
		if err != nil {
			return err
		}
		out.Task = res
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// SummaryRequest is the input of StoreSummary.
type SummaryRequest struct {
	Owner         string
	Content       string
	SourceContext string
	Tier          Tier
	Metadata      Metadata
}

// StoreSummary ingests an agent-derived insight. It always embeds the
// content and tags the metadata with summary provenance.
func (e *Engine) StoreSummary(ctx context.Context, req SummaryRequest) (m *Memory, err error) {
	ctx, span := e.tracer.Start(ctx, "memory.StoreSummary")
	defer func() { endSpan(span, err) }()

	meta := req.Metadata.Clone()
	if meta == nil {
		meta = make(Metadata, 2)
	}
	meta[MetaIsSummary] = true
	meta[MetaSourceContext] = req.SourceContext

	return e.Remember(ctx, req.Owner, req.Tier, req.Content, meta)
}

// Remember embeds content and inserts a new memory.
func (e *Engine) Remember(ctx context.Context, owner string, tier Tier, content string, meta Metadata) (*Memory, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrInvalidOwner
	}
	if !tier.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	if err := ValidateContent(content); err != nil {
		return nil, err
	}

	vec, err := e.embed(ctx, content)
	if err != nil {
		return nil, err
	}

	m := &Memory{
		ID:        e.newID(),
		Owner:     owner,
		Tier:      tier,
		Content:   content,
		Embedding: vec,
		Metadata:  meta.Clone(),
	}
	m.Stamp(e.now())

	if err := e.store.Insert(ctx, m); err != nil {
		return nil, Unavailable("insert", err)
	}
	e.logger.Debug("memory stored", "owner", owner, "memory_id", m.ID, "tier", tier)
	return m, nil
}

// Get reads a memory; the store refreshes its AccessedAt.
func (e *Engine) Get(ctx context.Context, owner, id string) (*Memory, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrInvalidOwner
	}
	m, err := e.store.Get(ctx, owner, id)
	if err != nil {
		return nil, Unavailable("get", err)
	}
	return m, nil
}

// Update applies a patch, recomputing the embedding when content changes.
func (e *Engine) Update(ctx context.Context, owner, id string, patch Patch) (*Memory, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrInvalidOwner
	}
	if err := patch.Validate(e.cfg.Dimension); err != nil {
		return nil, err
	}
	if patch.Content != nil {
		vec, err := e.embed(ctx, *patch.Content)
		if err != nil {
			return nil, err
		}
		patch.Embedding = vec
	}
	m, err := e.store.Update(ctx, owner, id, patch)
	if err != nil {
		return nil, Unavailable("update", err)
	}
	return m, nil
}

// Forget deletes a memory and reports whether it existed.
func (e *Engine) Forget(ctx context.Context, owner, id string) (bool, error) {
	if strings.TrimSpace(owner) == "" {
		return false, ErrInvalidOwner
	}
	removed, err := e.store.Delete(ctx, owner, id)
	if err != nil {
		return false, Unavailable("delete", err)
	}
	return removed, nil
}

// List returns the owner's memories in a tier, or all tiers when tier is empty.
func (e *Engine) List(ctx context.Context, owner string, tier Tier) ([]*Memory, error) {
	if strings.TrimSpace(owner) == "" {
		return nil, ErrInvalidOwner
	}
	if tier != "" && !tier.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTier, tier)
	}
	list, err := e.store.List(ctx, owner, tier)
	if err != nil {
		return nil, Unavailable("list", err)
	}
	return list, nil
}

func (e *Engine) search(ctx context.Context, owner string, vec []float32, tiers []Tier, limit int, threshold float64, scorer *HybridScorer) ([]ScoredMemory, error) {
	if limit <= 0 {
		return []ScoredMemory{}, nil
	}

	qctx := ctx
	if e.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		qctx, cancel = context.WithTimeout(ctx, e.cfg.QueryTimeout)
		defer cancel()
	}

	candidates, err := e.store.VectorQuery(qctx, VectorQuery{
		Owner:  owner,
		Vector: vec,
		Tiers:  tiers,
		Limit:  limit * e.cfg.OverFetch,
	})
	if err != nil {
		return nil, Unavailable("vector query", err)
	}

	now := e.now()
	if e.retention != nil {
		live := candidates[:0]
		for _, c := range candidates {
			if !e.retention.IsEligibleForPruning(c.Memory, now) {
				live = append(live, c)
			}
		}
		candidates = live
	}

	ranked := scorer.Rank(candidates, threshold, now)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

// embedQuery embeds a search query.
func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	return e.embed(ctx, query)
}

// embed calls the embedder under the embed timeout and checks the dimension.
// Every failure is wrapped with ErrEmbedding.
func (e *Engine) embed(ctx context.Context, text string) ([]float32, error) {
	ectx := ctx
	if e.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ectx, cancel = context.WithTimeout(ctx, e.cfg.EmbedTimeout)
		defer cancel()
	}

	vec, err := e.embedder.Embed(ectx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if err := ValidateEmbedding(vec, e.cfg.Dimension); err != nil || vec == nil {
		if err == nil {
			err = errors.New("embedder returned no vector")
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	return vec, nil
}

func (e *Engine) finish(span trace.Span, op string, start time.Time, results int, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if errors.Is(err, ErrEmbedding) {
			status = "embedding_error"
		}
		e.logger.Warn("memory search failed", "operation", op, "error", err)
	}
	e.recorder.RecordSearch(op, status, time.Since(start), results)
	span.SetAttributes(attribute.Int("memory.results", results))
	endSpan(span, err)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
