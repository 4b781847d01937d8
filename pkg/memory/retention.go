package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultRetentionWindow is how long TASK memories are kept.
const DefaultRetentionWindow = 30 * 24 * time.Hour

// DefaultSweepInterval is the period of the background sweep.
const DefaultSweepInterval = 24 * time.Hour

// RetentionPolicy decides which memories may be pruned.
type RetentionPolicy struct {
	Window time.Duration
}

// DefaultRetentionPolicy returns the 30-day TASK policy.
func DefaultRetentionPolicy() RetentionPolicy {
	return RetentionPolicy{Window: DefaultRetentionWindow}
}

// IsEligibleForPruning reports whether m is a TASK memory older than the
// window. PERSONAL and PROJECT memories are never eligible.
func (p RetentionPolicy) IsEligibleForPruning(m *Memory, now time.Time) bool {
	if m == nil || m.Tier != TierTask {
		return false
	}
	return now.Sub(m.CreatedAt) > p.window()
}

// Cutoff returns the creation time before which TASK memories are pruned.
func (p RetentionPolicy) Cutoff(now time.Time) time.Time {
	return now.Add(-p.window())
}

func (p RetentionPolicy) window() time.Duration {
	if p.Window <= 0 {
		return DefaultRetentionWindow
	}
	return p.Window
}

// SweepResult summarizes one sweep pass.
type SweepResult struct {
	Owner    string        `json:"owner,omitempty"`
	Cutoff   time.Time     `json:"cutoff"`
	Pruned   int           `json:"pruned"`
	Duration time.Duration `json:"duration"`
}

// Sweeper runs the retention policy against a store, on demand or on a ticker.
type Sweeper struct {
	store    Store
	policy   RetentionPolicy
	interval time.Duration
	logger   Logger
	recorder Recorder
	tracer   trace.Tracer
	now      func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool

	statsMu     sync.Mutex
	totalPruned int64
	sweeps      int64
	lastSweep   time.Time
}

// SweeperOption customizes a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepLogger sets the sweeper logger.
func WithSweepLogger(l Logger) SweeperOption {
	return func(s *Sweeper) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweepRecorder sets the sweeper metrics recorder.
func WithSweepRecorder(r Recorder) SweeperOption {
	return func(s *Sweeper) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithSweepClock overrides the sweeper time source.
func WithSweepClock(now func() time.Time) SweeperOption {
	return func(s *Sweeper) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSweeper creates a sweeper. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(store Store, policy RetentionPolicy, interval time.Duration, opts ...SweeperOption) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	s := &Sweeper{
		store:    store,
		policy:   policy,
		interval: interval,
		logger:   nopLogger{},
		recorder: nopRecorder{},
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the policy the sweeper enforces.
func (s *Sweeper) Policy() RetentionPolicy {
	return s.policy
}

// Sweep prunes eligible TASK memories of owner, or of every owner when owner
// is empty. Each deletion commits independently, so a cancelled sweep may
// leave partial progress; the next sweep picks up the rest.
func (s *Sweeper) Sweep(ctx context.Context, owner string) (SweepResult, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "retention.Sweep")

	res := SweepResult{Owner: owner, Cutoff: s.policy.Cutoff(s.now())}
	n, err := s.store.PruneOlderThan(ctx, owner, TierTask, res.Cutoff)
	res.Pruned = n
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.String("memory.owner", owner),
		attribute.Int("memory.pruned", n),
	)
	endSpan(span, err)

	status := "success"
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = "cancelled"
	case err != nil:
		status = "error"
	}
	s.recorder.RecordPruned(status, n, res.Duration)

	s.statsMu.Lock()
	s.totalPruned += int64(n)
	s.sweeps++
	s.lastSweep = s.now()
	s.statsMu.Unlock()

	if err != nil {
		s.logger.Warn("retention sweep failed", "owner", owner, "pruned", n, "error", err)
		return res, Unavailable("prune", err)
	}
	s.logger.Info("retention sweep completed",
		"owner", owner,
		"pruned", n,
		"cutoff", res.Cutoff,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// Start runs a sweep over every owner once per interval until Stop is
// called or ctx is cancelled.
func (s *Sweeper) Start(parentCtx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}

	ctx, cancel := context.WithCancel(parentCtx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running = true

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				// Failures are logged by Sweep; the loop keeps going.
				_, _ = s.Sweep(ctx, "")
			case <-ctx.Done():
				return
			}
		}
	}(s.done)
}

// Stop cancels the background loop and waits for it to exit.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.running = false
	s.mu.Unlock()

	cancel()
	<-done
}

// SweeperStats reports cumulative sweeper activity.
type SweeperStats struct {
	Sweeps      int64     `json:"sweeps"`
	TotalPruned int64     `json:"total_pruned"`
	LastSweep   time.Time `json:"last_sweep,omitempty"`
}

// Stats returns cumulative sweep statistics.
func (s *Sweeper) Stats() SweeperStats {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return SweeperStats{
		Sweeps:      s.sweeps,
		TotalPruned: s.totalPruned,
		LastSweep:   s.lastSweep,
	}
}
