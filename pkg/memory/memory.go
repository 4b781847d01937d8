package memory

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the memory system.
var (
	ErrInvalidOwner      = errors.New("memory: invalid owner")
	ErrInvalidTier       = errors.New("memory: invalid tier")
	ErrInvalidContent    = errors.New("memory: invalid content")
	ErrEmptyQuery        = errors.New("memory: empty query")
	ErrDimensionMismatch = errors.New("memory: vector dimension mismatch")
	ErrStoreUnavailable  = errors.New("memory: store unavailable")
	ErrNotFound          = errors.New("memory: not found")

	// ErrEmbedding marks every failure that originated in the embedding
	// provider, so callers can degrade separately from store failures.
	ErrEmbedding = errors.New("memory: embedding failed")
)

// DimensionMismatchError reports a vector whose length differs from the
// configured dimension.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("memory: vector dimension mismatch: expected %d, got %d", e.Expected, e.Got)
}

// Is reports ErrDimensionMismatch as the sentinel for this error.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// StoreUnavailableError wraps a persistence failure.
type StoreUnavailableError struct {
	Op    string
	Cause error
}

func (e *StoreUnavailableError) Error() string {
	return fmt.Sprintf("memory: store unavailable during %s: %v", e.Op, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *StoreUnavailableError) Unwrap() error {
	return e.Cause
}

// Is reports ErrStoreUnavailable as the sentinel for this error.
func (e *StoreUnavailableError) Is(target error) bool {
	return target == ErrStoreUnavailable
}

// Unavailable wraps err as a StoreUnavailableError unless it already carries
// a memory sentinel that callers need to see unchanged.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrStoreUnavailable) || errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &StoreUnavailableError{Op: op, Cause: err}
}

// Store is the persistence contract consumed by the retrieval core.
// Every operation is scoped to exactly one owner; records of other owners
// behave as if they do not exist.
type Store interface {
	// Insert validates the embedding dimension and persists the record.
	// A zero CreatedAt is set to the store's notion of now, and AccessedAt
	// starts equal to CreatedAt.
	Insert(ctx context.Context, m *Memory) error

	// Get returns the record and persists an AccessedAt touch.
	Get(ctx context.Context, owner, id string) (*Memory, error)

	// Update applies the patch. The store never re-embeds content.
	Update(ctx context.Context, owner, id string, patch Patch) (*Memory, error)

	// Delete is idempotent and reports whether a record was removed.
	Delete(ctx context.Context, owner, id string) (bool, error)

	// VectorQuery returns candidates ordered by descending similarity.
	VectorQuery(ctx context.Context, q VectorQuery) ([]Candidate, error)

	// PruneOlderThan deletes records of the tier created before cutoff.
	// An empty owner sweeps every owner.
	PruneOlderThan(ctx context.Context, owner string, tier Tier, cutoff time.Time) (int, error)

	// List returns all records of an owner in the given tier, or every tier
	// when tier is empty. List does not touch AccessedAt.
	List(ctx context.Context, owner string, tier Tier) ([]*Memory, error)

	Close() error
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// VectorQuery describes a similarity lookup.
type VectorQuery struct {
	Owner  string
	Vector []float32
	// Tiers restricts the lookup; empty means all tiers.
	Tiers []Tier
	Limit int
}

// MatchesTier reports whether t passes the query's tier filter.
func (q VectorQuery) MatchesTier(t Tier) bool {
	if len(q.Tiers) == 0 {
		return true
	}
	for _, want := range q.Tiers {
		if want == t {
			return true
		}
	}
	return false
}

// Logger is the minimal logger interface used across the memory package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(msg string, args ...any) {}
func (nopLogger) Info(msg string, args ...any)  {}
func (nopLogger) Warn(msg string, args ...any)  {}
func (nopLogger) Error(msg string, args ...any) {}

// Recorder receives retrieval and retention measurements.
type Recorder interface {
	RecordSearch(operation, status string, duration time.Duration, results int)
	RecordPruned(status string, count int, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) RecordSearch(string, string, time.Duration, int) {}
func (nopRecorder) RecordPruned(string, int, time.Duration)         {}
