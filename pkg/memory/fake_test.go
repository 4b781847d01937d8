package memory

import (
	"context"
	"errors"
	"math"
	"sort"
	"sync"
	"time"
)

// fakeStore is a map-backed Store used by the package tests.
type fakeStore struct {
	mu      sync.Mutex
	dim     int
	records map[string]*Memory
	now     func() time.Time

	lastQuery VectorQuery
	queries   int
	failWith  error
}

func newFakeStore(dim int, now func() time.Time) *fakeStore {
	return &fakeStore{dim: dim, records: make(map[string]*Memory), now: now}
}

func (s *fakeStore) Insert(_ context.Context, m *Memory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if err := ValidateForInsert(m, s.dim); err != nil {
		return err
	}
	c := m.Clone()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.AccessedAt = c.CreatedAt
	s.records[c.ID] = c
	m.CreatedAt, m.AccessedAt = c.CreatedAt, c.AccessedAt
	return nil
}

func (s *fakeStore) Get(_ context.Context, owner, id string) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok || m.Owner != owner {
		return nil, ErrNotFound
	}
	m.Touch(s.now())
	return m.Clone(), nil
}

func (s *fakeStore) Update(_ context.Context, owner, id string, patch Patch) (*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok || m.Owner != owner {
		return nil, ErrNotFound
	}
	if err := patch.Validate(s.dim); err != nil {
		return nil, err
	}
	patch.Apply(m)
	return m.Clone(), nil
}

func (s *fakeStore) Delete(_ context.Context, owner, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.records[id]
	if !ok || m.Owner != owner {
		return false, nil
	}
	delete(s.records, id)
	return true, nil
}

func (s *fakeStore) VectorQuery(_ context.Context, q VectorQuery) ([]Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries++
	s.lastQuery = q
	if s.failWith != nil {
		return nil, s.failWith
	}
	var pool []*Memory
	for _, m := range s.records {
		if m.Owner == q.Owner && q.MatchesTier(m.Tier) {
			pool = append(pool, m.Clone())
		}
	}
	return RankCandidates(q.Vector, pool, q.Limit), nil
}

func (s *fakeStore) PruneOlderThan(ctx context.Context, owner string, tier Tier, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	ids := make([]string, 0)
	for id, m := range s.records {
		if (owner == "" || m.Owner == owner) && m.Tier == tier && m.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	n := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		delete(s.records, id)
		n++
	}
	return n, nil
}

func (s *fakeStore) List(_ context.Context, owner string, tier Tier) ([]*Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []*Memory
	for _, m := range s.records {
		if m.Owner == owner && (tier == "" || m.Tier == tier) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) Close() error { return nil }

func (s *fakeStore) put(m *Memory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.AccessedAt.IsZero() {
		m.AccessedAt = m.CreatedAt
	}
	s.records[m.ID] = m
}

func (s *fakeStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// fakeEmbedder maps known texts to fixed vectors and everything else to a
// default vector.
type fakeEmbedder struct {
	mu       sync.Mutex
	dim      int
	vectors  map[string][]float32
	fallback []float32
	err      error
	calls    int
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	fb := make([]float32, dim)
	fb[dim-1] = 1
	return &fakeEmbedder{dim: dim, vectors: make(map[string][]float32), fallback: fb}
}

func (e *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return append([]float32(nil), v...), nil
	}
	return append([]float32(nil), e.fallback...), nil
}

func (e *fakeEmbedder) Dimensions() int { return e.dim }

func (e *fakeEmbedder) set(text string, vec []float32) {
	e.mu.Lock()
	e.vectors[text] = vec
	e.mu.Unlock()
}

// simVec returns a 3-dimensional unit vector whose cosine with axisX is sim.
func simVec(sim float64) []float32 {
	return []float32{float32(sim), float32(math.Sqrt(1 - sim*sim)), 0}
}

var axisX = []float32{1, 0, 0}

var errBoom = errors.New("boom")

// recordingRecorder captures recorder calls.
type recordingRecorder struct {
	mu       sync.Mutex
	searches []string
	pruned   []int
}

func (r *recordingRecorder) RecordSearch(op, status string, _ time.Duration, _ int) {
	r.mu.Lock()
	r.searches = append(r.searches, op+":"+status)
	r.mu.Unlock()
}

func (r *recordingRecorder) RecordPruned(_ string, count int, _ time.Duration) {
	r.mu.Lock()
	r.pruned = append(r.pruned, count)
	r.mu.Unlock()
}
