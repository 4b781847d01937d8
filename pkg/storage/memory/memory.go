// Package memory provides an in-process memory store. Vectors live in
// per-owner chromem-go collections; full records are kept alongside them.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	chromem "github.com/philippgille/chromem-go"

	mem "github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/storage"
)

const tierKey = "tier"

// Config holds configuration for Store.
type Config struct {
	Dimension int
}

// Store implements memory.Store in process memory.
type Store struct {
	dim int
	now func() time.Time
	db  *chromem.DB

	mu          sync.RWMutex
	collections map[string]*chromem.Collection // owner -> collection
	records     map[string]*mem.Memory         // id -> record
}

// Option customizes a Store.
type Option func(*Store)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates an empty in-process store.
func NewStore(cfg Config, opts ...Option) *Store {
	s := &Store{
		dim:         cfg.Dimension,
		now:         time.Now,
		db:          chromem.NewDB(),
		collections: make(map[string]*chromem.Collection),
		records:     make(map[string]*mem.Memory),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ mem.Store = (*Store)(nil)

// collection returns the owner's collection. Callers hold s.mu for writing
// when create is true.
func (s *Store) collection(owner string, create bool) (*chromem.Collection, error) {
	if col, ok := s.collections[owner]; ok || !create {
		return col, nil
	}
	// No embedding func: every document carries its own vector.
	col, err := s.db.CreateCollection("owner_"+owner, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	s.collections[owner] = col
	return col, nil
}

func (s *Store) index(ctx context.Context, m *mem.Memory) error {
	if !indexable(m.Embedding) {
		return nil
	}
	col, err := s.collection(m.Owner, true)
	if err != nil {
		return err
	}
	vec := make([]float32, len(m.Embedding))
	copy(vec, m.Embedding)
	return col.AddDocument(ctx, chromem.Document{
		ID:        m.ID,
		Content:   m.Content,
		Embedding: vec,
		Metadata:  map[string]string{tierKey: string(m.Tier)},
	})
}

func (s *Store) unindex(ctx context.Context, m *mem.Memory) error {
	if !indexable(m.Embedding) {
		return nil
	}
	col, _ := s.collection(m.Owner, false)
	if col == nil {
		return nil
	}
	return col.Delete(ctx, nil, nil, m.ID)
}

// indexable reports whether vec can be normalized for the collection.
// Zero vectors have no direction and are kept out of the index.
func indexable(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return true
		}
	}
	return false
}

// Insert implements memory.Store.
func (s *Store) Insert(ctx context.Context, m *mem.Memory) error {
	rec, err := storage.PrepareInsert(m, s.dim, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.records[rec.ID]; exists {
		return &storage.DuplicateKeyError{EntityType: "memory", ID: rec.ID}
	}
	if err := s.index(ctx, rec); err != nil {
		return mem.Unavailable("insert", err)
	}
	s.records[rec.ID] = rec
	m.CreatedAt, m.AccessedAt, m.AccessCount = rec.CreatedAt, rec.AccessedAt, 0
	return nil
}

// Get implements memory.Store.
func (s *Store) Get(ctx context.Context, owner, id string) (*mem.Memory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Owner != owner {
		return nil, storage.NotFound(id)
	}
	rec.Touch(s.now())
	return rec.Clone(), nil
}

// Update implements memory.Store.
func (s *Store) Update(ctx context.Context, owner, id string, patch mem.Patch) (*mem.Memory, error) {
	if err := patch.Validate(s.dim); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Owner != owner {
		return nil, storage.NotFound(id)
	}

	next := rec.Clone()
	patch.Apply(next)

	if patch.Content != nil || patch.Embedding != nil {
		if err := s.unindex(ctx, rec); err != nil {
			return nil, mem.Unavailable("update", err)
		}
		if err := s.index(ctx, next); err != nil {
			return nil, mem.Unavailable("update", err)
		}
	}
	s.records[id] = next
	return next.Clone(), nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, owner, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Owner != owner {
		return false, nil
	}
	if err := s.unindex(ctx, rec); err != nil {
		return false, mem.Unavailable("delete", err)
	}
	delete(s.records, id)
	return true, nil
}

// VectorQuery implements memory.Store.
func (s *Store) VectorQuery(ctx context.Context, q mem.VectorQuery) ([]mem.Candidate, error) {
	if len(q.Vector) != s.dim {
		return nil, &mem.DimensionMismatchError{Expected: s.dim, Got: len(q.Vector)}
	}
	if !indexable(q.Vector) {
		return []mem.Candidate{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	col, _ := s.collection(q.Owner, false)
	if col == nil || col.Count() == 0 {
		return []mem.Candidate{}, nil
	}

	n := q.Limit
	if n <= 0 || n > col.Count() {
		n = col.Count()
	}

	var wheres []map[string]string
	if len(q.Tiers) == 0 {
		wheres = []map[string]string{nil}
	}
	for _, t := range q.Tiers {
		wheres = append(wheres, map[string]string{tierKey: string(t)})
	}

	out := make([]mem.Candidate, 0, n)
	for _, where := range wheres {
		results, err := col.QueryEmbedding(ctx, q.Vector, n, where, nil)
		if err != nil {
			return nil, mem.Unavailable("vector query", err)
		}
		for _, r := range results {
			rec, ok := s.records[r.ID]
			if !ok {
				continue
			}
			out = append(out, mem.Candidate{Memory: rec.Clone(), Similarity: float64(r.Similarity)})
		}
	}

	mem.SortCandidates(out)
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

// PruneOlderThan implements memory.Store. Each record is removed under its
// own lock acquisition so live queries interleave with a long sweep.
func (s *Store) PruneOlderThan(ctx context.Context, owner string, tier mem.Tier, cutoff time.Time) (int, error) {
	s.mu.RLock()
	var ids []string
	for id, rec := range s.records {
		if (owner == "" || rec.Owner == owner) && rec.Tier == tier && rec.CreatedAt.Before(cutoff) {
			ids = append(ids, id)
		}
	}
	s.mu.RUnlock()
	sort.Strings(ids)

	pruned := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		removed, err := s.pruneOne(ctx, id, tier, cutoff)
		if err != nil {
			return pruned, err
		}
		if removed {
			pruned++
		}
	}
	return pruned, nil
}

func (s *Store) pruneOne(ctx context.Context, id string, tier mem.Tier, cutoff time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[id]
	if !ok || rec.Tier != tier || !rec.CreatedAt.Before(cutoff) {
		return false, nil
	}
	if err := s.unindex(ctx, rec); err != nil {
		return false, mem.Unavailable("prune", err)
	}
	delete(s.records, id)
	return true, nil
}

// List implements memory.Store.
func (s *Store) List(ctx context.Context, owner string, tier mem.Tier) ([]*mem.Memory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*mem.Memory, 0)
	for _, rec := range s.records {
		if rec.Owner == owner && (tier == "" || rec.Tier == tier) {
			out = append(out, rec.Clone())
		}
	}
	sortByCreated(out)
	return out, nil
}

// Close implements memory.Store.
func (s *Store) Close() error {
	return nil
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func sortByCreated(list []*mem.Memory) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
