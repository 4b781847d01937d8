package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/goclaw/recall/pkg/memory"
)

// StoreTestSuite defines a test suite that can be run against any memory.Store implementation.
type StoreTestSuite struct {
	// NewStore returns an empty store configured for Dimension.
	NewStore  func(t *testing.T) memory.Store
	Dimension int
}

// RunAllTests runs all store tests against the provided implementation.
func (s *StoreTestSuite) RunAllTests(t *testing.T) {
	t.Run("InsertAndGet", s.TestInsertAndGet)
	t.Run("DimensionMismatch", s.TestDimensionMismatch)
	t.Run("DuplicateID", s.TestDuplicateID)
	t.Run("OwnerIsolation", s.TestOwnerIsolation)
	t.Run("Update", s.TestUpdate)
	t.Run("DeleteIdempotent", s.TestDeleteIdempotent)
	t.Run("VectorQuery", s.TestVectorQuery)
	t.Run("PruneOlderThan", s.TestPruneOlderThan)
	t.Run("List", s.TestList)
	t.Run("ConcurrentAccess", s.TestConcurrentAccess)
}

func (s *StoreTestSuite) vec(x, y float32) []float32 {
	v := make([]float32, s.Dimension)
	v[0], v[1] = x, y
	return v
}

func (s *StoreTestSuite) record(owner, id string, tier memory.Tier, vec []float32) *memory.Memory {
	return &memory.Memory{
		ID:        id,
		Owner:     owner,
		Tier:      tier,
		Content:   "content of " + id,
		Embedding: vec,
	}
}

func mustInsert(t *testing.T, store memory.Store, m *memory.Memory) {
	t.Helper()
	if err := store.Insert(context.Background(), m); err != nil {
		t.Fatalf("Insert(%s) failed: %v", m.ID, err)
	}
}

// TestInsertAndGet tests insert timestamps, reads and the access touch.
func (s *StoreTestSuite) TestInsertAndGet(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	m := s.record("u1", "m1", memory.TierPersonal, s.vec(1, 0))
	m.Metadata = memory.Metadata{"mood": "calm", "pinned": true, "score": 0.5}
	mustInsert(t, store, m)

	got, err := store.Get(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != m.Content || got.Tier != memory.TierPersonal || got.Owner != "u1" {
		t.Errorf("unexpected record: %+v", got)
	}
	if len(got.Embedding) != s.Dimension || got.Embedding[0] != 1 {
		t.Errorf("embedding not preserved: %v", got.Embedding)
	}
	if got.Metadata["mood"] != "calm" || got.Metadata["pinned"] != true || got.Metadata["score"] != 0.5 {
		t.Errorf("metadata not preserved: %v", got.Metadata)
	}
	if got.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if got.AccessedAt.Before(got.CreatedAt) {
		t.Errorf("AccessedAt %v before CreatedAt %v", got.AccessedAt, got.CreatedAt)
	}
	if got.AccessCount != 1 {
		t.Errorf("expected AccessCount 1, got %d", got.AccessCount)
	}

	again, err := store.Get(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("second Get failed: %v", err)
	}
	if again.AccessCount != 2 {
		t.Errorf("expected AccessCount 2, got %d", again.AccessCount)
	}
	if again.AccessedAt.Before(got.AccessedAt) {
		t.Error("AccessedAt moved backwards")
	}

	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	old := s.record("u1", "m-old", memory.TierTask, s.vec(0, 1))
	old.CreatedAt = created
	mustInsert(t, store, old)
	got, err = store.Get(ctx, "u1", "m-old")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("explicit CreatedAt not kept: %v", got.CreatedAt)
	}

	noVec := s.record("u1", "m-novec", memory.TierTask, nil)
	mustInsert(t, store, noVec)
	got, err = store.Get(ctx, "u1", "m-novec")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Embedding != nil {
		t.Errorf("expected nil embedding, got %v", got.Embedding)
	}
}

// TestDimensionMismatch tests that a wrong-length vector never creates a record.
func (s *StoreTestSuite) TestDimensionMismatch(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	bad := s.record("u1", "bad", memory.TierTask, make([]float32, s.Dimension+1))
	err := store.Insert(ctx, bad)
	if !errors.Is(err, memory.ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
	if _, err := store.Get(ctx, "u1", "bad"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected no partial record, got %v", err)
	}

	mustInsert(t, store, s.record("u1", "ok", memory.TierTask, s.vec(1, 0)))
	_, err = store.Update(ctx, "u1", "ok", memory.Patch{Embedding: []float32{1}})
	if !errors.Is(err, memory.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch on update, got %v", err)
	}
}

// TestDuplicateID tests that an existing id is not overwritten.
func (s *StoreTestSuite) TestDuplicateID(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()

	mustInsert(t, store, s.record("u1", "dup", memory.TierTask, s.vec(1, 0)))
	if err := store.Insert(context.Background(), s.record("u1", "dup", memory.TierTask, s.vec(0, 1))); err == nil {
		t.Error("expected error for duplicate id")
	}
}

// TestOwnerIsolation tests that other owners' records behave as missing.
func (s *StoreTestSuite) TestOwnerIsolation(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	mustInsert(t, store, s.record("alice", "a1", memory.TierPersonal, s.vec(1, 0)))

	if _, err := store.Get(ctx, "bob", "a1"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-owner Get: expected ErrNotFound, got %v", err)
	}
	if _, err := store.Get(ctx, "bob", "missing"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("missing Get: expected ErrNotFound, got %v", err)
	}
	content := "stolen"
	if _, err := store.Update(ctx, "bob", "a1", memory.Patch{Content: &content}); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("cross-owner Update: expected ErrNotFound, got %v", err)
	}
	removed, err := store.Delete(ctx, "bob", "a1")
	if err != nil || removed {
		t.Errorf("cross-owner Delete = %v, %v", removed, err)
	}

	res, err := store.VectorQuery(ctx, memory.VectorQuery{Owner: "bob", Vector: s.vec(1, 0), Limit: 10})
	if err != nil {
		t.Fatalf("VectorQuery failed: %v", err)
	}
	if len(res) != 0 {
		t.Errorf("cross-owner VectorQuery leaked %d records", len(res))
	}

	list, err := store.List(ctx, "bob", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("cross-owner List leaked %d records", len(list))
	}

	got, err := store.Get(ctx, "alice", "a1")
	if err != nil {
		t.Fatalf("owner Get failed: %v", err)
	}
	if got.Content != "content of a1" {
		t.Errorf("record modified by another owner: %q", got.Content)
	}
}

// TestUpdate tests content, metadata and embedding patches.
func (s *StoreTestSuite) TestUpdate(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	m := s.record("u1", "m1", memory.TierProject, s.vec(1, 0))
	m.Metadata = memory.Metadata{"keep": "yes", "drop": "soon"}
	mustInsert(t, store, m)

	content := "new content"
	updated, err := store.Update(ctx, "u1", "m1", memory.Patch{
		Content:   &content,
		Metadata:  memory.Metadata{"added": "1", "drop": nil},
		Embedding: s.vec(0, 1),
	})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Content != content {
		t.Errorf("expected content %q, got %q", content, updated.Content)
	}
	if updated.Metadata["keep"] != "yes" || updated.Metadata["added"] != "1" {
		t.Errorf("metadata not merged: %v", updated.Metadata)
	}
	if _, ok := updated.Metadata["drop"]; ok {
		t.Errorf("nil metadata value should delete the key: %v", updated.Metadata)
	}

	got, err := store.Get(ctx, "u1", "m1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Content != content || got.Embedding[1] != 1 {
		t.Errorf("update not persisted: %+v", got)
	}

	replaced, err := store.Update(ctx, "u1", "m1", memory.Patch{
		Metadata:        memory.Metadata{"only": "this"},
		ReplaceMetadata: true,
	})
	if err != nil {
		t.Fatalf("replace Update failed: %v", err)
	}
	if len(replaced.Metadata) != 1 || replaced.Metadata["only"] != "this" {
		t.Errorf("metadata not replaced: %v", replaced.Metadata)
	}

	empty := ""
	if _, err := store.Update(ctx, "u1", "m1", memory.Patch{Content: &empty}); !errors.Is(err, memory.ErrInvalidContent) {
		t.Errorf("expected ErrInvalidContent, got %v", err)
	}
	if _, err := store.Update(ctx, "u1", "missing", memory.Patch{Content: &content}); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

// TestDeleteIdempotent tests that deleting twice is safe.
func (s *StoreTestSuite) TestDeleteIdempotent(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	mustInsert(t, store, s.record("u1", "m1", memory.TierTask, s.vec(1, 0)))

	removed, err := store.Delete(ctx, "u1", "m1")
	if err != nil || !removed {
		t.Fatalf("first Delete = %v, %v", removed, err)
	}
	removed, err = store.Delete(ctx, "u1", "m1")
	if err != nil || removed {
		t.Errorf("second Delete = %v, %v", removed, err)
	}
	if _, err := store.Get(ctx, "u1", "m1"); !errors.Is(err, memory.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	res, err := store.VectorQuery(ctx, memory.VectorQuery{Owner: "u1", Vector: s.vec(1, 0), Limit: 5})
	if err != nil {
		t.Fatalf("VectorQuery failed: %v", err)
	}
	if len(res) != 0 {
		t.Errorf("deleted record still returned by VectorQuery")
	}
}

// TestVectorQuery tests ordering, tier filtering and limits.
func (s *StoreTestSuite) TestVectorQuery(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	mustInsert(t, store, s.record("u1", "near", memory.TierPersonal, s.vec(1, 0.1)))
	mustInsert(t, store, s.record("u1", "mid", memory.TierPersonal, s.vec(1, 1)))
	mustInsert(t, store, s.record("u1", "far", memory.TierPersonal, s.vec(0, 1)))
	mustInsert(t, store, s.record("u1", "task", memory.TierTask, s.vec(1, 0)))
	mustInsert(t, store, s.record("u1", "unembedded", memory.TierPersonal, nil))

	res, err := store.VectorQuery(ctx, memory.VectorQuery{
		Owner:  "u1",
		Vector: s.vec(1, 0),
		Tiers:  []memory.Tier{memory.TierPersonal},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("VectorQuery failed: %v", err)
	}
	want := []string{"near", "mid", "far"}
	if len(res) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(res))
	}
	for i, id := range want {
		if res[i].Memory.ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, res[i].Memory.ID)
		}
		if i > 0 && res[i].Similarity > res[i-1].Similarity {
			t.Errorf("candidates not in descending similarity order")
		}
	}
	if res[0].Similarity < 0.99 || res[0].Similarity > 1.0001 {
		t.Errorf("unexpected similarity %f", res[0].Similarity)
	}

	limited, err := store.VectorQuery(ctx, memory.VectorQuery{Owner: "u1", Vector: s.vec(1, 0), Limit: 2})
	if err != nil {
		t.Fatalf("VectorQuery failed: %v", err)
	}
	if len(limited) != 2 || limited[0].Memory.ID != "task" {
		t.Errorf("expected the task record first within limit 2, got %d results", len(limited))
	}

	multi, err := store.VectorQuery(ctx, memory.VectorQuery{
		Owner:  "u1",
		Vector: s.vec(1, 0),
		Tiers:  []memory.Tier{memory.TierTask, memory.TierProject},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("VectorQuery failed: %v", err)
	}
	if len(multi) != 1 || multi[0].Memory.ID != "task" {
		t.Errorf("tier filter failed: %d results", len(multi))
	}

	if _, err := store.VectorQuery(ctx, memory.VectorQuery{Owner: "u1", Vector: []float32{1}, Limit: 1}); !errors.Is(err, memory.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for a short query vector, got %v", err)
	}
}

// TestPruneOlderThan tests tier and owner scoping and idempotence.
func (s *StoreTestSuite) TestPruneOlderThan(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	now := time.Now()
	insertAged := func(owner, id string, tier memory.Tier, age time.Duration) {
		m := s.record(owner, id, tier, s.vec(1, 0))
		m.CreatedAt = now.Add(-age)
		mustInsert(t, store, m)
	}
	day := 24 * time.Hour
	insertAged("u1", "old-task", memory.TierTask, 31*day)
	insertAged("u1", "new-task", memory.TierTask, 29*day)
	insertAged("u1", "old-project", memory.TierProject, 90*day)
	insertAged("u2", "other-old-task", memory.TierTask, 40*day)

	cutoff := now.Add(-30 * day)

	n, err := store.PruneOlderThan(ctx, "u1", memory.TierTask, cutoff)
	if err != nil {
		t.Fatalf("PruneOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned, got %d", n)
	}

	n, err = store.PruneOlderThan(ctx, "u1", memory.TierTask, cutoff)
	if err != nil {
		t.Fatalf("second PruneOlderThan failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected idempotent prune, got %d", n)
	}

	if _, err := store.Get(ctx, "u2", "other-old-task"); err != nil {
		t.Errorf("owner-scoped prune touched another owner: %v", err)
	}

	n, err = store.PruneOlderThan(ctx, "", memory.TierTask, cutoff)
	if err != nil {
		t.Fatalf("global PruneOlderThan failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 pruned globally, got %d", n)
	}

	for _, id := range []string{"new-task", "old-project"} {
		if _, err := store.Get(ctx, "u1", id); err != nil {
			t.Errorf("%s should survive: %v", id, err)
		}
	}
}

// TestList tests tier filtering and that List does not touch records.
func (s *StoreTestSuite) TestList(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	for i, tier := range []memory.Tier{memory.TierPersonal, memory.TierPersonal, memory.TierTask} {
		mustInsert(t, store, s.record("u1", fmt.Sprintf("m%d", i), tier, s.vec(1, 0)))
	}

	personal, err := store.List(ctx, "u1", memory.TierPersonal)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(personal) != 2 {
		t.Errorf("expected 2 personal records, got %d", len(personal))
	}
	for _, m := range personal {
		if m.AccessCount != 0 {
			t.Errorf("List touched %s", m.ID)
		}
	}

	all, err := store.List(ctx, "u1", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 records, got %d", len(all))
	}
}

// TestConcurrentAccess tests concurrent reads, writes and queries.
func (s *StoreTestSuite) TestConcurrentAccess(t *testing.T) {
	store := s.NewStore(t)
	defer store.Close()
	ctx := context.Background()

	mustInsert(t, store, s.record("u1", "shared", memory.TierPersonal, s.vec(1, 0)))

	var wg sync.WaitGroup
	errCh := make(chan error, 60)
	for i := 0; i < 20; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			m, err := store.Get(ctx, "u1", "shared")
			if err != nil {
				errCh <- err
				return
			}
			if m.AccessedAt.Before(m.CreatedAt) {
				errCh <- fmt.Errorf("accessedAt before createdAt")
			}
		}()
		go func(i int) {
			defer wg.Done()
			if err := store.Insert(ctx, s.record("u1", fmt.Sprintf("c%d", i), memory.TierTask, s.vec(float32(i), 1))); err != nil {
				errCh <- err
			}
		}(i)
		go func() {
			defer wg.Done()
			if _, err := store.VectorQuery(ctx, memory.VectorQuery{Owner: "u1", Vector: s.vec(1, 0), Limit: 5}); err != nil {
				errCh <- err
			}
		}()
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Errorf("concurrent operation failed: %v", err)
	}

	all, err := store.List(ctx, "u1", "")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 21 {
		t.Errorf("expected 21 records, got %d", len(all))
	}
}
