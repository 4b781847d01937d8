// Package badger provides a Badger-based implementation of the memory store.
// Vector queries scan the owner's key range and rank with cosine similarity;
// decoded records are kept in a ristretto cache keyed by the Badger item
// version so scans skip JSON decoding for unchanged records.
package badger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/ristretto/v2"

	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/storage"
)

const (
	memoryKeyPrefix = "memory:"
	idIndexPrefix   = "memidx:"
)

// Config holds configuration for Store.
type Config struct {
	Path              string
	SyncWrites        bool
	ValueLogFileSize  int64
	NumVersionsToKeep int
	// InMemory runs Badger without touching disk; Path is ignored.
	InMemory bool

	Dimension int

	// CacheCounters and CacheMaxCost size the decoded-record cache, whose
	// cost unit is one record. Zero CacheMaxCost disables the cache.
	CacheCounters int64
	CacheMaxCost  int64
}

// Store implements memory.Store using Badger.
type Store struct {
	db     *badger.DB
	config *Config
	cache  *ristretto.Cache[string, *cachedRecord]
	now    func() time.Time

	// writeMu serializes read-modify-write transactions so concurrent
	// touches of one record never abort with badger.ErrConflict.
	writeMu sync.Mutex
}

type cachedRecord struct {
	version uint64
	rec     *memory.Memory
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

// NewStore opens a Badger memory store.
func NewStore(config *Config, opts ...Option) (*Store, error) {
	bopts := badger.DefaultOptions(config.Path)
	if config.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = config.SyncWrites
	if config.ValueLogFileSize > 0 {
		bopts.ValueLogFileSize = config.ValueLogFileSize
	}
	if config.NumVersionsToKeep > 0 {
		bopts.NumVersionsToKeep = config.NumVersionsToKeep
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, &memory.StoreUnavailableError{Op: "open", Cause: err}
	}

	s := &Store{db: db, config: config, now: time.Now}

	if config.CacheMaxCost > 0 {
		counters := config.CacheCounters
		if counters <= 0 {
			counters = config.CacheMaxCost * 10
		}
		cache, err := ristretto.NewCache(&ristretto.Config[string, *cachedRecord]{
			NumCounters: counters,
			MaxCost:     config.CacheMaxCost,
			BufferItems: 64,
		})
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("badger: create record cache: %w", err)
		}
		s.cache = cache
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

var _ memory.Store = (*Store)(nil)

// Key generation functions. The owner is length-prefixed so owners and ids
// containing ':' cannot collide.
func memoryKey(owner, id string) []byte {
	return append(ownerPrefix(owner), id...)
}

func ownerPrefix(owner string) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:", memoryKeyPrefix, len(owner), owner))
}

func idIndexKey(id string) []byte {
	return []byte(idIndexPrefix + id)
}

// decode returns the record held by item, using the cache when the item
// version matches.
func (s *Store) decode(item *badger.Item) (*memory.Memory, error) {
	key := string(item.Key())
	if s.cache != nil {
		if c, ok := s.cache.Get(key); ok && c.version == item.Version() {
			return c.rec, nil
		}
	}

	var rec *memory.Memory
	err := item.Value(func(val []byte) error {
		var err error
		rec, err = storage.Decode(val)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(key, &cachedRecord{version: item.Version(), rec: rec}, 1)
	}
	return rec, nil
}

// load reads one record inside txn. Records of other owners are reported
// as missing.
func (s *Store) load(txn *badger.Txn, owner, id string) (*memory.Memory, error) {
	item, err := txn.Get(memoryKey(owner, id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.NotFound(id)
	}
	if err != nil {
		return nil, err
	}
	rec, err := s.decode(item)
	if err != nil {
		return nil, err
	}
	if rec.Owner != owner {
		return nil, storage.NotFound(id)
	}
	return rec.Clone(), nil
}

func (s *Store) write(txn *badger.Txn, rec *memory.Memory) error {
	data, err := storage.Encode(rec)
	if err != nil {
		return err
	}
	return txn.Set(memoryKey(rec.Owner, rec.ID), data)
}

func (s *Store) remove(txn *badger.Txn, rec *memory.Memory) error {
	if err := txn.Delete(memoryKey(rec.Owner, rec.ID)); err != nil {
		return err
	}
	if err := txn.Delete(idIndexKey(rec.ID)); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Del(string(memoryKey(rec.Owner, rec.ID)))
	}
	return nil
}

// Insert implements memory.Store.
func (s *Store) Insert(ctx context.Context, m *memory.Memory) error {
	rec, err := storage.PrepareInsert(m, s.config.Dimension, s.now())
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(idIndexKey(rec.ID)); err == nil {
			return &storage.DuplicateKeyError{EntityType: "memory", ID: rec.ID}
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(idIndexKey(rec.ID), []byte(rec.Owner)); err != nil {
			return err
		}
		return s.write(txn, rec)
	})
	if err != nil {
		var dup *storage.DuplicateKeyError
		if errors.As(err, &dup) {
			return err
		}
		return memory.Unavailable("insert", err)
	}
	m.CreatedAt, m.AccessedAt, m.AccessCount = rec.CreatedAt, rec.AccessedAt, 0
	return nil
}

// Get implements memory.Store. The access touch is persisted.
func (s *Store) Get(ctx context.Context, owner, id string) (*memory.Memory, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var out *memory.Memory
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.load(txn, owner, id)
		if err != nil {
			return err
		}
		rec.Touch(s.now())
		if err := s.write(txn, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, memory.Unavailable("get", err)
	}
	return out, nil
}

// Update implements memory.Store.
func (s *Store) Update(ctx context.Context, owner, id string, patch memory.Patch) (*memory.Memory, error) {
	if err := patch.Validate(s.config.Dimension); err != nil {
		return nil, err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var out *memory.Memory
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.load(txn, owner, id)
		if err != nil {
			return err
		}
		patch.Apply(rec)
		if err := s.write(txn, rec); err != nil {
			return err
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, memory.Unavailable("update", err)
	}
	return out, nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, owner, id string) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.load(txn, owner, id)
		if errors.Is(err, memory.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		removed = true
		return s.remove(txn, rec)
	})
	if err != nil {
		return false, memory.Unavailable("delete", err)
	}
	return removed, nil
}

// scan calls fn for every record under prefix that belongs to owner, or to
// anyone when owner is empty.
func (s *Store) scan(ctx context.Context, prefix []byte, owner string, fn func(*memory.Memory) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := s.decode(it.Item())
			if err != nil {
				return err
			}
			if owner != "" && rec.Owner != owner {
				continue
			}
			if err := fn(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// VectorQuery implements memory.Store with a brute-force cosine scan.
func (s *Store) VectorQuery(ctx context.Context, q memory.VectorQuery) ([]memory.Candidate, error) {
	if len(q.Vector) != s.config.Dimension {
		return nil, &memory.DimensionMismatchError{Expected: s.config.Dimension, Got: len(q.Vector)}
	}

	var pool []*memory.Memory
	err := s.scan(ctx, ownerPrefix(q.Owner), q.Owner, func(rec *memory.Memory) error {
		if q.MatchesTier(rec.Tier) {
			pool = append(pool, rec)
		}
		return nil
	})
	if err != nil {
		return nil, memory.Unavailable("vector query", err)
	}

	ranked := memory.RankCandidates(q.Vector, pool, q.Limit)
	for i := range ranked {
		ranked[i].Memory = ranked[i].Memory.Clone()
	}
	return ranked, nil
}

// PruneOlderThan implements memory.Store. Every deletion commits in its own
// transaction.
func (s *Store) PruneOlderThan(ctx context.Context, owner string, tier memory.Tier, cutoff time.Time) (int, error) {
	prefix := []byte(memoryKeyPrefix)
	if owner != "" {
		prefix = ownerPrefix(owner)
	}

	type target struct{ owner, id string }
	var targets []target
	err := s.scan(ctx, prefix, owner, func(rec *memory.Memory) error {
		if rec.Tier == tier && rec.CreatedAt.Before(cutoff) {
			targets = append(targets, target{rec.Owner, rec.ID})
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	pruned := 0
	for _, tg := range targets {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		removed, err := s.pruneOne(tg.owner, tg.id, tier, cutoff)
		if err != nil {
			return pruned, memory.Unavailable("prune", err)
		}
		if removed {
			pruned++
		}
	}
	return pruned, nil
}

func (s *Store) pruneOne(owner, id string, tier memory.Tier, cutoff time.Time) (bool, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		rec, err := s.load(txn, owner, id)
		if errors.Is(err, memory.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if rec.Tier != tier || !rec.CreatedAt.Before(cutoff) {
			return nil
		}
		removed = true
		return s.remove(txn, rec)
	})
	return removed, err
}

// List implements memory.Store.
func (s *Store) List(ctx context.Context, owner string, tier memory.Tier) ([]*memory.Memory, error) {
	out := make([]*memory.Memory, 0)
	err := s.scan(ctx, ownerPrefix(owner), owner, func(rec *memory.Memory) error {
		if tier == "" || rec.Tier == tier {
			out = append(out, rec.Clone())
		}
		return nil
	})
	if err != nil {
		return nil, memory.Unavailable("list", err)
	}
	sortByCreated(out)
	return out, nil
}

// Close implements memory.Store.
func (s *Store) Close() error {
	if s.cache != nil {
		s.cache.Close()
	}
	return s.db.Close()
}

func sortByCreated(list []*memory.Memory) {
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ID < list[j].ID
	})
}
