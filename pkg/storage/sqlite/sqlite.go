// Package sqlite provides a SQLite implementation of the memory store.
//
// Search uses Go-side cosine similarity over the owner's rows: the pure-Go
// modernc.org/sqlite driver cannot load vector extensions, and at the scale
// of one user's memories a scan is fast enough.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/goclaw/recall/pkg/memory"
	"github.com/goclaw/recall/pkg/storage"
)

// Config holds configuration for Store.
type Config struct {
	// Path is the database file. ":memory:" keeps everything in process.
	Path      string
	Dimension int
}

// Store implements memory.Store on SQLite.
type Store struct {
	db  *sql.DB
	dim int
	now func() time.Time
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

// NewStore opens or creates the database at config.Path.
func NewStore(config Config, opts ...Option) (*Store, error) {
	dsn := config.Path
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create db dir: %w", err)
			}
		}
		dsn += "?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &memory.StoreUnavailableError{Op: "open", Cause: err}
	}
	// One connection: ":memory:" databases are per connection, and a single
	// writer avoids SQLITE_BUSY on concurrent access touches.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, dim: config.Dimension, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return s, nil
}

var _ memory.Store = (*Store)(nil)

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS memories (
		id           TEXT PRIMARY KEY,
		owner        TEXT NOT NULL,
		tier         TEXT NOT NULL,
		content      TEXT NOT NULL,
		embedding    BLOB,
		metadata     TEXT NOT NULL DEFAULT '{}',
		created_at   INTEGER NOT NULL,
		accessed_at  INTEGER NOT NULL,
		access_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_memories_owner_tier ON memories(owner, tier);
	CREATE INDEX IF NOT EXISTS idx_memories_tier_created ON memories(tier, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

const selectColumns = `id, owner, tier, content, embedding, metadata, created_at, accessed_at, access_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMemory(row rowScanner) (*memory.Memory, error) {
	var (
		m                 memory.Memory
		tier, metaJSON    string
		embedding         []byte
		created, accessed int64
	)
	err := row.Scan(&m.ID, &m.Owner, &tier, &m.Content, &embedding, &metaJSON, &created, &accessed, &m.AccessCount)
	if err != nil {
		return nil, err
	}
	m.Tier = memory.Tier(tier)
	if m.Embedding, err = storage.DecodeVector(embedding); err != nil {
		return nil, err
	}
	if m.Metadata, err = storage.DecodeMetadata(metaJSON); err != nil {
		return nil, err
	}
	m.CreatedAt = time.Unix(0, created).UTC()
	m.AccessedAt = time.Unix(0, accessed).UTC()
	return &m, nil
}

func loadTx(ctx context.Context, tx *sql.Tx, owner, id string) (*memory.Memory, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM memories WHERE id = ? AND owner = ?`, id, owner)
	m, err := scanMemory(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.NotFound(id)
	}
	return m, err
}

// withTx runs fn in a transaction and commits when it returns nil.
func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Insert implements memory.Store.
func (s *Store) Insert(ctx context.Context, m *memory.Memory) error {
	rec, err := storage.PrepareInsert(m, s.dim, s.now())
	if err != nil {
		return err
	}
	meta, err := storage.EncodeMetadata(rec.Metadata)
	if err != nil {
		return err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM memories WHERE id = ?`, rec.ID).Scan(&exists)
		if err == nil {
			return &storage.DuplicateKeyError{EntityType: "memory", ID: rec.ID}
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO memories (`+selectColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, 0)`,
			rec.ID, rec.Owner, string(rec.Tier), rec.Content, storage.EncodeVector(rec.Embedding), meta,
			rec.CreatedAt.UnixNano(), rec.AccessedAt.UnixNano(),
		)
		return err
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

// Get implements memory.Store.
func (s *Store) Get(ctx context.Context, owner, id string) (*memory.Memory, error) {
	var out *memory.Memory
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := loadTx(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		rec.Touch(s.now())
		_, err = tx.ExecContext(ctx,
			`UPDATE memories SET accessed_at = ?, access_count = ? WHERE id = ?`,
			rec.AccessedAt.UnixNano(), rec.AccessCount, rec.ID,
		)
		out = rec
		return err
	})
	if err != nil {
		return nil, memory.Unavailable("get", err)
	}
	return out, nil
}

// Update implements memory.Store.
func (s *Store) Update(ctx context.Context, owner, id string, patch memory.Patch) (*memory.Memory, error) {
	if err := patch.Validate(s.dim); err != nil {
		return nil, err
	}

	var out *memory.Memory
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rec, err := loadTx(ctx, tx, owner, id)
		if err != nil {
			return err
		}
		patch.Apply(rec)
		meta, err := storage.EncodeMetadata(rec.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE memories SET content = ?, embedding = ?, metadata = ? WHERE id = ?`,
			rec.Content, storage.EncodeVector(rec.Embedding), meta, rec.ID,
		)
		out = rec
		return err
	})
	if err != nil {
		return nil, memory.Unavailable("update", err)
	}
	return out, nil
}

// Delete implements memory.Store.
func (s *Store) Delete(ctx context.Context, owner, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return false, memory.Unavailable("delete", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, memory.Unavailable("delete", err)
	}
	return n > 0, nil
}

func tierClause(tiers []memory.Tier, args []any) (string, []any) {
	if len(tiers) == 0 {
		return "", args
	}
	marks := make([]string, len(tiers))
	for i, t := range tiers {
		marks[i] = "?"
		args = append(args, string(t))
	}
	return " AND tier IN (" + strings.Join(marks, ", ") + ")", args
}

// VectorQuery implements memory.Store.
func (s *Store) VectorQuery(ctx context.Context, q memory.VectorQuery) ([]memory.Candidate, error) {
	if len(q.Vector) != s.dim {
		return nil, &memory.DimensionMismatchError{Expected: s.dim, Got: len(q.Vector)}
	}

	clause, args := tierClause(q.Tiers, []any{q.Owner})
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM memories WHERE owner = ? AND embedding IS NOT NULL`+clause, args...)
	if err != nil {
		return nil, memory.Unavailable("vector query", err)
	}
	defer rows.Close()

	var pool []*memory.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, memory.Unavailable("vector query", err)
		}
		pool = append(pool, m)
	}
	if err := rows.Err(); err != nil {
		return nil, memory.Unavailable("vector query", err)
	}

	return memory.RankCandidates(q.Vector, pool, q.Limit), nil
}

// PruneOlderThan implements memory.Store. Rows are deleted one statement at
// a time so a cancelled sweep keeps what it already removed.
func (s *Store) PruneOlderThan(ctx context.Context, owner string, tier memory.Tier, cutoff time.Time) (int, error) {
	query := `SELECT id FROM memories WHERE tier = ? AND created_at < ?`
	args := []any{string(tier), cutoff.UnixNano()}
	if owner != "" {
		query += ` AND owner = ?`
		args = append(args, owner)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, memory.Unavailable("prune", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, memory.Unavailable("prune", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, memory.Unavailable("prune", err)
	}

	pruned := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return pruned, err
		}
		res, err := s.db.ExecContext(ctx,
			`DELETE FROM memories WHERE id = ? AND tier = ? AND created_at < ?`,
			id, string(tier), cutoff.UnixNano())
		if err != nil {
			return pruned, memory.Unavailable("prune", err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			pruned++
		}
	}
	return pruned, nil
}

// List implements memory.Store.
func (s *Store) List(ctx context.Context, owner string, tier memory.Tier) ([]*memory.Memory, error) {
	var tiers []memory.Tier
	if tier != "" {
		tiers = []memory.Tier{tier}
	}
	clause, args := tierClause(tiers, []any{owner})
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM memories WHERE owner = ?`+clause+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, memory.Unavailable("list", err)
	}
	defer rows.Close()

	out := make([]*memory.Memory, 0)
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, memory.Unavailable("list", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, memory.Unavailable("list", err)
	}
	return out, nil
}

// Close implements memory.Store.
func (s *Store) Close() error {
	return s.db.Close()
}
