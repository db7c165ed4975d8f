package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aryannaik/nexus/internal/nexus"
)

// ErrDimensionMismatch means a vector's length differs from the store's.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Store keeps every entry in memory for scoring and persists it to SQLite.
// Reads share the lock; writes hold it exclusively and commit to disk before
// the in-memory view changes.
type Store struct {
	mu      sync.RWMutex
	db      *sql.DB
	entries []Entry
	dims    int
}

// Open opens (or creates) the database at path and loads all entries.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.load(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load: %w", err)
	}

	slog.Info("memory store opened", "path", path, "entries", len(s.entries), "dims", s.dims)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS memories (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			tags TEXT NOT NULL DEFAULT '[]',
			metadata TEXT NOT NULL DEFAULT '{}',
			embedding TEXT NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return s.addColumn("memories", "metadata", `TEXT NOT NULL DEFAULT '{}'`)
}

// addColumn adds a column to a table created by an older schema.
func (s *Store) addColumn(table, column, decl string) error {
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info(?)`, table)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", table, err)
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	rows.Close()

	if _, err := s.db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, decl)); err != nil {
		return fmt.Errorf("add %s.%s: %w", table, column, err)
	}
	slog.Info("memory schema upgraded", "table", table, "column", column)
	return nil
}

func (s *Store) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dims string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = 'dims'`).Scan(&dims)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("read dims: %w", err)
	default:
		if s.dims, err = strconv.Atoi(dims); err != nil {
			return fmt.Errorf("parse dims %q: %w", dims, err)
		}
	}

	rows, err := s.db.Query(`SELECT id, text, tags, metadata, embedding, created_at FROM memories ORDER BY created_at`)
	if err != nil {
		return fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	s.entries = nil
	for rows.Next() {
		var e Entry
		var tagsJSON, metaJSON, embJSON string
		var created int64
		if err := rows.Scan(&e.ID, &e.Text, &tagsJSON, &metaJSON, &embJSON, &created); err != nil {
			return fmt.Errorf("scan memory: %w", err)
		}
		if err := json.Unmarshal([]byte(tagsJSON), &e.Tags); err != nil {
			return fmt.Errorf("decode tags of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &e.Metadata); err != nil {
			return fmt.Errorf("decode metadata of %s: %w", e.ID, err)
		}
		if err := json.Unmarshal([]byte(embJSON), &e.Embedding); err != nil {
			return fmt.Errorf("decode embedding of %s: %w", e.ID, err)
		}
		if len(e.Embedding) != s.dims {
			slog.Warn("skipping memory with wrong dimension", "id", e.ID, "dims", len(e.Embedding), "want", s.dims)
			continue
		}
		e.CreatedAt = time.Unix(0, created).UTC()
		s.entries = append(s.entries, e)
	}
	return rows.Err()
}

// Insert persists e. The first insert fixes the store's dimension.
func (s *Store) Insert(ctx context.Context, e Entry) error {
	if len(e.Embedding) == 0 {
		return fmt.Errorf("insert %s: empty embedding", e.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dims != 0 && len(e.Embedding) != s.dims {
		return fmt.Errorf("insert %s: %w: got %d, store has %d", e.ID, ErrDimensionMismatch, len(e.Embedding), s.dims)
	}

	tags := e.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}
	meta := e.Metadata
	if meta == nil {
		meta = nexus.Metadata{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	embJSON, err := json.Marshal(e.Embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.dims == 0 {
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO meta (key, value) VALUES ('dims', ?)`,
			strconv.Itoa(len(e.Embedding))); err != nil {
			return fmt.Errorf("write dims: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO memories (id, text, tags, metadata, embedding, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Text, string(tagsJSON), string(metaJSON), string(embJSON), e.CreatedAt.UnixNano()); err != nil {
		return fmt.Errorf("insert memory: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	if s.dims == 0 {
		s.dims = len(e.Embedding)
	}
	e.Tags = tags
	e.Metadata = meta
	s.entries = append(s.entries, e)
	return nil
}

// Delete removes an entry. Unknown IDs return nexus.ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.entries, func(e Entry) bool { return e.ID == id })
	if i < 0 {
		return fmt.Errorf("memory %s: %w", id, nexus.ErrNotFound)
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete memory: %w", err)
	}
	s.entries = slices.Delete(s.entries, i, i+1)
	return nil
}

// Get returns the entry with the given ID.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return Entry{}, fmt.Errorf("memory %s: %w", id, nexus.ErrNotFound)
}

// Recent returns up to limit entries, newest first.
func (s *Store) Recent(limit int) []Entry {
	s.mu.RLock()
	out := slices.Clone(s.entries)
	s.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Entry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

// Count returns the number of stored entries.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Dims returns the store's vector dimension, or 0 before the first insert.
func (s *Store) Dims() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dims
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
