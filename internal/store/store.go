// Package store provides the shared document store backing profile data.
// One SQLite handle serves the whole process; a single mutex covers the
// connection so every operation, including multi-step sequences and the
// file writes riding on them, runs serialized.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// FileName is the store's on-disk file name under the application data
// directory.
const FileName = "switchyard.db"

// Store owns the SQLite handle. Access goes through Do, which holds the
// store lock for the callback's full duration.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
	lastOp atomic.Int64 // unix nanos of the most recent Do; lets the watcher tell local writes from foreign ones
}

// Document is one stored record.
type Document struct {
	ID   string
	Body []byte
}

// Session exposes document operations to a Do callback. It is only valid
// for the callback's duration.
type Session struct {
	ctx context.Context
	db  *sql.DB
}

// Open opens or creates the store file at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	dsn := path + "?" + url.Values{
		"_pragma": []string{
			"busy_timeout(30000)",
			"journal_mode(WAL)",
			"synchronous(NORMAL)",
		},
	}.Encode()

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open store db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	store := &Store{db: db, dbPath: path}
	if err := store.initSchema(); err != nil {
		wrappedInitErr := fmt.Errorf("initialize store schema for %q: %w", path, err)
		if closeErr := db.Close(); closeErr != nil {
			return nil, errors.Join(
				wrappedInitErr,
				fmt.Errorf("close store db %q after init failure: %w", path, closeErr),
			)
		}
		return nil, wrappedInitErr
	}
	return store, nil
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize document schema: %w", err)
	}
	return nil
}

// Path returns the store's on-disk location.
func (s *Store) Path() string {
	return s.dbPath
}

// Do runs fn under the store lock. The lock is held until fn returns, so a
// callback spanning several document operations observes and produces a
// serialized view; no other mutator can interleave mid-sequence.
func (s *Store) Do(ctx context.Context, fn func(*Session) error) error {
	s.mu.Lock()
	defer func() {
		s.lastOp.Store(time.Now().UnixNano())
		s.mu.Unlock()
	}()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&Session{ctx: ctx, db: s.db})
}

// LastOperation reports when the most recent Do finished.
func (s *Store) LastOperation() time.Time {
	return time.Unix(0, s.lastOp.Load())
}

// Close closes the underlying handle. In-flight Do callbacks finish first.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close store db %q: %w", s.dbPath, err)
	}
	return nil
}

// Get fetches one document body. The second return reports presence.
func (s *Session) Get(collection, id string) ([]byte, bool, error) {
	var body string
	err := s.db.QueryRowContext(s.ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query document %s/%s: %w", collection, id, err)
	}
	return []byte(body), true, nil
}

// All returns every document in a collection ordered by id.
func (s *Session) All(collection string) (docs []Document, err error) {
	rows, err := s.db.QueryContext(s.ctx,
		`SELECT id, body FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("query documents %s: %w", collection, err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			wrappedCloseErr := fmt.Errorf("close document rows %s: %w", collection, closeErr)
			if err != nil {
				err = errors.Join(err, wrappedCloseErr)
				return
			}
			err = wrappedCloseErr
		}
	}()

	for rows.Next() {
		var doc Document
		var body string
		if scanErr := rows.Scan(&doc.ID, &body); scanErr != nil {
			return nil, fmt.Errorf("scan document row %s: %w", collection, scanErr)
		}
		doc.Body = []byte(body)
		docs = append(docs, doc)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, fmt.Errorf("iterate document rows %s: %w", collection, rowsErr)
	}
	return docs, nil
}

// Put writes a document, replacing any existing record under the same id.
func (s *Session) Put(collection, id string, body []byte) error {
	_, err := s.db.ExecContext(s.ctx, `
		INSERT INTO documents (collection, id, body)
		VALUES (?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET body=excluded.body
	`, collection, id, string(body))
	if err != nil {
		return fmt.Errorf("upsert document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes a document, absent ids included.
func (s *Session) Delete(collection, id string) error {
	_, err := s.db.ExecContext(s.ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document %s/%s: %w", collection, id, err)
	}
	return nil
}

// Count reports how many documents a collection holds.
func (s *Session) Count(collection string) (int, error) {
	var count int
	err := s.db.QueryRowContext(s.ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count documents %s: %w", collection, err)
	}
	return count, nil
}
