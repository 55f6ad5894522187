package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/satlas/satlas-sync/internal/model"
)

// SQLiteStore implements Store on a local SQLite database. Metadata and
// payload bodies live in separate tables so enumeration never loads photo
// bytes. Appends run inside a transaction and the journal is configured for
// synchronous durability.
type SQLiteStore struct {
	db  *sql.DB
	mu  sync.Mutex // serializes appends so interleaved callers cannot lose updates
	log zerolog.Logger
}

// Open opens (or creates) the queue database at the given path with WAL
// journaling and full synchronous flushes.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(FULL)&_pragma=foreign_keys(ON)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewSQLiteStore opens the database and ensures the schema exists.
func NewSQLiteStore(path string, log zerolog.Logger) (*SQLiteStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	s := &SQLiteStore{db: db, log: log}
	if err := s.ensureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.observeDepth(context.Background())
	return s, nil
}

func (s *SQLiteStore) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS PendingMutations (
            MutationId TEXT PRIMARY KEY,
            Kind TEXT NOT NULL,
            Timestamp INTEGER NOT NULL,
            UserId TEXT NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS MutationPayloads (
            MutationId TEXT PRIMARY KEY
                REFERENCES PendingMutations(MutationId) ON DELETE CASCADE,
            Payload BLOB NOT NULL
        );`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Append persists the mutation atomically across both tables.
func (s *SQLiteStore) Append(ctx context.Context, m *model.PendingMutation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(m.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO PendingMutations (MutationId, Kind, Timestamp, UserId) VALUES (?,?,?,?)`,
		m.ID, string(m.Kind), m.Timestamp.UnixMicro(), m.UserID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO MutationPayloads (MutationId, Payload) VALUES (?,?)`,
		m.ID, body); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	mutationsEnqueuedTotal.WithLabelValues(string(m.Kind)).Inc()
	s.observeDepth(ctx)
	return nil
}

// List returns queued mutation metadata in insertion order.
func (s *SQLiteStore) List(ctx context.Context) ([]model.MutationRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT MutationId, Kind, Timestamp, UserId FROM PendingMutations ORDER BY rowid ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []model.MutationRecord
	for rows.Next() {
		var r model.MutationRecord
		var kind string
		var ts int64
		if err := rows.Scan(&r.ID, &kind, &ts, &r.UserID); err != nil {
			return nil, err
		}
		r.Kind = model.MutationKind(kind)
		r.Timestamp = time.UnixMicro(ts).UTC()
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Get fetches the full mutation including its payload body.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.PendingMutation, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT m.MutationId, m.Kind, m.Timestamp, m.UserId, p.Payload
           FROM PendingMutations m JOIN MutationPayloads p ON p.MutationId = m.MutationId
          WHERE m.MutationId = ?`, id)

	var m model.PendingMutation
	var kind string
	var ts int64
	var body []byte
	if err := row.Scan(&m.ID, &kind, &ts, &m.UserID, &body); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, err
	}
	m.Kind = model.MutationKind(kind)
	m.Timestamp = time.UnixMicro(ts).UTC()
	if err := json.Unmarshal(body, &m.Payload); err != nil {
		return nil, fmt.Errorf("%w: corrupt payload for %s: %v", model.ErrValidation, id, err)
	}
	return &m, nil
}

// Remove deletes the mutation and its payload. Idempotent.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.ExecContext(ctx, `DELETE FROM PendingMutations WHERE MutationId = ?`, id); err != nil {
		return err
	}
	s.observeDepth(ctx)
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) observeDepth(ctx context.Context) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM PendingMutations`).Scan(&n); err != nil {
		s.log.Warn().Err(err).Msg("queue depth query failed")
		return
	}
	queueDepth.Set(float64(n))
}
