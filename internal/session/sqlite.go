package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite is a durable Store backed by a SQLite database. Each chunk result
// is its own row, so an append is a single INSERT and concurrent chunk
// uploads cannot clobber one another.
type SQLite struct {
	db *sql.DB
}

var _ Store = (*SQLite)(nil)

// NewSQLite opens (creating if needed) the session database at dbPath.
func NewSQLite(dbPath string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open session db: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`PRAGMA foreign_keys = ON;`,
		`CREATE TABLE IF NOT EXISTS upload_sessions (
			path TEXT PRIMARY KEY,
			session_id TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS chunk_results (
			session_id TEXT NOT NULL,
			part_number INTEGER NOT NULL,
			handle TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_chunk_results_session ON chunk_results(session_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("init session schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) SetSessionID(ctx context.Context, path string, sessionID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO upload_sessions(path, session_id, created_at)
		 VALUES(?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
		 	session_id=excluded.session_id,
		 	created_at=excluded.created_at`,
		path, sessionID, now,
	)
	if err != nil {
		return fmt.Errorf("set session id: %w", err)
	}
	return nil
}

func (s *SQLite) SessionID(ctx context.Context, path string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id FROM upload_sessions WHERE path = ?`, path,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get session id: %w", err)
	}
	return id, nil
}

func (s *SQLite) AppendChunk(ctx context.Context, sessionID string, result ChunkResult) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunk_results(session_id, part_number, handle, created_at)
		 VALUES(?, ?, ?, ?)`,
		sessionID, result.PartNumber, result.Handle, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("append chunk result: %w", err)
	}
	return nil
}

func (s *SQLite) ChunkResults(ctx context.Context, sessionID string) ([]ChunkResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT part_number, handle FROM chunk_results WHERE session_id = ? ORDER BY rowid`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list chunk results: %w", err)
	}
	defer rows.Close()

	var results []ChunkResult
	for rows.Next() {
		var cr ChunkResult
		if err := rows.Scan(&cr.PartNumber, &cr.Handle); err != nil {
			return nil, fmt.Errorf("scan chunk result: %w", err)
		}
		results = append(results, cr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list chunk results: %w", err)
	}
	return results, nil
}

func (s *SQLite) Clear(ctx context.Context, path string, sessionID string) error {
	return withTransaction(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM upload_sessions WHERE path = ? AND session_id = ?`,
			path, sessionID,
		); err != nil {
			return fmt.Errorf("clear session mapping: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunk_results WHERE session_id = ?`, sessionID,
		); err != nil {
			return fmt.Errorf("clear chunk results: %w", err)
		}
		return nil
	})
}

// withTransaction runs a function within a database transaction.
func withTransaction(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}
