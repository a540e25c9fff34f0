// Package history persists practice results in SQLite.
package history

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ColonelBlimp/cwtrainer/internal/practice"
	"github.com/ColonelBlimp/cwtrainer/internal/score"

	_ "modernc.org/sqlite" // SQLite driver.
)

// timeFormat is fixed width so stored times sort as text.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store wraps SQLite access for session history.
type Store struct {
	db *sql.DB
	// limit is how many sessions are kept; 0 keeps everything
	limit int
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string, limit int) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db, limit: limit}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			started_at TEXT NOT NULL,
			ended_at TEXT NOT NULL,
			text TEXT NOT NULL,
			played TEXT NOT NULL,
			transcription TEXT NOT NULL,
			completed INTEGER NOT NULL,
			wpm INTEGER NOT NULL,
			group_size INTEGER NOT NULL,
			correct INTEGER,
			total INTEGER,
			percentage INTEGER
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_ended_at ON sessions(ended_at);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record stores a result and prunes sessions beyond the store's limit.
func (s *Store) Record(ctx context.Context, r practice.Result) (err error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}

	var correct, total, percentage sql.NullInt64
	if r.Score != nil {
		correct = sql.NullInt64{Int64: int64(r.Score.Correct), Valid: true}
		total = sql.NullInt64{Int64: int64(r.Score.Total), Valid: true}
		percentage = sql.NullInt64{Int64: int64(r.Score.Percentage), Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rerr := tx.Rollback(); rerr != nil {
				// Best-effort rollback.
				_ = rerr
			}
		}
	}()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO sessions (id, started_at, ended_at, text, played, transcription, completed, wpm, group_size, correct, total, percentage)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID,
		r.StartedAt.UTC().Format(timeFormat),
		r.EndedAt.UTC().Format(timeFormat),
		r.Text,
		r.Played,
		r.Transcription,
		r.Completed,
		r.WPM,
		r.GroupSize,
		correct,
		total,
		percentage,
	)
	if err != nil {
		return err
	}

	if s.limit > 0 {
		_, err = tx.ExecContext(ctx,
			`DELETE FROM sessions WHERE id NOT IN (
				SELECT id FROM sessions ORDER BY ended_at DESC, rowid DESC LIMIT ?
			)`, s.limit)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Recent returns up to limit results, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]practice.Result, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, ended_at, text, played, transcription, completed, wpm, group_size, correct, total, percentage
		 FROM sessions
		 ORDER BY ended_at DESC, rowid DESC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			// Best-effort rows close.
			_ = cerr
		}
	}()

	var results []practice.Result
	for rows.Next() {
		var (
			r                          practice.Result
			startedAt, endedAt         string
			correct, total, percentage sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &startedAt, &endedAt, &r.Text, &r.Played, &r.Transcription,
			&r.Completed, &r.WPM, &r.GroupSize, &correct, &total, &percentage); err != nil {
			return nil, err
		}
		if r.StartedAt, err = time.Parse(timeFormat, startedAt); err != nil {
			return nil, err
		}
		if r.EndedAt, err = time.Parse(timeFormat, endedAt); err != nil {
			return nil, err
		}
		if correct.Valid {
			r.Score = &score.Score{
				Correct:    int(correct.Int64),
				Total:      int(total.Int64),
				Percentage: int(percentage.Int64),
			}
		}
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// Count returns the number of stored sessions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}
