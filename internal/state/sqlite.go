package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps one row per stream. The format column records which
// state layout wrote the row.
type SQLiteStore struct {
	db *sqlx.DB
}

type streamRow struct {
	Stream    string    `db:"stream"`
	State     string    `db:"state"`
	Format    int       `db:"format"`
	RunID     string    `db:"run_id"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewSQLiteStore opens (or creates) the database at dbPath and applies any
// pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Streams checkpoint concurrently; SQLite takes one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("executing %q: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}
	return nil
}

// Load assembles the document from every row. The document is as old as
// its oldest row.
func (s *SQLiteStore) Load(ctx context.Context) (Document, error) {
	var rows []streamRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT stream, state, format, run_id, updated_at FROM stream_state ORDER BY stream",
	)
	if err != nil {
		return Document{}, fmt.Errorf("querying stream state: %w", err)
	}

	doc := NewDocument()
	for _, row := range rows {
		st, err := decodeStreamState(row.State)
		if err != nil {
			return Document{}, fmt.Errorf("stream %s: %w", row.Stream, err)
		}
		doc.Streams[row.Stream] = st
		if row.Format < doc.Version {
			doc.Version = row.Format
		}
		if row.UpdatedAt.After(doc.SavedAt) {
			doc.SavedAt = row.UpdatedAt
			doc.RunID = row.RunID
		}
	}
	return doc, nil
}

func (s *SQLiteStore) Checkpoint(ctx context.Context, cp Checkpoint) error {
	raw, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("marshaling %s state: %w", cp.Stream, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO stream_state (stream, state, format, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		cp.Stream, string(raw), CurrentVersion, cp.RunID, cp.At.UTC(),
	)
	if err != nil {
		return fmt.Errorf("saving %s state: %w", cp.Stream, err)
	}
	return nil
}

// Replace swaps every row for the streams in doc.
func (s *SQLiteStore) Replace(ctx context.Context, doc Document) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM stream_state"); err != nil {
		return fmt.Errorf("clearing stream state: %w", err)
	}

	stmt, err := tx.PreparexContext(ctx, `
		INSERT INTO stream_state (stream, state, format, run_id, updated_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert statement: %w", err)
	}
	defer stmt.Close()

	savedAt := doc.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}
	for _, name := range doc.Names() {
		raw, err := json.Marshal(doc.Streams[name])
		if err != nil {
			return fmt.Errorf("marshaling %s state: %w", name, err)
		}
		if _, err := stmt.ExecContext(ctx, name, string(raw), doc.Version, doc.RunID, savedAt.UTC()); err != nil {
			return fmt.Errorf("inserting %s state: %w", name, err)
		}
	}
	return tx.Commit()
}
