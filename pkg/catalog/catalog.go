// Package catalog keeps a local ledger of ingestion runs in SQLite. The
// vector database remains the source of truth for points; the catalog only
// answers "what was ingested, when, and how did it go".
package catalog

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jllopis/bestrag/pkg/rag"
)

// Store persists ingestion records in SQLite. It implements
// rag.IngestRecorder.
type Store struct {
	db *sql.DB
}

// Entry is one recorded ingestion run.
type Entry struct {
	ID         int64
	Filename   string
	Checksum   string
	Collection string
	Pages      int
	Written    int
	Skipped    int
	Failed     int
	IngestedAt time.Time
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordIngest stores a single ingestion record.
func (s *Store) RecordIngest(ctx context.Context, rec rag.IngestRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingest_runs (
			filename, checksum, collection, pages, written, skipped, failed, ingested_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.Filename,
		rec.Checksum,
		rec.Collection,
		rec.Pages,
		rec.Written,
		rec.Skipped,
		rec.Failed,
		rec.IngestedAt.UTC(),
	)
	return err
}

// List returns the most recent runs, newest first. A non-positive limit
// returns everything.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, filename, checksum, collection, pages, written, skipped, failed, ingested_at
		FROM ingest_runs
		ORDER BY ingested_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			ingested sql.NullTime
		)
		if err := rows.Scan(
			&e.ID,
			&e.Filename,
			&e.Checksum,
			&e.Collection,
			&e.Pages,
			&e.Written,
			&e.Skipped,
			&e.Failed,
			&ingested,
		); err != nil {
			return nil, err
		}
		if ingested.Valid {
			e.IngestedAt = ingested.Time
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Lookup returns the latest run for a filename, if any.
func (s *Store) Lookup(ctx context.Context, filename string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, filename, checksum, collection, pages, written, skipped, failed, ingested_at
		FROM ingest_runs
		WHERE filename = ?
		ORDER BY ingested_at DESC, id DESC
		LIMIT 1
	`, filename)

	var (
		e        Entry
		ingested sql.NullTime
	)
	err := row.Scan(&e.ID, &e.Filename, &e.Checksum, &e.Collection, &e.Pages, &e.Written, &e.Skipped, &e.Failed, &ingested)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if ingested.Valid {
		e.IngestedAt = ingested.Time
	}
	return &e, nil
}

func ensureSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS ingest_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			filename TEXT NOT NULL,
			checksum TEXT NOT NULL DEFAULT '',
			collection TEXT NOT NULL,
			pages INTEGER NOT NULL,
			written INTEGER NOT NULL,
			skipped INTEGER NOT NULL,
			failed INTEGER NOT NULL,
			ingested_at TIMESTAMP NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_ingest_runs_filename ON ingest_runs(filename);
		CREATE INDEX IF NOT EXISTS idx_ingest_runs_collection ON ingest_runs(collection);
	`)
	return err
}
