// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package backup preserves each run's results on disk before delivery is
// attempted, so a failed send never loses a morning's papers. Every run is
// appended to a SQLite log and mirrored to a standalone YAML snapshot; the
// pipeline only ever writes here, and the runs command reads the log back
// for inspection.
package backup

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/paperwatch/pkg/types"
)

const dbFile = "paperwatch.db"

// Store manages the run-log SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the run log at dir/paperwatch.db, creating the
// directory and schema as needed.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating backup directory: %w", err)
	}

	dbPath := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			created_at TEXT NOT NULL,
			query TEXT NOT NULL,
			interests TEXT,
			window_from TEXT NOT NULL,
			window_to TEXT NOT NULL,
			variant TEXT NOT NULL,
			paper_count INTEGER NOT NULL,
			warnings TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS papers (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			position INTEGER NOT NULL,
			title TEXT NOT NULL,
			doi TEXT,
			url TEXT,
			abstract TEXT,
			authors TEXT,
			published TEXT,
			source TEXT,
			bullets TEXT,
			score INTEGER,
			rated INTEGER,
			failure_reason TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_papers_run_id ON papers(run_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	return nil
}

// SaveRun appends one run and its papers to the log in a single
// transaction. Papers are stored in ranked order via their position column.
func (s *Store) SaveRun(ctx context.Context, snap Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	queryJSON, _ := json.Marshal(snap.Query)
	warningsJSON, _ := json.Marshal(snap.Warnings)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, created_at, query, interests, window_from, window_to, variant, paper_count, warnings)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.RunID, snap.Timestamp.UTC().Format(time.RFC3339),
		string(queryJSON), snap.Interests,
		snap.From.UTC().Format(time.RFC3339), snap.To.UTC().Format(time.RFC3339),
		snap.Variant, len(snap.Papers), string(warningsJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO papers (run_id, position, title, doi, url, abstract, authors, published, source, bullets, score, rated, failure_reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, p := range snap.Papers {
		authorsJSON, _ := json.Marshal(p.Authors)
		bulletsJSON, _ := json.Marshal(p.Bullets)
		published := ""
		if !p.Published.IsZero() {
			published = p.Published.UTC().Format(time.RFC3339)
		}
		_, err := stmt.ExecContext(ctx,
			snap.RunID, i, p.Title, p.DOI, p.URL, p.Abstract,
			string(authorsJSON), published, string(p.Source),
			string(bulletsJSON), p.Score, p.Rated, p.FailureReason,
		)
		if err != nil {
			return fmt.Errorf("inserting paper %q: %w", p.Title, err)
		}
	}

	return tx.Commit()
}

// RunSummary is one row of the run log listing.
type RunSummary struct {
	RunID      string
	Timestamp  time.Time
	Variant    string
	PaperCount int
}

// Runs lists logged runs, newest first.
func (s *Store) Runs(ctx context.Context) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, created_at, variant, paper_count FROM runs ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var summaries []RunSummary
	for rows.Next() {
		var (
			rs      RunSummary
			created string
		)
		if err := rows.Scan(&rs.RunID, &created, &rs.Variant, &rs.PaperCount); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rs.Timestamp, _ = time.Parse(time.RFC3339, created)
		summaries = append(summaries, rs)
	}

	return summaries, rows.Err()
}

// LoadRun reads one logged run back as a Snapshot, papers in stored order.
func (s *Store) LoadRun(ctx context.Context, runID string) (Snapshot, error) {
	var (
		snap         Snapshot
		created      string
		queryJSON    string
		from, to     string
		warningsJSON sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, created_at, query, interests, window_from, window_to, variant, warnings
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&snap.RunID, &created, &queryJSON, &snap.Interests, &from, &to, &snap.Variant, &warningsJSON)
	if err != nil {
		if err == sql.ErrNoRows {
			return Snapshot{}, fmt.Errorf("run %s not found", runID)
		}
		return Snapshot{}, fmt.Errorf("looking up run: %w", err)
	}

	snap.Timestamp, _ = time.Parse(time.RFC3339, created)
	snap.From, _ = time.Parse(time.RFC3339, from)
	snap.To, _ = time.Parse(time.RFC3339, to)
	json.Unmarshal([]byte(queryJSON), &snap.Query)
	if warningsJSON.Valid {
		json.Unmarshal([]byte(warningsJSON.String), &snap.Warnings)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, doi, url, abstract, authors, published, source, bullets, score, rated, failure_reason
		 FROM papers WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("querying papers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p           types.PaperRecord
			authorsJSON sql.NullString
			published   sql.NullString
			source      string
			bulletsJSON sql.NullString
		)
		if err := rows.Scan(
			&p.Title, &p.DOI, &p.URL, &p.Abstract, &authorsJSON,
			&published, &source, &bulletsJSON, &p.Score, &p.Rated, &p.FailureReason,
		); err != nil {
			return Snapshot{}, fmt.Errorf("scanning row: %w", err)
		}

		p.Source = types.SourceName(source)
		if authorsJSON.Valid {
			json.Unmarshal([]byte(authorsJSON.String), &p.Authors)
		}
		if bulletsJSON.Valid {
			json.Unmarshal([]byte(bulletsJSON.String), &p.Bullets)
		}
		if published.Valid && published.String != "" {
			p.Published, _ = time.Parse(time.RFC3339, published.String)
		}

		snap.Papers = append(snap.Papers, p)
	}

	return snap, rows.Err()
}
