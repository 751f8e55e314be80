package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes. Old databases must be
// deleted after a bump.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const timeLayout = time.RFC3339

// ChannelOutcome records per-channel counters for one run.
type ChannelOutcome struct {
	RunID        string
	Channel      string
	Fetched      int
	Skipped      int
	Redownloaded int
	Failed       int
	Summarized   int
	Error        string
}

// Run is one harvest run's summary row.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	ChannelsTotal  int
	ChannelsFailed int
	ItemsFetched   int
	ItemsSkipped   int
	ItemsRedone    int
	ItemsFailed    int
	ItemsSummed    int
	Error          string
}

// Store persists harvest run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the run history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create runlog directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to reset)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// StartRun inserts the initial row for a run.
func (s *Store) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at) VALUES (?, ?)",
		runID, startedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("record run start: %w", err)
	}
	return nil
}

// FinishRun fills in the final counters for a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, channels_total = ?, channels_failed = ?,
		 items_fetched = ?, items_skipped = ?, items_redownloaded = ?,
		 items_failed = ?, items_summarized = ?, error = ?
		 WHERE id = ?`,
		run.FinishedAt.UTC().Format(timeLayout), run.ChannelsTotal, run.ChannelsFailed,
		run.ItemsFetched, run.ItemsSkipped, run.ItemsRedone,
		run.ItemsFailed, run.ItemsSummed, run.Error,
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("record run finish: %w", err)
	}
	return nil
}

// RecordChannel upserts the per-channel counters for a run.
func (s *Store) RecordChannel(ctx context.Context, outcome ChannelOutcome) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO channel_outcomes
		 (run_id, channel, fetched, skipped, redownloaded, failed, summarized, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(run_id, channel) DO UPDATE SET
		 fetched = excluded.fetched, skipped = excluded.skipped,
		 redownloaded = excluded.redownloaded, failed = excluded.failed,
		 summarized = excluded.summarized, error = excluded.error`,
		outcome.RunID, outcome.Channel, outcome.Fetched, outcome.Skipped,
		outcome.Redownloaded, outcome.Failed, outcome.Summarized, outcome.Error,
	)
	if err != nil {
		return fmt.Errorf("record channel outcome: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, channels_total, channels_failed,
		 items_fetched, items_skipped, items_redownloaded, items_failed,
		 items_summarized, error
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		var started, finished string
		if err := rows.Scan(&run.ID, &started, &finished, &run.ChannelsTotal,
			&run.ChannelsFailed, &run.ItemsFetched, &run.ItemsSkipped,
			&run.ItemsRedone, &run.ItemsFailed, &run.ItemsSummed, &run.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt, _ = time.Parse(timeLayout, started)
		if finished != "" {
			run.FinishedAt, _ = time.Parse(timeLayout, finished)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// ChannelOutcomes returns the per-channel rows for one run.
func (s *Store) ChannelOutcomes(ctx context.Context, runID string) ([]ChannelOutcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, channel, fetched, skipped, redownloaded, failed, summarized, error
		 FROM channel_outcomes WHERE run_id = ? ORDER BY channel`, runID)
	if err != nil {
		return nil, fmt.Errorf("query channel outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []ChannelOutcome
	for rows.Next() {
		var o ChannelOutcome
		if err := rows.Scan(&o.RunID, &o.Channel, &o.Fetched, &o.Skipped,
			&o.Redownloaded, &o.Failed, &o.Summarized, &o.Error); err != nil {
			return nil, fmt.Errorf("scan channel outcome: %w", err)
		}
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
