package audit

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"conceptid/internal/extid"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current ledger schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the ledger schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("ledger schema version mismatch")

// Run summarizes one remediation run recorded in the ledger.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	DryRun     bool
	Target     string
	AuditFile  string
	Total      int
	Processed  int
	Tally      extid.Tally
	Error      string
}

// Finished reports whether the run recorded a completion time.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// Ledger persists runs and audit rows in SQLite.
type Ledger struct {
	db   *sql.DB
	path string
}

// OpenLedger initializes or connects to the ledger database at path.
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
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
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	ledger := &Ledger{db: db, path: path}
	if err := ledger.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return ledger, nil
}

// Path returns the database file location.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the underlying database connection.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) initSchema(ctx context.Context) error {
	var tableExists int
	err := l.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return l.createSchema(ctx)
	}

	var version int
	if err := l.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: ledger has version %d, expected %d (delete %s to start a new ledger)",
			ErrSchemaMismatch, version, schemaVersion, l.path)
	}
	return nil
}

func (l *Ledger) createSchema(ctx context.Context) error {
	tx, err := l.db.BeginTx(ctx, nil)
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
	return tx.Commit()
}

// StartRun records the beginning of a run.
func (l *Ledger) StartRun(ctx context.Context, run Run) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, dry_run, target, audit_file) VALUES (?, ?, ?, ?, ?)`,
		run.ID,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		run.DryRun,
		run.Target,
		run.AuditFile,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run. runErr is recorded when the
// run aborted.
func (l *Ledger) FinishRun(ctx context.Context, runID string, total, processed int, tally extid.Tally, runErr error) error {
	var errMsg any
	if runErr != nil {
		errMsg = runErr.Error()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs
         SET finished_at = ?, total = ?, processed = ?, empty_count = ?, legacy_count = ?,
             malformed_count = ?, skipped_count = ?, error_message = ?
         WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano),
		total,
		processed,
		tally.Empty,
		tally.LegacyPrefixed,
		tally.MalformedLength,
		tally.Skipped,
		errMsg,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("finish run: run %s not found", runID)
	}
	return nil
}

// RunSink returns a Sink that records rows under runID. Closing it leaves
// the ledger open.
func (l *Ledger) RunSink(runID string) Sink {
	return &ledgerSink{ledger: l, runID: runID}
}

type ledgerSink struct {
	ledger *Ledger
	runID  string
}

func (s *ledgerSink) Append(ctx context.Context, row Row) error {
	rec := row.Record()
	_, err := s.ledger.db.ExecContext(ctx,
		`INSERT INTO audit_rows (
            run_id, recorded_at, concept_id, name, url,
            current_external_id, new_external_id, classification, status
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID,
		row.Timestamp.UTC().Format(time.RFC3339Nano),
		row.ConceptID,
		rec[2],
		row.URL,
		row.CurrentExternalID,
		row.NewExternalID,
		string(row.Classification),
		string(row.Status),
	)
	if err != nil {
		return fmt.Errorf("insert ledger row for concept %s: %w", row.ConceptID, err)
	}
	return nil
}

func (s *ledgerSink) Close() error { return nil }

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, dry_run, target, audit_file, total, processed,
                empty_count, legacy_count, malformed_count, skipped_count, error_message
         FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			run        Run
			startedAt  string
			finishedAt sql.NullString
			errMsg     sql.NullString
		)
		if err := rows.Scan(&run.ID, &startedAt, &finishedAt, &run.DryRun, &run.Target, &run.AuditFile,
			&run.Total, &run.Processed, &run.Tally.Empty, &run.Tally.LegacyPrefixed,
			&run.Tally.MalformedLength, &run.Tally.Skipped, &errMsg); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.StartedAt = parseTime(startedAt)
		if finishedAt.Valid {
			run.FinishedAt = parseTime(finishedAt.String)
		}
		run.Error = errMsg.String
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// Rows returns the audit rows recorded for runID in processing order.
func (l *Ledger) Rows(ctx context.Context, runID string) ([]Row, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT recorded_at, concept_id, name, url, current_external_id, new_external_id, classification, status
         FROM audit_rows WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query audit rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			row            Row
			recordedAt     string
			classification string
			status         string
		)
		if err := rows.Scan(&recordedAt, &row.ConceptID, &row.Name, &row.URL,
			&row.CurrentExternalID, &row.NewExternalID, &classification, &status); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		row.Timestamp = parseTime(recordedAt)
		row.Classification = extid.Classification(classification)
		row.Status = Status(status)
		out = append(out, row)
	}
	return out, rows.Err()
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
