// Package ledger keeps a local history of partition runs in SQLite so an
// operator can see what was unloaded, when, and with which checksum.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS partition_runs (
	run_id          TEXT    NOT NULL,
	job             TEXT    NOT NULL,
	partition_id    INTEGER NOT NULL,
	partition_count INTEGER NOT NULL,
	source_kind     TEXT    NOT NULL,
	sink_kind       TEXT    NOT NULL,
	started_at      TEXT    NOT NULL,
	finished_at     TEXT    NOT NULL,
	lines           INTEGER NOT NULL,
	bytes           INTEGER NOT NULL,
	checksum        TEXT    NOT NULL,
	status          TEXT    NOT NULL,
	error           TEXT    NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, partition_id)
);
CREATE INDEX IF NOT EXISTS partition_runs_job_started ON partition_runs (job, started_at);`

// Status values.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Entry is one partition run.
type Entry struct {
	RunID      string
	Job        string
	Partition  int
	Partitions int
	Source     string
	Sink       string
	Started    time.Time
	Finished   time.Time
	Lines      int64
	Bytes      int64
	Checksum   uint64

	// Err is the failure message; empty on success.
	Err string
}

// Status reports StatusSuccess or StatusFailure.
func (e Entry) Status() string {
	if e.Err != "" {
		return StatusFailure
	}
	return StatusSuccess
}

// NewRunID returns a fresh identifier shared by all partitions of one run.
func NewRunID() string { return uuid.NewString() }

// Ledger is a handle on the history database.
type Ledger struct {
	db *sql.DB
}

// Open opens (creating if needed) the ledger at dsn.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("ledger: DSN must not be empty")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: open: %w", err)
	}
	// Partitions finish concurrently; one connection serializes the writes.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ledger: create schema: %w", err)
	}
	return &Ledger{db: db}, nil
}

// Record stores e, replacing an earlier entry for the same run and partition.
func (l *Ledger) Record(ctx context.Context, e Entry) error {
	if e.RunID == "" {
		return fmt.Errorf("ledger: entry without run id")
	}
	_, err := l.db.ExecContext(ctx, `INSERT OR REPLACE INTO partition_runs
		(run_id, job, partition_id, partition_count, source_kind, sink_kind,
		 started_at, finished_at, lines, bytes, checksum, status, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Job, e.Partition, e.Partitions, e.Source, e.Sink,
		formatTime(e.Started), formatTime(e.Finished), e.Lines, e.Bytes,
		strconv.FormatUint(e.Checksum, 16), e.Status(), e.Err)
	if err != nil {
		return fmt.Errorf("ledger: record run %s partition %d: %w", e.RunID, e.Partition, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. An empty job matches
// every job.
func (l *Ledger) Recent(ctx context.Context, job string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	q := `SELECT run_id, job, partition_id, partition_count, source_kind, sink_kind,
		started_at, finished_at, lines, bytes, checksum, error
		FROM partition_runs`
	args := []any{}
	if job != "" {
		q += ` WHERE job = ?`
		args = append(args, job)
	}
	q += ` ORDER BY started_at DESC, partition_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e                 Entry
			started, finished string
			sum               string
		)
		if err := rows.Scan(&e.RunID, &e.Job, &e.Partition, &e.Partitions, &e.Source, &e.Sink,
			&started, &finished, &e.Lines, &e.Bytes, &sum, &e.Err); err != nil {
			return nil, fmt.Errorf("ledger: scan: %w", err)
		}
		if e.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("ledger: started_at %q: %w", started, err)
		}
		if e.Finished, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("ledger: finished_at %q: %w", finished, err)
		}
		if e.Checksum, err = strconv.ParseUint(sum, 16, 64); err != nil {
			return nil, fmt.Errorf("ledger: checksum %q: %w", sum, err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// formatTime renders t in UTC with fixed-width fractional seconds so that
// stored values sort lexically in time order.
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00")
}
