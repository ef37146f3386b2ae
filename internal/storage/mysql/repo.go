// Package mysql implements storage.Repository on go-sql-driver/mysql.
// Batches are written as multi-row INSERT statements inside one
// transaction, chunked to stay under the server's placeholder limit.
package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"

	"extimport/internal/storage"
)

const (
	// maxPlaceholders is the prepared statement parameter limit of MySQL.
	maxPlaceholders    = 65535
	defaultDialTimeout = 10 * time.Second
)

// Config holds MySQL repository configuration.
type Config struct {
	// DSN uses the driver format, e.g. "user:pw@tcp(host:3306)/db".
	DSN     string
	Table   string
	Columns []string
}

// Repository is a MySQL-backed storage.Repository.
type Repository struct {
	db  *sql.DB
	cfg Config
}

// NewRepository opens a pool for cfg.DSN, pings it and returns the
// repository plus its cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, nil, fmt.Errorf("mysql: DSN must not be empty")
	}
	mc, err := parseDSN(cfg.DSN)
	if err != nil {
		return nil, nil, err
	}
	connector, err := mysql.NewConnector(mc)
	if err != nil {
		return nil, nil, fmt.Errorf("mysql: connector: %w", err)
	}
	db := sql.OpenDB(connector)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("mysql: ping: %w", err)
	}
	return &Repository{db: db, cfg: cfg}, func() { _ = db.Close() }, nil
}

// parseDSN validates dsn and fills in the connection settings the loader
// expects when the DSN leaves them unset.
func parseDSN(dsn string) (*mysql.Config, error) {
	mc, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("mysql: parse DSN: %w", err)
	}
	// Multi-row inserts are sent once; no server-side prepare round trip.
	mc.InterpolateParams = true
	if mc.Timeout == 0 {
		mc.Timeout = defaultDialTimeout
	}
	return mc, nil
}

// CopyFrom inserts rows in a single transaction.
func (r *Repository) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	if len(columns) == 0 {
		return 0, fmt.Errorf("mysql: CopyFrom: columns must not be empty")
	}
	if len(rows) == 0 {
		return 0, nil
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("mysql: row %d has %d values for %d columns", i, len(row), len(columns))
		}
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("mysql: begin tx: %w", err)
	}
	var total int64
	for _, chunk := range chunkRows(rows, maxPlaceholders/len(columns)) {
		args := make([]any, 0, len(chunk)*len(columns))
		for _, row := range chunk {
			args = append(args, row...)
		}
		res, err := tx.ExecContext(ctx, insertSQL(r.cfg.Table, columns, len(chunk)), args...)
		if err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("mysql: insert: %w", err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("mysql: commit: %w", err)
	}
	return total, nil
}

// Exec runs a statement that returns no rows.
func (r *Repository) Exec(ctx context.Context, sql string) error {
	if strings.TrimSpace(sql) == "" {
		return nil
	}
	if _, err := r.db.ExecContext(ctx, sql); err != nil {
		return fmt.Errorf("mysql: exec: %w", err)
	}
	return nil
}

func chunkRows(rows [][]any, size int) [][][]any {
	if size < 1 {
		size = 1
	}
	out := make([][][]any, 0, (len(rows)+size-1)/size)
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

func insertSQL(table string, columns []string, n int) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = myIdent(c)
	}
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(myFQN(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(quoted, ", "))
	b.WriteString(") VALUES ")
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(tuple)
	}
	return b.String()
}

func createTableSQL(spec storage.TableSpec) string {
	cols := make([]string, len(spec.Columns))
	for i, c := range spec.Columns {
		cols[i] = myIdent(c) + " LONGTEXT NULL"
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", myFQN(spec.Table), strings.Join(cols, ", "))
}

func myIdent(id string) string { return "`" + strings.ReplaceAll(id, "`", "``") + "`" }

func myFQN(name string) string {
	parts := storage.SplitFQN(name)
	for i, p := range parts {
		parts[i] = myIdent(p)
	}
	return strings.Join(parts, ".")
}
