package conn

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"extimport/internal/exttable"
)

// pingTimeout bounds the connectivity check done when a DB is opened.
const pingTimeout = 10 * time.Second

// DB is a Connector over any database/sql driver. Each Connect pins one
// pooled session for the lifetime of an unload.
type DB struct {
	name string
	db   *sql.DB
}

var _ Connector = (*DB)(nil)

// OpenDB opens driverName with dsn and verifies connectivity.
func OpenDB(ctx context.Context, driverName, dsn string, maxConns int) (*DB, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", driverName, err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: ping: %w", driverName, err)
	}
	return &DB{name: driverName, db: db}, nil
}

// Connect implements exttable.Connector.
func (d *DB) Connect(ctx context.Context) (exttable.Conn, error) {
	c, err := d.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: acquire session: %w", d.name, err)
	}
	return &sqlConn{name: d.name, c: c}, nil
}

// Close closes the underlying pool.
func (d *DB) Close() error { return d.db.Close() }

type sqlConn struct {
	name string
	c    *sql.Conn
}

func (s *sqlConn) Exec(ctx context.Context, stmt string) error {
	if _, err := s.c.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("%s: exec: %w", s.name, err)
	}
	return nil
}

func (s *sqlConn) Close() error { return s.c.Close() }
