// Package postgres registers the "postgres" connector kind using a pgx v5
// pool. The unload runs as a server-side COPY ... TO '<pipe>', so the
// server must share the importer's filesystem and the role needs
// pg_write_server_files.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"extimport/internal/conn"
	"extimport/internal/exttable"
)

// Connector hands out pooled pgx sessions.
type Connector struct {
	pool *pgxpool.Pool
}

var _ conn.Connector = (*Connector)(nil)

// newPool is a test hook.
var newPool = func(ctx context.Context, cfg conn.Config) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: parse config: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgxpool: ping: %w", err)
	}
	return pool, nil
}

// New opens a pool for cfg.DSN.
func New(ctx context.Context, cfg conn.Config) (*Connector, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("postgres: DSN must not be empty")
	}
	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Connector{pool: pool}, nil
}

// Connect implements exttable.Connector.
func (c *Connector) Connect(ctx context.Context) (exttable.Conn, error) {
	pc, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("postgres: acquire: %w", err)
	}
	return &session{c: pc}, nil
}

// Close releases the pool.
func (c *Connector) Close() error {
	c.pool.Close()
	return nil
}

type session struct {
	c *pgxpool.Conn
}

func (s *session) Exec(ctx context.Context, stmt string) error {
	if _, err := s.c.Exec(ctx, stmt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Detail != "" {
			return fmt.Errorf("postgres: exec: %s (%s): %w", pgErr.Detail, pgErr.SQLState(), err)
		}
		return fmt.Errorf("postgres: exec: %w", err)
	}
	return nil
}

func (s *session) Close() error {
	s.c.Release()
	return nil
}

func init() {
	conn.Register("postgres", func(ctx context.Context, cfg conn.Config) (conn.Connector, error) {
		return New(ctx, cfg)
	})
}
