// Package duckdb registers the "duckdb" connector kind. An empty DSN opens
// an in-memory database, which is mostly useful for local testing of the
// unload path.
package duckdb

import (
	"context"

	"extimport/internal/conn"
)

const DriverName = "duckdb"

var openDB = conn.OpenDB

func init() {
	conn.Register("duckdb", func(ctx context.Context, cfg conn.Config) (conn.Connector, error) {
		return openDB(ctx, DriverName, cfg.DSN, cfg.MaxConns)
	})
}
