// Package netezza registers the "netezza" connector kind. Sessions go
// through IBM's nzgo database/sql driver, which also serves the data
// channel of an external table unload with REMOTESOURCE set.
package netezza

import (
	"context"
	"fmt"
	"strings"

	_ "github.com/IBM/nzgo/v12"

	"extimport/internal/conn"
)

// DriverName is the database/sql name nzgo registers under.
const DriverName = "nzgo"

// openDB is a test hook.
var openDB = conn.OpenDB

func init() {
	conn.Register("netezza", func(ctx context.Context, cfg conn.Config) (conn.Connector, error) {
		if strings.TrimSpace(cfg.DSN) == "" {
			return nil, fmt.Errorf("netezza: DSN must not be empty")
		}
		return openDB(ctx, DriverName, cfg.DSN, cfg.MaxConns)
	})
}
