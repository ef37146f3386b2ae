// Package conn is the registry of engine connectors. Each backend package
// registers a Factory for its kind at init time; callers obtain a
// Connector from configuration without importing the backend directly:
//
//	import _ "extimport/internal/conn/all"
//
//	c, err := conn.New(ctx, conn.Config{Kind: "netezza", DSN: dsn})
//	defer c.Close()
package conn

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"extimport/internal/exttable"
)

// Config selects and configures a connector backend.
type Config struct {
	Kind string
	DSN  string
	// MaxConns caps open sessions; zero leaves the backend default.
	MaxConns int
}

// Connector hands out engine sessions and owns the resources behind them.
type Connector interface {
	exttable.Connector
	Close() error
}

// Factory builds a Connector for one backend kind.
type Factory func(ctx context.Context, cfg Config) (Connector, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind. A later registration for
// the same kind replaces the earlier one.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New returns a Connector for cfg.Kind.
func New(ctx context.Context, cfg Config) (Connector, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported source.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
