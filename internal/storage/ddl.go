package storage

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// TableSpec describes a destination table whose columns all hold text, the
// only type an unload stream carries.
type TableSpec struct {
	Table   string
	Columns []string
}

// Validate reports an unusable spec.
func (s TableSpec) Validate() error {
	if strings.TrimSpace(s.Table) == "" {
		return fmt.Errorf("ddl: table name must not be empty")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("ddl: table %s needs at least one column", s.Table)
	}
	for i, c := range s.Columns {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("ddl: table %s column %d has an empty name", s.Table, i)
		}
	}
	return nil
}

// DDLBootstrapper creates spec's table through repo if it does not exist.
type DDLBootstrapper func(ctx context.Context, repo Repository, spec TableSpec) error

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the bootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// EnsureTable runs the bootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, spec TableSpec, repo Repository) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	return fn(ctx, repo, spec)
}

// SplitFQN splits "schema.table" into its non-empty segments.
func SplitFQN(name string) []string {
	parts := strings.Split(name, ".")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
