// Package sqlgen generates the engine-specific statement that makes a
// database unload one slice of a table into a named pipe.
//
// Each engine is a Dialect. Dialects register themselves by name, the same
// way storage backends do, so callers select one from configuration:
//
//	d, err := sqlgen.Lookup("netezza")
//	stmt, err := d.Build(sqlgen.Request{...})
//
// Building is pure: no I/O, no connection. The only side effect is a log
// line when a configured option cannot be expressed in the target dialect.
package sqlgen

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ErrInvalidRequest is returned (wrapped) for structurally invalid input.
var ErrInvalidRequest = errors.New("sqlgen: invalid request")

// Defaults applied to zero-valued Format fields.
const (
	DefaultFieldDelimiter = ','
	DefaultNullValue      = "null"
	DefaultErrorThreshold = 1
)

// Format describes how the engine renders rows as delimited text.
// A zero rune means "not configured".
type Format struct {
	FieldDelimiter rune
	EnclosedBy     rune
	EscapedBy      rune
	NullValue      string
	// ErrorThreshold is the number of malformed source rows the engine may
	// skip before aborting the unload. Nil means DefaultErrorThreshold;
	// an explicit zero tolerates no bad rows.
	ErrorThreshold *int
	// LogDir is where the engine writes its own unload logs, if supported.
	LogDir string
}

// WithDefaults returns f with zero fields replaced by their defaults.
func (f Format) WithDefaults() Format {
	if f.FieldDelimiter == 0 {
		f.FieldDelimiter = DefaultFieldDelimiter
	}
	if f.NullValue == "" {
		f.NullValue = DefaultNullValue
	}
	if f.ErrorThreshold == nil {
		n := DefaultErrorThreshold
		f.ErrorThreshold = &n
	}
	return f
}

// Request is everything needed to render one partition's unload statement.
type Request struct {
	// Table is the source table, used verbatim (may be schema-qualified).
	Table string
	// Columns is the projection in output order; empty selects all columns.
	Columns []string
	// Where is an optional caller-supplied row filter, ANDed with the shard
	// predicate.
	Where string
	// PartitionKey is the column hashed by dialects that shard by hash.
	// Netezza shards by data slice and ignores it.
	PartitionKey string

	PartitionID    int
	PartitionCount int

	// PipePath is the FIFO the engine writes into.
	PipePath string

	Format Format

	// Options carries dialect-specific settings (e.g. "remote_source").
	Options map[string]string
}

func (r Request) option(key, def string) string {
	if v, ok := r.Options[key]; ok && strings.TrimSpace(v) != "" {
		return v
	}
	return def
}

// validate checks the fields every dialect depends on. needKey is set by
// dialects that shard on PartitionKey.
func (r Request) validate(needKey bool) error {
	switch {
	case strings.TrimSpace(r.Table) == "":
		return fmt.Errorf("%w: table name must not be empty", ErrInvalidRequest)
	case strings.TrimSpace(r.PipePath) == "":
		return fmt.Errorf("%w: pipe path must not be empty", ErrInvalidRequest)
	case r.PartitionCount < 1:
		return fmt.Errorf("%w: partition count must be >= 1, got %d", ErrInvalidRequest, r.PartitionCount)
	case r.PartitionID < 0 || r.PartitionID >= r.PartitionCount:
		return fmt.Errorf("%w: partition id %d out of range [0,%d)", ErrInvalidRequest, r.PartitionID, r.PartitionCount)
	case r.Format.ErrorThreshold != nil && *r.Format.ErrorThreshold < 0:
		return fmt.Errorf("%w: error threshold must be >= 0, got %d", ErrInvalidRequest, *r.Format.ErrorThreshold)
	case needKey && strings.TrimSpace(r.PartitionKey) == "":
		return fmt.Errorf("%w: partition key is required", ErrInvalidRequest)
	}
	return nil
}

// Dialect renders unload statements for one database engine.
type Dialect interface {
	// Name is the registry key, e.g. "netezza".
	Name() string
	// Build renders the statement for req.
	Build(req Request) (string, error)
}

var (
	mu       sync.RWMutex
	dialects = map[string]Dialect{}
)

// Register makes d available to Lookup under d.Name(), replacing any
// previous registration.
func Register(d Dialect) {
	mu.Lock()
	defer mu.Unlock()
	dialects[d.Name()] = d
}

// Lookup returns the dialect registered under name.
func Lookup(name string) (Dialect, error) {
	mu.RLock()
	d, ok := dialects[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("sqlgen: unknown dialect %q (have %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists registered dialects in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(dialects))
	for k := range dialects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func init() {
	Register(Netezza{})
	Register(Postgres{})
	Register(DuckDB{})
}

// selectClause renders "SELECT <cols> FROM <table> WHERE <shard> [AND (<where>)]".
func selectClause(r Request, shard string) string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(columnList(r.Columns))
	b.WriteString(" FROM ")
	b.WriteString(r.Table)
	b.WriteString(" WHERE ")
	b.WriteString(shard)
	if w := strings.TrimSpace(r.Where); w != "" {
		b.WriteString(" AND (")
		b.WriteString(w)
		b.WriteString(")")
	}
	return b.String()
}

// columnList joins cols in order, or returns "*" when there are none.
func columnList(cols []string) string {
	if len(cols) == 0 {
		return "*"
	}
	return strings.Join(cols, ", ")
}

// quoteLiteral renders s as a single-quoted SQL string literal.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
