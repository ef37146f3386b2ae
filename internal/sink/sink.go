// Package sink defines where the records of an unloaded partition go.
//
// Concrete sinks live in subpackages and register a Factory under their kind,
// mirroring the storage registry:
//
//	import _ "extimport/internal/sink/all"
//	s, err := sink.New(ctx, sink.Config{Kind: "file", ...})
//
// A sink is created per partition and is not shared between goroutines.
package sink

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"extimport/internal/config"
	"extimport/internal/exttable"
)

// Sink receives the records of one partition. Close flushes buffered
// records and releases resources; it must be called exactly once.
type Sink interface {
	exttable.Sink
	Close() error
}

// Aborter is implemented by sinks that can discard partial output. When a
// partition fails the runner calls Abort instead of Close.
type Aborter interface {
	Abort() error
}

// Config is what a Factory gets to build a sink for one partition.
type Config struct {
	Kind string
	// Job labels metrics and message headers.
	Job       string
	Partition exttable.Partition
	// Format is the row layout the engine was asked to produce.
	Format exttable.Format
	// Columns is the source projection, if one was configured.
	Columns []string
	Options config.Options
}

// Factory builds a Sink for one partition.
type Factory func(ctx context.Context, cfg Config) (Sink, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register installs a factory for kind. Registering the same kind twice
// replaces the previous factory.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// New builds the sink registered under cfg.Kind.
func New(ctx context.Context, cfg Config) (Sink, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported sink.kind=%s", cfg.Kind)
	}
	if cfg.Options == nil {
		cfg.Options = config.Options{}
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds in sorted order.
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

// RecordDelimiter returns the delimiter the importer appends to every
// forwarded record.
func (c Config) RecordDelimiter() rune {
	if c.Format.RecordDelimiter == 0 {
		return exttable.DefaultRecordDelimiter
	}
	return c.Format.RecordDelimiter
}

// TrimRecord strips the trailing record delimiter from a forwarded record.
// Sinks that store rows or messages rather than a byte stream call it.
func (c Config) TrimRecord(record string) string {
	return strings.TrimSuffix(record, string(c.RecordDelimiter()))
}

// Discard counts records and drops them. Useful to measure unload
// throughput without a destination.
type Discard struct {
	partition int
	n         int64
}

// Forward implements exttable.Sink.
func (d *Discard) Forward(context.Context, string) error {
	d.n++
	return nil
}

// Close implements Sink.
func (d *Discard) Close() error {
	log.Printf("sink: discard partition=%d records=%d", d.partition, d.n)
	return nil
}

// Count returns the number of records seen.
func (d *Discard) Count() int64 { return d.n }

func init() {
	Register("discard", func(_ context.Context, cfg Config) (Sink, error) {
		return &Discard{partition: cfg.Partition.ID}, nil
	})
}
