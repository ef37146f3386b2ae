// Package table loads records into a database table through the storage
// backends. Each record is split back into fields using the unload format
// and the rows are bulk-loaded in batches by a background loader.
//
// Options:
//
//	kind          storage backend: postgres (default), mssql, mysql, sqlite
//	dsn           backend DSN (required)
//	table         target table, optionally schema-qualified (required)
//	columns       target columns; defaults to the source projection
//	batch_size    rows per CopyFrom, default 5000
//	create_table  create the table with text columns if missing
//
// Batches already committed stay committed when a partition fails later.
package table

import (
	"context"
	"fmt"
	"log"
	"sync"

	"extimport/internal/metrics"
	"extimport/internal/sink"
	"extimport/internal/sqlgen"
	"extimport/internal/storage"
)

// DefaultBatchSize is the number of rows per CopyFrom call.
const DefaultBatchSize = 5000

// Sink splits records into rows and feeds the batch loader.
type Sink struct {
	job       string
	partition int
	split     Splitter
	trim      func(string) string
	columns   []string
	repo      storage.Repository

	in   chan []any
	done chan struct{}
	// loaded and err are written by the loader before done is closed.
	loaded int64
	err    error

	closeOnce sync.Once
	closeErr  error
}

var _ sink.Sink = (*Sink)(nil)

// newRepository is a test hook that points to storage.New by default.
var newRepository = storage.New

// New opens the target repository and starts the loader. The loader runs
// until Close or until ctx ends.
func New(ctx context.Context, cfg sink.Config) (*Sink, error) {
	kind := cfg.Options.String("kind", "postgres")
	columns := cfg.Options.StringSlice("columns")
	if len(columns) == 0 {
		columns = cfg.Columns
	}
	spec := storage.TableSpec{Table: cfg.Options.String("table", ""), Columns: columns}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("table sink: %w", err)
	}
	batchSize := cfg.Options.Int("batch_size", DefaultBatchSize)
	if batchSize < 1 {
		return nil, fmt.Errorf("table sink: batch_size must be >= 1, got %d", batchSize)
	}

	repo, err := newRepository(ctx, storage.Config{
		Kind:    kind,
		DSN:     cfg.Options.String("dsn", ""),
		Table:   spec.Table,
		Columns: spec.Columns,
	})
	if err != nil {
		return nil, fmt.Errorf("table sink: %w", err)
	}
	if cfg.Options.Bool("create_table", false) {
		if err := storage.EnsureTable(ctx, kind, spec, repo); err != nil {
			repo.Close()
			return nil, fmt.Errorf("table sink: %w", err)
		}
	}

	s := &Sink{
		job:       cfg.Job,
		partition: cfg.Partition.ID,
		split:     SplitterFor(cfg.Format.SQL),
		trim:      cfg.TrimRecord,
		columns:   spec.Columns,
		repo:      repo,
		in:        make(chan []any, batchSize),
		done:      make(chan struct{}),
	}
	go s.load(ctx, batchSize)
	return s, nil
}

func (s *Sink) load(ctx context.Context, batchSize int) {
	defer close(s.done)
	s.loaded, s.err = storage.LoadBatches(ctx, s.columns, s.in, batchSize,
		func(ctx context.Context, columns []string, rows [][]any) (int64, error) {
			n, err := s.repo.CopyFrom(ctx, columns, rows)
			if err == nil {
				metrics.RecordBatches(s.job, 1)
			}
			return n, err
		})
}

// Forward implements exttable.Sink. It fails once the loader has failed,
// which stops the unload.
func (s *Sink) Forward(ctx context.Context, record string) error {
	fields, err := s.split.Split(s.trim(record))
	if err != nil {
		return fmt.Errorf("table sink: %w", err)
	}
	if len(fields) != len(s.columns) {
		return fmt.Errorf("table sink: record has %d fields, table has %d columns", len(fields), len(s.columns))
	}
	row := make([]any, len(fields))
	for i, f := range fields {
		if !f.Null {
			row[i] = f.Value
		}
	}

	select {
	case s.in <- row:
		return nil
	case <-s.done:
		if s.err != nil {
			return fmt.Errorf("table sink: loader: %w", s.err)
		}
		return fmt.Errorf("table sink: loader stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes the last batch, waits for the loader and closes the
// repository.
func (s *Sink) Close() error {
	s.closeOnce.Do(func() {
		close(s.in)
		<-s.done
		s.repo.Close()
		metrics.RecordRecords(s.job, "loaded", s.loaded)
		log.Printf("sink: table partition=%d loaded=%d", s.partition, s.loaded)
		if s.err != nil {
			s.closeErr = fmt.Errorf("table sink: %w", s.err)
		}
	})
	return s.closeErr
}

// Loaded returns the rows reported by the backend. Valid after Close.
func (s *Sink) Loaded() int64 { return s.loaded }

// SplitterFor returns the Splitter that undoes the layout f describes.
func SplitterFor(f sqlgen.Format) Splitter {
	f = f.WithDefaults()
	return Splitter{Delim: f.FieldDelimiter, Enclose: f.EnclosedBy, Escape: f.EscapedBy, Null: f.NullValue}
}

func init() {
	sink.Register("table", func(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(ctx, cfg)
	})
}
