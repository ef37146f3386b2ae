// Package exttable imports one partition of a table by having the database
// unload it into a named pipe while the caller reads that pipe line by line.
//
// Two actors run per import: the StatementRunner goroutine, which executes
// the unload statement and therefore writes the pipe, and the calling
// goroutine, which reads the pipe and forwards each record to a Sink. They
// share only the pipe and a FailureState. The ordering is fixed:
//
//	create pipe -> start runner -> open pipe for read -> stream
//	-> close reader -> join runner -> check failure -> destroy pipe
package exttable

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/hashicorp/go-multierror"

	"extimport/internal/charset"
	"extimport/internal/fifo"
	"extimport/internal/perf"
	"extimport/internal/sqlgen"
)

// Verbose enables debug logging of generated statements.
var Verbose bool

var (
	ErrPipeCreate      = errors.New("exttable: cannot create pipe")
	ErrConnection      = errors.New("exttable: cannot acquire connection")
	ErrEngineExecution = errors.New("exttable: unload statement failed")
	ErrLocalRead       = errors.New("exttable: cannot read pipe")
	ErrForward         = errors.New("exttable: cannot forward record")
)

// DefaultRecordDelimiter is appended to each record when Format leaves it
// unset.
const DefaultRecordDelimiter = '\n'

// Partition identifies the slice of the table one import handles.
type Partition struct {
	ID    int
	Count int
}

// Format is the text layout of the unloaded rows.
type Format struct {
	SQL sqlgen.Format
	// RecordDelimiter is appended to every forwarded record.
	RecordDelimiter rune
	// Encoding names the charset the engine writes; empty means UTF-8.
	Encoding string
}

// Stats describes one finished import.
type Stats struct {
	Bytes    int64
	Lines    int64
	Started  time.Time
	Stopped  time.Time
	Checksum uint64
}

// PipeManager creates the FIFO for an import.
type PipeManager interface {
	Create(path string) (*fifo.Pipe, error)
}

// Options configures an Importer. Pipes, Connector and Dialect are
// required.
type Options struct {
	Pipes     PipeManager
	Connector Connector
	Dialect   sqlgen.Dialect

	// WorkDir holds the FIFOs; empty means os.TempDir().
	WorkDir    string
	PipePrefix string

	Table          string
	Columns        []string
	Where          string
	PartitionKey   string
	DialectOptions map[string]string
}

// Importer runs partition imports. It holds no per-run state, so one
// Importer may run several partitions concurrently as long as their IDs
// differ.
type Importer struct {
	opts Options
}

// New returns an Importer for opts.
func New(opts Options) *Importer {
	if opts.Pipes == nil {
		opts.Pipes = fifo.Manager{}
	}
	if opts.WorkDir == "" {
		opts.WorkDir = os.TempDir()
	}
	return &Importer{opts: opts}
}

// Statement renders the unload statement for p without running anything.
func (im *Importer) Statement(p Partition, f Format) (string, error) {
	return im.statement(p, f, fifo.Path(im.opts.WorkDir, im.opts.PipePrefix, p.ID))
}

func (im *Importer) statement(p Partition, f Format, pipePath string) (string, error) {
	if im.opts.Dialect == nil {
		return "", fmt.Errorf("%w: no dialect configured", sqlgen.ErrInvalidRequest)
	}
	return im.opts.Dialect.Build(sqlgen.Request{
		Table:          im.opts.Table,
		Columns:        im.opts.Columns,
		Where:          im.opts.Where,
		PartitionKey:   im.opts.PartitionKey,
		PartitionID:    p.ID,
		PartitionCount: p.Count,
		PipePath:       pipePath,
		Format:         f.SQL,
		Options:        im.opts.DialectOptions,
	})
}

// Run imports partition p into sink. It either streams the whole partition
// or returns an error; the pipe is removed and the connection released on
// every path.
func (im *Importer) Run(ctx context.Context, p Partition, f Format, sink Sink) (Stats, error) {
	var stats Stats
	if f.RecordDelimiter == 0 {
		f.RecordDelimiter = DefaultRecordDelimiter
	}
	if _, err := charset.Lookup(f.Encoding); err != nil {
		return stats, fmt.Errorf("%w: %w", ErrLocalRead, err)
	}

	pipe, err := im.opts.Pipes.Create(fifo.Path(im.opts.WorkDir, im.opts.PipePrefix, p.ID))
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrPipeCreate, err)
	}
	defer pipe.DestroyQuietly()

	stmt, err := im.statement(p, f, pipe.Path())
	if err != nil {
		return stats, err
	}

	if im.opts.Connector == nil {
		return stats, fmt.Errorf("%w: no connector configured", ErrConnection)
	}
	conn, err := im.opts.Connector.Connect(ctx)
	if err != nil {
		return stats, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	failure := &FailureState{}
	runner := NewStatementRunner(failure, conn, stmt)
	runner.Start(ctx)

	var counter perf.Counter
	localErr := im.consume(ctx, pipe, runner, f, sink, failure, &counter, &stats)

	runner.Join()
	counter.Stop()
	stats.Started, stats.Stopped = counter.Interval()
	log.Printf("exttable: partition=%d lines=%d Transferred %s", p.ID, stats.Lines, &counter)

	if runner.HasFailed() {
		engineErr := fmt.Errorf("%w: partition %d: %w", ErrEngineExecution, p.ID, runner.Err())
		if localErr != nil {
			return stats, multierror.Append(engineErr, localErr)
		}
		return stats, engineErr
	}
	return stats, localErr
}

// consume opens the read end, streams it into sink and closes it. The
// reader is always closed before returning so a writer still running sees
// EPIPE instead of blocking on a full pipe.
func (im *Importer) consume(
	ctx context.Context,
	pipe *fifo.Pipe,
	runner *StatementRunner,
	f Format,
	sink Sink,
	failure *FailureState,
	counter *perf.Counter,
	stats *Stats,
) error {
	file, err := pipe.Open(ctx, runner.Done())
	if err != nil {
		// No reader will ever attach; let a writer blocked in open(2) fail.
		pipe.ReleaseWriters(runner.Done())
		return fmt.Errorf("%w: %w", ErrLocalRead, err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			log.Printf("exttable: closing pipe reader failed path=%s err=%v", pipe.Path(), cerr)
		}
	}()

	r, err := charset.NewReader(file, f.Encoding)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLocalRead, err)
	}

	counter.Start()
	return streamLines(ctx, r, failure, sink, f.RecordDelimiter, counter, stats)
}
