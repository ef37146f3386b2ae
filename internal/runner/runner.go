// Package runner executes an import job on the local machine: it stands in
// for a cluster scheduler by running the selected partitions of a job with
// bounded parallelism, one Importer session and one sink per partition.
//
// Each run gets its own work directory under runtime.work_dir, named after
// the run id, which holds the partition FIFOs and is removed afterwards.
// Every partition runs to completion even when another fails; failures are
// aggregated and reported together.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"extimport/internal/config"
	"extimport/internal/conn"
	"extimport/internal/exttable"
	"extimport/internal/ledger"
	"extimport/internal/metrics"
	"extimport/internal/sink"
	"extimport/internal/sqlgen"
)

// ErrInvalidJob wraps the validation errors of a job that cannot run.
var ErrInvalidJob = errors.New("runner: invalid job")

// Test hooks.
var (
	openConnector = conn.New
	openSink      = sink.New
	openLedger    = ledger.Open
)

// Options selects what part of a job to run.
type Options struct {
	// Partitions lists partition ids to run; empty runs them all.
	Partitions []int
	// RunID overrides the generated run id.
	RunID string
}

// PartitionResult is the outcome of one partition.
type PartitionResult struct {
	Partition exttable.Partition
	Stats     exttable.Stats
	Err       error
}

// Result summarizes a run.
type Result struct {
	RunID      string
	Partitions []PartitionResult
}

// Lines returns the total records forwarded across partitions.
func (r Result) Lines() int64 {
	var n int64
	for _, p := range r.Partitions {
		n += p.Stats.Lines
	}
	return n
}

// Bytes returns the total bytes read across partitions.
func (r Result) Bytes() int64 {
	var n int64
	for _, p := range r.Partitions {
		n += p.Stats.Bytes
	}
	return n
}

// FormatFromConfig converts the textual format settings of a job into the
// typed layout used by the importer and the sinks.
func FormatFromConfig(f config.Format) (exttable.Format, error) {
	var out exttable.Format
	var err error
	if out.SQL.FieldDelimiter, err = config.ParseChar(f.FieldDelimiter); err != nil {
		return out, fmt.Errorf("format.field_delimiter: %w", err)
	}
	if out.RecordDelimiter, err = config.ParseChar(f.RecordDelimiter); err != nil {
		return out, fmt.Errorf("format.record_delimiter: %w", err)
	}
	if out.SQL.EnclosedBy, err = config.ParseChar(f.EnclosedBy); err != nil {
		return out, fmt.Errorf("format.enclosed_by: %w", err)
	}
	if out.SQL.EscapedBy, err = config.ParseChar(f.EscapedBy); err != nil {
		return out, fmt.Errorf("format.escaped_by: %w", err)
	}
	if out.RecordDelimiter == 0 {
		out.RecordDelimiter = exttable.DefaultRecordDelimiter
	}
	out.SQL.NullValue = f.NullValue
	if f.ErrorThreshold != nil {
		n := *f.ErrorThreshold
		out.SQL.ErrorThreshold = &n
	}
	out.SQL.LogDir = f.LogDir
	out.Encoding = f.Encoding
	return out, nil
}

// RunWorkDir is the directory holding the pipes of run runID.
func RunWorkDir(job config.Job, runID string) string {
	return filepath.Join(job.Runtime.WorkDir, "extimport-"+runID)
}

// Statement renders the unload statement for partition id without touching
// the engine. The pipe path is the one Run would use for runID.
func Statement(job config.Job, runID string, id int) (string, error) {
	f, err := FormatFromConfig(job.Format)
	if err != nil {
		return "", err
	}
	im, err := newImporter(job, nil, RunWorkDir(job, runID))
	if err != nil {
		return "", err
	}
	return im.Statement(exttable.Partition{ID: id, Count: job.Partitions}, f)
}

func newImporter(job config.Job, c exttable.Connector, workDir string) (*exttable.Importer, error) {
	d, err := sqlgen.Lookup(job.Source.Kind)
	if err != nil {
		return nil, err
	}
	return exttable.New(exttable.Options{
		Connector:      c,
		Dialect:        d,
		WorkDir:        workDir,
		PipePrefix:     job.Runtime.PipePrefix,
		Table:          job.Source.Table,
		Columns:        job.Source.Columns,
		Where:          job.Source.Where,
		PartitionKey:   job.Source.PartitionKey,
		DialectOptions: job.Source.Options.Strings(),
	}), nil
}

// Run executes the job. The returned Result lists every partition that was
// attempted; the error aggregates all partition failures.
func Run(ctx context.Context, job config.Job, opts Options) (Result, error) {
	start := time.Now()
	res, err := run(ctx, job, opts)
	metrics.RecordStep(job.Job, "run", err, time.Since(start))
	return res, err
}

func run(ctx context.Context, job config.Job, opts Options) (Result, error) {
	if issues := config.ValidateJob(job); config.HasErrors(issues) {
		var merr *multierror.Error
		for _, iss := range issues {
			if iss.Severity == config.SeverityError {
				merr = multierror.Append(merr, iss)
			}
		}
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidJob, merr)
	}
	ids, err := selectPartitions(job.Partitions, opts.Partitions)
	if err != nil {
		return Result{}, err
	}
	format, err := FormatFromConfig(job.Format)
	if err != nil {
		return Result{}, err
	}

	res := Result{RunID: opts.RunID}
	if res.RunID == "" {
		res.RunID = ledger.NewRunID()
	}
	workDir := RunWorkDir(job, res.RunID)
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return res, fmt.Errorf("runner: work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	parallelism := job.Runtime.Parallelism
	if parallelism <= 0 || parallelism > len(ids) {
		parallelism = len(ids)
	}

	connector, err := openConnector(ctx, conn.Config{Kind: job.Source.Kind, DSN: job.Source.DSN, MaxConns: parallelism})
	if err != nil {
		return res, fmt.Errorf("runner: %w", err)
	}
	defer connector.Close()

	var led *ledger.Ledger
	if job.Ledger.DSN != "" {
		if led, err = openLedger(ctx, job.Ledger.DSN); err != nil {
			return res, fmt.Errorf("runner: %w", err)
		}
		defer led.Close()
	}

	im, err := newImporter(job, connector, workDir)
	if err != nil {
		return res, fmt.Errorf("runner: %w", err)
	}

	log.Printf("runner: job=%s run=%s source=%s sink=%s partitions=%v parallelism=%d",
		job.Job, res.RunID, job.Source.Kind, job.Sink.Kind, ids, parallelism)

	res.Partitions = make([]PartitionResult, len(ids))
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, id := range ids {
		i := i
		p := exttable.Partition{ID: id, Count: job.Partitions}
		g.Go(func() error {
			res.Partitions[i] = runPartition(ctx, im, job, p, format, res.RunID, led)
			return nil
		})
	}
	_ = g.Wait()

	var (
		merr   *multierror.Error
		failed int
	)
	for _, pr := range res.Partitions {
		if pr.Err != nil {
			failed++
			merr = multierror.Append(merr, fmt.Errorf("partition %d: %w", pr.Partition.ID, pr.Err))
		}
	}
	log.Printf("runner: job=%s run=%s lines=%d bytes=%s failed=%d/%d",
		job.Job, res.RunID, res.Lines(), humanize.Bytes(uint64(res.Bytes())), failed, len(ids))
	return res, merr.ErrorOrNil()
}

func runPartition(
	ctx context.Context,
	im *exttable.Importer,
	job config.Job,
	p exttable.Partition,
	format exttable.Format,
	runID string,
	led *ledger.Ledger,
) PartitionResult {
	start := time.Now()
	pr := PartitionResult{Partition: p}

	s, err := openSink(ctx, sink.Config{
		Kind:      job.Sink.Kind,
		Job:       job.Job,
		Partition: p,
		Format:    format,
		Columns:   job.Source.Columns,
		Options:   job.Sink.Options,
	})
	if err != nil {
		pr.Err = err
	} else {
		pr.Stats, pr.Err = im.Run(ctx, p, format, s)
		pr.Err = finishSink(s, pr.Err)
	}

	metrics.RecordStep(job.Job, "partition", pr.Err, time.Since(start))
	metrics.RecordRecords(job.Job, "forwarded", pr.Stats.Lines)
	metrics.RecordBytes(job.Job, pr.Stats.Bytes)

	if led != nil {
		e := ledger.Entry{
			RunID:      runID,
			Job:        job.Job,
			Partition:  p.ID,
			Partitions: p.Count,
			Source:     job.Source.Kind,
			Sink:       job.Sink.Kind,
			Started:    start,
			Finished:   time.Now(),
			Lines:      pr.Stats.Lines,
			Bytes:      pr.Stats.Bytes,
			Checksum:   pr.Stats.Checksum,
		}
		if pr.Err != nil {
			e.Err = pr.Err.Error()
		}
		// A broken ledger must not fail an otherwise good partition.
		if err := led.Record(context.WithoutCancel(ctx), e); err != nil {
			log.Printf("runner: %v", err)
		}
	}

	if pr.Err != nil {
		log.Printf("runner: partition=%d/%d failed after %s: %v", p.ID, p.Count, time.Since(start).Truncate(time.Millisecond), pr.Err)
	} else {
		log.Printf("runner: partition=%d/%d lines=%d checksum=%016x elapsed=%s",
			p.ID, p.Count, pr.Stats.Lines, pr.Stats.Checksum, time.Since(start).Truncate(time.Millisecond))
	}
	return pr
}

// finishSink closes s after a successful import, or aborts it when runErr
// is set and the sink supports discarding partial output.
func finishSink(s sink.Sink, runErr error) error {
	if runErr != nil {
		if a, ok := s.(sink.Aborter); ok {
			if err := a.Abort(); err != nil {
				return multierror.Append(runErr, err)
			}
			return runErr
		}
		if err := s.Close(); err != nil {
			return multierror.Append(runErr, err)
		}
		return runErr
	}
	return s.Close()
}

// selectPartitions returns the sorted, de-duplicated ids to run.
func selectPartitions(count int, want []int) ([]int, error) {
	if len(want) == 0 {
		ids := make([]int, count)
		for i := range ids {
			ids[i] = i
		}
		return ids, nil
	}
	seen := make(map[int]bool, len(want))
	ids := make([]int, 0, len(want))
	for _, id := range want {
		if id < 0 || id >= count {
			return nil, fmt.Errorf("runner: partition %d out of range [0,%d)", id, count)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	sort.Ints(ids)
	return ids, nil
}
