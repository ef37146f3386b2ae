// Package file writes each partition to its own file, named after the
// map-task convention: <dir>/part-m-00003 for partition 3.
//
// Records are written to a temporary name and renamed into place on Close,
// so a failed partition never leaves a file that looks complete.
//
// Options:
//
//	dir     output directory (required, created if missing)
//	prefix  file name prefix, default "part-m-"
//	suffix  file name suffix, e.g. ".csv"
package file

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"extimport/internal/sink"
)

const (
	DefaultPrefix = "part-m-"
	bufferSize    = 256 << 10
)

// Sink is a buffered per-partition file writer.
type Sink struct {
	path string
	tmp  string
	f    *os.File
	w    *bufio.Writer
	n    int64
}

var (
	_ sink.Sink    = (*Sink)(nil)
	_ sink.Aborter = (*Sink)(nil)
)

// PartName returns the file name used for partition id.
func PartName(prefix string, id int, suffix string) string {
	return fmt.Sprintf("%s%05d%s", prefix, id, suffix)
}

// New opens the temporary output file for cfg.Partition.
func New(_ context.Context, cfg sink.Config) (*Sink, error) {
	dir := cfg.Options.String("dir", "")
	if dir == "" {
		return nil, fmt.Errorf("file sink: options.dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("file sink: mkdir %s: %w", dir, err)
	}
	name := PartName(cfg.Options.String("prefix", DefaultPrefix), cfg.Partition.ID, cfg.Options.String("suffix", ""))
	path := filepath.Join(dir, name)
	tmp := path + ".inprogress"

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("file sink: %w", err)
	}
	return &Sink{
		path: path,
		tmp:  tmp,
		f:    f,
		w:    bufio.NewWriterSize(f, bufferSize),
	}, nil
}

// Forward implements exttable.Sink. The record already ends with the
// record delimiter and is written as is.
func (s *Sink) Forward(_ context.Context, record string) error {
	if _, err := s.w.WriteString(record); err != nil {
		return err
	}
	s.n++
	return nil
}

// Close flushes, syncs and renames the file into place.
func (s *Sink) Close() error {
	var result error
	if err := s.w.Flush(); err != nil {
		result = multierror.Append(result, fmt.Errorf("file sink: flush: %w", err))
	}
	if err := s.f.Sync(); err != nil {
		result = multierror.Append(result, fmt.Errorf("file sink: sync: %w", err))
	}
	if err := s.f.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("file sink: close: %w", err))
	}
	if result != nil {
		_ = os.Remove(s.tmp)
		return result
	}
	if err := os.Rename(s.tmp, s.path); err != nil {
		return fmt.Errorf("file sink: rename: %w", err)
	}
	log.Printf("sink: file %s records=%d", s.path, s.n)
	return nil
}

// Abort drops the partial output.
func (s *Sink) Abort() error {
	_ = s.f.Close()
	if err := os.Remove(s.tmp); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("file sink: remove %s: %w", s.tmp, err)
	}
	return nil
}

// Path is the final file path.
func (s *Sink) Path() string { return s.path }

func init() {
	sink.Register("file", func(ctx context.Context, cfg sink.Config) (sink.Sink, error) {
		return New(ctx, cfg)
	})
}
