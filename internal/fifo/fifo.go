//go:build unix

// Package fifo manages the named pipe an unload statement streams into.
//
// One Pipe exists per partition import. The engine (or its client driver)
// opens the write end; the importer opens the read end. Opening either end
// of a FIFO blocks until the other side shows up, so Open accepts a signal
// telling it the writer will never come and releases itself in that case.
package fifo

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// DefaultPrefix is the file name prefix used when none is configured.
const DefaultPrefix = "nzexttable"

// ErrCreate is returned (wrapped) when the FIFO cannot be created.
var ErrCreate = errors.New("fifo: create")

// releaseInterval bounds how often a pending Open is poked while waiting for
// its open(2) call to return.
const releaseInterval = 10 * time.Millisecond

// mkfifo is a test seam for the underlying system call.
var mkfifo = unix.Mkfifo

// Path returns the FIFO location for one partition: <dir>/<prefix>-<id>.txt.
func Path(dir, prefix string, id int) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return filepath.Join(dir, fmt.Sprintf("%s-%d.txt", prefix, id))
}

// Manager creates FIFOs on the local filesystem.
type Manager struct {
	// Mode is the permission set for new FIFOs; zero means 0600.
	Mode os.FileMode
}

// Create makes a new FIFO at path. mkfifo(3) is atomic, so on failure there
// is no partial entry to clean up; a pre-existing entry at path is never
// touched.
func (m Manager) Create(path string) (*Pipe, error) {
	mode := m.Mode
	if mode == 0 {
		mode = 0o600
	}
	if err := mkfifo(path, uint32(mode.Perm())); err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrCreate, path, err)
	}
	return &Pipe{path: path}, nil
}

// Pipe is a handle on one FIFO created by Manager.
type Pipe struct {
	path string

	mu        sync.Mutex
	destroyed bool
}

// Path returns the filesystem location of the FIFO.
func (p *Pipe) Path() string { return p.path }

// Open opens the read end of the FIFO.
//
// The call blocks until a writer opens the other end. If writerDone is
// closed first, the pending open is released and the returned file reads as
// an immediately empty stream. If ctx ends first, the open is released and
// ctx.Err() is returned.
func (p *Pipe) Open(ctx context.Context, writerDone <-chan struct{}) (*os.File, error) {
	ch := make(chan openResult, 1)
	go func() {
		f, err := os.OpenFile(p.path, os.O_RDONLY, 0)
		ch <- openResult{f: f, err: err}
	}()

	select {
	case r := <-ch:
		return r.f, wrapOpenErr(p.path, r.err)

	case <-writerDone:
		r := p.drain(ch)
		return r.f, wrapOpenErr(p.path, r.err)

	case <-ctx.Done():
		r := p.drain(ch)
		if r.f != nil {
			_ = r.f.Close()
		}
		return nil, ctx.Err()
	}
}

type openResult struct {
	f   *os.File
	err error
}

// drain pokes the FIFO until the pending open in ch returns.
func (p *Pipe) drain(ch <-chan openResult) openResult {
	for {
		p.release()
		select {
		case r := <-ch:
			return r
		case <-time.After(releaseInterval):
		}
	}
}

// release briefly opens the FIFO read-write, which never blocks on Linux and
// counts as a writer, so a reader stuck in open(2) returns and then sees EOF.
func (p *Pipe) release() {
	fd, err := unix.Open(p.path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return
	}
	_ = unix.Close(fd)
}

// ReleaseWriters unblocks a writer stuck opening the FIFO when no reader
// will ever come. It repeatedly opens and closes the read end without
// blocking until done is closed; the writer's open returns and its first
// write fails with EPIPE.
func (p *Pipe) ReleaseWriters(done <-chan struct{}) {
	for {
		if fd, err := unix.Open(p.path, unix.O_RDONLY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0); err == nil {
			_ = unix.Close(fd)
		}
		select {
		case <-done:
			return
		case <-time.After(releaseInterval):
		}
	}
}

func wrapOpenErr(path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("fifo: open %s: %w", path, err)
}

// Destroy removes the FIFO from the filesystem. It is idempotent: once the
// entry is gone, further calls return nil. A failed removal is reported and
// may be retried.
func (p *Pipe) Destroy() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.destroyed {
		return nil
	}
	if err := os.Remove(p.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("fifo: remove %s: %w", p.path, err)
	}
	p.destroyed = true
	return nil
}

// DestroyQuietly calls Destroy and logs instead of returning the error.
func (p *Pipe) DestroyQuietly() {
	if err := p.Destroy(); err != nil {
		log.Printf("fifo: cleanup failed path=%s err=%v", p.path, err)
	}
}
