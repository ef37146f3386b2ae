// Package perf provides a wall-clock gated byte counter used to report
// transfer throughput for a single partition import.
//
// The counter is observational only: nothing in the import path makes a
// control decision based on its values.
package perf

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
)

// Counter accumulates transferred bytes between Start and Stop.
//
// AddBytes may be called from any goroutine. Start and Stop are expected to
// be called by the goroutine that owns the transfer.
type Counter struct {
	bytes atomic.Int64

	mu      sync.Mutex
	started time.Time
	stopped time.Time

	// now is a test seam; nil means time.Now.
	now func() time.Time
}

func (c *Counter) clock() time.Time {
	if c.now != nil {
		return c.now()
	}
	return time.Now()
}

// Start records the start of the measured interval and clears any
// previous stop time.
func (c *Counter) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = c.clock()
	c.stopped = time.Time{}
}

// Stop records the end of the measured interval. Calling Stop before Start
// is a no-op.
func (c *Counter) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started.IsZero() {
		return
	}
	c.stopped = c.clock()
}

// AddBytes adds n to the running total. Negative values are ignored.
func (c *Counter) AddBytes(n int64) {
	if n <= 0 {
		return
	}
	c.bytes.Add(n)
}

// Bytes returns the running total.
func (c *Counter) Bytes() int64 { return c.bytes.Load() }

// Interval returns the start and stop timestamps. Either may be zero.
func (c *Counter) Interval() (start, stop time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.stopped
}

// Elapsed returns the measured duration. While the counter is running it
// reports time since Start; before Start it reports zero.
func (c *Counter) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.started.IsZero():
		return 0
	case c.stopped.IsZero():
		return c.clock().Sub(c.started)
	default:
		return c.stopped.Sub(c.started)
	}
}

// Rate returns bytes per second over the elapsed interval, or 0 when no
// time has passed.
func (c *Counter) Rate() float64 {
	secs := c.Elapsed().Seconds()
	if secs <= 0 {
		return 0
	}
	return float64(c.Bytes()) / secs
}

// String renders a summary such as "1.2 MB in 3.4567 seconds (356 kB/sec)".
func (c *Counter) String() string {
	return fmt.Sprintf("%s in %.4f seconds (%s/sec)",
		humanize.Bytes(uint64(c.Bytes())),
		c.Elapsed().Seconds(),
		humanize.Bytes(uint64(c.Rate())),
	)
}
