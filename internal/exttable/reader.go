package exttable

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/zeebo/xxh3"

	"extimport/internal/perf"
)

// Sink receives decoded records, one per source row, in source order.
type Sink interface {
	Forward(ctx context.Context, record string) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, record string) error

// Forward implements Sink.
func (f SinkFunc) Forward(ctx context.Context, record string) error { return f(ctx, record) }

const readBufferSize = 64 << 10

// streamLines forwards every line read from r to sink until EOF, a local
// error, or the failure flag is raised. Each line has its trailing "\n" or
// "\r\n" removed and recordDelim appended before forwarding; len(line)+1
// bytes are counted per line. A line read after the flag is raised is
// dropped.
func streamLines(
	ctx context.Context,
	r io.Reader,
	failure *FailureState,
	sink Sink,
	recordDelim rune,
	counter *perf.Counter,
	stats *Stats,
) error {
	br := bufio.NewReaderSize(r, readBufferSize)
	delim := string(recordDelim)
	h := xxh3.New()
	defer func() { stats.Checksum = h.Sum64() }()

	for {
		line, rerr := br.ReadString('\n')
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return fmt.Errorf("%w: %w", ErrLocalRead, rerr)
		}
		if rerr != nil && line == "" {
			return nil
		}
		if failure.Failed() {
			return nil
		}

		line = trimEOL(line)
		record := line + delim
		if err := sink.Forward(ctx, record); err != nil {
			return fmt.Errorf("%w: line %d: %w", ErrForward, stats.Lines+1, err)
		}
		_, _ = h.WriteString(record)

		n := int64(len(line) + 1)
		counter.AddBytes(n)
		stats.Bytes += n
		stats.Lines++

		if rerr != nil {
			// Final line without a terminator.
			return nil
		}
	}
}

func trimEOL(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}
