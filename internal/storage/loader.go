package storage

import (
	"context"
	"fmt"
	"log"
	"time"
)

// CopyFn is a backend's bulk insert, usually Repository.CopyFrom. It must
// not retain rows after returning; the loader reuses the batch slice.
type CopyFn func(ctx context.Context, columns []string, rows [][]any) (int64, error)

// LoadBatches drains rows from in, groups them into batches of batchSize and
// calls copyFn once per non-empty batch. It returns the total reported by
// copyFn and the first error. When in is closed the final partial batch is
// flushed; when ctx ends it returns ctx.Err() without flushing.
func LoadBatches(
	ctx context.Context,
	columns []string,
	in <-chan []any,
	batchSize int,
	copyFn CopyFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if copyFn == nil {
		return 0, fmt.Errorf("copyFn must not be nil")
	}

	var (
		total   int64
		batches int64
		batch   = make([][]any, 0, batchSize)
		start   = time.Now()
		last    = start
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		size := len(batch)
		n, err := copyFn(ctx, columns, batch)
		total += n
		batch = batch[:0]
		if err != nil {
			log.Printf("storage: copy failed batch=%d rows=%d total=%d err=%v", batches+1, size, total, err)
			return err
		}

		batches++
		now := time.Now()
		rps := float64(0)
		if d := now.Sub(last); d > 0 {
			rps = float64(n) / d.Seconds()
		}
		log.Printf("storage: batch=%d rows=%d total=%d rps=%.0f elapsed=%s",
			batches, n, total, rps, now.Sub(start).Truncate(time.Millisecond))
		last = now
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				if err := flush(); err != nil {
					return total, err
				}
				log.Printf("storage: input closed batches=%d total=%d", batches, total)
				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
