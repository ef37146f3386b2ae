package exttable

import (
	"sync"
	"sync/atomic"
)

// FailureState is the one-way failure signal shared by the statement runner
// and the reader loop of a single import. The first recorded error wins;
// later calls to Fail are ignored. The zero value is ready to use.
type FailureState struct {
	failed atomic.Bool
	once   sync.Once
	err    error
}

// Fail records err as the failure cause. It is safe to call from any
// goroutine. A nil err still raises the flag.
func (s *FailureState) Fail(err error) {
	s.once.Do(func() {
		s.err = err
		s.failed.Store(true)
	})
}

// Failed reports whether Fail has been called.
func (s *FailureState) Failed() bool { return s.failed.Load() }

// Err returns the first recorded error, or nil if none. The store to err
// happens before the flag is raised, so a caller that observed Failed()
// sees the cause.
func (s *FailureState) Err() error {
	if !s.failed.Load() {
		return nil
	}
	return s.err
}
