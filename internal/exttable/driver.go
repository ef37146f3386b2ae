package exttable

import (
	"context"
	"log"
	"sync"
)

// Conn is a single engine session able to run the unload statement.
type Conn interface {
	// Exec runs stmt to completion. For an unload this blocks until the
	// engine has written the last row into the pipe.
	Exec(ctx context.Context, stmt string) error
	Close() error
}

// Connector acquires engine sessions.
type Connector interface {
	Connect(ctx context.Context) (Conn, error)
}

// StatementRunner executes the unload statement on its own goroutine while
// the caller reads the pipe. It never touches the read side; its only
// outputs are the shared FailureState and the Done channel.
type StatementRunner struct {
	failure *FailureState
	conn    Conn
	stmt    string

	start sync.Once
	done  chan struct{}
}

// NewStatementRunner binds a runner to its failure state, an already
// acquired connection, and the statement text. The runner owns conn from
// this point and closes it when the statement finishes.
func NewStatementRunner(failure *FailureState, conn Conn, stmt string) *StatementRunner {
	return &StatementRunner{
		failure: failure,
		conn:    conn,
		stmt:    stmt,
		done:    make(chan struct{}),
	}
}

// Start launches the statement. Calling it more than once has no effect.
func (r *StatementRunner) Start(ctx context.Context) {
	r.start.Do(func() {
		go r.run(ctx)
	})
}

func (r *StatementRunner) run(ctx context.Context) {
	defer close(r.done)

	if Verbose {
		log.Printf("exttable: executing statement: %s", r.stmt)
	}
	if err := r.conn.Exec(ctx, r.stmt); err != nil {
		// Raise the flag first: closing the session also closes the write
		// end of the pipe, and the reader must see the failure before EOF.
		r.failure.Fail(err)
	}
	if err := r.conn.Close(); err != nil {
		log.Printf("exttable: connection close failed err=%v", err)
	}
}

// Done is closed once the statement has finished and the connection has
// been released.
func (r *StatementRunner) Done() <-chan struct{} { return r.done }

// Join blocks until the runner goroutine has exited. It must only be
// called after Start.
func (r *StatementRunner) Join() { <-r.done }

// HasFailed reports whether the statement ended with an error.
func (r *StatementRunner) HasFailed() bool { return r.failure.Failed() }

// Err returns the statement's error, if any.
func (r *StatementRunner) Err() error { return r.failure.Err() }
