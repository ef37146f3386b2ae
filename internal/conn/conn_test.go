package conn

import (
	"context"
	"errors"
	"reflect"
	"testing"

	_ "modernc.org/sqlite"

	"extimport/internal/exttable"
)

type fakeConnector struct{ closed bool }

func (f *fakeConnector) Connect(context.Context) (exttable.Conn, error) { return nil, nil }

func (f *fakeConnector) Close() error {
	f.closed = true
	return nil
}

func TestRegisterAndNew(t *testing.T) {
	t.Parallel()

	var got Config
	Register("fake", func(_ context.Context, cfg Config) (Connector, error) {
		got = cfg
		return &fakeConnector{}, nil
	})

	c, err := New(context.Background(), Config{Kind: "fake", DSN: "x", MaxConns: 3})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c == nil {
		t.Fatalf("New returned nil connector")
	}
	if got.DSN != "x" || got.MaxConns != 3 {
		t.Fatalf("factory saw %+v", got)
	}
}

func TestNew_Unsupported(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{Kind: "oracle"})
	if err == nil || err.Error() != "unsupported source.kind=oracle" {
		t.Fatalf("New error = %v", err)
	}
}

func TestNew_FactoryErrorBubblesUp(t *testing.T) {
	t.Parallel()

	want := errors.New("boom")
	Register("errkind", func(context.Context, Config) (Connector, error) { return nil, want })
	if _, err := New(context.Background(), Config{Kind: "errkind"}); !errors.Is(err, want) {
		t.Fatalf("want %v, got %v", want, err)
	}
}

func TestListKinds_Snapshot(t *testing.T) {
	t.Parallel()

	Register("snap", func(context.Context, Config) (Connector, error) { return &fakeConnector{}, nil })
	a := ListKinds()
	if len(a) == 0 {
		t.Fatalf("ListKinds empty after registration")
	}
	a[0] = "mutated"
	if b := ListKinds(); reflect.DeepEqual(a, b) {
		t.Fatalf("ListKinds returned shared slice")
	}
}

// The database/sql connector is driver-agnostic; SQLite stands in for the
// engine here.
func TestDB_ConnectExecClose(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	db, err := OpenDB(ctx, "sqlite", "file::memory:?cache=shared", 1)
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	s, err := db.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := s.Exec(ctx, "CREATE TABLE t (x INTEGER)"); err != nil {
		t.Fatalf("Exec: %v", err)
	}
	if err := s.Exec(ctx, "SELEC nonsense"); err == nil {
		t.Fatalf("Exec accepted malformed statement")
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// With MaxConns=1 a second session is only available once the first
	// was released.
	s2, err := db.Connect(ctx)
	if err != nil {
		t.Fatalf("second Connect: %v", err)
	}
	_ = s2.Close()
}

func TestOpenDB_UnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := OpenDB(context.Background(), "nope", "dsn", 0); err == nil {
		t.Fatalf("OpenDB accepted unknown driver")
	}
}
