package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })
	return l
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTemp(t)
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	run1, run2 := NewRunID(), NewRunID()

	entries := []Entry{
		{RunID: run1, Job: "cities", Partition: 0, Partitions: 2, Source: "netezza", Sink: "file",
			Started: base, Finished: base.Add(time.Second), Lines: 2, Bytes: 36, Checksum: 0xfedcba9876543210},
		{RunID: run1, Job: "cities", Partition: 1, Partitions: 2, Source: "netezza", Sink: "file",
			Started: base, Finished: base.Add(2 * time.Second), Err: "engine execution failed: boom"},
		{RunID: run2, Job: "orders", Partition: 0, Partitions: 1, Source: "postgres", Sink: "kafka",
			Started: base.Add(time.Hour), Finished: base.Add(time.Hour + time.Second), Lines: 10, Bytes: 100},
	}
	for _, e := range entries {
		if err := l.Record(ctx, e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := l.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 || all[0].Job != "orders" {
		t.Fatalf("Recent(all) = %+v", all)
	}

	cities, err := l.Recent(ctx, "cities", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(cities) != 2 {
		t.Fatalf("Recent(cities) = %d entries, want 2", len(cities))
	}
	ok, failed := cities[0], cities[1]
	if ok.Partition != 0 || ok.Status() != StatusSuccess || ok.Checksum != 0xfedcba9876543210 || ok.Bytes != 36 {
		t.Fatalf("entry 0 = %+v", ok)
	}
	if !ok.Started.Equal(base) || !ok.Finished.Equal(base.Add(time.Second)) {
		t.Fatalf("times = %v %v", ok.Started, ok.Finished)
	}
	if failed.Status() != StatusFailure || failed.Err == "" {
		t.Fatalf("entry 1 = %+v", failed)
	}
}

func TestRecord_ReplacesSamePartition(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l := openTemp(t)
	now := time.Now()
	e := Entry{RunID: NewRunID(), Job: "j", Partitions: 1, Source: "duckdb", Sink: "discard", Started: now, Finished: now, Err: "first try"}
	if err := l.Record(ctx, e); err != nil {
		t.Fatal(err)
	}
	e.Err = ""
	e.Lines = 5
	if err := l.Record(ctx, e); err != nil {
		t.Fatal(err)
	}

	got, err := l.Recent(ctx, "j", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Lines != 5 || got[0].Status() != StatusSuccess {
		t.Fatalf("Recent = %+v", got)
	}
}

func TestRecord_RequiresRunID(t *testing.T) {
	t.Parallel()

	if err := openTemp(t).Record(context.Background(), Entry{Job: "j"}); err == nil {
		t.Fatal("expected error without run id")
	}
}

func TestOpen_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestNewRunID_Unique(t *testing.T) {
	t.Parallel()

	a, b := NewRunID(), NewRunID()
	if a == b || len(a) != 36 {
		t.Fatalf("run ids %q %q", a, b)
	}
}
