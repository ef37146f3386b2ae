package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"extimport/internal/storage"
)

func openTemp(t *testing.T, table string, cols []string) (storage.Repository, string) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "out.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn, Table: table, Columns: cols})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo, dsn
}

func TestEnsureTableAndCopyFrom(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	spec := storage.TableSpec{Table: "cities", Columns: []string{"id", "country", "city"}}
	repo, dsn := openTemp(t, spec.Table, spec.Columns)

	for i := 0; i < 2; i++ { // idempotent
		if err := storage.EnsureTable(ctx, "sqlite", spec, repo); err != nil {
			t.Fatalf("EnsureTable #%d: %v", i+1, err)
		}
	}
	n, err := repo.CopyFrom(ctx, spec.Columns, [][]any{
		{"1", "USA", "Palo Alto"},
		{"2", "Czech Republic", nil},
	})
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 2 {
		t.Fatalf("CopyFrom = %d, want 2", n)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	var count, nulls int
	if err := db.QueryRow(`SELECT COUNT(*), SUM(city IS NULL) FROM cities`).Scan(&count, &nulls); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 2 || nulls != 1 {
		t.Fatalf("count=%d nulls=%d", count, nulls)
	}
}

func TestCopyFrom_RowShapeMismatchRollsBack(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	spec := storage.TableSpec{Table: "t", Columns: []string{"a", "b"}}
	repo, _ := openTemp(t, spec.Table, spec.Columns)
	if err := storage.EnsureTable(ctx, "sqlite", spec, repo); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	if _, err := repo.CopyFrom(ctx, spec.Columns, [][]any{{"1", "x"}, {"only-one"}}); err == nil {
		t.Fatalf("short row accepted")
	}
	n, err := repo.CopyFrom(ctx, spec.Columns, [][]any{{"2", "y"}})
	if err != nil || n != 1 {
		t.Fatalf("CopyFrom after rollback = %d, %v", n, err)
	}
}

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	got := createTableSQL(storage.TableSpec{Table: "main.t", Columns: []string{"a", "b c"}})
	want := `CREATE TABLE IF NOT EXISTS "main"."t" ("a" TEXT, "b c" TEXT)`
	if got != want {
		t.Fatalf("got  %s\nwant %s", got, want)
	}
}

// Not parallel: swaps the package-level newRepository hook.
func TestAdapterUsesHook(t *testing.T) {
	orig := newRepository
	t.Cleanup(func() { newRepository = orig })

	var got Config
	closed := false
	newRepository = func(_ context.Context, cfg Config) (*Repository, func(), error) {
		got = cfg
		return &Repository{}, func() { closed = true }, nil
	}
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: "x.db", Table: "events", Columns: []string{"id"}})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	if got.DSN != "x.db" || got.Table != "events" {
		t.Fatalf("adapter passed %+v", got)
	}
	repo.Close()
	if !closed {
		t.Fatalf("Close did not reach closeFn")
	}
}
