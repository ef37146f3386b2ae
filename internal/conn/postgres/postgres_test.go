//go:build unix

package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"extimport/internal/conn"
	"extimport/internal/exttable"
	"extimport/internal/fifo"
	"extimport/internal/sqlgen"
)

func TestNew_EmptyDSN(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), conn.Config{Kind: "postgres"}); err == nil {
		t.Fatalf("empty DSN accepted")
	}
}

// TestUnload_Live needs a server on this host, e.g.
// TEST_PG_DSN=postgres://postgres@localhost:5432/postgres
func TestUnload_Live(t *testing.T) {
	dsn := os.Getenv("TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TEST_PG_DSN not set")
	}
	ctx := context.Background()
	c, err := New(ctx, conn.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	s, err := c.Connect(ctx)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	for _, q := range []string{
		"DROP TABLE IF EXISTS extimport_cities",
		"CREATE TABLE extimport_cities (id int, country text, city text)",
		"INSERT INTO extimport_cities VALUES (1,'USA','Palo Alto'),(2,'Czech Republic','Brno'),(3,'USA','Sunnyvale')",
	} {
		if err := s.Exec(ctx, q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	_ = s.Close()

	dir := t.TempDir()
	if err := os.Chmod(dir, 0o777); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	im := exttable.New(exttable.Options{
		Pipes:        fifo.Manager{Mode: 0o666},
		Connector:    c,
		Dialect:      sqlgen.Postgres{},
		WorkDir:      dir,
		Table:        "extimport_cities",
		Columns:      []string{"id", "country", "city"},
		PartitionKey: "id",
	})

	var lines []string
	sink := exttable.SinkFunc(func(_ context.Context, rec string) error {
		lines = append(lines, rec)
		return nil
	})
	stats, err := im.Run(ctx, exttable.Partition{ID: 0, Count: 1}, exttable.Format{}, sink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if stats.Lines != 3 || !strings.Contains(strings.Join(lines, ""), "2,Czech Republic,Brno\n") {
		t.Fatalf("lines = %q", lines)
	}
}
