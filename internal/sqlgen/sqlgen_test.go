package sqlgen

import (
	"errors"
	"strings"
	"testing"
)

func baseRequest() Request {
	return Request{
		Table:          "cities",
		Columns:        []string{"id", "country", "city"},
		PartitionKey:   "id",
		PartitionID:    0,
		PartitionCount: 2,
		PipePath:       "/work/nzexttable-0.txt",
	}
}

func intPtr(n int) *int { return &n }

func TestNetezza_FullStatement(t *testing.T) {
	t.Parallel()

	r := baseRequest()
	r.Where = "country = 'USA'"
	got, err := Netezza{}.Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "CREATE EXTERNAL TABLE '/work/nzexttable-0.txt' USING (REMOTESOURCE 'GOLANG'" +
		" BOOLSTYLE 'T_F' CRINSTRING FALSE DELIMITER 44 ENCODING 'internal'" +
		" FORMAT 'Text' INCLUDEZEROSECONDS TRUE NULLVALUE 'null' MAXERRORS 1)" +
		" AS SELECT id, country, city FROM cities WHERE (DATASLICEID % 2) = 0" +
		" AND (country = 'USA')"
	if got != want {
		t.Fatalf("statement mismatch\n got: %s\nwant: %s", got, want)
	}
}

// Every supported enclosing choice builds without error and carries exactly
// one MAXERRORS directive with the configured threshold.
func TestNetezza_EnclosingAndMaxErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		enclosed  rune
		threshold *int
		wantQuote string
		wantMax   string
	}{
		{name: "unset_default_threshold", enclosed: 0, threshold: nil, wantQuote: "", wantMax: "MAXERRORS 1)"},
		{name: "explicit_zero_threshold", enclosed: 0, threshold: intPtr(0), wantQuote: "", wantMax: "MAXERRORS 0)"},
		{name: "single_quote", enclosed: '\'', threshold: intPtr(5), wantQuote: "QUOTEDVALUE SINGLE", wantMax: "MAXERRORS 5)"},
		{name: "double_quote", enclosed: '"', threshold: intPtr(1000), wantQuote: "QUOTEDVALUE DOUBLE", wantMax: "MAXERRORS 1000)"},
		{name: "unsupported_is_ignored", enclosed: '|', threshold: intPtr(2), wantQuote: "", wantMax: "MAXERRORS 2)"},
	}

	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			r := baseRequest()
			r.Format = Format{EnclosedBy: c.enclosed, ErrorThreshold: c.threshold}
			got, err := Netezza{}.Build(r)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			if n := strings.Count(got, "MAXERRORS"); n != 1 {
				t.Fatalf("MAXERRORS appears %d times in %q", n, got)
			}
			if !strings.Contains(got, c.wantMax) {
				t.Fatalf("missing %q in %q", c.wantMax, got)
			}
			if c.wantQuote == "" {
				if strings.Contains(got, "QUOTEDVALUE") {
					t.Fatalf("unexpected QUOTEDVALUE in %q", got)
				}
			} else if !strings.Contains(got, c.wantQuote) {
				t.Fatalf("missing %q in %q", c.wantQuote, got)
			}
		})
	}
}

func TestNetezza_Directives(t *testing.T) {
	t.Parallel()

	r := baseRequest()
	r.Format = Format{
		FieldDelimiter: '\t',
		EscapedBy:      '\\',
		NullValue:      `\N`,
		LogDir:         "/var/log/nz's",
	}
	r.Options = map[string]string{"remote_source": "ODBC"}
	got, err := Netezza{}.Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, want := range []string{
		"REMOTESOURCE 'ODBC'",
		"DELIMITER 9 ",
		`ESCAPECHAR '\'`,
		`NULLVALUE '\N'`,
		"LOGDIR '/var/log/nz''s'",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestNetezza_NoEscapeWhenUnset(t *testing.T) {
	t.Parallel()

	got, err := Netezza{}.Build(baseRequest())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if strings.Contains(got, "ESCAPECHAR") || strings.Contains(got, "LOGDIR") {
		t.Fatalf("unexpected optional directive in %q", got)
	}
}

func TestSelectClause_Columns(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		cols []string
		want string
	}{
		{name: "empty_is_star", cols: nil, want: "SELECT * FROM cities WHERE "},
		{name: "single", cols: []string{"id"}, want: "SELECT id FROM cities WHERE "},
		{name: "order_kept", cols: []string{"z", "a", "m"}, want: "SELECT z, a, m FROM cities WHERE "},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			r := baseRequest()
			r.Columns = c.cols
			for _, d := range []Dialect{Netezza{}, Postgres{}, DuckDB{}} {
				got, err := d.Build(r)
				if err != nil {
					t.Fatalf("%s Build: %v", d.Name(), err)
				}
				if !strings.Contains(got, c.want) {
					t.Fatalf("%s: missing %q in %q", d.Name(), c.want, got)
				}
				if strings.Contains(got, ", FROM") {
					t.Fatalf("%s: trailing comma in %q", d.Name(), got)
				}
			}
		})
	}
}

func TestBuild_InvalidRequests(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(r *Request)
		d      Dialect
	}{
		{name: "empty_table", mutate: func(r *Request) { r.Table = "  " }, d: Netezza{}},
		{name: "empty_pipe", mutate: func(r *Request) { r.PipePath = "" }, d: Netezza{}},
		{name: "zero_partitions", mutate: func(r *Request) { r.PartitionCount = 0 }, d: Netezza{}},
		{name: "id_out_of_range", mutate: func(r *Request) { r.PartitionID = 2 }, d: Netezza{}},
		{name: "negative_threshold", mutate: func(r *Request) { r.Format.ErrorThreshold = intPtr(-1) }, d: Netezza{}},
		{name: "postgres_needs_key", mutate: func(r *Request) { r.PartitionKey = "" }, d: Postgres{}},
		{name: "duckdb_needs_key", mutate: func(r *Request) { r.PartitionKey = "" }, d: DuckDB{}},
		{name: "postgres_multibyte_delim", mutate: func(r *Request) { r.Format.FieldDelimiter = '§' }, d: Postgres{}},
	}
	for _, c := range cases {
		c := c
		t.Run(c.name, func(t *testing.T) {
			t.Parallel()

			r := baseRequest()
			c.mutate(&r)
			if _, err := c.d.Build(r); !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("Build error = %v, want ErrInvalidRequest", err)
			}
		})
	}
}

func TestNetezza_IgnoresPartitionKey(t *testing.T) {
	t.Parallel()

	r := baseRequest()
	r.PartitionKey = ""
	if _, err := (Netezza{}).Build(r); err != nil {
		t.Fatalf("Build without partition key: %v", err)
	}
}

func TestPostgres_Statement(t *testing.T) {
	t.Parallel()

	r := baseRequest()
	r.Where = "country <> 'X'"
	got, err := Postgres{}.Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "COPY (SELECT id, country, city FROM cities WHERE ((hashtext((id)::text) & 2147483647) % 2) = 0" +
		" AND (country <> 'X')) TO '/work/nzexttable-0.txt' WITH (FORMAT text, DELIMITER ',', NULL 'null')"
	if got != want {
		t.Fatalf("statement mismatch\n got: %s\nwant: %s", got, want)
	}

	r.Format = Format{EnclosedBy: '"', EscapedBy: '\\'}
	got, err = Postgres{}.Build(r)
	if err != nil {
		t.Fatalf("Build csv: %v", err)
	}
	for _, want := range []string{"FORMAT csv", `QUOTE '"'`, `ESCAPE '\'`} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in %q", want, got)
		}
	}
}

func TestDuckDB_Statement(t *testing.T) {
	t.Parallel()

	r := baseRequest()
	r.Format = Format{FieldDelimiter: '|', EnclosedBy: '"'}
	got, err := DuckDB{}.Build(r)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	want := "COPY (SELECT id, country, city FROM cities WHERE (hash(id) % 2) = 0)" +
		" TO '/work/nzexttable-0.txt' (FORMAT csv, HEADER false, DELIMITER '|', NULLSTR 'null'," +
		` QUOTE '"', USE_TMP_FILE false)`
	if got != want {
		t.Fatalf("statement mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestLookup(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"netezza", "postgres", "duckdb"} {
		d, err := Lookup(name)
		if err != nil {
			t.Fatalf("Lookup(%q): %v", name, err)
		}
		if d.Name() != name {
			t.Fatalf("Lookup(%q).Name() = %q", name, d.Name())
		}
	}
	if _, err := Lookup("oracle"); err == nil || !strings.Contains(err.Error(), "netezza") {
		t.Fatalf("Lookup(unknown) error = %v, want list of known dialects", err)
	}
}
