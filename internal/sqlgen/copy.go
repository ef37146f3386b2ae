package sqlgen

import (
	"fmt"
	"log"
	"strings"
)

// Postgres renders a server-side COPY (SELECT ...) TO '<pipe>' statement.
// The server writes the pipe itself, so it must run on the same host as the
// importer and the role needs pg_write_server_files.
//
// Rows are sharded by a non-negative hashtext() of PartitionKey. Text format
// is used unless an enclosing character is configured, which switches to
// CSV. Postgres has no malformed-row tolerance on export, so ErrorThreshold
// and LogDir do not apply.
type Postgres struct{}

// Name implements Dialect.
func (Postgres) Name() string { return "postgres" }

// Build implements Dialect.
func (Postgres) Build(r Request) (string, error) {
	if err := r.validate(true); err != nil {
		return "", err
	}
	f := r.Format.WithDefaults()
	if f.FieldDelimiter > 0x7f {
		return "", fmt.Errorf("%w: postgres delimiter must be a single-byte character, got %q", ErrInvalidRequest, f.FieldDelimiter)
	}

	shard := fmt.Sprintf("((hashtext((%s)::text) & 2147483647) %% %d) = %d",
		r.PartitionKey, r.PartitionCount, r.PartitionID)

	opts := make([]string, 0, 5)
	if f.EnclosedBy != 0 {
		opts = append(opts, "FORMAT csv")
	} else {
		opts = append(opts, "FORMAT text")
	}
	opts = append(opts,
		"DELIMITER "+quoteLiteral(string(f.FieldDelimiter)),
		"NULL "+quoteLiteral(f.NullValue),
	)
	if f.EnclosedBy != 0 {
		opts = append(opts, "QUOTE "+quoteLiteral(string(f.EnclosedBy)))
		if f.EscapedBy != 0 {
			opts = append(opts, "ESCAPE "+quoteLiteral(string(f.EscapedBy)))
		}
	} else if f.EscapedBy != 0 && f.EscapedBy != '\\' {
		log.Printf("sqlgen: postgres text format escapes with backslash only; escaped_by=%q ignored", f.EscapedBy)
	}

	return fmt.Sprintf("COPY (%s) TO %s WITH (%s)",
		selectClause(r, shard), quoteLiteral(r.PipePath), strings.Join(opts, ", ")), nil
}

// DuckDB renders COPY (SELECT ...) TO '<pipe>' in CSV format. USE_TMP_FILE is
// disabled so DuckDB writes into the FIFO instead of renaming a temp file
// over it. Rows are sharded by hash(PartitionKey), which is unsigned.
type DuckDB struct{}

// Name implements Dialect.
func (DuckDB) Name() string { return "duckdb" }

// Build implements Dialect.
func (DuckDB) Build(r Request) (string, error) {
	if err := r.validate(true); err != nil {
		return "", err
	}
	f := r.Format.WithDefaults()

	shard := fmt.Sprintf("(hash(%s) %% %d) = %d", r.PartitionKey, r.PartitionCount, r.PartitionID)

	opts := []string{
		"FORMAT csv",
		"HEADER false",
		"DELIMITER " + quoteLiteral(string(f.FieldDelimiter)),
		"NULLSTR " + quoteLiteral(f.NullValue),
	}
	if f.EnclosedBy != 0 {
		opts = append(opts, "QUOTE "+quoteLiteral(string(f.EnclosedBy)))
	}
	if f.EscapedBy != 0 {
		opts = append(opts, "ESCAPE "+quoteLiteral(string(f.EscapedBy)))
	}
	opts = append(opts, "USE_TMP_FILE false")

	return fmt.Sprintf("COPY (%s) TO %s (%s)",
		selectClause(r, shard), quoteLiteral(r.PipePath), strings.Join(opts, ", ")), nil
}
