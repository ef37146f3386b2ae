package sqlgen

import (
	"fmt"
	"log"
	"strconv"
	"strings"
)

// DefaultRemoteSource is the REMOTESOURCE value used unless the request
// sets the "remote_source" option. It is the tag the nzgo driver answers
// external table transfers for.
const DefaultRemoteSource = "GOLANG"

// Netezza renders a CREATE EXTERNAL TABLE ... AS SELECT statement that
// unloads one data slice modulo into the pipe:
//
//	CREATE EXTERNAL TABLE '/work/nzexttable-0.txt' USING (REMOTESOURCE 'GOLANG'
//	 BOOLSTYLE 'T_F' CRINSTRING FALSE DELIMITER 44 ENCODING 'internal'
//	 FORMAT 'Text' INCLUDEZEROSECONDS TRUE NULLVALUE 'null' MAXERRORS 1)
//	 AS SELECT * FROM t WHERE (DATASLICEID % 4) = 0
type Netezza struct{}

// Name implements Dialect.
func (Netezza) Name() string { return "netezza" }

// Build implements Dialect.
func (Netezza) Build(r Request) (string, error) {
	if err := r.validate(false); err != nil {
		return "", err
	}
	f := r.Format.WithDefaults()

	var b strings.Builder
	b.Grow(512)

	b.WriteString("CREATE EXTERNAL TABLE ")
	b.WriteString(quoteLiteral(r.PipePath))
	b.WriteString(" USING (REMOTESOURCE ")
	b.WriteString(quoteLiteral(r.option("remote_source", DefaultRemoteSource)))
	b.WriteString(" BOOLSTYLE 'T_F' CRINSTRING FALSE")
	b.WriteString(" DELIMITER ")
	b.WriteString(strconv.Itoa(int(f.FieldDelimiter)))
	b.WriteString(" ENCODING 'internal'")
	if f.EscapedBy != 0 {
		if f.EscapedBy != '\\' {
			log.Printf("sqlgen: netezza escapes with backslash only; escaped_by=%q emitted as '\\'", f.EscapedBy)
		}
		b.WriteString(` ESCAPECHAR '\'`)
	}
	b.WriteString(" FORMAT 'Text' INCLUDEZEROSECONDS TRUE")
	b.WriteString(" NULLVALUE ")
	b.WriteString(quoteLiteral(f.NullValue))
	switch f.EnclosedBy {
	case 0:
	case '\'':
		b.WriteString(" QUOTEDVALUE SINGLE")
	case '"':
		b.WriteString(" QUOTEDVALUE DOUBLE")
	default:
		log.Printf("sqlgen: unsupported enclosed_by character %q; ignoring", f.EnclosedBy)
	}
	if f.LogDir != "" {
		b.WriteString(" LOGDIR ")
		b.WriteString(quoteLiteral(f.LogDir))
	}
	b.WriteString(" MAXERRORS ")
	b.WriteString(strconv.Itoa(*f.ErrorThreshold))
	b.WriteString(") AS ")

	shard := fmt.Sprintf("(DATASLICEID %% %d) = %d", r.PartitionCount, r.PartitionID)
	b.WriteString(selectClause(r, shard))
	return b.String(), nil
}
