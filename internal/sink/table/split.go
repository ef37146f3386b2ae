package table

import (
	"errors"
	"strings"
)

// Field is one decoded column value.
type Field struct {
	Value string
	Null  bool
}

// Splitter breaks a record produced by the engine back into fields. It
// understands the same layout the unload statement asked for: a field
// delimiter, optional enclosing quotes (a doubled quote inside a quoted
// value is a literal quote), an optional escape character and the null
// literal. A value that was quoted or contained an escape is never null.
type Splitter struct {
	Delim   rune
	Enclose rune
	Escape  rune
	Null    string
}

var (
	errUnterminatedQuote = errors.New("unterminated quoted field")
	errTrailingEscape    = errors.New("record ends with an escape character")
)

// Split returns the fields of record.
func (sp Splitter) Split(record string) ([]Field, error) {
	rs := []rune(record)
	out := make([]Field, 0, 8)

	var (
		b        strings.Builder
		literal  bool
		inQuotes bool
		escaped  bool
		atStart  = true
	)
	emit := func() {
		v := b.String()
		out = append(out, Field{Value: v, Null: !literal && v == sp.Null})
		b.Reset()
		literal = false
		atStart = true
	}

	for i := 0; i < len(rs); i++ {
		r := rs[i]
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case sp.Escape != 0 && r == sp.Escape:
			escaped, literal, atStart = true, true, false
		case inQuotes:
			if r != sp.Enclose {
				b.WriteRune(r)
			} else if i+1 < len(rs) && rs[i+1] == sp.Enclose {
				b.WriteRune(r)
				i++
			} else {
				inQuotes = false
			}
		case sp.Enclose != 0 && r == sp.Enclose && atStart:
			inQuotes, literal, atStart = true, true, false
		case r == sp.Delim:
			emit()
		default:
			b.WriteRune(r)
			atStart = false
		}
	}
	switch {
	case inQuotes:
		return nil, errUnterminatedQuote
	case escaped:
		return nil, errTrailingEscape
	}
	emit()
	return out, nil
}
