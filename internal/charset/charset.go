// Package charset resolves text encoding names (as configured for an unload)
// and wraps byte streams with the matching decoder so callers always see
// UTF-8.
package charset

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Default is used when no encoding is configured.
const Default = "UTF-8"

// Lookup resolves name to an encoding. IANA names are tried first, then the
// WHATWG (HTML) labels, which cover common aliases such as "latin1".
// An empty name resolves to UTF-8.
func Lookup(name string) (encoding.Encoding, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = Default
	}
	if isUTF8(name) {
		return unicode.UTF8, nil
	}
	if enc, err := ianaindex.IANA.Encoding(name); err == nil && enc != nil {
		return enc, nil
	}
	if enc, err := htmlindex.Get(name); err == nil {
		return enc, nil
	}
	return nil, fmt.Errorf("charset: unsupported encoding %q", name)
}

// NewReader returns r decoded from the named encoding into UTF-8. For UTF-8
// input r is returned unchanged.
func NewReader(r io.Reader, name string) (io.Reader, error) {
	enc, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	if enc == unicode.UTF8 {
		return r, nil
	}
	return transform.NewReader(r, enc.NewDecoder()), nil
}

func isUTF8(name string) bool {
	switch strings.ToLower(strings.ReplaceAll(name, "_", "-")) {
	case "utf-8", "utf8":
		return true
	}
	return false
}
