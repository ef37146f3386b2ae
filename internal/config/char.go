package config

import (
	"fmt"
	"strconv"
	"unicode/utf8"
)

// ParseChar decodes a single-character setting. A literal character is
// returned as is; Go escape forms such as `\t`, `\001`, `\x01` and
// `\u00a7` are accepted for characters that are awkward to write in a
// config file. The empty string yields 0 (not configured).
func ParseChar(s string) (rune, error) {
	if s == "" {
		return 0, nil
	}
	if utf8.RuneCountInString(s) == 1 {
		r, _ := utf8.DecodeRuneInString(s)
		return r, nil
	}
	if s[0] != '\\' {
		return 0, fmt.Errorf("config: %q is not a single character", s)
	}
	r, _, tail, err := strconv.UnquoteChar(s, 0)
	if err != nil {
		return 0, fmt.Errorf("config: bad escape %q: %w", s, err)
	}
	if tail != "" {
		return 0, fmt.Errorf("config: %q is not a single character", s)
	}
	return r, nil
}
