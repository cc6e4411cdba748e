package stringutils

import (
	"strings"
	"unicode/utf8"
)

// Clean drops NUL, DEL and C0/C1 control characters other than tab, newline
// and carriage return, and replaces invalid UTF-8 with U+FFFD.
func Clean(s string) string {
	if utf8.ValidString(s) && strings.IndexFunc(s, isControl) < 0 {
		return s
	}

	return strings.Map(func(r rune) rune {
		if isControl(r) {
			return -1
		}
		return r
	}, strings.ToValidUTF8(s, "�"))
}

func isControl(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return false
	case r < 32, r == 127:
		return true
	default:
		return r >= 128 && r <= 159
	}
}
