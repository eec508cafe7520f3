package models

import "strings"

// LiteralValue reports whether an unpivot rule value is a <<...>> literal and
// returns the unwrapped text.
func LiteralValue(s string) (string, bool) {
	if len(s) >= 4 && strings.HasPrefix(s, "<<") && strings.HasSuffix(s, ">>") {
		return s[2 : len(s)-2], true
	}
	return "", false
}
