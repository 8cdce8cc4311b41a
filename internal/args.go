package internal

import "strings"

// unquote trims whitespace and one pair of matching surrounding quotes from a
// viewer argument. The viewer's command templates wrap placeholders in quotes
// that survive into argv on some platforms.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 && s[0] == s[len(s)-1] && (s[0] == '"' || s[0] == '\'') {
		return s[1 : len(s)-1]
	}
	return s
}
