package stringutils

import (
	"strings"
	"unicode/utf8"
)

// IndentString prefixes each line of the string with indent.
func IndentString(str, indent string) string {
	spl := strings.SplitAfter(str, "\n")
	return strings.Join(append([]string{""}, spl...), indent)
}

// Truncate shortens str to at most max bytes and appends a marker when
// something was cut off. It never splits a UTF-8 encoded rune.
// If max is <=0 str is returned unchanged.
func Truncate(str string, max int) string {
	if max <= 0 || len(str) <= max {
		return str
	}

	cut := max
	for cut > 0 && !utf8.RuneStart(str[cut]) {
		cut--
	}

	return str[:cut] + "\n... (truncated)"
}
