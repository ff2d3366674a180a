package stringutils

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestIndentString(t *testing.T) {
	assert.Equal(t, "    a\n    b", IndentString("a\nb", "    "))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", Truncate("abc", 3))
	assert.Equal(t, "abc", Truncate("abc", 0))
	assert.Equal(t, "ab\n... (truncated)", Truncate("abc", 2))
}

func TestTruncateKeepsRunesIntact(t *testing.T) {
	// "ä" and "€" are encoded as 2 and 3 bytes
	in := "aä€b"

	for max := 1; max < len(in); max++ {
		out := Truncate(in, max)
		assert.Truef(t, utf8.ValidString(out), "max %d: invalid utf-8: %q", max, out)
	}

	assert.Equal(t, "a\n... (truncated)", Truncate(in, 2))
	assert.Equal(t, "aä\n... (truncated)", Truncate(in, 4))
	assert.Equal(t, "aä\n... (truncated)", Truncate(in, 5))
	assert.Equal(t, "aä€\n... (truncated)", Truncate(in, 6))
}
