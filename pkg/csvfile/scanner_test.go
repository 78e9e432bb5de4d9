package csvfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCellScanner_Unquoted(t *testing.T) {
	s := newCellScanner(DefaultDialect())

	tests := []struct {
		line     string
		pos      int
		wantCell string
		wantNext int
	}{
		{"abc;def", 0, "abc", 3},
		{"abc;def", 4, "def", 7},
		{"abc;", 4, "", 4},
		{";", 0, "", 0},
		{`a"b;c`, 0, `a"b`, 3},
	}

	for _, tt := range tests {
		cell, next := s.unquoted(tt.line, tt.pos)
		assert.Equal(t, tt.wantCell, cell, "line %q pos %d", tt.line, tt.pos)
		assert.Equal(t, tt.wantNext, next, "line %q pos %d", tt.line, tt.pos)
	}
}

func TestCellScanner_Quoted(t *testing.T) {
	s := newCellScanner(DefaultDialect())

	tests := []struct {
		name      string
		line      string
		pos       int
		wantChunk string
		wantNext  int
		wantStep  quoteStep
	}{
		{"no closing quote", `"abc`, 1, "abc", 4, quoteOpen},
		{"closed at end of line", `"abc"`, 1, "abc", 5, quoteClosedEOL},
		{"closed before delimiter", `"abc";x`, 1, "abc", 5, quoteClosedDelim},
		{"doubled quote", `"a""b"`, 1, `a"`, 4, quoteEscaped},
		{"bare quote", `"a"b"`, 1, `a"`, 3, quoteBare},
		{"empty rest", `"`, 1, "", 1, quoteOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunk, next, step := s.quoted(tt.line, tt.pos)
			assert.Equal(t, tt.wantChunk, chunk)
			assert.Equal(t, tt.wantNext, next)
			assert.Equal(t, tt.wantStep, step)
			assert.LessOrEqual(t, next, len(tt.line))
		})
	}
}

func TestCellScanner_Positions(t *testing.T) {
	s := newCellScanner(Dialect{Delimiter: '§', Quote: '"'})

	assert.True(t, s.isQuoteAt(`a"`, 1))
	assert.False(t, s.isQuoteAt(`a"`, 0))
	assert.False(t, s.isQuoteAt(`a"`, 2))
	assert.Equal(t, 2, s.openQuote(1))
	assert.Equal(t, 3, s.skipDelimiter(1))
	assert.True(t, s.atEnd("ab", 2))
	assert.False(t, s.atEnd("ab", 1))
}
