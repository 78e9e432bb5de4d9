package csvfile

import "strings"

// quoteStep is the outcome of scanning a quoted cell up to its next quote.
type quoteStep int

const (
	// quoteOpen: the line ended inside the quotes.
	quoteOpen quoteStep = iota
	// quoteClosedEOL: the closing quote is the last character of the line.
	quoteClosedEOL
	// quoteClosedDelim: the closing quote is followed by the delimiter.
	quoteClosedDelim
	// quoteEscaped: a doubled quote, one literal quote was kept.
	quoteEscaped
	// quoteBare: a quote followed by anything else, kept literally.
	quoteBare
)

// cellScanner extracts cells from a single physical line. It keeps no
// position of its own: every call takes the offset to start from and returns
// the offset where scanning resumes, always within [0, len(line)].
type cellScanner struct {
	delim string
	quote string
}

func newCellScanner(d Dialect) cellScanner {
	return cellScanner{
		delim: string(d.Delimiter),
		quote: string(d.Quote),
	}
}

func (s cellScanner) isQuoteAt(line string, pos int) bool {
	return strings.HasPrefix(line[pos:], s.quote)
}

func (s cellScanner) openQuote(pos int) int {
	return pos + len(s.quote)
}

func (s cellScanner) atEnd(line string, pos int) bool {
	return pos >= len(line)
}

// skipDelimiter expects line[pos:] to start with the delimiter.
func (s cellScanner) skipDelimiter(pos int) int {
	return pos + len(s.delim)
}

// unquoted returns the text up to the next delimiter (or end of line) and the
// offset of that delimiter.
func (s cellScanner) unquoted(line string, pos int) (string, int) {
	i := strings.Index(line[pos:], s.delim)
	if i < 0 {
		return line[pos:], len(line)
	}
	return line[pos : pos+i], pos + i
}

// quoted scans inside an open quoted cell. The returned chunk belongs to the
// cell value; the step tells the caller whether the cell is still open.
func (s cellScanner) quoted(line string, pos int) (string, int, quoteStep) {
	i := strings.Index(line[pos:], s.quote)
	if i < 0 {
		return line[pos:], len(line), quoteOpen
	}

	q := pos + i
	after := q + len(s.quote)
	rest := line[after:]

	switch {
	case rest == "":
		return line[pos:q], after, quoteClosedEOL
	case strings.HasPrefix(rest, s.quote):
		return line[pos:after], after + len(s.quote), quoteEscaped
	case strings.HasPrefix(rest, s.delim):
		return line[pos:q], after, quoteClosedDelim
	default:
		return line[pos:after], after, quoteBare
	}
}
