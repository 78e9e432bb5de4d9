package csvfile

import (
	"bufio"
	"errors"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

const defaultBufferSize = 64 * 1024

// ErrClosed is the cause of errors returned after Close.
var ErrClosed = errors.New("csvfile: stream is closed")

// scanState is the state of the row scanner. A row starts in stateLineStart
// and ends in stateRowDone or stateEndOfInput.
type scanState int

const (
	stateLineStart scanState = iota
	stateCellStart
	stateQuotedCell
	stateUnquotedCell
	stateFieldDone
	stateRowDone
	stateEndOfInput
)

// Reader splits delimited text into rows. A quoted cell may continue over
// any number of physical lines; every line break inside it becomes NewLine.
// Malformed quoting never fails: a quote that neither closes the cell nor is
// doubled is kept as a literal character.
//
// A Reader owns its source. Close releases it, and closing twice is a no-op.
type Reader struct {
	src      io.Reader
	br       *bufio.Reader
	dialect  Dialect
	scan     cellScanner
	logger   *zap.Logger
	observer Observer

	line      string
	pos       int
	lineNo    int
	rowNo     int
	srcEOF    bool
	exhausted bool
	closed    bool
}

// NewReader creates a Reader over r. The dialect is validated first; if it is
// invalid r is closed (when it is an io.Closer) and the error returned.
func NewReader(r io.Reader, d Dialect) (*Reader, error) {
	if r == nil {
		return nil, csverrors.New(csverrors.ErrorTypeValidation, "reader source cannot be nil")
	}
	d = d.withDefaults()
	if err := d.Validate(); err != nil {
		closeSource(r)
		return nil, err
	}

	return &Reader{
		src:      r,
		br:       bufio.NewReaderSize(r, defaultBufferSize),
		dialect:  d,
		scan:     newCellScanner(d),
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}, nil
}

// SetLogger sets the logger used for debug output. nil restores the no-op logger.
func (r *Reader) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	r.logger = l
}

// SetObserver registers o to receive row statistics. nil disables observation.
func (r *Reader) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	r.observer = o
}

// Dialect returns the effective dialect, defaults applied.
func (r *Reader) Dialect() Dialect {
	return r.dialect
}

// Line returns the number of physical lines consumed so far.
func (r *Reader) Line() int {
	return r.lineNo
}

// Row returns the number of rows returned so far.
func (r *Reader) Row() int {
	return r.rowNo
}

// ReadRow returns the next logical row. ok is false once the input is
// exhausted, or after an empty line under the EndOfFile policy; every later
// call then returns ok false as well. err is only set for stream failures.
func (r *Reader) ReadRow() (Row, bool, error) {
	if r.closed {
		return nil, false, csverrors.Wrap(ErrClosed, csverrors.ErrorTypeIO, "read from closed reader")
	}
	if r.exhausted {
		return nil, false, nil
	}

	var (
		row       Row
		cell      strings.Builder
		state     = stateLineStart
		firstLine = r.lineNo + 1
		multiLine = false
	)

	for {
		switch state {
		case stateLineStart:
			line, more, err := r.nextLine()
			if err != nil {
				return nil, false, err
			}
			if !more {
				state = stateEndOfInput
				continue
			}
			if line != "" {
				r.line, r.pos = line, 0
				row = make(Row, 0, 8)
				state = stateCellStart
				continue
			}

			r.observer.ObserveEmptyLine(r.dialect.EmptyLines)
			switch r.dialect.EmptyLines {
			case NoCells:
				row = Row{}
				state = stateRowDone
			case EmptyCell:
				row = Row{""}
				state = stateRowDone
			case Ignore:
				firstLine = r.lineNo + 1
			case EndOfFile:
				r.logger.Debug("empty line treated as end of input", zap.Int("line", r.lineNo))
				state = stateEndOfInput
			}

		case stateCellStart:
			cell.Reset()
			if r.scan.isQuoteAt(r.line, r.pos) {
				r.pos = r.scan.openQuote(r.pos)
				state = stateQuotedCell
			} else {
				state = stateUnquotedCell
			}

		case stateUnquotedCell:
			value, next := r.scan.unquoted(r.line, r.pos)
			cell.WriteString(value)
			r.pos = next
			state = stateFieldDone

		case stateQuotedCell:
			chunk, next, step := r.scan.quoted(r.line, r.pos)
			cell.WriteString(chunk)
			r.pos = next

			switch step {
			case quoteClosedEOL, quoteClosedDelim:
				state = stateFieldDone
			case quoteEscaped, quoteBare:
				// still inside the same cell
			case quoteOpen:
				line, more, err := r.nextLine()
				if err != nil {
					return nil, false, err
				}
				if !more {
					// Input ended inside the quotes: keep what was collected.
					row = append(row, cell.String())
					state = stateRowDone
					continue
				}
				cell.WriteString(NewLine)
				r.line, r.pos = line, 0
				multiLine = true
			}

		case stateFieldDone:
			row = append(row, cell.String())
			if r.scan.atEnd(r.line, r.pos) {
				state = stateRowDone
			} else {
				r.pos = r.scan.skipDelimiter(r.pos)
				state = stateCellStart
			}

		case stateRowDone:
			r.rowNo++
			lines := r.lineNo - firstLine + 1
			if multiLine {
				r.observer.ObserveMultiLineCell()
				r.logger.Debug("quoted cell spans multiple lines",
					zap.Int("row", r.rowNo),
					zap.Int("first_line", firstLine),
					zap.Int("lines", lines))
			}
			r.observer.ObserveRow(len(row), lines)
			return row, true, nil

		case stateEndOfInput:
			r.exhausted = true
			return nil, false, nil
		}
	}
}

// ReadAll reads the remaining rows.
func (r *Reader) ReadAll() ([]Row, error) {
	var rows []Row
	for {
		row, ok, err := r.ReadRow()
		if err != nil {
			return rows, err
		}
		if !ok {
			return rows, nil
		}
		rows = append(rows, row)
	}
}

// Close releases the source. Only the first call has an effect.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.logger.Debug("reader closed", zap.Int("lines", r.lineNo), zap.Int("rows", r.rowNo))

	if c, ok := r.src.(io.Closer); ok {
		if err := c.Close(); err != nil {
			return csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to close source")
		}
	}
	return nil
}

// nextLine returns the next physical line without its "\n" or "\r\n"
// terminator. more is false when the source holds no further line.
func (r *Reader) nextLine() (line string, more bool, err error) {
	if r.srcEOF {
		return "", false, nil
	}

	s, err := r.br.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to read line").
				WithDetail(csverrors.DetailLine, r.lineNo+1)
		}
		r.srcEOF = true
		if s == "" {
			return "", false, nil
		}
	} else {
		s = s[:len(s)-1]
	}

	r.lineNo++
	return strings.TrimSuffix(s, "\r"), true, nil
}

func closeSource(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}
