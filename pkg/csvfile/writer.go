package csvfile

import (
	"bufio"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

// Writer emits rows as delimited text that a Reader with the same dialect
// parses back to the same fields. The first write error is kept and returned
// by every later call.
//
// A Writer owns its destination. Close flushes and releases it, and closing
// twice is a no-op.
type Writer struct {
	// UseCRLF terminates rows with "\r\n" instead of "\n".
	UseCRLF bool
	// AlwaysQuote quotes every field, not just those that need it.
	AlwaysQuote bool

	dst      io.Writer
	bw       *bufio.Writer
	dialect  Dialect
	delim    string
	quote    string
	escaped  string
	special  string
	logger   *zap.Logger
	observer Observer

	rows   int
	err    error
	closed bool
}

// NewWriter creates a Writer over w. If the dialect is invalid w is closed
// (when it is an io.Closer) and the error returned.
func NewWriter(w io.Writer, d Dialect) (*Writer, error) {
	if w == nil {
		return nil, csverrors.New(csverrors.ErrorTypeValidation, "writer destination cannot be nil")
	}
	d = d.withDefaults()
	if err := d.Validate(); err != nil {
		closeSource(w)
		return nil, err
	}

	delim, quote := string(d.Delimiter), string(d.Quote)
	return &Writer{
		dst:      w,
		bw:       bufio.NewWriterSize(w, defaultBufferSize),
		dialect:  d,
		delim:    delim,
		quote:    quote,
		escaped:  quote + quote,
		special:  delim + quote + "\r\n",
		logger:   zap.NewNop(),
		observer: nopObserver{},
	}, nil
}

// SetLogger sets the logger used for debug output. nil restores the no-op logger.
func (w *Writer) SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	w.logger = l
}

// SetObserver registers o to receive write statistics. nil disables observation.
func (w *Writer) SetObserver(o Observer) {
	if o == nil {
		o = nopObserver{}
	}
	w.observer = o
}

// Dialect returns the effective dialect, defaults applied.
func (w *Writer) Dialect() Dialect {
	return w.dialect
}

// Rows returns the number of rows written so far.
func (w *Writer) Rows() int {
	return w.rows
}

// WriteRow writes one row followed by the row terminator. A row without
// fields produces an empty line.
func (w *Writer) WriteRow(fields []string) error {
	if w.closed {
		return csverrors.Wrap(ErrClosed, csverrors.ErrorTypeIO, "write to closed writer")
	}
	if w.err != nil {
		return w.err
	}

	n := 0
	for i, field := range fields {
		if i > 0 {
			if err := w.write(w.delim, &n); err != nil {
				return err
			}
		}
		if err := w.writeField(field, &n); err != nil {
			return err
		}
	}

	terminator := "\n"
	if w.UseCRLF {
		terminator = "\r\n"
	}
	if err := w.write(terminator, &n); err != nil {
		return err
	}

	w.rows++
	w.observer.ObserveWrite(len(fields), n)
	return nil
}

// WriteAll writes rows, stopping at the first error.
func (w *Writer) WriteAll(rows []Row) error {
	for _, row := range rows {
		if err := w.WriteRow(row); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes buffered data to the destination.
func (w *Writer) Flush() error {
	if w.closed {
		return csverrors.Wrap(ErrClosed, csverrors.ErrorTypeIO, "flush of closed writer")
	}
	if w.err != nil {
		return w.err
	}
	if err := w.bw.Flush(); err != nil {
		w.err = csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to flush rows")
		return w.err
	}
	return nil
}

// Error reports the first error encountered by the writer.
func (w *Writer) Error() error {
	return w.err
}

// Close flushes pending rows and releases the destination. The flush error,
// if any, takes precedence over the close error. Only the first call has an
// effect.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	flushErr := w.Flush()
	w.closed = true
	w.logger.Debug("writer closed", zap.Int("rows", w.rows))

	var closeErr error
	if c, ok := w.dst.(io.Closer); ok {
		if err := c.Close(); err != nil {
			closeErr = csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to close destination")
		}
	}
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (w *Writer) writeField(field string, n *int) error {
	if !w.AlwaysQuote && !strings.ContainsAny(field, w.special) {
		return w.write(field, n)
	}
	if err := w.write(w.quote, n); err != nil {
		return err
	}
	if err := w.write(strings.ReplaceAll(field, w.quote, w.escaped), n); err != nil {
		return err
	}
	return w.write(w.quote, n)
}

func (w *Writer) write(s string, n *int) error {
	m, err := w.bw.WriteString(s)
	*n += m
	if err != nil {
		w.err = csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to write row").
			WithDetail(csverrors.DetailRow, w.rows+1)
		return w.err
	}
	return nil
}
