// Package bulkreader exposes a stream of csvfile rows as a header-aware
// tabular cursor, the shape bulk loaders consume.
//
// The first row of the source is the header. Columns are looked up by name
// case-insensitively, and constant columns can be appended after the parsed
// ones. Empty fields are reported as the configured empty value, nil (SQL
// NULL) by default. The underlying row reader is never asked to substitute
// anything; that only happens here.
//
// A Reader also implements pgx.CopyFromSource so it can be handed straight
// to (*pgx.Conn).CopyFrom.
package bulkreader

import (
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
	"github.com/ajitpratap0/csvbulk/pkg/csvfile"
)

var _ pgx.CopyFromSource = (*Reader)(nil)

// RowSource yields rows. *csvfile.Reader satisfies it.
type RowSource interface {
	ReadRow() (csvfile.Row, bool, error)
	Close() error
}

// Options configures a Reader.
type Options struct {
	// EmptyValue replaces empty fields. nil reports them as nil.
	EmptyValue *string
	// Logger receives debug output. Defaults to a no-op logger.
	Logger *zap.Logger
}

// StringPtr returns a pointer to s, for Options.EmptyValue.
func StringPtr(s string) *string {
	return &s
}

// Reader is a forward-only cursor over the data rows of a RowSource.
type Reader struct {
	src        RowSource
	emptyValue *string
	logger     *zap.Logger

	headers   []string
	parsed    int
	constants []string

	row    csvfile.Row
	rowNo  int
	hasRow bool
	done   bool
	err    error
	closed bool
}

// New reads the header row from src and returns a cursor positioned before
// the first data row. An empty source yields a Reader without columns. If the
// header cannot be read src is closed and the error returned.
func New(src RowSource, opts Options) (*Reader, error) {
	if src == nil {
		return nil, csverrors.New(csverrors.ErrorTypeValidation, "row source cannot be nil")
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	header, ok, err := src.ReadRow()
	if err != nil {
		_ = src.Close()
		return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to read header row")
	}

	r := &Reader{
		src:        src,
		emptyValue: opts.EmptyValue,
		logger:     logger,
	}
	if ok {
		r.headers = append([]string(nil), header...)
		r.parsed = len(header)
	} else {
		r.done = true
	}

	logger.Debug("header read", zap.Strings("columns", r.headers))
	return r, nil
}

// AddConstantColumn appends a column holding value on every row. Constant
// columns follow the parsed columns in the order they are added.
func (r *Reader) AddConstantColumn(name, value string) {
	r.headers = append(r.headers, name)
	r.constants = append(r.constants, value)
	r.logger.Debug("constant column added",
		zap.String("column", name),
		zap.Int("ordinal", len(r.headers)-1))
}

// Read advances to the next data row. It returns false at the end of the
// input or when the source fails.
func (r *Reader) Read() (bool, error) {
	if r.closed {
		return false, csverrors.Wrap(csvfile.ErrClosed, csverrors.ErrorTypeIO, "read from closed bulk reader")
	}
	if r.done {
		r.hasRow = false
		return false, nil
	}

	row, ok, err := r.src.ReadRow()
	if err != nil {
		r.hasRow = false
		return false, err
	}
	if !ok {
		r.done = true
		r.hasRow = false
		r.row = nil
		return false, nil
	}

	r.row = row
	r.rowNo++
	r.hasRow = true
	return true, nil
}

// Next implements pgx.CopyFromSource. Errors are reported by Err.
func (r *Reader) Next() bool {
	ok, err := r.Read()
	if err != nil {
		r.err = err
		return false
	}
	return ok
}

// Values implements pgx.CopyFromSource: every column of the current row,
// empty fields replaced by the empty value.
func (r *Reader) Values() ([]any, error) {
	values := make([]any, len(r.headers))
	for i := range values {
		v, err := r.Value(i)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	return values, nil
}

// Err implements pgx.CopyFromSource.
func (r *Reader) Err() error {
	return r.err
}

// Ordinal returns the index of the first column whose name matches name
// case-insensitively.
func (r *Reader) Ordinal(name string) (int, error) {
	for i, h := range r.headers {
		if strings.EqualFold(h, name) {
			return i, nil
		}
	}
	return -1, csverrors.NewLookupError(name)
}

// String returns the raw text of column i in the current row.
func (r *Reader) String(i int) (string, error) {
	if i < 0 || i >= len(r.headers) {
		return "", csverrors.NewOutOfRangeError("", i, r.rowNo)
	}
	if i >= r.parsed {
		return r.constants[i-r.parsed], nil
	}
	if !r.hasRow || i >= len(r.row) {
		return "", csverrors.NewOutOfRangeError(r.headers[i], i, r.rowNo)
	}
	return r.row[i], nil
}

// Value returns column i of the current row, or the empty value when the
// field is empty.
func (r *Reader) Value(i int) (any, error) {
	s, err := r.String(i)
	if err != nil {
		return nil, err
	}
	if s == "" {
		if r.emptyValue == nil {
			return nil, nil
		}
		return *r.emptyValue, nil
	}
	return s, nil
}

// ValueByName is Value(Ordinal(name)).
func (r *Reader) ValueByName(name string) (any, error) {
	i, err := r.Ordinal(name)
	if err != nil {
		return nil, err
	}
	return r.Value(i)
}

// Name returns the header of column i.
func (r *Reader) Name(i int) (string, error) {
	if i < 0 || i >= len(r.headers) {
		return "", csverrors.NewOutOfRangeError("", i, r.rowNo)
	}
	return r.headers[i], nil
}

// Headers returns a copy of the column names, constant columns included.
func (r *Reader) Headers() []string {
	return append([]string(nil), r.headers...)
}

// FieldCount returns the number of columns, constant columns included.
func (r *Reader) FieldCount() int {
	return len(r.headers)
}

// ParsedCount returns the number of columns read from the header row. It is
// 0 for an empty input even when constant columns were added.
func (r *Reader) ParsedCount() int {
	return r.parsed
}

// RowNumber returns the 1-based number of the current data row, 0 before
// the first Read.
func (r *Reader) RowNumber() int {
	return r.rowNo
}

// EmptyValue returns the replacement for empty fields; nil means NULL.
func (r *Reader) EmptyValue() *string {
	return r.emptyValue
}

// Depth is always 0; rows do not nest.
func (r *Reader) Depth() int { return 0 }

// RecordsAffected is always -1; the reader never modifies data.
func (r *Reader) RecordsAffected() int { return -1 }

// NextResult is always false; a source holds a single result set.
func (r *Reader) NextResult() bool { return false }

// IsClosed reports whether Close has been called.
func (r *Reader) IsClosed() bool {
	return r.closed
}

// Close releases the row source. Only the first call has an effect.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.hasRow = false
	r.logger.Debug("bulk reader closed", zap.Int("rows", r.rowNo))
	return r.src.Close()
}
