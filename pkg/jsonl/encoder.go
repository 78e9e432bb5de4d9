// Package jsonl writes tabular rows as JSON lines: one object per row, keys
// in column order.
package jsonl

import (
	"bufio"
	"bytes"
	"io"
	"strconv"
	"sync"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

var bufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

func getBuffer() *bytes.Buffer {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

func putBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	bufferPool.Put(buf)
}

// Encoder writes rows as JSON objects separated by "\n". Go maps do not keep
// insertion order, so objects are assembled from pre-encoded keys instead.
type Encoder struct {
	dst    io.Writer
	bw     *bufio.Writer
	keys   [][]byte
	rows   int
	err    error
	closed bool
}

// NewEncoder creates an Encoder for the given columns. Repeated column names
// get a numeric suffix ("id", "id_2") so every key is unique.
func NewEncoder(w io.Writer, columns []string) (*Encoder, error) {
	if w == nil {
		return nil, csverrors.New(csverrors.ErrorTypeValidation, "jsonl destination cannot be nil")
	}

	keys := make([][]byte, len(columns))
	for i, name := range UniqueKeys(columns) {
		k, err := gojson.MarshalNoEscape(name)
		if err != nil {
			return nil, csverrors.Wrap(err, csverrors.ErrorTypeInternal, "failed to encode column name").
				WithDetail(csverrors.DetailColumn, name)
		}
		keys[i] = k
	}

	return &Encoder{
		dst:  w,
		bw:   bufio.NewWriterSize(w, 64*1024),
		keys: keys,
	}, nil
}

// UniqueKeys returns columns with later duplicates renamed name_2, name_3...
func UniqueKeys(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, len(columns))
	for i, name := range columns {
		key := name
		for n := 2; seen[key]; n++ {
			key = name + "_" + strconv.Itoa(n)
		}
		seen[key] = true
		out[i] = key
	}
	return out
}

// Encode writes one object. values must hold one entry per column.
func (e *Encoder) Encode(values []any) error {
	if e.closed {
		return csverrors.New(csverrors.ErrorTypeIO, "encode on closed jsonl encoder")
	}
	if e.err != nil {
		return e.err
	}
	if len(values) != len(e.keys) {
		return csverrors.New(csverrors.ErrorTypeValidation, "value count does not match column count").
			WithDetail("values", len(values)).
			WithDetail("columns", len(e.keys))
	}

	buf := getBuffer()
	defer putBuffer(buf)

	buf.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(e.keys[i])
		buf.WriteByte(':')
		b, err := gojson.MarshalNoEscape(v)
		if err != nil {
			return csverrors.Wrap(err, csverrors.ErrorTypeValidation, "failed to encode value").
				WithDetail(csverrors.DetailIndex, i).
				WithDetail(csverrors.DetailRow, e.rows+1)
		}
		buf.Write(b)
	}
	buf.WriteString("}\n")

	if _, err := e.bw.Write(buf.Bytes()); err != nil {
		e.err = csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to write json line").
			WithDetail(csverrors.DetailRow, e.rows+1)
		return e.err
	}
	e.rows++
	return nil
}

// Rows returns the number of objects written.
func (e *Encoder) Rows() int {
	return e.rows
}

// Flush writes buffered lines to the destination.
func (e *Encoder) Flush() error {
	if e.err != nil {
		return e.err
	}
	if err := e.bw.Flush(); err != nil {
		e.err = csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to flush json lines")
		return e.err
	}
	return nil
}

// Close flushes and closes the destination when it is an io.Closer.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	flushErr := e.Flush()
	e.closed = true

	if c, ok := e.dst.(io.Closer); ok {
		if err := c.Close(); err != nil && flushErr == nil {
			return csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to close destination")
		}
	}
	return flushErr
}
