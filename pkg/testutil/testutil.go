// Package testutil provides testing utilities for csvbulk
package testutil

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

// ErrInjected is returned by FailingReader and FailingWriter.
var ErrInjected = errors.New("testutil: injected failure")

// TestLogger creates a test logger that writes to the test output.
func TestLogger(t *testing.T) *zap.Logger {
	return zaptest.NewLogger(t)
}

// TestContext creates a test context with a 30-second timeout.
// The caller must call the returned cancel function to avoid leaks.
func TestContext(_ *testing.T) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// WriteTempFile writes content to name inside a per-test directory and returns
// the full path. The directory is removed when the test completes.
func WriteTempFile(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// CreateTestData builds a semicolon separated document with a header row and
// the given number of data rows. Every third row carries a quoted cell that
// spans two lines and embeds the delimiter and a quote.
func CreateTestData(rows int) string {
	var b strings.Builder
	b.WriteString("id;name;comment\n")
	for i := 0; i < rows; i++ {
		if i%3 == 0 {
			fmt.Fprintf(&b, "%d;Record_%d;\"first line; \"\"quoted\"\"\nsecond line\"\n", i, i)
			continue
		}
		fmt.Fprintf(&b, "%d;Record_%d;plain %d\n", i, i, i)
	}
	return b.String()
}

// FailingReader returns data until it is drained, then fails with Err
// (ErrInjected when Err is nil) instead of io.EOF.
type FailingReader struct {
	Data string
	Err  error
	pos  int
}

// Read implements io.Reader.
func (r *FailingReader) Read(p []byte) (int, error) {
	if r.pos < len(r.Data) {
		n := copy(p, r.Data[r.pos:])
		r.pos += n
		return n, nil
	}
	if r.Err != nil {
		return 0, r.Err
	}
	return 0, ErrInjected
}

// FailingWriter accepts Limit bytes and fails every write after that.
type FailingWriter struct {
	Limit   int
	Written int
}

// Write implements io.Writer.
func (w *FailingWriter) Write(p []byte) (int, error) {
	room := w.Limit - w.Written
	if room <= 0 {
		return 0, ErrInjected
	}
	if len(p) > room {
		w.Written += room
		return room, ErrInjected
	}
	w.Written += len(p)
	return len(p), nil
}

// CloseCounter is a reader that counts Close calls.
type CloseCounter struct {
	Source *strings.Reader
	closes atomic.Int32
}

// NewCloseCounter returns a CloseCounter reading from data.
func NewCloseCounter(data string) *CloseCounter {
	return &CloseCounter{Source: strings.NewReader(data)}
}

// Read implements io.Reader over Source.
func (c *CloseCounter) Read(p []byte) (int, error) {
	return c.Source.Read(p)
}

// Close implements io.Closer.
func (c *CloseCounter) Close() error {
	c.closes.Add(1)
	return nil
}

// Closes returns how many times Close was called.
func (c *CloseCounter) Closes() int {
	return int(c.closes.Load())
}
