// Package compression wraps byte streams with decompressing readers and
// compressing writers so delimited files can be read and written compressed.
//
// # Algorithms
//
//   - Gzip and Deflate: wide compatibility, good ratio
//   - Zstd: best ratio, good speed
//   - Snappy / S2: framed streams, fastest of the klauspost codecs
//   - LZ4: frame format, extremely fast
//
// # Basic Usage
//
//	alg := compression.Detect("orders.csv.zst") // compression.Zstd
//	rc, err := compression.NewReader(f, alg)
//	if err != nil {
//	    return err
//	}
//	defer rc.Close() // closes f as well
//
//	wc, err := compression.NewWriter(out, compression.Gzip, compression.Best)
//
// Readers and writers returned here own the stream they wrap: Close finishes
// the compressed stream and then closes the wrapped stream when it is an
// io.Closer.
package compression

import (
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// Auto selects the algorithm from the file extension.
	Auto Algorithm = "auto"
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents framed snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 frame compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents raw deflate compression
	Deflate Algorithm = "deflate"
)

// Level represents compression level, controlling the trade-off between
// compression speed and compression ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio.
	Fastest Level = 1
	// Default balances speed and compression.
	Default Level = 5
	// Better improves compression at cost of speed.
	Better Level = 7
	// Best maximizes compression ratio.
	Best Level = 9
)

var extensions = map[string]Algorithm{
	".gz":   Gzip,
	".gzip": Gzip,
	".zst":  Zstd,
	".zstd": Zstd,
	".sz":   Snappy,
	".s2":   S2,
	".lz4":  LZ4,
}

// Algorithms lists every concrete algorithm, None included.
func Algorithms() []Algorithm {
	return []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}
}

// ParseAlgorithm converts a configuration name into an Algorithm. The empty
// string means Auto.
func ParseAlgorithm(s string) (Algorithm, error) {
	name := Algorithm(strings.ToLower(strings.TrimSpace(s)))
	switch name {
	case "":
		return Auto, nil
	case "gz":
		return Gzip, nil
	case "zst":
		return Zstd, nil
	case Auto:
		return Auto, nil
	}
	for _, alg := range Algorithms() {
		if alg == name {
			return alg, nil
		}
	}
	return None, csverrors.New(csverrors.ErrorTypeConfig, "unsupported compression algorithm").
		WithDetail("algorithm", s)
}

// ParseLevel converts fastest, default, better or best into a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return Default, nil
	case "fastest":
		return Fastest, nil
	case "better":
		return Better, nil
	case "best":
		return Best, nil
	default:
		return Default, csverrors.New(csverrors.ErrorTypeConfig, "unsupported compression level").
			WithDetail("level", s)
	}
}

// Detect returns the algorithm implied by the extension of name, None when
// the extension is not a known compression suffix. Query strings are not
// stripped; callers pass object keys or paths.
func Detect(name string) Algorithm {
	if alg, ok := extensions[strings.ToLower(path.Ext(name))]; ok {
		return alg
	}
	return None
}

// Resolve turns Auto into the algorithm detected from name.
func Resolve(alg Algorithm, name string) Algorithm {
	if alg == Auto || alg == "" {
		return Detect(name)
	}
	return alg
}

// Extension returns the file suffix conventionally used for alg, or "".
func Extension(alg Algorithm) string {
	switch alg {
	case Gzip:
		return ".gz"
	case Zstd:
		return ".zst"
	case Snappy:
		return ".sz"
	case S2:
		return ".s2"
	case LZ4:
		return ".lz4"
	default:
		return ""
	}
}

// NewReader returns a reader that decompresses src with alg. Auto is not
// accepted here; use Resolve first.
func NewReader(src io.Reader, alg Algorithm) (io.ReadCloser, error) {
	var (
		r       io.Reader
		closeFn func() error
	)

	switch alg {
	case None:
		r = src
	case Gzip:
		gr, err := gzip.NewReader(src)
		if err != nil {
			closeQuietly(src)
			return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to open gzip stream")
		}
		r, closeFn = gr, gr.Close
	case Zstd:
		dec, err := zstd.NewReader(src)
		if err != nil {
			closeQuietly(src)
			return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to open zstd stream")
		}
		rc := dec.IOReadCloser()
		r, closeFn = rc, rc.Close
	case Snappy:
		r = snappy.NewReader(src)
	case S2:
		r = s2.NewReader(src)
	case LZ4:
		r = lz4.NewReader(src)
	case Deflate:
		fr := flate.NewReader(src)
		r, closeFn = fr, fr.Close
	default:
		closeQuietly(src)
		return nil, csverrors.New(csverrors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(alg))
	}

	return &readCloser{Reader: r, closeCodec: closeFn, inner: src}, nil
}

// NewWriter returns a writer that compresses into dst with alg at level.
func NewWriter(dst io.Writer, alg Algorithm, level Level) (io.WriteCloser, error) {
	var (
		w   io.WriteCloser
		err error
	)

	switch alg {
	case None:
		return &writeCloser{Writer: dst, inner: dst}, nil
	case Gzip:
		w, err = gzip.NewWriterLevel(dst, mapGzipLevel(level))
	case Zstd:
		w, err = zstd.NewWriter(dst, zstd.WithEncoderLevel(mapZstdLevel(level)))
	case Snappy:
		w = snappy.NewBufferedWriter(dst)
	case S2:
		w = s2.NewWriter(dst, mapS2Options(level)...)
	case LZ4:
		lw := lz4.NewWriter(dst)
		if err = lw.Apply(lz4.CompressionLevelOption(mapLZ4Level(level))); err == nil {
			w = lw
		}
	case Deflate:
		w, err = flate.NewWriter(dst, mapDeflateLevel(level))
	default:
		closeQuietly(dst)
		return nil, csverrors.New(csverrors.ErrorTypeConfig, "unsupported compression algorithm").
			WithDetail("algorithm", string(alg))
	}
	if err != nil {
		closeQuietly(dst)
		return nil, csverrors.Wrap(err, csverrors.ErrorTypeConfig, fmt.Sprintf("failed to create %s writer", alg))
	}

	return &writeCloser{Writer: w, codec: w, inner: dst}, nil
}

type readCloser struct {
	io.Reader
	closeCodec func() error
	inner      io.Reader
	closed     bool
}

func (r *readCloser) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	var first error
	if r.closeCodec != nil {
		first = r.closeCodec()
	}
	if c, ok := r.inner.(io.Closer); ok {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return csverrors.Wrap(first, csverrors.ErrorTypeIO, "failed to close compressed reader")
	}
	return nil
}

type writeCloser struct {
	io.Writer
	codec  io.Closer
	inner  io.Writer
	closed bool
}

func (w *writeCloser) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var first error
	if w.codec != nil {
		first = w.codec.Close()
	}
	if c, ok := w.inner.(io.Closer); ok {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
	}
	if first != nil {
		return csverrors.Wrap(first, csverrors.ErrorTypeIO, "failed to close compressed writer")
	}
	return nil
}

func closeQuietly(v interface{}) {
	if c, ok := v.(io.Closer); ok {
		_ = c.Close()
	}
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapS2Options(level Level) []s2.WriterOption {
	switch level {
	case Better:
		return []s2.WriterOption{s2.WriterBetterCompression()}
	case Best:
		return []s2.WriterOption{s2.WriterBestCompression()}
	default:
		return nil
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
