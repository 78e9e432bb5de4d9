package stream

import (
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

// TextEncoding is a resolved character encoding. A nil Encoding means the
// bytes already are UTF-8.
type TextEncoding struct {
	Name     string
	Encoding encoding.Encoding
	// WriteBOM prefixes created output with a UTF-8 byte order mark.
	WriteBOM bool
}

// LookupEncoding resolves an encoding label such as "utf-8", "windows-1252",
// "iso-8859-1" or "utf-16le" using the WHATWG label index. "utf-8-bom"
// selects UTF-8 output with a byte order mark.
func LookupEncoding(name string) (TextEncoding, error) {
	label := strings.ToLower(strings.TrimSpace(name))
	switch label {
	case "", "utf-8", "utf8":
		return TextEncoding{Name: "utf-8"}, nil
	case "utf-8-bom", "utf8-bom":
		return TextEncoding{Name: "utf-8", WriteBOM: true}, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return TextEncoding{}, csverrors.Wrap(err, csverrors.ErrorTypeConfig, "unsupported text encoding").
			WithDetail("encoding", name)
	}
	canonical, err := htmlindex.Name(enc)
	if err != nil {
		canonical = label
	}
	if canonical == "utf-8" {
		return TextEncoding{Name: canonical}, nil
	}
	return TextEncoding{Name: canonical, Encoding: enc}, nil
}

// decodeReader converts rc to UTF-8. A leading byte order mark always wins
// over the configured encoding and is removed.
func (e TextEncoding) decodeReader(rc io.ReadCloser) io.ReadCloser {
	var fallback transform.Transformer = transform.Nop
	if e.Encoding != nil {
		fallback = e.Encoding.NewDecoder()
	}
	return &transformReader{
		Reader: transform.NewReader(rc, unicode.BOMOverride(fallback)),
		inner:  rc,
	}
}

// encodeWriter converts UTF-8 written to the result into e before passing it
// to wc. Runes the encoding cannot represent fail the write.
func (e TextEncoding) encodeWriter(wc io.WriteCloser) io.WriteCloser {
	switch {
	case e.WriteBOM:
		return &transformWriter{
			Writer: transform.NewWriter(wc, unicode.UTF8BOM.NewEncoder()),
			inner:  wc,
		}
	case e.Encoding == nil:
		return wc
	default:
		return &transformWriter{
			Writer: transform.NewWriter(wc, e.Encoding.NewEncoder()),
			inner:  wc,
		}
	}
}

type transformReader struct {
	*transform.Reader
	inner io.Closer
}

func (r *transformReader) Close() error {
	return r.inner.Close()
}

type transformWriter struct {
	*transform.Writer
	inner  io.Closer
	closed bool
}

// Close flushes the transformer before closing the wrapped writer.
func (w *transformWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	flushErr := w.Writer.Close()
	closeErr := w.inner.Close()
	if flushErr != nil {
		return csverrors.Wrap(flushErr, csverrors.ErrorTypeIO, "failed to flush encoded output")
	}
	return closeErr
}
