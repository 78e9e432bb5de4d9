// Package stream opens and creates the byte streams csvbulk reads from and
// writes to. A location is a local path, "-" for stdin/stdout, an S3 URL
// (s3://bucket/key) or a Google Cloud Storage URL (gs://bucket/object).
//
// Streams are layered: the raw location, then compression (detected from the
// extension unless configured), then text decoding to UTF-8. Closing the
// outermost stream closes every layer beneath it.
package stream

import (
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/csvbulk/pkg/compression"
	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

// Location schemes.
const (
	SchemeFile  = "file"
	SchemeStdio = "stdio"
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
)

// Location is a parsed location string.
type Location struct {
	Scheme string
	Bucket string
	Key    string
	Path   string
}

// String returns the location in the form ParseLocation accepts.
func (l Location) String() string {
	switch l.Scheme {
	case SchemeStdio:
		return "-"
	case SchemeS3, SchemeGCS:
		return l.Scheme + "://" + l.Bucket + "/" + l.Key
	default:
		return l.Path
	}
}

// Name returns the part of the location used for compression detection.
func (l Location) Name() string {
	if l.Scheme == SchemeS3 || l.Scheme == SchemeGCS {
		return l.Key
	}
	return l.Path
}

// ParseLocation splits s into scheme, bucket and key. Anything without a
// recognised scheme is a local path; file:// URLs are accepted too.
func ParseLocation(s string) (Location, error) {
	if s == "" {
		return Location{}, csverrors.New(csverrors.ErrorTypeValidation, "location cannot be empty")
	}
	if s == "-" {
		return Location{Scheme: SchemeStdio, Path: "-"}, nil
	}

	scheme, rest, ok := strings.Cut(s, "://")
	if !ok {
		return Location{Scheme: SchemeFile, Path: s}, nil
	}

	switch strings.ToLower(scheme) {
	case "file":
		u, err := url.Parse(s)
		if err != nil {
			return Location{}, csverrors.Wrap(err, csverrors.ErrorTypeValidation, "invalid file URL")
		}
		return Location{Scheme: SchemeFile, Path: filepath.FromSlash(u.Path)}, nil
	case SchemeS3, SchemeGCS:
		bucket, key, _ := strings.Cut(rest, "/")
		if bucket == "" || key == "" {
			return Location{}, csverrors.New(csverrors.ErrorTypeValidation, "object location needs a bucket and a key").
				WithDetail("location", s)
		}
		return Location{Scheme: strings.ToLower(scheme), Bucket: bucket, Key: key}, nil
	default:
		return Location{}, csverrors.New(csverrors.ErrorTypeValidation, "unsupported location scheme").
			WithDetail("scheme", scheme)
	}
}

// ObjectStore reads and writes objects in a bucket.
type ObjectStore interface {
	OpenObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	CreateObject(ctx context.Context, bucket, key string) (io.WriteCloser, error)
}

// Options controls how locations are opened.
type Options struct {
	// Compression defaults to compression.Auto.
	Compression compression.Algorithm
	// Level applies when creating compressed output.
	Level compression.Level
	// Encoding names the text encoding of the bytes at the location. Empty
	// means UTF-8. Input is always decoded to UTF-8, output encoded from it.
	Encoding string

	// S3Region overrides the region from the AWS default configuration chain.
	S3Region string
	// GCSCredentialsFile points at a service account key; empty uses the
	// application default credentials.
	GCSCredentialsFile string
	// Stores replaces the object store for a scheme.
	Stores map[string]ObjectStore

	// Stdin and Stdout back the "-" location. They default to os.Stdin and
	// os.Stdout and are never closed.
	Stdin  io.Reader
	Stdout io.Writer

	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

func (o Options) store(ctx context.Context, scheme string) (ObjectStore, error) {
	if s, ok := o.Stores[scheme]; ok {
		return s, nil
	}
	switch scheme {
	case SchemeS3:
		return newS3Store(ctx, o.S3Region)
	case SchemeGCS:
		return newGCSStore(o.GCSCredentialsFile), nil
	default:
		return nil, csverrors.New(csverrors.ErrorTypeInternal, "no object store for scheme").
			WithDetail("scheme", scheme)
	}
}

// Open returns a reader over the decompressed, UTF-8 decoded contents of
// location.
func Open(ctx context.Context, location string, opts Options) (io.ReadCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	raw, err := openRaw(ctx, loc, opts)
	if err != nil {
		return nil, err
	}

	alg := compression.Resolve(opts.Compression, loc.Name())
	decompressed, err := compression.NewReader(raw, alg)
	if err != nil {
		return nil, err
	}

	opts.logger().Debug("location opened",
		zap.String("location", loc.String()),
		zap.String("compression", string(alg)),
		zap.String("encoding", enc.Name))
	return enc.decodeReader(decompressed), nil
}

// Create returns a writer whose UTF-8 input is encoded, compressed and
// stored at location. Data is only guaranteed to be stored once Close returns
// without error.
func Create(ctx context.Context, location string, opts Options) (io.WriteCloser, error) {
	loc, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}
	enc, err := LookupEncoding(opts.Encoding)
	if err != nil {
		return nil, err
	}

	raw, err := createRaw(ctx, loc, opts)
	if err != nil {
		return nil, err
	}

	level := opts.Level
	if level == 0 {
		level = compression.Default
	}
	alg := compression.Resolve(opts.Compression, loc.Name())
	compressed, err := compression.NewWriter(raw, alg, level)
	if err != nil {
		return nil, err
	}

	opts.logger().Debug("location created",
		zap.String("location", loc.String()),
		zap.String("compression", string(alg)),
		zap.String("encoding", enc.Name))
	return enc.encodeWriter(compressed), nil
}

func openRaw(ctx context.Context, loc Location, opts Options) (io.ReadCloser, error) {
	switch loc.Scheme {
	case SchemeStdio:
		in := opts.Stdin
		if in == nil {
			in = os.Stdin
		}
		return io.NopCloser(in), nil
	case SchemeFile:
		f, err := os.Open(loc.Path)
		if err != nil {
			return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to open file").
				WithDetail("location", loc.Path)
		}
		return f, nil
	default:
		store, err := opts.store(ctx, loc.Scheme)
		if err != nil {
			return nil, err
		}
		rc, err := store.OpenObject(ctx, loc.Bucket, loc.Key)
		if err != nil {
			return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to open object").
				WithDetail("location", loc.String())
		}
		return rc, nil
	}
}

func createRaw(ctx context.Context, loc Location, opts Options) (io.WriteCloser, error) {
	switch loc.Scheme {
	case SchemeStdio:
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		return nopWriteCloser{out}, nil
	case SchemeFile:
		if dir := filepath.Dir(loc.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to create directory").
					WithDetail("location", loc.Path)
			}
		}
		f, err := os.OpenFile(loc.Path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644) //nolint:gosec // path chosen by the operator
		if err != nil {
			return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to create file").
				WithDetail("location", loc.Path)
		}
		return f, nil
	default:
		store, err := opts.store(ctx, loc.Scheme)
		if err != nil {
			return nil, err
		}
		wc, err := store.CreateObject(ctx, loc.Bucket, loc.Key)
		if err != nil {
			return nil, csverrors.Wrap(err, csverrors.ErrorTypeIO, "failed to create object").
				WithDetail("location", loc.String())
		}
		return wc, nil
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }
