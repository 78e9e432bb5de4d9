package stream

import (
	"context"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type gcsStore struct {
	credentialsFile string
}

func newGCSStore(credentialsFile string) *gcsStore {
	return &gcsStore{credentialsFile: credentialsFile}
}

func (s *gcsStore) client(ctx context.Context) (*storage.Client, error) {
	var opts []option.ClientOption
	if s.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(s.credentialsFile))
	}
	return storage.NewClient(ctx, opts...)
}

// OpenObject returns a reader that also closes its client.
func (s *gcsStore) OpenObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return &gcsReader{Reader: r, client: client}, nil
}

// CreateObject returns a writer that commits the object on Close.
func (s *gcsStore) CreateObject(ctx context.Context, bucket, key string) (io.WriteCloser, error) {
	client, err := s.client(ctx)
	if err != nil {
		return nil, err
	}
	w := client.Bucket(bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentType(key)
	return &gcsWriter{Writer: w, client: client}, nil
}

type gcsReader struct {
	*storage.Reader
	client *storage.Client
}

func (r *gcsReader) Close() error {
	err := r.Reader.Close()
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}

type gcsWriter struct {
	*storage.Writer
	client *storage.Client
	closed bool
}

func (w *gcsWriter) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	err := w.Writer.Close()
	if cerr := w.client.Close(); err == nil {
		err = cerr
	}
	return err
}

// contentType guesses a MIME type for an object key.
func contentType(key string) string {
	name := strings.ToLower(key)
	for ext := path.Ext(name); ext != ""; ext = path.Ext(name) {
		switch ext {
		case ".csv", ".tsv", ".txt":
			return "text/csv"
		case ".jsonl", ".ndjson":
			return "application/x-ndjson"
		}
		name = strings.TrimSuffix(name, ext)
	}
	return "application/octet-stream"
}
