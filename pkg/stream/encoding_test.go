package stream

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

func TestLookupEncoding(t *testing.T) {
	tests := []struct {
		input     string
		wantName  string
		wantNil   bool
		wantBOM   bool
		wantError bool
	}{
		{"", "utf-8", true, false, false},
		{"UTF-8", "utf-8", true, false, false},
		{"utf8", "utf-8", true, false, false},
		{"utf-8-bom", "utf-8", true, true, false},
		{"windows-1252", "windows-1252", false, false, false},
		{"latin1", "windows-1252", false, false, false},
		{"utf-16le", "utf-16le", false, false, false},
		{"klingon", "", false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			enc, err := LookupEncoding(tt.input)
			if tt.wantError {
				require.Error(t, err)
				assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, enc.Name)
			assert.Equal(t, tt.wantNil, enc.Encoding == nil)
			assert.Equal(t, tt.wantBOM, enc.WriteBOM)
		})
	}
}

func TestEncoding_RoundTrip(t *testing.T) {
	ctx := context.Background()
	content := "naam;plaats\nJosé;Zürich\n"

	for _, name := range []string{"windows-1252", "utf-16le", "utf-8-bom"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "data.csv")
			w, err := Create(ctx, path, Options{Encoding: name})
			require.NoError(t, err)
			_, err = io.WriteString(w, content)
			require.NoError(t, err)
			require.NoError(t, w.Close())

			raw, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.NotEqual(t, content, string(raw))

			r, err := Open(ctx, path, Options{Encoding: name})
			require.NoError(t, err)
			got, err := io.ReadAll(r)
			require.NoError(t, err)
			require.NoError(t, r.Close())
			assert.Equal(t, content, string(got))
		})
	}
}

func TestEncoding_Windows1252Bytes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin.csv")
	require.NoError(t, os.WriteFile(path, []byte("caf\xe9;\x80\n"), 0o600))

	r, err := Open(context.Background(), path, Options{Encoding: "windows-1252"})
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "café;€\n", string(got))
}

func TestEncoding_BOMIsStripped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bom.csv")
	require.NoError(t, os.WriteFile(path, append([]byte{0xEF, 0xBB, 0xBF}, "a;b\n"...), 0o600))

	r, err := Open(context.Background(), path, Options{})
	require.NoError(t, err)
	defer r.Close()

	got, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "a;b\n", string(got))
}

func TestEncoding_UTF8Passthrough(t *testing.T) {
	var out bytes.Buffer
	w, err := Create(context.Background(), "-", Options{Stdout: &out})
	require.NoError(t, err)
	_, err = io.WriteString(w, "é\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.Equal(t, "é\n", out.String())
}
