package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvbulk/pkg/csverrors"
)

type closeTracker struct {
	bytes.Buffer
	closed int
}

func (c *closeTracker) Close() error {
	c.closed++
	return nil
}

func TestRoundTrip(t *testing.T) {
	original := []byte(strings.Repeat("Header1;Header2;Header3\r\nRow1A;\"Q;A\";Row1C\r\n", 200))

	for _, alg := range Algorithms() {
		for _, level := range []Level{Fastest, Default, Better, Best} {
			t.Run(fmt.Sprintf("%s/level_%d", alg, level), func(t *testing.T) {
				dst := &closeTracker{}
				w, err := NewWriter(dst, alg, level)
				require.NoError(t, err)

				_, err = w.Write(original)
				require.NoError(t, err)
				require.NoError(t, w.Close())
				require.NoError(t, w.Close())
				assert.Equal(t, 1, dst.closed)

				if alg != None {
					assert.Less(t, dst.Len(), len(original), "compressed output should be smaller")
				}

				src := &closeTracker{}
				src.Write(dst.Bytes())
				r, err := NewReader(src, alg)
				require.NoError(t, err)

				got, err := io.ReadAll(r)
				require.NoError(t, err)
				assert.Equal(t, original, got)

				require.NoError(t, r.Close())
				require.NoError(t, r.Close())
				assert.Equal(t, 1, src.closed)
			})
		}
	}
}

func TestNewReader_CorruptInput(t *testing.T) {
	src := &closeTracker{}
	src.WriteString("definitely not gzip")

	_, err := NewReader(src, Gzip)
	require.Error(t, err)
	assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeIO))
	assert.Equal(t, 1, src.closed)
}

func TestUnsupportedAlgorithm(t *testing.T) {
	_, err := NewReader(strings.NewReader(""), Algorithm("brotli"))
	assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeConfig))

	_, err = NewWriter(io.Discard, Auto, Default)
	assert.True(t, csverrors.IsType(err, csverrors.ErrorTypeConfig))
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		want Algorithm
	}{
		{"data.csv", None},
		{"data.csv.gz", Gzip},
		{"DATA.CSV.GZ", Gzip},
		{"s3://bucket/2024/data.csv.zst", Zstd},
		{"data.csv.sz", Snappy},
		{"data.csv.s2", S2},
		{"data.csv.lz4", LZ4},
		{"data", None},
		{"-", None},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Detect(tt.name), tt.name)
	}

	assert.Equal(t, Gzip, Resolve(Auto, "x.gz"))
	assert.Equal(t, None, Resolve("", "x.csv"))
	assert.Equal(t, Zstd, Resolve(Zstd, "x.gz"))
}

func TestExtension(t *testing.T) {
	for _, alg := range Algorithms() {
		ext := Extension(alg)
		if ext == "" {
			continue
		}
		assert.Equal(t, alg, Detect("file"+ext))
	}
}

func TestParseAlgorithm(t *testing.T) {
	tests := []struct {
		input   string
		want    Algorithm
		wantErr bool
	}{
		{"", Auto, false},
		{"auto", Auto, false},
		{"GZIP", Gzip, false},
		{"gz", Gzip, false},
		{"zst", Zstd, false},
		{"none", None, false},
		{"lz4", LZ4, false},
		{"rar", None, true},
	}

	for _, tt := range tests {
		got, err := ParseAlgorithm(tt.input)
		if tt.wantErr {
			assert.Error(t, err, tt.input)
			continue
		}
		require.NoError(t, err, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel("best")
	require.NoError(t, err)
	assert.Equal(t, Best, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, Default, level)

	_, err = ParseLevel("extreme")
	assert.Error(t, err)
}

func BenchmarkWriter(b *testing.B) {
	data := []byte(strings.Repeat("12345;Record_12345;\"needs; quoting\";plain\n", 2000))

	for _, alg := range []Algorithm{Gzip, Zstd, S2, Snappy, LZ4} {
		b.Run(string(alg), func(b *testing.B) {
			b.SetBytes(int64(len(data)))
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				w, err := NewWriter(io.Discard, alg, Default)
				if err != nil {
					b.Fatal(err)
				}
				if _, err := w.Write(data); err != nil {
					b.Fatal(err)
				}
				if err := w.Close(); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}
