package csvfile

import (
	"io"
	"strings"
	"testing"

	"github.com/ajitpratap0/csvbulk/pkg/testutil"
)

func BenchmarkReader_ReadRow(b *testing.B) {
	data := testutil.CreateTestData(10000)
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		r, err := NewReader(strings.NewReader(data), Dialect{})
		if err != nil {
			b.Fatal(err)
		}
		for {
			_, ok, err := r.ReadRow()
			if err != nil {
				b.Fatal(err)
			}
			if !ok {
				break
			}
		}
	}
}

func BenchmarkWriter_WriteRow(b *testing.B) {
	row := Row{"12345", "Record_12345", "needs; quoting", `has "quotes"`, "plain"}
	b.ReportAllocs()

	w, err := NewWriter(io.Discard, Dialect{})
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		if err := w.WriteRow(row); err != nil {
			b.Fatal(err)
		}
	}
	if err := w.Flush(); err != nil {
		b.Fatal(err)
	}
}
