package csvfile

import (
	"strings"
	"testing"
)

func FuzzReader(f *testing.F) {
	seeds := []string{
		"a;b;c\n",
		"\"a;b\";c\r\n",
		"\"unterminated\n",
		"\"a\"b\";c\n",
		"a;\"x\"\"\ny\"\n",
		"\n\n;\n",
		"\"\"\"\"\n",
	}
	for _, s := range seeds {
		f.Add(s, uint8(0))
	}

	f.Fuzz(func(t *testing.T, input string, policy uint8) {
		d := Dialect{EmptyLines: EmptyLineBehavior(policy % 4)}
		r, err := NewReader(strings.NewReader(input), d)
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		defer r.Close()

		rows, err := r.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if r.Row() != len(rows) {
			t.Fatalf("Row() = %d, want %d", r.Row(), len(rows))
		}
		if len(rows) > r.Line() {
			t.Fatalf("%d rows from %d lines", len(rows), r.Line())
		}

		// Rows written back out must parse to the same rows. Carriage returns
		// may be folded into NewLine, and a row holding one empty field is
		// written as an empty line.
		for _, row := range rows {
			if len(row) == 1 && row[0] == "" {
				return
			}
			for _, field := range row {
				if strings.Contains(field, "\r") {
					return
				}
			}
		}
		var b strings.Builder
		w, err := NewWriter(&b, d)
		if err != nil {
			t.Fatalf("NewWriter: %v", err)
		}
		if err := w.WriteAll(rows); err != nil {
			t.Fatalf("WriteAll: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close: %v", err)
		}

		again, err := NewReader(strings.NewReader(b.String()), d)
		if err != nil {
			t.Fatalf("NewReader: %v", err)
		}
		reread, err := again.ReadAll()
		if err != nil {
			t.Fatalf("ReadAll: %v", err)
		}
		if d.EmptyLines != NoCells {
			return
		}
		if len(reread) != len(rows) {
			t.Fatalf("round trip changed row count: %d != %d", len(reread), len(rows))
		}
		for i := range rows {
			if len(rows[i]) != len(reread[i]) {
				t.Fatalf("row %d: %q != %q", i, rows[i], reread[i])
			}
			for j := range rows[i] {
				if rows[i][j] != reread[i][j] {
					t.Fatalf("row %d: %q != %q", i, rows[i], reread[i])
				}
			}
		}
	})
}
