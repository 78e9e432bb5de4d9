package csvfile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roundTrip(t *testing.T, d Dialect, rows []Row) []Row {
	t.Helper()
	var b strings.Builder
	w, err := NewWriter(&b, d)
	require.NoError(t, err)
	require.NoError(t, w.WriteAll(rows))
	require.NoError(t, w.Close())

	return readAllString(t, b.String(), d)
}

func TestRoundTrip(t *testing.T) {
	rows := []Row{
		{"Header1", "Header2", "Header3"},
		{"plain", "", "with space"},
		{"semi;colon", "comma,", "tab\there"},
		{`"`, `""`, `a "quoted" word`},
		{"multi\nline\ncell", "trailing\n", "\nleading"},
		{"carriage\rreturn", "x", "y"},
		{"", "", ""},
		{"ünïcödé", "§", "日本語"},
		{"single"},
	}

	dialects := []Dialect{
		{},
		{Delimiter: ','},
		{Delimiter: '\t', Quote: '\''},
		{Delimiter: '|'},
		{Delimiter: '§', Quote: '«'},
	}

	for _, d := range dialects {
		t.Run(string(d.withDefaults().Delimiter), func(t *testing.T) {
			assert.Equal(t, rows, roundTrip(t, d, rows))
		})
	}
}

func TestRoundTrip_CRLFTerminator(t *testing.T) {
	rows := []Row{{"a", "b\nc"}, {"d", ""}}

	var b strings.Builder
	w, err := NewWriter(&b, Dialect{})
	require.NoError(t, err)
	w.UseCRLF = true
	require.NoError(t, w.WriteAll(rows))
	require.NoError(t, w.Close())

	assert.Equal(t, rows, readAllString(t, b.String(), Dialect{}))
}

func TestRoundTrip_CRLFInsideFieldIsNormalised(t *testing.T) {
	got := roundTrip(t, Dialect{}, []Row{{"a\r\nb"}})
	assert.Equal(t, []Row{{"a\nb"}}, got)
}

func TestRoundTrip_EmptyRowUnderEmptyCell(t *testing.T) {
	got := roundTrip(t, Dialect{EmptyLines: EmptyCell}, []Row{{"a"}, {}, {"b"}})
	assert.Equal(t, []Row{{"a"}, {""}, {"b"}}, got)
}
