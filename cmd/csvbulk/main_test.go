package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/csvbulk/pkg/testutil"
)

// run executes the CLI with args and returns stdout and stderr.
func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	a := newApp()
	t.Cleanup(a.close)

	cmd := newRootCmd(a)
	var stdout, stderr bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "csvbulk v"+version)
}

func TestHeaders(t *testing.T) {
	out, _, err := run(t, "\"a\tb\"\tc\n1\t2\n", "headers", "--delimiter", "tab", "-")
	require.NoError(t, err)
	assert.Equal(t, "a\tb\nc\n", out)
}

func TestHeaders_EnvOverride(t *testing.T) {
	t.Setenv("CSVBULK_DELIMITER", "pipe")
	out, _, err := run(t, "a|b\n", "headers", "-")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
}

func TestCat_EmptyLinesEndOfFile(t *testing.T) {
	out, _, err := run(t, "id\n1\n\n2\n", "cat", "--empty-lines", "end_of_file", "-")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1"}`+"\n", out)
}

func TestCat(t *testing.T) {
	out, _, err := run(t, "id;name\n1;\n2;x\n",
		"cat", "--constant", "src=cli", "-")
	require.NoError(t, err)
	assert.Equal(t,
		`{"id":"1","name":null,"src":"cli"}`+"\n"+`{"id":"2","name":"x","src":"cli"}`+"\n", out)

	out, _, err = run(t, "id;name\n1;\n", "cat", "--empty-value", "", "-")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"1","name":""}`+"\n", out)
}

func TestConvert(t *testing.T) {
	in := testutil.WriteTempFile(t, "in.csv", "a;b\n1;\"x,y\"\n")
	out := filepath.Join(t.TempDir(), "out.csv")

	_, stderr, err := run(t, "", "convert", "--out-delimiter", "comma", "--crlf", in, out)
	require.NoError(t, err)
	assert.Contains(t, stderr, "convert: 2 rows from 2 lines")

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "a,b\r\n1,\"x,y\"\r\n", string(data))
}

func TestConfigFile(t *testing.T) {
	cfg := testutil.WriteTempFile(t, "cfg.yaml", "dialect:\n  delimiter: comma\n")
	out, _, err := run(t, "a,b\n", "--config", cfg, "headers", "-")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad constant", []string{"cat", "--constant", "novalue", "-"}},
		{"bad delimiter", []string{"headers", "--delimiter", "ab", "-"}},
		{"missing config", []string{"--config", "/does/not/exist.yaml", "headers", "-"}},
		{"missing argument", []string{"headers"}},
		{"postgres without table", []string{"import", "postgres", "--dsn", "postgres://localhost/x", "-"}},
		{"mysql without dsn", []string{"import", "mysql", "--table", "t", "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := run(t, "a\n", tt.args...)
			assert.Error(t, err)
		})
	}
}
