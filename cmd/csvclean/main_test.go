package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JonMunkholm/csvclean/internal/export"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const input = "name, age\n Alice ,30\nBob,25\n Alice,30\n"

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &stdout, &stderr)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestClean_File(t *testing.T) {
	path := writeFile(t, "people.csv", input)

	stdout, stderr, err := run(t, "", "clean", path)

	require.NoError(t, err)
	assert.Equal(t, "name,age\nAlice,30\nBob,25\n", stdout)
	assert.Contains(t, stderr, "people.csv: 3 rows in, 2 rows out, 1 duplicates removed")
}

func TestClean_Stdin(t *testing.T) {
	stdout, _, err := run(t, input, "clean", "-", "--format", "json")

	require.NoError(t, err)
	assert.JSONEq(t, `{"headers":["name","age"],"rows":[["Alice","30"],["Bob","25"]]}`, stdout)
}

func TestClean_OutputFile(t *testing.T) {
	path := writeFile(t, "people.csv", input)
	out := filepath.Join(t.TempDir(), "people.xlsx")

	stdout, _, err := run(t, "", "clean", path, "-f", "xlsx", "-o", out)
	require.NoError(t, err)
	assert.Empty(t, stdout)

	f, err := excelize.OpenFile(out)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(export.SheetName)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"name", "age"}, {"Alice", "30"}, {"Bob", "25"}}, rows)
}

func TestClean_Errors(t *testing.T) {
	empty := writeFile(t, "empty.csv", "")
	notCSV := writeFile(t, "people.txt", input)
	malformed := writeFile(t, "bad.csv", "name,age\n\"Alice,30\nBob,25\n")

	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"empty file", []string{"clean", empty}, "FILE005"},
		{"missing file", []string{"clean", filepath.Join(t.TempDir(), "nope.csv")}, "open input"},
		{"unknown format", []string{"clean", empty, "--format", "pdf"}, "unknown export format"},
		{"not a csv name", []string{"clean", notCSV}, "FILE003"},
		{"unterminated quote", []string{"clean", malformed}, "FILE002"},
		{"no argument", []string{"clean"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout, _, err := run(t, "", tt.args...)

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
			assert.Empty(t, stdout)
		})
	}
}

func TestVersion(t *testing.T) {
	stdout, _, err := run(t, "", "version")

	require.NoError(t, err)
	assert.Equal(t, "csvclean dev\n", stdout)
}
