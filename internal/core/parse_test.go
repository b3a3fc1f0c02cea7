package core

import (
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
	"testing/iotest"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		wantHeaders []string
		wantRecords []Record
	}{
		{
			name:        "simple file",
			input:       "Name,Age\nAlice,30\nBob,25\n",
			wantHeaders: []string{"Name", "Age"},
			wantRecords: []Record{
				{"Name": "Alice", "Age": "30"},
				{"Name": "Bob", "Age": "25"},
			},
		},
		{
			name:        "UTF-8 BOM stripped",
			input:       "\xEF\xBB\xBFName,Age\nAlice,30\n",
			wantHeaders: []string{"Name", "Age"},
			wantRecords: []Record{{"Name": "Alice", "Age": "30"}},
		},
		{
			name:        "blanks around quoted value",
			input:       "Name,Age\n  \"Alice\"  ,30\n",
			wantHeaders: []string{"Name", "Age"},
			wantRecords: []Record{{"Name": "Alice", "Age": "30"}},
		},
		{
			name:        "escaped quotes",
			input:       "Quote\n\"He said \"\"hi\"\"\"\n",
			wantHeaders: []string{"Quote"},
			wantRecords: []Record{{"Quote": `He said "hi"`}},
		},
		{
			name:        "newline and comma inside quotes",
			input:       "A,B\n\"x\ny, z\",2\n",
			wantHeaders: []string{"A", "B"},
			wantRecords: []Record{{"A": "x\ny, z", "B": "2"}},
		},
		{
			name:        "header names trimmed",
			input:       " Name , Age \nAlice,30\n",
			wantHeaders: []string{"Name", "Age"},
			wantRecords: []Record{{"Name": "Alice", "Age": "30"}},
		},
		{
			name:        "duplicate header keeps first",
			input:       "A,B,A\n1,2,3\n",
			wantHeaders: []string{"A", "B"},
			wantRecords: []Record{{"A": "1", "B": "2"}},
		},
		{
			name:        "short row leaves fields absent",
			input:       "A,B,C\n1\n",
			wantHeaders: []string{"A", "B", "C"},
			wantRecords: []Record{{"A": "1"}},
		},
		{
			name:        "extra cells ignored",
			input:       "A,B\n1,2,3,4\n",
			wantHeaders: []string{"A", "B"},
			wantRecords: []Record{{"A": "1", "B": "2"}},
		},
		{
			name:        "empty lines skipped",
			input:       "A\n\n1\n\n2\n",
			wantHeaders: []string{"A"},
			wantRecords: []Record{{"A": "1"}, {"A": "2"}},
		},
		{
			name:        "CRLF line endings",
			input:       "A,B\r\n1,2\r\n",
			wantHeaders: []string{"A", "B"},
			wantRecords: []Record{{"A": "1", "B": "2"}},
		},
		{
			name:        "no trailing newline",
			input:       "A,B\n1,2",
			wantHeaders: []string{"A", "B"},
			wantRecords: []Record{{"A": "1", "B": "2"}},
		},
		{
			name:        "header only",
			input:       "A,B\n",
			wantHeaders: []string{"A", "B"},
			wantRecords: nil,
		},
		{
			name:        "invalid UTF-8 replaced",
			input:       "A\n\xffok\n",
			wantHeaders: []string{"A"},
			wantRecords: []Record{{"A": "�ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers, records, err := ParseCSV(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(headers, tt.wantHeaders) {
				t.Errorf("headers = %q, want %q", headers, tt.wantHeaders)
			}
			if !reflect.DeepEqual(records, tt.wantRecords) {
				t.Errorf("records = %v, want %v", records, tt.wantRecords)
			}
		})
	}
}

func TestParseCSV_Errors(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name  string
		input io.Reader
	}{
		{name: "empty input", input: strings.NewReader("")},
		{name: "only blank lines", input: strings.NewReader("\n\n\n")},
		{name: "blank header name", input: strings.NewReader("A,,C\n1,2,3\n")},
		{name: "whitespace header name", input: strings.NewReader("A,   ,C\n1,2,3\n")},
		{name: "read error on header", input: iotest.ErrReader(boom)},
		{name: "unterminated quote", input: strings.NewReader("A,B\n\"x,1\n2,3\n4,5\n")},
		{name: "unterminated quote at EOF", input: strings.NewReader("A,B\n\"x,1\n2,3")},
		{name: "text after closing quote", input: strings.NewReader("A,B\n\"a\"b,1\n")},
		{name: "blanks then text after closing quote", input: strings.NewReader("A,B\n\"a\"  b,1\n")},
		{name: "bare quote in unquoted field", input: strings.NewReader("A,B\nab\"c,1\n")},
		{
			name:  "read error mid-file",
			input: io.MultiReader(strings.NewReader("A\n1\n"), iotest.ErrReader(boom)),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := ParseCSV(tt.input)
			if !errors.Is(err, ErrReadOrParse) {
				t.Errorf("err = %v, want ErrReadOrParse", err)
			}
			if errors.Is(err, ErrInvalidUpload) {
				t.Errorf("parse failure must not be an upload rejection: %v", err)
			}
		})
	}
}

func TestParseCSV_ThenClean(t *testing.T) {
	input := "Name,Age\n Alice ,30\nAlice,30\nBob, 25\n"

	headers, records, err := ParseCSV(strings.NewReader(input))
	if err != nil {
		t.Fatalf("ParseCSV: %v", err)
	}

	table := Clean(headers, records)
	want := []Row{{"Alice", "30"}, {"Bob", "25"}}
	if !reflect.DeepEqual(table.Rows, want) {
		t.Errorf("Rows = %q, want %q", table.Rows, want)
	}
	if table.Duplicates() != 1 {
		t.Errorf("Duplicates() = %d, want 1", table.Duplicates())
	}
}
