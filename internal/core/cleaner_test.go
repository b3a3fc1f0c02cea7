package core

import (
	"reflect"
	"strings"
	"testing"
	"unicode"
)

func TestClean(t *testing.T) {
	tests := []struct {
		name    string
		headers []string
		records []Record
		want    []Row
	}{
		{
			name:    "trims and removes duplicates",
			headers: []string{"Name", "Age"},
			records: []Record{
				{"Name": " Alice ", "Age": "30"},
				{"Name": "Alice", "Age": "30"},
				{"Name": "Bob", "Age": " 25"},
			},
			want: []Row{{"Alice", "30"}, {"Bob", "25"}},
		},
		{
			name:    "missing field becomes empty string",
			headers: []string{"A", "B"},
			records: []Record{{"A": "  x\t"}},
			want:    []Row{{"x", ""}},
		},
		{
			name:    "absent and blank fields are equal",
			headers: []string{"A", "B"},
			records: []Record{{"A": "1"}, {"A": "1", "B": "   "}},
			want:    []Row{{"1", ""}},
		},
		{
			name:    "nil record",
			headers: []string{"A"},
			records: []Record{nil},
			want:    []Row{{""}},
		},
		{
			name:    "no records",
			headers: []string{"A", "B"},
			records: nil,
			want:    []Row{},
		},
		{
			name:    "case is significant",
			headers: []string{"Name"},
			records: []Record{{"Name": "alice"}, {"Name": "Alice"}},
			want:    []Row{{"alice"}, {"Alice"}},
		},
		{
			name:    "inner whitespace is significant",
			headers: []string{"Name"},
			records: []Record{{"Name": "Mary Ann"}, {"Name": "Mary  Ann"}},
			want:    []Row{{"Mary Ann"}, {"Mary  Ann"}},
		},
		{
			name:    "numeric formatting is significant",
			headers: []string{"N"},
			records: []Record{{"N": "1.0"}, {"N": "1"}},
			want:    []Row{{"1.0"}, {"1"}},
		},
		{
			name:    "newlines and tabs are trimmed",
			headers: []string{"A"},
			records: []Record{{"A": "\n\tvalue\r\n"}, {"A": "value"}},
			want:    []Row{{"value"}},
		},
		{
			name:    "fields outside headers are ignored",
			headers: []string{"A"},
			records: []Record{{"A": "1", "Z": "x"}, {"A": "1", "Z": "y"}},
			want:    []Row{{"1"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Clean(tt.headers, tt.records)
			if !reflect.DeepEqual(got.Rows, tt.want) {
				t.Errorf("Rows = %q, want %q", got.Rows, tt.want)
			}
			if !reflect.DeepEqual(got.Headers, tt.headers) {
				t.Errorf("Headers = %q, want %q", got.Headers, tt.headers)
			}
			if got.InputRows != len(tt.records) {
				t.Errorf("InputRows = %d, want %d", got.InputRows, len(tt.records))
			}
		})
	}
}

func TestClean_SeparatorCollision(t *testing.T) {
	headers := []string{"A", "B"}
	records := []Record{
		{"A": "a\x01b", "B": "c"},
		{"A": "a", "B": "b\x01c"},
		{"A": "1:a", "B": ""},
		{"A": "1", "B": ":a"},
	}

	got := Clean(headers, records)
	if len(got.Rows) != 4 {
		t.Fatalf("got %d rows, want 4 distinct rows: %q", len(got.Rows), got.Rows)
	}
}

func TestClean_FirstOccurrenceOrder(t *testing.T) {
	headers := []string{"K"}
	records := []Record{
		{"K": "b"}, {"K": "a"}, {"K": " b "}, {"K": "c"}, {"K": "a"}, {"K": "b"},
	}

	got := Clean(headers, records)
	want := []Row{{"b"}, {"a"}, {"c"}}
	if !reflect.DeepEqual(got.Rows, want) {
		t.Errorf("Rows = %q, want %q", got.Rows, want)
	}
	if got.Duplicates() != 3 {
		t.Errorf("Duplicates() = %d, want 3", got.Duplicates())
	}
}

func TestClean_Properties(t *testing.T) {
	headers := []string{"Name", "City", "Note"}
	records := []Record{
		{"Name": " Ann", "City": "Oslo ", "Note": ""},
		{"Name": "Ann", "City": "Oslo"},
		{"Name": "Ben", "City": "\tBergen"},
		{"City": "Oslo"},
		{"Name": "Ben", "City": "Bergen", "Note": "  "},
		{"Name": "Cy", "Note": "x y "},
		{},
		{"Name": "  "},
	}

	table := Clean(headers, records)

	t.Run("row width", func(t *testing.T) {
		for i, row := range table.Rows {
			if len(row) != len(headers) {
				t.Errorf("row %d has %d fields, want %d", i, len(row), len(headers))
			}
		}
	})

	t.Run("trimming totality", func(t *testing.T) {
		for i, row := range table.Rows {
			for j, v := range row {
				if v != strings.TrimFunc(v, unicode.IsSpace) {
					t.Errorf("row %d field %d = %q has surrounding space", i, j, v)
				}
			}
		}
	})

	t.Run("keys are unique", func(t *testing.T) {
		seen := make(map[string]int)
		for i, row := range table.Rows {
			var b strings.Builder
			writeRowKey(&b, row)
			if prev, ok := seen[b.String()]; ok {
				t.Errorf("rows %d and %d share a key", prev, i)
			}
			seen[b.String()] = i
		}
	})

	t.Run("every dropped record has an earlier match", func(t *testing.T) {
		kept := make(map[string]bool)
		for _, row := range table.Rows {
			var b strings.Builder
			writeRowKey(&b, row)
			kept[b.String()] = true
		}
		for i, rec := range records {
			var b strings.Builder
			writeRowKey(&b, cleanRow(headers, rec))
			if !kept[b.String()] {
				t.Errorf("record %d has no matching output row", i)
			}
		}
	})

	t.Run("output never longer than input", func(t *testing.T) {
		if len(table.Rows) > len(records) {
			t.Errorf("len(Rows) = %d > %d records", len(table.Rows), len(records))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		again := Clean(table.Headers, table.Records())
		if !reflect.DeepEqual(again.Rows, table.Rows) {
			t.Errorf("second pass = %q, want %q", again.Rows, table.Rows)
		}
		if again.Duplicates() != 0 {
			t.Errorf("second pass dropped %d rows", again.Duplicates())
		}
	})
}
