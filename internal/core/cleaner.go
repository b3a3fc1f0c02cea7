package core

import (
	"strconv"
	"strings"
)

// Clean normalizes records against headers and removes exact duplicates.
//
// Every output row has len(headers) values in header order. An absent field
// becomes "", and every value is stripped of leading and trailing white space.
// Rows are compared after trimming only; case and inner spacing are kept as-is.
// The first occurrence of a row fixes its position in the output.
func Clean(headers []string, records []Record) Table {
	table := Table{
		Headers:   headers,
		Rows:      make([]Row, 0, len(records)),
		InputRows: len(records),
	}

	seen := make(map[string]struct{}, len(records))
	var key strings.Builder

	for _, rec := range records {
		row := cleanRow(headers, rec)

		key.Reset()
		writeRowKey(&key, row)
		k := key.String()

		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		table.Rows = append(table.Rows, row)
	}

	return table
}

// cleanRow projects a record onto headers, trimming each value.
func cleanRow(headers []string, rec Record) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		row[i] = strings.TrimSpace(rec[h])
	}
	return row
}

// writeRowKey writes a structural key for row: every value is prefixed with
// its byte length, so distinct rows never share a key whatever they contain.
func writeRowKey(b *strings.Builder, row Row) {
	for _, v := range row {
		b.WriteString(strconv.Itoa(len(v)))
		b.WriteByte(':')
		b.WriteString(v)
	}
}

// Records converts cleaned rows back into records keyed by headers.
// Feeding the result to Clean reproduces the same table.
func (t Table) Records() []Record {
	out := make([]Record, len(t.Rows))
	for i, row := range t.Rows {
		rec := make(Record, len(t.Headers))
		for j, h := range t.Headers {
			if j < len(row) {
				rec[h] = row[j]
			}
		}
		out[i] = rec
	}
	return out
}
