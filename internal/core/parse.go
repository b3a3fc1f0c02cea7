package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ParseCSV reads a CSV stream, treating the first record as the header row.
//
// Header names are trimmed. A duplicate header keeps its first position and
// column. Short rows leave the trailing headers absent; cells beyond the last
// header are ignored. Any read or syntax error is wrapped in ErrReadOrParse.
func ParseCSV(r io.Reader) ([]string, []Record, error) {
	src, _ := WrapForParsing(r)
	return parseRecords(src)
}

// parseRecords parses an already-decoded stream.
func parseRecords(src io.Reader) ([]string, []Record, error) {
	reader := newCSVReader(src)

	headerRow, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, fmt.Errorf("%w: no header row", ErrReadOrParse)
		}
		return nil, nil, fmt.Errorf("%w: read header: %v", ErrReadOrParse, err)
	}

	headers, columns, err := buildHeaders(headerRow)
	if err != nil {
		return nil, nil, err
	}

	var records []Record
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrReadOrParse, err)
		}
		records = append(records, toRecord(row, headers, columns))
	}

	return headers, records, nil
}

// newCSVReader configures encoding/csv for user-supplied files. Quotes are
// strict: an unterminated quoted field or stray text after a closing quote
// is a parse error rather than a cell that swallows the rest of the file.
func newCSVReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
	return reader
}

// buildHeaders trims header names and drops later duplicates.
// columns[i] is the source column of headers[i].
func buildHeaders(row []string) ([]string, []int, error) {
	headers := make([]string, 0, len(row))
	columns := make([]int, 0, len(row))
	seen := make(map[string]bool, len(row))

	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			return nil, nil, fmt.Errorf("%w: header name missing in column %d", ErrReadOrParse, i+1)
		}
		if seen[h] {
			continue
		}
		seen[h] = true
		headers = append(headers, h)
		columns = append(columns, i)
	}

	return headers, columns, nil
}

// toRecord maps a data row onto the header names it covers.
func toRecord(row []string, headers []string, columns []int) Record {
	rec := make(Record, len(headers))
	for i, col := range columns {
		if col >= len(row) {
			break
		}
		rec[headers[i]] = row[col]
	}
	return rec
}
