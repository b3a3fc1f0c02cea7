// Package export renders a cleaned table as CSV, JSON or an Excel workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/csvclean/internal/core"
	"github.com/xuri/excelize/v2"
)

// Format is an output format for a cleaned table.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// SheetName is the worksheet that holds the table in XLSX output.
const SheetName = "Cleaned"

// ErrUnknownFormat is returned for a format name ParseFormat does not know.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat normalizes a format name. An empty name means CSV;
// "excel" and "xls" are accepted for XLSX.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "xlsx", "xls", "excel":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// FileName derives a download name from the uploaded file name,
// e.g. "people.csv" becomes "people_cleaned.xlsx".
func (f Format) FileName(source string) string {
	base := source
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	if base == "" {
		base = "data"
	}
	return base + "_cleaned." + string(f)
}

// Write renders table to w in the given format.
func Write(w io.Writer, format Format, table core.Table) error {
	switch format {
	case FormatCSV:
		return writeCSV(w, table)
	case FormatJSON:
		return writeJSON(w, table)
	case FormatXLSX:
		return writeXLSX(w, table)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

func writeCSV(w io.Writer, table core.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(table.Headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range table.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// document is the JSON shape of a cleaned table.
type document struct {
	Headers []string   `json:"headers"`
	Rows    [][]string `json:"rows"`
}

func writeJSON(w io.Writer, table core.Table) error {
	doc := document{
		Headers: table.Headers,
		Rows:    make([][]string, len(table.Rows)),
	}
	if doc.Headers == nil {
		doc.Headers = []string{}
	}
	for i, row := range table.Rows {
		doc.Rows[i] = row
	}

	if err := json.NewEncoder(w).Encode(doc); err != nil {
		return fmt.Errorf("write json: %w", err)
	}
	return nil
}

func writeXLSX(w io.Writer, table core.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetName); err != nil {
		return fmt.Errorf("name sheet: %w", err)
	}

	if err := setRow(f, 1, table.Headers); err != nil {
		return err
	}
	for i, row := range table.Rows {
		if err := setRow(f, i+2, row); err != nil {
			return err
		}
	}

	if len(table.Headers) > 0 {
		bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return fmt.Errorf("header style: %w", err)
		}
		if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
			return fmt.Errorf("header style: %w", err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

// setRow writes values as text cells so nothing is reinterpreted as a number
// or a date.
func setRow(f *excelize.File, rowIdx int, values []string) error {
	if len(values) == 0 {
		return nil
	}

	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}

	start, err := excelize.CoordinatesToCellName(1, rowIdx)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(SheetName, start, &cells); err != nil {
		return fmt.Errorf("write xlsx row %d: %w", rowIdx, err)
	}
	return nil
}
