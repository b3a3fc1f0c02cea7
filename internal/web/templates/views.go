// Package templates holds the templ components for the upload and result
// pages. The *_templ.go files are generated by `templ generate`.
package templates

import "github.com/JonMunkholm/csvclean/internal/core"

// ResultView is what the result page renders for a cleaned table.
type ResultView struct {
	RunID      string
	FileName   string
	Message    string
	Headers    []string
	Rows       [][]string
	InputRows  int
	OutputRows int
	Duplicates int
}

// NewResultView flattens a successful run for rendering.
func NewResultView(res *core.Result) ResultView {
	rows := make([][]string, len(res.Table.Rows))
	for i, row := range res.Table.Rows {
		rows[i] = row
	}
	return ResultView{
		RunID:      res.RunID,
		FileName:   res.FileName,
		Message:    res.Message,
		Headers:    res.Table.Headers,
		Rows:       rows,
		InputRows:  res.Table.InputRows,
		OutputRows: len(res.Table.Rows),
		Duplicates: res.Table.Duplicates(),
	}
}
