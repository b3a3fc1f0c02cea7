package core

import (
	"io"
	"time"
)

// Record is one data row from an uploaded file, keyed by header name.
// A header missing from the map is an absent field.
type Record map[string]string

// Row is a cleaned row: one trimmed value per header, in header order.
type Row []string

// Table is the result of a cleaning pass.
type Table struct {
	Headers []string
	Rows    []Row

	// InputRows is the number of records the pass consumed.
	InputRows int
}

// Duplicates returns how many input records were dropped as duplicates.
func (t Table) Duplicates() int {
	return t.InputRows - len(t.Rows)
}

// Upload is an uploaded file as handed over by the transport layer.
type Upload struct {
	FileName    string
	ContentType string // As declared by the client, may be empty
	Size        int64  // -1 if unknown
	Body        io.Reader
}

// Result is the outcome of a successful cleaning run.
type Result struct {
	RunID    string
	FileName string
	Table    Table
	Message  string
	Duration time.Duration
}

// Outcome labels a finished run for metrics and history.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeRejected Outcome = "rejected" // failed the upload checks
	OutcomeFailed   Outcome = "failed"   // read/parse error or resource limit
)

// Fixed messages shown to the user. No other text reaches the views.
const (
	MessageSuccess       = "CSV cleaned successfully!"
	MessageInvalidUpload = "Please upload a valid CSV file."
)
