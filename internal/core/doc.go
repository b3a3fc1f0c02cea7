// Package core provides the CSV cleaning logic.
//
// The package has no transport or UI dependencies. Web handlers and the CLI
// both drive it the same way.
//
// # Cleaning
//
// [Clean] is a pure function over a parsed file:
//
//	headers, records, err := core.ParseCSV(r)
//	table := core.Clean(headers, records)
//
// Every output row has one trimmed value per header; absent fields become "".
// Rows that are identical after trimming are kept once, at the position of
// their first occurrence.
//
// # Uploads
//
// [Service.CleanUpload] wraps the pass with the checks an uploaded file goes
// through first (present, non-empty, plausibly CSV), a concurrency limit, and
// run bookkeeping (metrics, tracing, optional history).
//
// # Error Handling
//
// Rejections wrap [ErrInvalidUpload]; read and parse failures wrap
// [ErrReadOrParse]. [MapError] turns any error into a coded [UserMessage]:
//
//   - FILE001-FILE005: File errors (size, parse, type, missing, empty)
//   - UPL002-UPL005: Upload errors (busy, cancelled, timeout)
//   - EXP001: Unknown output format
//   - RATE001: Rate limiting
package core
