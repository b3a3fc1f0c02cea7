package core

import "errors"

// Upload rejections. The cleaner is never invoked for these.
var (
	// ErrInvalidUpload wraps every reason an upload is rejected before parsing.
	ErrInvalidUpload = errors.New("invalid upload")

	ErrNoFile       = errors.New("no file provided")
	ErrEmptyFile    = errors.New("empty file")
	ErrNotCSV       = errors.New("not a csv file")
	ErrFileTooLarge = errors.New("file too large")
)

// ErrReadOrParse wraps any failure while reading, decoding or parsing the stream.
var ErrReadOrParse = errors.New("invalid csv")

// rejection ties a specific reason to ErrInvalidUpload so callers can match
// either one with errors.Is.
type rejection struct {
	reason error
}

func (r rejection) Error() string {
	return ErrInvalidUpload.Error() + ": " + r.reason.Error()
}

func (r rejection) Unwrap() []error {
	return []error{ErrInvalidUpload, r.reason}
}

// Reject marks reason as an upload rejection. Transports use it for checks
// they perform themselves, such as the request size limit.
func Reject(reason error) error {
	return rejection{reason: reason}
}

// Outcome classifies err for metrics and the run ledger.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrInvalidUpload):
		return OutcomeRejected
	default:
		return OutcomeFailed
	}
}
