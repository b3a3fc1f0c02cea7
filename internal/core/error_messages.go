package core

// error_messages.go maps technical errors to user-friendly messages with codes
// for support reference. The HTML views only ever show MessageSuccess or
// MessageInvalidUpload; codes surface in logs and in the JSON API.
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds the maximum size limit
//	          Action: Split the file into smaller chunks
//	FILE002 - Invalid CSV: File could not be read or parsed as CSV
//	          Action: Ensure the file is comma-separated UTF-8 text with a header row
//	FILE003 - Not CSV: File does not look like a CSV file
//	          Action: Upload a .csv file or a file sent as text/csv
//	FILE004 - No file: No file was selected
//	          Action: Please select a CSV file to upload
//	FILE005 - Empty file: The uploaded file is empty
//	          Action: Please upload a CSV file with a header row
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many cleaning runs in progress
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Export Errors (EXP001)
//
//	EXP001 - Unknown output format requested from the API
//
// # Rate Limiting (RATE001)
//
//	RATE001 - Too many requests
//
// # Default Error (ERR000)
//
//	ERR000 - Unknown error. Check application logs for the technical error.
//
// Sentinel errors are matched with errors.Is. Rules without a sentinel fall
// back to a case-insensitive substring match. The first matching rule wins.

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorRule matches an error either by sentinel or by message pattern.
type errorRule struct {
	target  error
	pattern string
	msg     UserMessage
}

func (r errorRule) matches(err error, lower string) bool {
	if r.target != nil {
		return errors.Is(err, r.target)
	}
	return strings.Contains(lower, r.pattern)
}

// errorRules is ordered specific before general: the rejection reasons come
// before the ErrInvalidUpload catch-all.
var errorRules = []errorRule{
	// =========================================================================
	// File Errors
	// =========================================================================
	{
		target: ErrFileTooLarge,
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		target: ErrNoFile,
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE004",
		},
	},
	{
		target: ErrEmptyFile,
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a CSV file with a header row",
			Code:    "FILE005",
		},
	},
	{
		target: ErrNotCSV,
		msg: UserMessage{
			Message: "File does not look like a CSV file",
			Action:  "Upload a .csv file or a file sent as text/csv",
			Code:    "FILE003",
		},
	},
	{
		target: ErrReadOrParse,
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated UTF-8 text with a header row",
			Code:    "FILE002",
		},
	},
	{
		target: ErrInvalidUpload,
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Please select a CSV file to upload",
			Code:    "FILE002",
		},
	},

	// =========================================================================
	// Upload Errors
	// =========================================================================
	{
		target: ErrTooManyUploads,
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		target: context.Canceled,
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},
	{
		target: context.DeadlineExceeded,
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try uploading a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Export Errors
	// =========================================================================
	{
		pattern: "unknown export format",
		msg: UserMessage{
			Message: "Unknown output format",
			Action:  "Use format=csv, format=json or format=xlsx",
			Code:    "EXP001",
		},
	},

	// =========================================================================
	// Rate Limiting
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no rule matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns the zero UserMessage for a nil error.
//
// Example:
//
//	msg := MapError(fmt.Errorf("clean: %w", ErrEmptyFile))
//	// msg.Code == "FILE005"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	lower := strings.ToLower(err.Error())
	for _, rule := range errorRules {
		if rule.matches(err, lower) {
			return rule.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matches a known rule rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
