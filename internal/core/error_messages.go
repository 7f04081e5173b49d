// Package core provides the cleaning pipeline for tabular uploads.
//
// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// # Cleaning Errors (CLN001-CLN099)
//
//	CLN001 - Invalid operation: A requested cleaning operation is not supported
//	         Action: Choose from the listed cleaning options
//	         Patterns: "invalid operation"
//
//	CLN002 - Malformed dataset: Rows do not line up with the header
//	         Action: Make sure every row has the same number of columns as the header
//	         Patterns: "malformed dataset"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit
//	FILE002 - Invalid CSV: File could not be parsed as CSV
//	FILE003 - Encoding error: File is not in the configured text encoding
//	FILE004 - No file: No file was selected
//	FILE005 - Empty file: The uploaded file has no header row
//	FILE006 - Unsupported type: Only .csv and .xlsx are accepted
//	FILE007 - Invalid spreadsheet: The workbook could not be read
//
// # Account Errors (AUTH001-AUTH099)
//
//	AUTH001 - Invalid credentials: Username or password is wrong
//	AUTH002 - User exists: Username is already taken
//	AUTH003 - Session expired: Session not found or expired
//	AUTH004 - Invalid registration: Username or password does not meet the rules
//
// # Upload Errors (UPL001-UPL099)
//
//	UPL002 - System busy: Too many uploads in progress
//	UPL003 - No result: Nothing has been cleaned in this session yet
//	UPL004 - Request cancelled
//	UPL005 - Request timeout
//
// # Database Errors (DB001-DB099)
//
//	DB004 - Connection refused
//	DB005 - Connection reset
//	DB006 - Timeout
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches. Check application logs for the
// original technical error when users report ERR000.
//
// # Pattern Matching
//
// Known sentinels are matched with errors.Is before any text is examined.
// Otherwise the error chain is walked from the innermost error outward and
// each level is matched case-insensitively using strings.Contains. Wrapping
// context such as file or operation names therefore never decides the code.
// Within one level the first matching pattern wins, so more specific
// patterns should be defined before general ones.
package core

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

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Order matters: the first match wins.
var errorPatterns = []errorPattern{
	// =========================================================================
	// Cleaning Errors (CLN001-CLN002)
	// =========================================================================
	{
		pattern: "invalid operation",
		msg: UserMessage{
			Message: "A requested cleaning operation is not supported",
			Action:  "Choose from the listed cleaning options",
			Code:    "CLN001",
		},
	},
	{
		pattern: "malformed dataset",
		msg: UserMessage{
			Message: "Some rows do not line up with the header",
			Action:  "Make sure every row has the same number of columns as the header",
			Code:    "CLN002",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE007)
	// =========================================================================
	{
		pattern: "file too large",
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
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure the file is comma-separated with quoted fields closed",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains characters outside the expected encoding",
			Action:  "Save the file as UTF-8",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "This file type is not supported",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "FILE006",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Re-save the workbook in Excel format or export it as CSV",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Account Errors (AUTH001-AUTH004)
	// =========================================================================
	{
		pattern: "invalid credentials",
		msg: UserMessage{
			Message: "Invalid username or password",
			Action:  "Check your details and try again",
			Code:    "AUTH001",
		},
	},
	{
		pattern: "user already exists",
		msg: UserMessage{
			Message: "Username already exists",
			Action:  "Pick another username or log in",
			Code:    "AUTH002",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Your session has expired",
			Action:  "Please log in again",
			Code:    "AUTH003",
		},
	},
	{
		pattern: "invalid registration",
		msg: UserMessage{
			Message: "Username or password does not meet the requirements",
			Action:  "Use 3-64 letters, digits, '.', '_' or '-' and a password of at least 8 characters",
			Code:    "AUTH004",
		},
	},

	// =========================================================================
	// Upload Errors (UPL002-UPL005)
	// =========================================================================
	{
		pattern: "too many uploads",
		msg: UserMessage{
			Message: "System is busy processing other uploads",
			Action:  "Please wait a moment and try again",
			Code:    "UPL002",
		},
	},
	{
		pattern: "no cleaned result",
		msg: UserMessage{
			Message: "There is no cleaned file to download",
			Action:  "Upload and clean a file first",
			Code:    "UPL003",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "UPL004",
		},
	},

	// =========================================================================
	// Database Connection Errors (DB004-DB006)
	// =========================================================================
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "UPL005",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
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

// errorSentinels are matched with errors.Is ahead of the pattern table.
var errorSentinels = []struct {
	err  error
	code string
}{
	{ErrInvalidOperation, "CLN001"},
	{ErrMalformedDataset, "CLN002"},
	{ErrTooManyUploads, "UPL002"},
	{context.Canceled, "UPL004"},
	{context.DeadlineExceeded, "UPL005"},
}

// defaultMessage is returned when no pattern matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Known sentinels win first. Then each error in the chain is searched for
// known patterns (case-insensitive), innermost first. If nothing matches, a
// generic fallback message with code ERR000 is returned.
//
// Example:
//
//	_, _, err := Clean(ds, []string{"reverse_rows"})
//	msg := MapError(err)
//	// msg.Code == "CLN001"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, s := range errorSentinels {
		if errors.Is(err, s.err) {
			return messageFor(s.code)
		}
	}

	var chain []error
	for e := err; e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if msg, ok := matchPattern(chain[i].Error()); ok {
			return msg
		}
	}

	return defaultMessage
}

func matchPattern(text string) (UserMessage, bool) {
	text = strings.ToLower(text)
	for _, ep := range errorPatterns {
		if strings.Contains(text, ep.pattern) {
			return ep.msg, true
		}
	}
	return UserMessage{}, false
}

// messageFor returns the catalogue entry for code.
func messageFor(code string) UserMessage {
	for _, ep := range errorPatterns {
		if ep.msg.Code == code {
			return ep.msg
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

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
