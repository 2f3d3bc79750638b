// Package core runs inventory imports: it turns uploaded rows into stored
// previews and commits them through the importer engine.
//
// # Error Codes Reference
//
// Errors shown to users carry a code they can quote to support.
//
// # Import Errors (IMP001-IMP099)
//
//	IMP001 - Preview not found or expired
//	IMP002 - Preview has row errors and cannot be committed
//	IMP003 - Another import is running for this owner
//	IMP004 - Too many imports running
//	IMP005 - Import still running in the background
//	IMP006 - Request cancelled
//	IMP007 - Request timed out
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large
//	FILE002 - Unsupported file format
//	FILE003 - File has no header row
//	FILE004 - Too many rows
//	FILE005 - No file provided
//	FILE006 - Malformed CSV or JSON
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Request body is not valid
//
// # Authorization (AUTH001-AUTH099)
//
//	AUTH001 - Owner is missing
//
// # Database Errors (DB001-DB099)
//
//	DB001 - Unique constraint
//	DB002 - Foreign key
//	DB003 - Connection refused
//	DB004 - Connection reset
//	DB005 - Deadlock
//
// # Rate Limiting (RATE001)
//
// # Default Error (ERR000)
//
// Sentinel errors are matched with errors.Is first. Anything else is
// matched case-insensitively against known message fragments, first
// match wins. ERR000 means the logs hold the real cause.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shplep/homecontentslistpro-sub000/internal/ingest"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

type sentinelMessage struct {
	err error
	msg UserMessage
}

// sentinelMessages is checked before the string patterns.
var sentinelMessages = []sentinelMessage{
	{ErrPreviewNotFound, UserMessage{
		Message: "Import preview not found",
		Action:  "The preview may have expired. Upload the file again",
		Code:    "IMP001",
	}},
	{ErrPreviewHasErrors, UserMessage{
		Message: "The preview has rows with errors",
		Action:  "Fix the rows listed in the preview and upload again",
		Code:    "IMP002",
	}},
	{ErrCommitInProgress, UserMessage{
		Message: "Another import is already running for this inventory",
		Action:  "Wait for it to finish and try again",
		Code:    "IMP003",
	}},
	{ErrTooManyCommits, UserMessage{
		Message: "The system is busy with other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP004",
	}},
	{ErrCommitStillRunning, UserMessage{
		Message: "The import is taking longer than expected",
		Action:  "It will finish in the background. Refresh your inventory shortly",
		Code:    "IMP005",
	}},
	{context.Canceled, UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP006",
	}},
	{context.DeadlineExceeded, UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "IMP007",
	}},
	{ErrFileTooLarge, UserMessage{
		Message: "File exceeds the maximum upload size",
		Action:  "Split the file into smaller imports",
		Code:    "FILE001",
	}},
	{ingest.ErrUnsupportedFormat, UserMessage{
		Message: "Unsupported file format",
		Action:  "Upload a .csv or .json file",
		Code:    "FILE002",
	}},
	{ingest.ErrNoHeader, UserMessage{
		Message: "The file has no header row",
		Action:  "Add a header row naming each column",
		Code:    "FILE003",
	}},
	{ingest.ErrTooManyRows, UserMessage{
		Message: "The file has too many rows",
		Action:  "Split the file into smaller imports",
		Code:    "FILE004",
	}},
	{ErrNoFile, UserMessage{
		Message: "No file was selected",
		Action:  "Please select a file to upload",
		Code:    "FILE005",
	}},
	{ErrInvalidRequest, UserMessage{
		Message: "The request is not valid",
		Action:  "Check the request body and try again",
		Code:    "VAL001",
	}},
	{ErrOwnerRequired, UserMessage{
		Message: "No inventory owner given",
		Action:  "Sign in again",
		Code:    "AUTH001",
	}},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	{
		pattern: "read csv",
		msg: UserMessage{
			Message: "The file is not valid CSV",
			Action:  "Check quoting and save the file as CSV again",
			Code:    "FILE006",
		},
	},
	{
		pattern: "decode json",
		msg: UserMessage{
			Message: "The file is not valid JSON",
			Action:  "Upload an array of objects, one per row",
			Code:    "FILE006",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This record already exists",
			Action:  "Run the preview again; the inventory changed",
			Code:    "DB001",
		},
	},
	{
		pattern: "foreign key",
		msg: UserMessage{
			Message: "Referenced house or room does not exist",
			Action:  "Run the preview again; the inventory changed",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB003",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Database connection was interrupted",
			Action:  "Please try again",
			Code:    "DB004",
		},
	},
	{
		pattern: "deadlock",
		msg: UserMessage{
			Message: "Database was busy with conflicting operations",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when nothing matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts an error to a user-facing message. A nil error maps to
// the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.err) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than
// ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
