package core

// error_messages.go maps technical errors to user-facing messages.
//
// # Error Codes Reference
//
// Record errors come from the typed taxonomy in errors.go:
//
//	VAL001  - Invalid input (bad BIN, coordinate, or field value)
//	BRG001  - Bridge not found
//	BRG002  - Bridge already exists
//	DB001   - Storage unavailable
//
// Other errors are matched by pattern (case-insensitive strings.Contains,
// first match wins):
//
//	IMP001  - Too many concurrent imports       "too many concurrent imports"
//	IMP002  - No file was uploaded               "no file provided"
//	IMP003  - Unsupported spreadsheet format     "unsupported file"
//	IMP004  - File exceeds the upload limit      "file too large"
//	IMP005  - Spreadsheet could not be read      "read spreadsheet"
//	RATE001 - Too many requests                  "rate limit"
//	REQ001  - Request was cancelled              "context canceled"
//	REQ002  - Request timed out                  "context deadline exceeded"
//	ERR000  - Anything else
//
// When a user reports ERR000 or DB001, check the application log for the
// technical error logged next to the request_id.

import (
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

var (
	validationMessage = UserMessage{
		Message: "Invalid input",
		Action:  "Correct the value and try again",
		Code:    "VAL001",
	}
	notFoundMessage = UserMessage{
		Message: "Bridge not found",
		Action:  "Check the BIN or refresh the list",
		Code:    "BRG001",
	}
	conflictMessage = UserMessage{
		Message: "Bridge already exists",
		Action:  "Edit the existing bridge instead",
		Code:    "BRG002",
	}
	storeMessage = UserMessage{
		Message: "Bridge storage is unavailable",
		Action:  "Please try again in a few moments",
		Code:    "DB001",
	}
)

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns is checked in order; specific patterns come first.
var errorPatterns = []errorPattern{
	{
		pattern: "too many concurrent imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP001",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Choose a CSV or XLSX file to import",
			Code:    "IMP002",
		},
	},
	{
		pattern: "unsupported file",
		msg: UserMessage{
			Message: "Unsupported spreadsheet format",
			Action:  "Upload a .csv or .xlsx file",
			Code:    "IMP003",
		},
	},
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds the maximum upload size",
			Action:  "Split the spreadsheet into smaller files",
			Code:    "IMP004",
		},
	},
	{
		pattern: "read spreadsheet",
		msg: UserMessage{
			Message: "The spreadsheet could not be read",
			Action:  "Check that the file is a valid spreadsheet with a BIN column",
			Code:    "IMP005",
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
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "REQ002",
		},
	},
}

// defaultMessage is returned when nothing matches (ERR000).
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
//
// Typed record errors map by kind. Validation, not-found and conflict
// errors keep their own message, which never contains internal detail.
// Storage failures always get the generic DB001 message.
//
//	_, err := svc.Create(ctx, core.Payload{"bin": ""})
//	msg := core.MapError(err)
//	// msg.Code == "VAL001", msg.Message == "BIN is required"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	if kind := ErrorKind(err); kind != nil {
		var msg UserMessage
		switch kind {
		case ErrValidation:
			msg = validationMessage
		case ErrNotFound:
			msg = notFoundMessage
		case ErrConflict:
			msg = conflictMessage
		default:
			return storeMessage
		}
		var ce *Error
		if errors.As(err, &ce) && ce.Msg != "" {
			msg.Message = ce.Msg
		}
		return msg
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to something more specific than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}
