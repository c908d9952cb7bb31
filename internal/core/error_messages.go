package core

// error_messages.go translates technical errors into coded user messages.
//
// # Error Codes Reference
//
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis. Error codes are grouped by category:
//
// # Database Errors (DB001-DB099)
//
// Errors raised by the document store:
//
//	DB001 - A document with this number already exists
//	        Action: Use upsert or update to change existing documents
//	        Patterns: "duplicate document number"
//
//	DB002 - This value must be unique but already exists
//	        Action: Check for duplicate entries in your rows
//	        Patterns: "duplicate key", "unique constraint", "violates unique"
//
//	DB003 - Unable to connect to database
//	        Action: Please try again in a few moments
//	        Patterns: "connection refused"
//
//	DB004 - Database connection was interrupted
//	        Action: Please try again
//	        Patterns: "connection reset"
//
//	DB005 - Database was busy with conflicting operations
//	        Action: Please try again
//	        Patterns: "deadlock"
//
// # Validation Errors (VAL001-VAL099)
//
// Errors found by Build before anything is written:
//
//	VAL001 - Invalid date format detected
//	         Action: Use YYYY-MM-DD, MM/DD/YYYY, Aug-01-2014 or a Unix timestamp
//	         Patterns: "invalid date"
//
//	VAL002 - Invalid number format detected
//	         Action: Use a plain decimal number such as 1234.56
//	         Patterns: "invalid number"
//
//	VAL003 - Invalid yes/no value detected
//	         Action: Use one of: 1, 0, true, false, yes, no, on, off, t, f
//	         Patterns: "invalid boolean"
//
//	VAL004 - Value is not in the allowed list
//	         Action: Check the allowed values for this field
//	         Patterns: "invalid enum"
//
//	VAL005 - The column mapping is not valid
//	         Action: Give every column a unique field path
//	         Patterns: "invalid mapping", "mapping is empty"
//
//	VAL006 - Unknown import operation
//	         Action: Use create, upsert, update, void or delete
//	         Patterns: "unknown operation"
//
//	VAL007 - Installment is incomplete
//	         Action: Give every installment a date and an amount
//	         Patterns: "installment"
//
// # Import Errors (IMP001-IMP099)
//
// Errors raised while matching and resolving records during a run:
//
//	IMP001 - This import type is not available
//	         Action: Choose one of the listed import types
//	         Patterns: "unknown import kind"
//
//	IMP002 - This operation is not available for this import type
//	         Action: Choose one of the operations listed for this import type
//	         Patterns: "operation not supported", "cannot be voided"
//
//	IMP003 - A referenced record does not exist
//	         Action: Import the referenced records first or check their numbers
//	         Patterns: "reference not found"
//
//	IMP004 - The row has no number to match an existing record
//	         Action: Map the number column for update, void and delete
//	         Patterns: "no identifying value"
//
//	IMP005 - No existing record matches this row
//	         Action: Check the number or use create or upsert
//	         Patterns: "document not found"
//
//	IMP006 - The matched record has been voided
//	         Action: Voided records cannot be changed
//	         Patterns: "document is voided"
//
//	IMP007 - Import template not found
//	         Action: Check the template name
//	         Patterns: "template not found"
//
// # Run Errors (RUN001-RUN099)
//
// Errors related to run scheduling and cancellation:
//
//	RUN001 - Too many imports are running
//	         Action: Please wait a moment and try again
//	         Patterns: "too many imports"
//
//	RUN002 - An import is already running for this account
//	         Action: Wait for it to finish and try again
//	         Patterns: "import already running"
//
//	RUN003 - Import was cancelled
//	         Action: Run the import again to resume where it stopped
//	         Patterns: "context canceled"
//
//	RUN004 - Import timed out
//	         Action: Run the import again to resume where it stopped
//	         Patterns: "context deadline exceeded", "timeout"
//
//	RUN005 - This job belongs to another import
//	         Action: Start a new job or resume with the original account and import type
//	         Patterns: "job belongs to another"
//
//	RUN006 - The account is missing
//	         Action: Import into a named account
//	         Patterns: "tenant is required"
//
// # Default Error (ERR000)
//
//	ERR000 - An unexpected error occurred
//	         Action: Please try again or contact support
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns are listed
// before general ones (IMP004 before IMP005, DB001 before DB002).

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string `json:"message"` // What happened (user-friendly)
	Action  string `json:"action"`  // What to do about it
	Code    string `json:"code"`    // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// The first matching pattern wins, so order matters.
var errorPatterns = []errorPattern{
	// Database Errors (DB001-DB099)
	{
		pattern: "duplicate document number",
		msg: UserMessage{
			Message: "A document with this number already exists",
			Action:  "Use upsert or update to change existing documents",
			Code:    "DB001",
		},
	},
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your rows",
			Code:    "DB002",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your rows",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Check for duplicate entries in your rows",
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
	// Validation Errors (VAL001-VAL099)
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, Aug-01-2014 or a Unix timestamp",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Use a plain decimal number such as 1234.56",
			Code:    "VAL002",
		},
	},
	{
		pattern: "invalid boolean",
		msg: UserMessage{
			Message: "Invalid yes/no value detected",
			Action:  "Use one of: 1, 0, true, false, yes, no, on, off, t, f",
			Code:    "VAL003",
		},
	},
	{
		pattern: "invalid enum",
		msg: UserMessage{
			Message: "Value is not in the allowed list",
			Action:  "Check the allowed values for this field",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid mapping",
		msg: UserMessage{
			Message: "The column mapping is not valid",
			Action:  "Give every column a unique field path",
			Code:    "VAL005",
		},
	},
	{
		pattern: "mapping is empty",
		msg: UserMessage{
			Message: "The column mapping is not valid",
			Action:  "Give every column a unique field path",
			Code:    "VAL005",
		},
	},
	{
		pattern: "unknown operation",
		msg: UserMessage{
			Message: "Unknown import operation",
			Action:  "Use create, upsert, update, void or delete",
			Code:    "VAL006",
		},
	},
	{
		pattern: "installment",
		msg: UserMessage{
			Message: "Installment is incomplete",
			Action:  "Give every installment a date and an amount",
			Code:    "VAL007",
		},
	},
	// Import Errors (IMP001-IMP099)
	{
		pattern: "unknown import kind",
		msg: UserMessage{
			Message: "This import type is not available",
			Action:  "Choose one of the listed import types",
			Code:    "IMP001",
		},
	},
	{
		pattern: "operation not supported",
		msg: UserMessage{
			Message: "This operation is not available for this import type",
			Action:  "Choose one of the operations listed for this import type",
			Code:    "IMP002",
		},
	},
	{
		pattern: "cannot be voided",
		msg: UserMessage{
			Message: "This operation is not available for this import type",
			Action:  "Choose one of the operations listed for this import type",
			Code:    "IMP002",
		},
	},
	{
		pattern: "reference not found",
		msg: UserMessage{
			Message: "A referenced record does not exist",
			Action:  "Import the referenced records first or check their numbers",
			Code:    "IMP003",
		},
	},
	{
		pattern: "no identifying value",
		msg: UserMessage{
			Message: "The row has no number to match an existing record",
			Action:  "Map the number column for update, void and delete",
			Code:    "IMP004",
		},
	},
	{
		pattern: "document not found",
		msg: UserMessage{
			Message: "No existing record matches this row",
			Action:  "Check the number or use create or upsert",
			Code:    "IMP005",
		},
	},
	{
		pattern: "document is voided",
		msg: UserMessage{
			Message: "The matched record has been voided",
			Action:  "Voided records cannot be changed",
			Code:    "IMP006",
		},
	},
	{
		pattern: "template not found",
		msg: UserMessage{
			Message: "Import template not found",
			Action:  "Check the template name",
			Code:    "IMP007",
		},
	},
	// Run Errors (RUN001-RUN099)
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "Too many imports are running",
			Action:  "Please wait a moment and try again",
			Code:    "RUN001",
		},
	},
	{
		pattern: "import already running",
		msg: UserMessage{
			Message: "An import is already running for this account",
			Action:  "Wait for it to finish and try again",
			Code:    "RUN002",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Run the import again to resume where it stopped",
			Code:    "RUN003",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Import timed out",
			Action:  "Run the import again to resume where it stopped",
			Code:    "RUN004",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Import timed out",
			Action:  "Run the import again to resume where it stopped",
			Code:    "RUN004",
		},
	},
	{
		pattern: "job belongs to another",
		msg: UserMessage{
			Message: "This job belongs to another import",
			Action:  "Start a new job or resume with the original account and import type",
			Code:    "RUN005",
		},
	},
	{
		pattern: "tenant is required",
		msg: UserMessage{
			Message: "The account is missing",
			Action:  "Import into a named account",
			Code:    "RUN006",
		},
	},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// If no pattern matches, a generic fallback message with code ERR000 is returned.
//
// Example:
//
//	err := fmt.Errorf("customer %q: %w", "Acme", ErrReferenceNotFound)
//	msg := MapError(err)
//	// msg.Code == "IMP003"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
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

// IsUserFacing reports whether err matches a known pattern.
// Use this to decide whether to show the raw error or the mapped user message.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err to a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
