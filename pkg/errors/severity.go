// Package errors provides severity-aware error types.
package errors

import (
	"errors"
	"fmt"
)

// Severity indicates error impact level.
type Severity int

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityError
	SeverityFatal
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalText renders the severity by name in JSON payloads
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// AuditError is a structured error with context.
type AuditError struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Severity    Severity `json:"severity"`
	Source      string   `json:"source,omitempty"`
	Recoverable bool     `json:"recoverable"`
	Err         error    `json:"-"`
}

func (e *AuditError) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Severity, e.Code, e.Message)
	if e.Source != "" {
		msg += fmt.Sprintf(" (source: %s)", e.Source)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuditError) Unwrap() error { return e.Err }

// Error codes
const (
	ErrCodeSourceUnreadable  = "SOURCE_UNREADABLE"
	ErrCodeUnsupportedSource = "UNSUPPORTED_SOURCE"
	ErrCodeEmptyInput        = "EMPTY_INPUT"
	ErrCodeInputTooLarge     = "INPUT_TOO_LARGE"
	ErrCodePolicyInvalid     = "POLICY_INVALID"
	ErrCodeStoreFailed       = "STORE_FAILED"
)

// Code extracts the AuditError code from an error chain, "" if there is none
func Code(err error) string {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// NewSourceUnreadableError creates an error for inputs that could not be fetched.
func NewSourceUnreadableError(source string, err error) *AuditError {
	return &AuditError{
		Code:        ErrCodeSourceUnreadable,
		Message:     "Unable to read invoice source",
		Severity:    SeverityError,
		Source:      source,
		Recoverable: true,
		Err:         err,
	}
}

// NewUnsupportedSourceError creates an error for unknown URI schemes.
func NewUnsupportedSourceError(source, scheme string) *AuditError {
	return &AuditError{
		Code:     ErrCodeUnsupportedSource,
		Message:  fmt.Sprintf("Unsupported source scheme: %s", scheme),
		Severity: SeverityError,
		Source:   source,
	}
}

// NewEmptyInputError creates an error for blank documents.
func NewEmptyInputError(source string) *AuditError {
	return &AuditError{
		Code:        ErrCodeEmptyInput,
		Message:     "Invoice text is empty",
		Severity:    SeverityWarning,
		Source:      source,
		Recoverable: true,
	}
}

// NewInputTooLargeError creates an error for documents over the size cap.
func NewInputTooLargeError(source string, limit int64) *AuditError {
	return &AuditError{
		Code:     ErrCodeInputTooLarge,
		Message:  fmt.Sprintf("Invoice exceeds %d bytes", limit),
		Severity: SeverityError,
		Source:   source,
	}
}

// NewPolicyInvalidError creates an error for policies that fail validation.
func NewPolicyInvalidError(source string, err error) *AuditError {
	return &AuditError{
		Code:     ErrCodePolicyInvalid,
		Message:  "Policy definition is invalid",
		Severity: SeverityError,
		Source:   source,
		Err:      err,
	}
}

// NewStoreError creates an error for persistence failures.
func NewStoreError(op string, err error) *AuditError {
	return &AuditError{
		Code:        ErrCodeStoreFailed,
		Message:     fmt.Sprintf("Report store %s failed", op),
		Severity:    SeverityError,
		Recoverable: true,
		Err:         err,
	}
}
