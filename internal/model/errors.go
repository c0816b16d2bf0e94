package model

import "fmt"

// Error codes for the emission pipeline
const (
	ErrCodeEncoding         = "ENCODING_ERROR"
	ErrCodeBuild            = "BUILD_ERROR"
	ErrCodeSigning          = "SIGNING_ERROR"
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeRejection        = "REJECTION_ERROR"
	ErrCodeNetwork          = "NETWORK_ERROR"
	ErrCodeSequenceConflict = "SEQUENCE_CONFLICT"
)

// EncodingError represents TLV encoding failures (length overflow,
// malformed field). Never retried; the caller must fix the input data.
type EncodingError struct {
	Tag     byte
	Message string
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("[%s] tag %d: %s", ErrCodeEncoding, e.Tag, e.Message)
}

// NewEncodingError creates a new encoding error
func NewEncodingError(tag byte, message string) *EncodingError {
	return &EncodingError{Tag: tag, Message: message}
}

// BuildError represents a document builder invariant violation,
// indicating an upstream pricing or data bug.
type BuildError struct {
	Field   string
	Line    int // 0-based line index, -1 if not line-scoped
	Message string
	Cause   error
}

func (e *BuildError) Error() string {
	if e.Line >= 0 {
		return fmt.Sprintf("[%s] %s[%d]: %s", ErrCodeBuild, e.Field, e.Line, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %s (%v)", ErrCodeBuild, e.Field, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s: %s", ErrCodeBuild, e.Field, e.Message)
}

func (e *BuildError) Unwrap() error {
	return e.Cause
}

// WithLine scopes the error to a line index
func (e *BuildError) WithLine(i int) *BuildError {
	e.Line = i
	return e
}

// NewBuildError creates a new build error
func NewBuildError(field, message string, cause error) *BuildError {
	return &BuildError{Field: field, Line: -1, Message: message, Cause: cause}
}

// SigningError represents a signing adapter failure. Fatal for the
// current attempt; Transient marks signer-unavailable cases that may
// be retried without consuming a counter value.
type SigningError struct {
	Message   string
	Transient bool
	Cause     error
}

func (e *SigningError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", ErrCodeSigning, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", ErrCodeSigning, e.Message)
}

func (e *SigningError) Unwrap() error {
	return e.Cause
}

// NewSigningError creates a new signing error
func NewSigningError(message string, transient bool, cause error) *SigningError {
	return &SigningError{Message: message, Transient: transient, Cause: cause}
}

// ValidationError is a pre-submission structural check failure.
// No network call is made once one is raised.
type ValidationError struct {
	Element string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] missing required element: %s", ErrCodeValidation, e.Element)
}

// NewValidationError creates a new validation error
func NewValidationError(element string) *ValidationError {
	return &ValidationError{Element: element}
}

// RejectionError is an authority-level business rejection. Terminal;
// the reason is surfaced verbatim to the operator and never auto-retried.
type RejectionError struct {
	Reason   string
	Warnings []string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("[%s] authority rejected invoice: %s", ErrCodeRejection, e.Reason)
}

// NewRejectionError creates a new rejection error
func NewRejectionError(reason string, warnings []string) *RejectionError {
	return &RejectionError{Reason: reason, Warnings: warnings}
}

// NetworkError covers transport failures and non-2xx authority
// responses. Retryable is false for 4xx (integration bug) and true
// for 5xx/timeouts.
type NetworkError struct {
	StatusCode int // 0 when no response was received
	Message    string
	Retryable  bool
	Cause      error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] authority returned %d: %s", ErrCodeNetwork, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s (%v)", ErrCodeNetwork, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", ErrCodeNetwork, e.Message)
}

func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// NewNetworkError creates a new network error
func NewNetworkError(statusCode int, message string, retryable bool, cause error) *NetworkError {
	return &NetworkError{StatusCode: statusCode, Message: message, Retryable: retryable, Cause: cause}
}

// SequenceConflictError indicates a ledger concurrency bug: the counter
// moved underneath an open lease. Always fatal, threatens chain integrity.
type SequenceConflictError struct {
	Key      SequenceKey
	Expected int64
	Actual   int64
}

func (e *SequenceConflictError) Error() string {
	return fmt.Sprintf("[%s] %s: expected counter %d, found %d",
		ErrCodeSequenceConflict, e.Key, e.Expected, e.Actual)
}

// NewSequenceConflictError creates a new sequence conflict error
func NewSequenceConflictError(key SequenceKey, expected, actual int64) *SequenceConflictError {
	return &SequenceConflictError{Key: key, Expected: expected, Actual: actual}
}
