package domain

import (
	"context"
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates no extractor handles the document format.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrLLMUnavailable indicates the LLM service is not configured or unreachable.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrRateLimited indicates the API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// Pipeline Errors.

	// ErrSourceUnavailable indicates the raw document bytes cannot be fetched.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrEmptyInput indicates a zero-byte document was presented for hashing.
	// This is a data problem and is never retried.
	ErrEmptyInput = errors.New("empty input")

	// ErrRegistryFault indicates a transient duplicate registry storage error.
	// A fingerprint conflict is NOT a fault.
	ErrRegistryFault = errors.New("registry fault")

	// ErrExtractionFailed indicates the extractor reported a hard failure.
	// Empty extracted text is a valid result, not this error.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrAnalyzerFailed indicates an analyzer call failed.
	// It is always degraded locally and never surfaces from the pipeline.
	ErrAnalyzerFailed = errors.New("analyzer failed")

	// ErrPersistFailed indicates the metadata store write failed.
	ErrPersistFailed = errors.New("persist failed")
)

// Error codes used in dead letters and CLI output.
const (
	CodeSourceUnavailable = "SourceUnavailable"
	CodeEmptyInput        = "EmptyInputError"
	CodeInvalidInput      = "InvalidInput"
	CodeRegistryFault     = "RegistryFault"
	CodeExtractionFailed  = "ExtractionFailed"
	CodePersistFailed     = "PersistFailed"
	CodeCancelled         = "Cancelled"
	CodeUnknown           = "Unknown"
)

// ErrorCode maps an error onto the pipeline error taxonomy.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return CodeCancelled
	case errors.Is(err, ErrEmptyInput):
		return CodeEmptyInput
	case errors.Is(err, ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, ErrSourceUnavailable):
		return CodeSourceUnavailable
	case errors.Is(err, ErrRegistryFault):
		return CodeRegistryFault
	case errors.Is(err, ErrExtractionFailed):
		return CodeExtractionFailed
	case errors.Is(err, ErrPersistFailed):
		return CodePersistFailed
	default:
		return CodeUnknown
	}
}

// IsRetryable reports whether the failure is transient and eligible for
// redelivery. Data problems (empty or malformed input) are not.
func IsRetryable(err error) bool {
	switch ErrorCode(err) {
	case CodeSourceUnavailable, CodeRegistryFault, CodeExtractionFailed, CodePersistFailed:
		return true
	default:
		return false
	}
}

// PipelineError records the state in which a document's pipeline failed.
type PipelineError struct {
	// Ref is the document being processed.
	Ref DocumentRef

	// State is the step that failed.
	State PipelineState

	// Err is the underlying cause.
	Err error
}

// Error implements error.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("%s: %s failed: %v", e.Ref.ID(), e.State, e.Err)
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Code returns the taxonomy code of the cause.
func (e *PipelineError) Code() string {
	return ErrorCode(e.Err)
}
