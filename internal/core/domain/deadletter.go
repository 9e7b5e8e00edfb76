package domain

import "time"

// DeadLetter records a document that failed permanently, either because its
// retry budget was exhausted or because the failure was not retryable.
type DeadLetter struct {
	// ID is the unique identifier for the entry.
	ID string

	// DocumentID is the "container/key" identity of the document.
	DocumentID string

	// Code is the error taxonomy code (e.g. "ExtractionFailed").
	Code string

	// Reason is the final error message.
	Reason string

	// Attempts is the number of pipeline runs made.
	Attempts int

	// FailedAt is when the document was dead-lettered.
	FailedAt time.Time
}
