package domain

import (
	"fmt"
	"time"
)

// RecordStatus is the outcome recorded for one processing attempt.
type RecordStatus string

// Available record statuses.
const (
	// StatusProcessed means the document was extracted and enriched.
	StatusProcessed RecordStatus = "PROCESSED"

	// StatusDuplicate means the content had already been enriched.
	StatusDuplicate RecordStatus = "DUPLICATE"

	// StatusFailed means the document could not be processed.
	StatusFailed RecordStatus = "FAILED"
)

// IsValid returns true if the status is recognised.
func (s RecordStatus) IsValid() bool {
	switch s {
	case StatusProcessed, StatusDuplicate, StatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (s RecordStatus) String() string {
	return string(s)
}

// LanguageUnknown is recorded when no language could be detected.
const LanguageUnknown = "unknown"

// Entity is a named entity found in extracted text.
type Entity struct {
	Text       string  `json:"text" yaml:"text"`
	Type       string  `json:"type" yaml:"type"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// KeyPhrase is a salient phrase found in extracted text.
type KeyPhrase struct {
	Text       string  `json:"text" yaml:"text"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Summary is the raw output of a summariser.
// Summary and Insights are usually strings but LLM output may
// carry structured values; they are stringified on normalisation.
type Summary struct {
	Summary        any            `json:"summary" yaml:"summary"`
	Insights       any            `json:"insights" yaml:"insights"`
	StructuredData map[string]any `json:"structuredData" yaml:"structuredData"`
}

// Annotations is the merged output of all analyzers for one document.
// Fields are merged by name, never by arrival order.
type Annotations struct {
	Language   string
	Entities   []Entity
	KeyPhrases []KeyPhrase
	Summary    Summary
}

// EnrichmentRecord is the persisted result of one processing attempt.
// Records are append-only: a document may have many, the latest wins.
type EnrichmentRecord struct {
	// ID is a time-sortable unique identifier.
	ID string `json:"id" yaml:"id"`

	// DocumentID is the "container/key" identity of the document.
	DocumentID string `json:"documentId" yaml:"documentId"`

	// ProcessingTimestamp is when this attempt produced the record.
	ProcessingTimestamp time.Time `json:"processingTimestamp" yaml:"processingTimestamp"`

	// Status is exactly one of PROCESSED, DUPLICATE or FAILED.
	Status RecordStatus `json:"status" yaml:"status"`

	// Language is an ISO code or "unknown".
	Language string `json:"language" yaml:"language"`

	Entities   []Entity    `json:"entities" yaml:"entities"`
	KeyPhrases []KeyPhrase `json:"keyPhrases" yaml:"keyPhrases"`

	// ExtractedTextPreview is the truncated head of the extracted text.
	ExtractedTextPreview string `json:"extractedTextPreview" yaml:"extractedTextPreview"`

	// FullTextLength counts the characters of the untruncated text.
	FullTextLength int `json:"fullTextLength" yaml:"fullTextLength"`

	Summary        string            `json:"summary" yaml:"summary"`
	Insights       string            `json:"insights" yaml:"insights"`
	StructuredData map[string]string `json:"structuredData" yaml:"structuredData"`

	// DuplicateOfDocumentID is set if and only if Status is DUPLICATE.
	DuplicateOfDocumentID string `json:"duplicateOfDocumentId,omitempty" yaml:"duplicateOfDocumentId,omitempty"`

	// ContentHash is the hex fingerprint of the document bytes, when known.
	ContentHash string `json:"contentHash,omitempty" yaml:"contentHash,omitempty"`

	// FailureReason explains a FAILED record.
	FailureReason string `json:"failureReason,omitempty" yaml:"failureReason,omitempty"`
}

// Validate checks the status invariants of the record.
func (r *EnrichmentRecord) Validate() error {
	if r.DocumentID == "" {
		return fmt.Errorf("%w: record has no document id", ErrInvalidInput)
	}
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, r.Status)
	}
	isDup := r.Status == StatusDuplicate
	if isDup != (r.DuplicateOfDocumentID != "") {
		return fmt.Errorf("%w: duplicateOfDocumentId must be set only for DUPLICATE records", ErrInvalidInput)
	}
	return nil
}

// Page requests one page of a newest-first listing.
type Page struct {
	// Limit is the maximum number of records to return.
	Limit int

	// Cursor is the opaque NextCursor of the previous page; empty for the first.
	Cursor string
}

// RecordPage is one page of records.
type RecordPage struct {
	Records []EnrichmentRecord

	// NextCursor is empty on the last page.
	NextCursor string
}
