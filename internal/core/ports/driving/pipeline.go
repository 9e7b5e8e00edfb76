package driving

import (
	"context"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// DocumentProcessor runs one document through the enrichment pipeline once.
type DocumentProcessor interface {
	// Process hashes, deduplicates, extracts, enriches and persists a document.
	// A returned error is a *domain.PipelineError; the Outcome is still
	// populated with the transitions taken.
	Process(ctx context.Context, ref domain.DocumentRef) (*Outcome, error)
}

// Outcome describes how one pipeline run ended.
type Outcome struct {
	// Ref is the processed document.
	Ref domain.DocumentRef

	// State is the terminal state (DONE or FAILED).
	State domain.PipelineState

	// Transitions lists every state visited, in order.
	Transitions []domain.PipelineState

	// Fingerprint is the content digest, zero if hashing did not complete.
	Fingerprint domain.Fingerprint

	// Record is the persisted enrichment record, nil if none was written.
	Record *domain.EnrichmentRecord
}

// Status returns the status of the written record, or FAILED.
func (o *Outcome) Status() domain.RecordStatus {
	if o == nil || o.Record == nil {
		return domain.StatusFailed
	}
	return o.Record.Status
}

// Runner applies the retry and dead-letter policy around the pipeline.
type Runner interface {
	// Run processes a document, retrying transient failures with backoff.
	// Permanently failed documents are dead-lettered.
	Run(ctx context.Context, ref domain.DocumentRef) (*Outcome, error)

	// RunBatch processes documents concurrently with at most concurrency in flight.
	RunBatch(ctx context.Context, refs []domain.DocumentRef, concurrency int) (*BatchReport, error)

	// Redrive re-runs a dead-lettered document and removes the entry on success.
	Redrive(ctx context.Context, deadLetterID string) (*Outcome, error)
}

// BatchReport summarises a batch run.
type BatchReport struct {
	Processed  int
	Duplicates int
	Failed     int

	// Outcomes holds one entry per input, in input order.
	Outcomes []*Outcome
}

// Total returns the number of documents in the batch.
func (r *BatchReport) Total() int {
	return r.Processed + r.Duplicates + r.Failed
}
