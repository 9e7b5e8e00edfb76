package driven

import (
	"context"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// MetadataStore persists enrichment records. It is append-only: Put always
// adds a record and never updates one in place.
type MetadataStore interface {
	// Put appends a record.
	Put(ctx context.Context, record *domain.EnrichmentRecord) error

	// GetLatest returns the newest record for a document or domain.ErrNotFound.
	GetLatest(ctx context.Context, documentID string) (*domain.EnrichmentRecord, error)

	// History returns all records for a document, newest first.
	History(ctx context.Context, documentID string) ([]domain.EnrichmentRecord, error)

	// QueryByLanguage returns records with the given language, newest first.
	QueryByLanguage(ctx context.Context, language string, page domain.Page) (domain.RecordPage, error)

	// CountByStatus returns the number of records per status.
	CountByStatus(ctx context.Context) (map[domain.RecordStatus]int, error)
}

// DeadLetterStore holds documents that failed permanently.
type DeadLetterStore interface {
	// Add stores an entry.
	Add(ctx context.Context, entry domain.DeadLetter) error

	// List returns all entries, newest first.
	List(ctx context.Context) ([]domain.DeadLetter, error)

	// Get returns an entry by ID or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.DeadLetter, error)

	// Remove deletes an entry, e.g. after a successful redrive.
	Remove(ctx context.Context, id string) error
}
