package driving

import (
	"context"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// RecordService is the read surface over persisted enrichment results.
type RecordService interface {
	// Get returns the latest record for a document ID ("container/key").
	Get(ctx context.Context, documentID string) (*domain.EnrichmentRecord, error)

	// History returns every record for a document, newest first.
	History(ctx context.Context, documentID string) ([]domain.EnrichmentRecord, error)

	// ListByLanguage pages through records of one language, newest first.
	ListByLanguage(ctx context.Context, language string, page domain.Page) (domain.RecordPage, error)

	// LookupFingerprint returns the duplicate registry entry for a hex digest.
	LookupFingerprint(ctx context.Context, hexDigest string) (*domain.DuplicateRecord, error)

	// Stats returns record counts per status.
	Stats(ctx context.Context) (map[domain.RecordStatus]int, error)

	// DeadLetters returns all dead-lettered documents.
	DeadLetters(ctx context.Context) ([]domain.DeadLetter, error)
}
