package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
)

// Ensure RecordService implements the interface.
var _ driving.RecordService = (*RecordService)(nil)

// RecordService answers read queries over the metadata store and registry.
type RecordService struct {
	store       driven.MetadataStore
	registry    driven.DuplicateRegistry
	deadLetters driven.DeadLetterStore
}

// NewRecordService creates a record service. deadLetters may be nil.
func NewRecordService(
	store driven.MetadataStore,
	registry driven.DuplicateRegistry,
	deadLetters driven.DeadLetterStore,
) *RecordService {
	return &RecordService{store: store, registry: registry, deadLetters: deadLetters}
}

// Get returns the latest record for a document.
func (s *RecordService) Get(ctx context.Context, documentID string) (*domain.EnrichmentRecord, error) {
	if _, err := domain.ParseDocumentRef(documentID); err != nil {
		return nil, err
	}
	return s.store.GetLatest(ctx, documentID)
}

// History returns every record for a document, newest first.
// A document with no records yields domain.ErrNotFound.
func (s *RecordService) History(ctx context.Context, documentID string) ([]domain.EnrichmentRecord, error) {
	if _, err := domain.ParseDocumentRef(documentID); err != nil {
		return nil, err
	}
	records, err := s.store.History(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: no records for %s", domain.ErrNotFound, documentID)
	}
	return records, nil
}

// ListByLanguage pages through records of one language.
func (s *RecordService) ListByLanguage(
	ctx context.Context,
	language string,
	page domain.Page,
) (domain.RecordPage, error) {
	language = strings.ToLower(strings.TrimSpace(language))
	if language == "" {
		return domain.RecordPage{}, fmt.Errorf("%w: empty language code", domain.ErrInvalidInput)
	}
	if page.Limit < 0 {
		return domain.RecordPage{}, fmt.Errorf("%w: negative page limit", domain.ErrInvalidInput)
	}
	return s.store.QueryByLanguage(ctx, language, page)
}

// LookupFingerprint returns the registry entry for a hex digest.
func (s *RecordService) LookupFingerprint(ctx context.Context, hexDigest string) (*domain.DuplicateRecord, error) {
	fp, err := domain.ParseFingerprint(hexDigest)
	if err != nil {
		return nil, err
	}
	return s.registry.Lookup(ctx, fp)
}

// Stats returns record counts per status. Every status is present.
func (s *RecordService) Stats(ctx context.Context) (map[domain.RecordStatus]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	out := map[domain.RecordStatus]int{
		domain.StatusProcessed: 0,
		domain.StatusDuplicate: 0,
		domain.StatusFailed:    0,
	}
	for status, n := range counts {
		out[status] = n
	}
	return out, nil
}

// DeadLetters returns all dead-lettered documents, newest first.
func (s *RecordService) DeadLetters(ctx context.Context) ([]domain.DeadLetter, error) {
	if s.deadLetters == nil {
		return []domain.DeadLetter{}, nil
	}
	return s.deadLetters.List(ctx)
}
