package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Ensure MetadataStore implements the interface.
var _ driven.MetadataStore = (*MetadataStore)(nil)

// MetadataStore is an in-memory, append-only implementation of driven.MetadataStore.
type MetadataStore struct {
	mu         sync.RWMutex
	records    []domain.EnrichmentRecord
	byDocument map[string][]int
	byLanguage map[string][]int
}

// NewMetadataStore creates a new in-memory metadata store.
func NewMetadataStore() *MetadataStore {
	return &MetadataStore{
		byDocument: make(map[string][]int),
		byLanguage: make(map[string][]int),
	}
}

// Put appends a copy of the record.
func (s *MetadataStore) Put(_ context.Context, record *domain.EnrichmentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", domain.ErrInvalidInput)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	idx := len(s.records)
	s.records = append(s.records, cloneRecord(record))
	s.byDocument[record.DocumentID] = append(s.byDocument[record.DocumentID], idx)
	s.byLanguage[record.Language] = append(s.byLanguage[record.Language], idx)
	return nil
}

// GetLatest returns the newest record for a document.
func (s *MetadataStore) GetLatest(ctx context.Context, documentID string) (*domain.EnrichmentRecord, error) {
	history, err := s.History(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, domain.ErrNotFound
	}
	return &history[0], nil
}

// History returns all records for a document, newest first.
func (s *MetadataStore) History(_ context.Context, documentID string) ([]domain.EnrichmentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collect(s.byDocument[documentID]), nil
}

// QueryByLanguage returns one page of records with the given language.
func (s *MetadataStore) QueryByLanguage(
	_ context.Context,
	language string,
	page domain.Page,
) (domain.RecordPage, error) {
	var after *domain.EnrichmentRecord
	if page.Cursor != "" {
		pos, err := domain.DecodeCursor(page.Cursor)
		if err != nil {
			return domain.RecordPage{}, err
		}
		after = &pos
	}

	s.mu.RLock()
	matches := s.collect(s.byLanguage[language])
	s.mu.RUnlock()

	limit := page.EffectiveLimit()
	var result domain.RecordPage
	for i := range matches {
		if after != nil && !domain.Newer(after, &matches[i]) {
			continue
		}
		if len(result.Records) == limit {
			result.NextCursor = domain.EncodeCursor(&result.Records[limit-1])
			break
		}
		result.Records = append(result.Records, matches[i])
	}
	return result, nil
}

// CountByStatus returns the number of records per status.
func (s *MetadataStore) CountByStatus(_ context.Context) (map[domain.RecordStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[domain.RecordStatus]int)
	for i := range s.records {
		counts[s.records[i].Status]++
	}
	return counts, nil
}

// collect copies the indexed records and sorts them newest first.
// Caller must hold the lock.
func (s *MetadataStore) collect(indexes []int) []domain.EnrichmentRecord {
	out := make([]domain.EnrichmentRecord, 0, len(indexes))
	for _, idx := range indexes {
		out = append(out, cloneRecord(&s.records[idx]))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return domain.Newer(&out[i], &out[j])
	})
	return out
}

// cloneRecord deep-copies the slices and map of a record.
func cloneRecord(r *domain.EnrichmentRecord) domain.EnrichmentRecord {
	c := *r
	if r.Entities != nil {
		c.Entities = append([]domain.Entity(nil), r.Entities...)
	}
	if r.KeyPhrases != nil {
		c.KeyPhrases = append([]domain.KeyPhrase(nil), r.KeyPhrases...)
	}
	if r.StructuredData != nil {
		c.StructuredData = make(map[string]string, len(r.StructuredData))
		for k, v := range r.StructuredData {
			c.StructuredData[k] = v
		}
	}
	return c
}
