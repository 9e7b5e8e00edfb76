package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Ensure DuplicateRegistry implements the interface.
var _ driven.DuplicateRegistry = (*DuplicateRegistry)(nil)

// DuplicateRegistry is an in-memory implementation of driven.DuplicateRegistry.
// The check and insert happen under one lock, which makes RegisterIfNew
// linearizable.
type DuplicateRegistry struct {
	mu      sync.Mutex
	records map[domain.Fingerprint]domain.DuplicateRecord
}

// NewDuplicateRegistry creates a new in-memory duplicate registry.
func NewDuplicateRegistry() *DuplicateRegistry {
	return &DuplicateRegistry{
		records: make(map[domain.Fingerprint]domain.DuplicateRecord),
	}
}

// RegisterIfNew inserts a record for fp unless one already exists.
func (r *DuplicateRegistry) RegisterIfNew(
	_ context.Context,
	fp domain.Fingerprint,
	documentID string,
	ts time.Time,
) (domain.RegistrationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.records[fp]; ok {
		return domain.RegistrationResult{Inserted: false, Existing: &existing}, nil
	}
	r.records[fp] = domain.NewDuplicateRecord(fp, documentID, ts)
	return domain.RegistrationResult{Inserted: true}, nil
}

// RecordRepeat counts another sighting of fp.
func (r *DuplicateRegistry) RecordRepeat(_ context.Context, fp domain.Fingerprint, documentID string, ts time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[fp]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Occurrences++
	rec.LatestDocumentID = documentID
	if ts.After(rec.LastSeen) {
		rec.LastSeen = ts
	}
	r.records[fp] = rec
	return nil
}

// Reclaim re-takes an unfinished claim under the registry lock.
func (r *DuplicateRegistry) Reclaim(
	_ context.Context,
	fp domain.Fingerprint,
	documentID string,
	now, staleBefore time.Time,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[fp]
	if !ok || !rec.Reclaimable(documentID, staleBefore) {
		return false, nil
	}
	rec.ClaimedAt = now
	r.records[fp] = rec
	return true, nil
}

// Release drops the owner's unfinished claim.
func (r *DuplicateRegistry) Release(_ context.Context, fp domain.Fingerprint, documentID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[fp]
	if !ok || rec.Completed || rec.FirstDocumentID != documentID {
		return nil
	}
	rec.ClaimedAt = time.Time{}
	r.records[fp] = rec
	return nil
}

// Complete marks the claim on fp finished.
func (r *DuplicateRegistry) Complete(_ context.Context, fp domain.Fingerprint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[fp]
	if !ok {
		return domain.ErrNotFound
	}
	rec.Completed = true
	r.records[fp] = rec
	return nil
}

// Lookup returns the record for fp.
func (r *DuplicateRegistry) Lookup(_ context.Context, fp domain.Fingerprint) (*domain.DuplicateRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[fp]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &rec, nil
}
