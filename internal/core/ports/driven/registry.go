package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// DuplicateRegistry maps content fingerprints to the first document that
// produced them. It imposes no business rules beyond uniqueness.
type DuplicateRegistry interface {
	// RegisterIfNew atomically inserts a record if none exists for fp.
	// Under concurrent calls with the same fp exactly one caller sees
	// Inserted=true; the rest see the existing record. Storage faults wrap
	// domain.ErrRegistryFault and are distinct from the conflict outcome.
	RegisterIfNew(ctx context.Context, fp domain.Fingerprint, documentID string, ts time.Time) (domain.RegistrationResult, error)

	// RecordRepeat increments Occurrences and updates the latest sighting.
	RecordRepeat(ctx context.Context, fp domain.Fingerprint, documentID string, ts time.Time) error

	// Reclaim atomically re-takes an unfinished claim on fp for its owner.
	// It succeeds only when documentID owns fp, the claim is not completed,
	// and it was released or taken before staleBefore. Concurrent callers
	// for the same claim see at most one true.
	Reclaim(ctx context.Context, fp domain.Fingerprint, documentID string, now, staleBefore time.Time) (bool, error)

	// Release drops documentID's unfinished claim on fp so that a retry
	// can reclaim it at once. Completed, foreign and unknown claims are
	// left untouched.
	Release(ctx context.Context, fp domain.Fingerprint, documentID string) error

	// Complete marks the claim on fp finished; it can never be reclaimed.
	Complete(ctx context.Context, fp domain.Fingerprint) error

	// Lookup returns the record for fp or domain.ErrNotFound.
	Lookup(ctx context.Context, fp domain.Fingerprint) (*domain.DuplicateRecord, error)
}
