package domain

import "time"

// DuplicateRecord maps a content fingerprint to the first document that
// produced it. At most one exists per fingerprint. FirstDocumentID is set
// once on insert and never changes; Occurrences only grows.
//
// The first document holds a claim on the fingerprint until its PROCESSED
// record is written and the claim is completed. An unfinished claim whose
// holder failed or vanished can be taken back by the same document only.
type DuplicateRecord struct {
	// ContentHash is the fingerprint this record owns.
	ContentHash Fingerprint

	// FirstDocumentID is the document that first produced the hash.
	FirstDocumentID string

	// FirstSeen is when the hash was first registered.
	FirstSeen time.Time

	// Occurrences counts every sighting, including the first.
	Occurrences int

	// LatestDocumentID is the most recent document seen with this hash.
	LatestDocumentID string

	// LastSeen is when the hash was last seen.
	LastSeen time.Time

	// ClaimedAt is when the owner last took the claim; zero once released.
	ClaimedAt time.Time

	// Completed is set once the owner's PROCESSED record is persisted.
	Completed bool
}

// NewDuplicateRecord builds the record written on first registration.
func NewDuplicateRecord(fp Fingerprint, documentID string, ts time.Time) DuplicateRecord {
	return DuplicateRecord{
		ContentHash:      fp,
		FirstDocumentID:  documentID,
		FirstSeen:        ts,
		Occurrences:      1,
		LatestDocumentID: documentID,
		LastSeen:         ts,
		ClaimedAt:        ts,
	}
}

// Reclaimable reports whether documentID may take over this unfinished
// claim: it must be the owner, and the claim must be released or older
// than staleBefore.
func (d *DuplicateRecord) Reclaimable(documentID string, staleBefore time.Time) bool {
	if d.Completed || d.FirstDocumentID != documentID {
		return false
	}
	return d.ClaimedAt.IsZero() || d.ClaimedAt.Before(staleBefore)
}

// RegistrationResult is the outcome of an insert-if-absent registration.
// A conflict is a normal outcome, not an error.
type RegistrationResult struct {
	// Inserted is true when this caller created the record.
	Inserted bool

	// Existing is the record that already owned the fingerprint.
	// Set only when Inserted is false.
	Existing *DuplicateRecord
}
