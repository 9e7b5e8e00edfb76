package services

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// RecordIDs generates time-sortable enrichment record IDs.
// IDs minted within the same millisecond are strictly increasing.
type RecordIDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewRecordIDs creates a generator seeded from crypto/rand.
func NewRecordIDs() *RecordIDs {
	return &RecordIDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// New returns a ULID whose timestamp is t.
func (g *RecordIDs) New(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
