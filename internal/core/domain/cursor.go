package domain

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Newer reports whether a sorts before b in newest-first order.
// Equal timestamps are ordered by record ID, which is time-sortable.
func Newer(a, b *EnrichmentRecord) bool {
	if !a.ProcessingTimestamp.Equal(b.ProcessingTimestamp) {
		return a.ProcessingTimestamp.After(b.ProcessingTimestamp)
	}
	return a.ID > b.ID
}

// EncodeCursor builds the opaque cursor pointing after r.
func EncodeCursor(r *EnrichmentRecord) string {
	raw := strconv.FormatInt(r.ProcessingTimestamp.UnixNano(), 10) + "|" + r.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor returns the record position a cursor points after.
// Only ProcessingTimestamp and ID of the result are set.
func DecodeCursor(cursor string) (EnrichmentRecord, error) {
	var pos EnrichmentRecord
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return pos, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	nanos, id, ok := strings.Cut(string(raw), "|")
	if !ok {
		return pos, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return pos, fmt.Errorf("%w: malformed cursor", ErrInvalidInput)
	}
	pos.ProcessingTimestamp = time.Unix(0, n).UTC()
	pos.ID = id
	return pos, nil
}

// DefaultPageLimit is used when a Page has no positive Limit.
const DefaultPageLimit = 20

// EffectiveLimit returns the page limit, falling back to DefaultPageLimit.
func (p Page) EffectiveLimit() int {
	if p.Limit <= 0 {
		return DefaultPageLimit
	}
	return p.Limit
}
