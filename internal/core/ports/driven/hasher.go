package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// ContentHasher computes the content fingerprint of a byte stream.
// Output must not depend on how the stream is chunked.
type ContentHasher interface {
	// Hash consumes r to EOF. Zero bytes yields domain.ErrEmptyInput.
	Hash(ctx context.Context, r io.Reader) (domain.Fingerprint, error)
}
