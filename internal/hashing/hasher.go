// Package hashing computes content fingerprints for duplicate detection.
// The digest is SHA-256 over the full byte stream; it is used for dedup
// only and is not a security control.
package hashing

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Ensure Hasher implements the interface.
var _ driven.ContentHasher = (*Hasher)(nil)

// DefaultBufferSize is the read buffer used while streaming.
const DefaultBufferSize = 32 * 1024

// Hasher streams a document into a SHA-256 digest without buffering it.
type Hasher struct {
	bufSize int
}

// New creates a hasher with the default buffer size.
func New() *Hasher {
	return &Hasher{bufSize: DefaultBufferSize}
}

// NewWithBufferSize creates a hasher reading bufSize bytes at a time.
func NewWithBufferSize(bufSize int) *Hasher {
	if bufSize <= 0 {
		bufSize = DefaultBufferSize
	}
	return &Hasher{bufSize: bufSize}
}

// Hash consumes r to EOF and returns its fingerprint.
// A stream that yields no bytes returns domain.ErrEmptyInput; a failing
// stream returns an error wrapping domain.ErrSourceUnavailable.
func (h *Hasher) Hash(ctx context.Context, r io.Reader) (domain.Fingerprint, error) {
	var fp domain.Fingerprint
	if r == nil {
		return fp, fmt.Errorf("%w: nil reader", domain.ErrInvalidInput)
	}

	digest := sha256.New()
	buf := make([]byte, h.bufSize)
	n, err := io.CopyBuffer(digest, &ctxReader{ctx: ctx, r: r}, buf)
	if err != nil {
		if ctx.Err() != nil {
			return fp, ctx.Err()
		}
		return fp, fmt.Errorf("%w: reading content: %w", domain.ErrSourceUnavailable, err)
	}
	if n == 0 {
		return fp, domain.ErrEmptyInput
	}

	copy(fp[:], digest.Sum(nil))
	return fp, nil
}

// HashBytes fingerprints an in-memory document.
func HashBytes(b []byte) (domain.Fingerprint, error) {
	return New().Hash(context.Background(), bytes.NewReader(b))
}

// ctxReader stops a copy between reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
