package driven

import (
	"context"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// TextExtractor pulls raw text out of a stored document.
// A document with no extractable text yields "" and a nil error.
// Hard failures wrap domain.ErrExtractionFailed.
type TextExtractor interface {
	Extract(ctx context.Context, ref domain.DocumentRef) (string, error)
}

// FormatExtractor decodes one family of document formats.
type FormatExtractor interface {
	// SupportedMIMETypes returns the MIME types this extractor handles.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Format-specific extractors should return 50-89.
	// Fallback extractors should return 1-9.
	Priority() int

	// ExtractText decodes content into plain text.
	ExtractText(ctx context.Context, content []byte) (string, error)
}
