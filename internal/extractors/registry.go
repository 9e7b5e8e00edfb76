package extractors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/logger"
)

// Verify interface compliance.
var _ driven.TextExtractor = (*Registry)(nil)

// DefaultMaxBytes caps how much of a document is read for extraction.
const DefaultMaxBytes int64 = 64 << 20

// Registry opens documents through a DocumentSource and dispatches them
// to the highest-priority format extractor registered for their MIME type.
type Registry struct {
	source   driven.DocumentSource
	maxBytes int64

	mu     sync.RWMutex
	byMIME map[string][]driven.FormatExtractor
}

// NewRegistry creates an empty registry reading from source.
func NewRegistry(source driven.DocumentSource) *Registry {
	return &Registry{
		source:   source,
		maxBytes: DefaultMaxBytes,
		byMIME:   make(map[string][]driven.FormatExtractor),
	}
}

// SetMaxBytes changes the read cap. Non-positive values are ignored.
func (r *Registry) SetMaxBytes(n int64) {
	if n > 0 {
		r.maxBytes = n
	}
}

// Register adds a format extractor for each MIME type it supports.
func (r *Registry) Register(e driven.FormatExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range e.SupportedMIMETypes() {
		mt = normaliseMIME(mt)
		list := append(r.byMIME[mt], e)
		sort.SliceStable(list, func(i, j int) bool { return list[i].Priority() > list[j].Priority() })
		r.byMIME[mt] = list
	}
}

// For returns the preferred extractor for a MIME type.
func (r *Registry) For(mimeType string) (driven.FormatExtractor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.byMIME[normaliseMIME(mimeType)]
	if len(list) == 0 {
		return nil, false
	}
	return list[0], true
}

// MIMETypes returns every registered MIME type, sorted.
func (r *Registry) MIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byMIME))
	for mt := range r.byMIME {
		types = append(types, mt)
	}
	sort.Strings(types)
	return types
}

// Extract returns the plain text of a document.
// Unsupported formats and decoder failures wrap domain.ErrExtractionFailed.
func (r *Registry) Extract(ctx context.Context, ref domain.DocumentRef) (string, error) {
	mimeType, err := r.source.MIMEType(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: resolving type: %w", domain.ErrExtractionFailed, err)
	}

	extractor, ok := r.For(mimeType)
	if !ok {
		return "", fmt.Errorf("%w: %w: %s", domain.ErrExtractionFailed, domain.ErrUnsupportedType, mimeType)
	}

	rc, err := r.source.Open(ctx, ref)
	if err != nil {
		return "", fmt.Errorf("%w: opening document: %w", domain.ErrExtractionFailed, err)
	}
	defer rc.Close()

	content, err := io.ReadAll(io.LimitReader(rc, r.maxBytes))
	if err != nil {
		return "", fmt.Errorf("%w: reading document: %w", domain.ErrExtractionFailed, err)
	}

	text, err := extractor.ExtractText(ctx, content)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %w", domain.ErrExtractionFailed, mimeType, err)
	}

	logger.Debug("extracted %d bytes of text from %s (%s)", len(text), ref, mimeType)
	return strings.ToValidUTF8(text, "\uFFFD"), nil
}

// normaliseMIME lower-cases a MIME type and drops any parameters.
func normaliseMIME(mt string) string {
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = mt[:i]
	}
	return strings.ToLower(strings.TrimSpace(mt))
}
