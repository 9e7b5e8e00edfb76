package extractors

import (
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/extractors/docx"
	"github.com/custodia-labs/enricher/internal/extractors/html"
	"github.com/custodia-labs/enricher/internal/extractors/markdown"
	"github.com/custodia-labs/enricher/internal/extractors/plaintext"
)

// RegisterDefaults registers all built-in format extractors with the registry.
// Call this during application initialisation to enable standard formats.
func RegisterDefaults(r *Registry) {
	r.Register(plaintext.New())
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
}

// NewDefaultRegistry creates a registry over source with every built-in extractor.
func NewDefaultRegistry(source driven.DocumentSource) *Registry {
	r := NewRegistry(source)
	RegisterDefaults(r)
	return r
}
