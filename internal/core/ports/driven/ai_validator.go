package driven

import "github.com/custodia-labs/enricher/internal/core/domain"

// AnalyzerValidator validates analyzer provider configurations.
// Implementations verify connectivity to the underlying LLM service.
type AnalyzerValidator interface {
	// ValidateAnalyzer pings the configured provider.
	// Returns nil for the local provider, which needs no service.
	ValidateAnalyzer(config *domain.AnalyzerSettings) error
}
