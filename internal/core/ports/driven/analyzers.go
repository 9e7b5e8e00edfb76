package driven

import (
	"context"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// Callers truncate text to each analyzer's input limit before calling.
// Every analyzer may fail independently; failures are degraded by the caller.

// LanguageDetector returns the dominant language of text as an ISO code.
type LanguageDetector interface {
	DetectLanguage(ctx context.Context, text string) (string, error)
}

// EntityExtractor finds named entities. languageCode is a hint and may be "unknown".
type EntityExtractor interface {
	ExtractEntities(ctx context.Context, text, languageCode string) ([]domain.Entity, error)
}

// KeyPhraseExtractor finds salient phrases. languageCode is a hint and may be "unknown".
type KeyPhraseExtractor interface {
	ExtractKeyPhrases(ctx context.Context, text, languageCode string) ([]domain.KeyPhrase, error)
}

// Summariser produces a summary, insights and structured facts.
type Summariser interface {
	Summarise(ctx context.Context, text string) (domain.Summary, error)
}

// AnalyzerSet groups the analyzers used by the enrichment step.
// Any member may be nil.
type AnalyzerSet struct {
	Language   LanguageDetector
	Entities   EntityExtractor
	KeyPhrases KeyPhraseExtractor
	Summariser Summariser
}
