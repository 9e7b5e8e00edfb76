package analyzers

import (
	"context"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.LanguageDetector = (*LanguageDetector)(nil)

// minStopwordHits is the evidence needed before a language is reported.
const minStopwordHits = 2

// LanguageDetector scores text against per-language stop-word profiles.
type LanguageDetector struct{}

// NewLanguageDetector creates a stop-word profile language detector.
func NewLanguageDetector() *LanguageDetector {
	return &LanguageDetector{}
}

// DetectLanguage returns the ISO 639-1 code of the best scoring profile,
// or domain.LanguageUnknown when no profile has enough hits.
func (d *LanguageDetector) DetectLanguage(ctx context.Context, text string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	words := tokens(text)
	if len(words) == 0 {
		return domain.LanguageUnknown, nil
	}

	hits := make(map[string]int, len(languageOrder))
	for _, w := range words {
		for _, lang := range languageOrder {
			if _, ok := stopwords[lang][w]; ok {
				hits[lang]++
			}
		}
	}

	best, bestHits := domain.LanguageUnknown, 0
	for _, lang := range languageOrder {
		if hits[lang] > bestHits {
			best, bestHits = lang, hits[lang]
		}
	}
	if bestHits < minStopwordHits {
		return domain.LanguageUnknown, nil
	}
	return best, nil
}
