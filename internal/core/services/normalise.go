package services

import (
	"encoding/json"
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// Normalise copies annotations into record and applies limits.
// fullText is the untruncated extracted text; only its preview is kept.
// Lists are capped, confidences rounded and free-text fields truncated on
// UTF-8 boundaries so every persisted record stays within fixed bounds.
func Normalise(record *domain.EnrichmentRecord, fullText string, ann domain.Annotations, limits domain.Limits) {
	record.Language = ann.Language
	if record.Language == "" {
		record.Language = domain.LanguageUnknown
	}

	record.Entities = normaliseEntities(ann.Entities, limits)
	record.KeyPhrases = normaliseKeyPhrases(ann.KeyPhrases, limits)

	record.ExtractedTextPreview = domain.TruncateRunes(fullText, limits.PreviewChars)
	record.FullTextLength = utf8.RuneCountInString(fullText)

	record.Summary = domain.TruncateBytes(stringify(ann.Summary.Summary), limits.MaxTextBytes)
	record.Insights = domain.TruncateBytes(stringify(ann.Summary.Insights), limits.MaxTextBytes)

	record.StructuredData = make(map[string]string, len(ann.Summary.StructuredData))
	for k, v := range ann.Summary.StructuredData {
		record.StructuredData[k] = domain.TruncateBytes(stringify(v), limits.MaxFieldBytes)
	}
}

func normaliseEntities(in []domain.Entity, limits domain.Limits) []domain.Entity {
	n := min(len(in), limits.MaxItems)
	out := make([]domain.Entity, n)
	for i := range n {
		out[i] = in[i]
		out[i].Confidence = roundTo(in[i].Confidence, limits.ConfidencePrecision)
	}
	return out
}

func normaliseKeyPhrases(in []domain.KeyPhrase, limits domain.Limits) []domain.KeyPhrase {
	n := min(len(in), limits.MaxItems)
	out := make([]domain.KeyPhrase, n)
	for i := range n {
		out[i] = in[i]
		out[i].Confidence = roundTo(in[i].Confidence, limits.ConfidencePrecision)
	}
	return out
}

// roundTo rounds v half away from zero to the given number of decimals.
func roundTo(v float64, decimals int) float64 {
	scale := math.Pow(10, float64(decimals))
	return math.Round(v*scale) / scale
}

// stringify renders strings verbatim and everything else as JSON.
// nil becomes the empty string.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
