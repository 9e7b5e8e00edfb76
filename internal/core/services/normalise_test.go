package services

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

func TestNormalise_CapsListsAndRoundsConfidences(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.MaxItems = 3

	var entities []domain.Entity
	var phrases []domain.KeyPhrase
	for i := 0; i < 10; i++ {
		entities = append(entities, domain.Entity{Text: fmt.Sprintf("E%d", i), Type: "OTHER", Confidence: 0.123456})
		phrases = append(phrases, domain.KeyPhrase{Text: fmt.Sprintf("p%d", i), Confidence: 0.98766})
	}

	rec := &domain.EnrichmentRecord{}
	Normalise(rec, "text", domain.Annotations{Language: "en", Entities: entities, KeyPhrases: phrases}, limits)

	require.Len(t, rec.Entities, 3)
	require.Len(t, rec.KeyPhrases, 3)
	assert.Equal(t, "E0", rec.Entities[0].Text)
	assert.Equal(t, 0.1235, rec.Entities[0].Confidence)
	assert.Equal(t, 0.9877, rec.KeyPhrases[0].Confidence)

	// The input slices are not modified.
	assert.Equal(t, 0.123456, entities[0].Confidence)
}

func TestNormalise_PreviewAndLength(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.PreviewChars = 5

	rec := &domain.EnrichmentRecord{}
	Normalise(rec, "naïve café au lait", domain.Annotations{}, limits)

	assert.Equal(t, "naïve", rec.ExtractedTextPreview)
	assert.Equal(t, 18, rec.FullTextLength)
	assert.Equal(t, domain.LanguageUnknown, rec.Language)
	assert.NotNil(t, rec.Entities)
	assert.NotNil(t, rec.KeyPhrases)
	assert.NotNil(t, rec.StructuredData)
}

func TestNormalise_StringifiesSummaryFields(t *testing.T) {
	ann := domain.Annotations{Summary: domain.Summary{
		Summary:  []any{"point one", "point two"},
		Insights: map[string]any{"risk": "low"},
		StructuredData: map[string]any{
			"title":  "Q3 report",
			"pages":  12,
			"tags":   []string{"finance", "q3"},
			"signed": true,
			"empty":  nil,
		},
	}}

	rec := &domain.EnrichmentRecord{}
	Normalise(rec, "", ann, domain.DefaultLimits())

	assert.Equal(t, `["point one","point two"]`, rec.Summary)
	assert.Equal(t, `{"risk":"low"}`, rec.Insights)
	assert.Equal(t, map[string]string{
		"title":  "Q3 report",
		"pages":  "12",
		"tags":   `["finance","q3"]`,
		"signed": "true",
		"empty":  "",
	}, rec.StructuredData)
}

func TestNormalise_TruncatesTextFieldsOnRuneBoundaries(t *testing.T) {
	limits := domain.DefaultLimits()
	limits.MaxTextBytes = 7
	limits.MaxFieldBytes = 3

	ann := domain.Annotations{Summary: domain.Summary{
		Summary:        strings.Repeat("é", 10),
		Insights:       "abcdefghij",
		StructuredData: map[string]any{"k": "€uro"},
	}}

	rec := &domain.EnrichmentRecord{}
	Normalise(rec, "", ann, limits)

	assert.Equal(t, "ééé", rec.Summary)
	assert.Equal(t, "abcdefg", rec.Insights)
	assert.Equal(t, "€", rec.StructuredData["k"])
	assert.True(t, utf8.ValidString(rec.Summary))
}

func TestStringify(t *testing.T) {
	tests := []struct {
		name     string
		in       any
		expected string
	}{
		{"nil", nil, ""},
		{"string", "plain", "plain"},
		{"int", 3, "3"},
		{"float", 2.5, "2.5"},
		{"stringer", domain.StatusProcessed, "PROCESSED"},
		{"map", map[string]int{"a": 1}, `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, stringify(tt.in))
		})
	}
}
