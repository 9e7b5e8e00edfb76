package analyzers

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.Summariser = (*FrequencySummariser)(nil)

// Defaults for FrequencySummariser.
const (
	DefaultSummarySentences = 3
	DefaultTopTerms         = 5
)

// FrequencySummariser ranks sentences by word frequency (stop words filtered).
// Insights list the most frequent terms and structured data carries counts
// plus any dates and e-mail addresses found.
type FrequencySummariser struct {
	maxSentences int
	topTerms     int
	entities     *EntityExtractor
}

// NewFrequencySummariser creates a frequency-based sentence ranker summariser.
func NewFrequencySummariser() *FrequencySummariser {
	return &FrequencySummariser{
		maxSentences: DefaultSummarySentences,
		topTerms:     DefaultTopTerms,
		entities:     NewEntityExtractor(),
	}
}

// Summarise returns the highest ranked sentences in document order.
func (s *FrequencySummariser) Summarise(ctx context.Context, text string) (domain.Summary, error) {
	if err := ctx.Err(); err != nil {
		return domain.Summary{}, err
	}

	sents := sentences(text)
	words := tokens(text)
	stop := stopwords["en"]

	// Compute word frequencies
	freq := map[string]float64{}
	for _, tok := range words {
		if _, ok := stop[tok]; ok {
			continue
		}
		freq[tok]++
	}
	terms := topTerms(freq, s.topTerms)

	// Normalize frequencies
	maxF := 0.0
	for _, v := range freq {
		maxF = max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	// Score sentences
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sents))
	for i, sent := range sents {
		toks := tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	n := min(s.maxSentences, len(scores))
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	// Keep original order among selected
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, sents[idx])
	}

	structured := map[string]any{
		"sentenceCount": len(sents),
		"wordCount":     len(words),
	}
	if len(terms) > 0 {
		structured["topTerms"] = terms
	}
	if ents, err := s.entities.ExtractEntities(ctx, text, ""); err == nil {
		var dates, emails []string
		for _, e := range ents {
			switch e.Type {
			case EntityDate:
				dates = append(dates, e.Text)
			case EntityEmail:
				emails = append(emails, e.Text)
			}
		}
		if len(dates) > 0 {
			structured["dates"] = dates
		}
		if len(emails) > 0 {
			structured["emails"] = emails
		}
	}

	insights := ""
	if len(terms) > 0 {
		insights = fmt.Sprintf("Most frequent terms: %s.", strings.Join(terms, ", "))
	}

	return domain.Summary{
		Summary:        strings.Join(out, " "),
		Insights:       insights,
		StructuredData: structured,
	}, nil
}

// topTerms returns the n most frequent terms, ties broken alphabetically.
func topTerms(freq map[string]float64, n int) []string {
	terms := make([]string, 0, len(freq))
	for t := range freq {
		terms = append(terms, t)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}
