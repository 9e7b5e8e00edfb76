package analyzers

import (
	"context"
	"sort"
	"strings"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Verify interface compliance.
var _ driven.KeyPhraseExtractor = (*KeyPhraseExtractor)(nil)

// maxPhraseWords bounds candidate length; longer runs are not phrases.
const maxPhraseWords = 4

// KeyPhraseExtractor implements RAKE: candidates are runs of content words
// between stop words and punctuation, scored by word degree over frequency.
type KeyPhraseExtractor struct{}

// NewKeyPhraseExtractor creates a RAKE key phrase extractor.
func NewKeyPhraseExtractor() *KeyPhraseExtractor {
	return &KeyPhraseExtractor{}
}

// ExtractKeyPhrases returns phrases by descending score with confidence
// normalised so the best phrase scores 1.
func (k *KeyPhraseExtractor) ExtractKeyPhrases(
	ctx context.Context,
	text, languageCode string,
) ([]domain.KeyPhrase, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop := stopwordsFor(languageCode)
	candidates := candidatePhrases(text, stop)
	if len(candidates) == 0 {
		return []domain.KeyPhrase{}, nil
	}

	freq := make(map[string]int)
	degree := make(map[string]int)
	for _, words := range candidates {
		for _, w := range words {
			freq[w]++
			degree[w] += len(words)
		}
	}

	scores := make(map[string]float64)
	for _, words := range candidates {
		phrase := strings.Join(words, " ")
		if _, seen := scores[phrase]; seen {
			continue
		}
		var score float64
		for _, w := range words {
			score += float64(degree[w]) / float64(freq[w])
		}
		scores[phrase] = score
	}

	phrases := make([]domain.KeyPhrase, 0, len(scores))
	maxScore := 0.0
	for phrase, score := range scores {
		phrases = append(phrases, domain.KeyPhrase{Text: phrase, Confidence: score})
		maxScore = max(maxScore, score)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Confidence != phrases[j].Confidence {
			return phrases[i].Confidence > phrases[j].Confidence
		}
		return phrases[i].Text < phrases[j].Text
	})
	for i := range phrases {
		phrases[i].Confidence /= maxScore
	}
	return phrases, nil
}

// candidatePhrases splits each sentence on stop words.
// Single-letter words are treated as delimiters.
func candidatePhrases(text string, stop map[string]struct{}) [][]string {
	var out [][]string
	for _, sentence := range sentences(text) {
		for _, clause := range strings.FieldsFunc(sentence, isClauseBreak) {
			var current []string
			flush := func() {
				if len(current) > 0 && len(current) <= maxPhraseWords {
					out = append(out, current)
				}
				current = nil
			}
			for _, w := range tokens(clause) {
				if _, isStop := stop[w]; isStop || len([]rune(w)) < 2 {
					flush()
					continue
				}
				current = append(current, w)
			}
			flush()
		}
	}
	return out
}

func isClauseBreak(r rune) bool {
	switch r {
	case ',', ';', ':', '(', ')', '[', ']', '"', '“', '”', '-', '–', '—':
		return true
	}
	return false
}
