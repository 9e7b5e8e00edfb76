package analyzers

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// wordPattern matches words including inner apostrophes ("don't").
var wordPattern = regexp.MustCompile(`\p{L}+(?:['\x{2019}]\p{L}+)*`)

// tokens returns the lower-cased words of text.
func tokens(text string) []string {
	return wordPattern.FindAllString(strings.ToLower(text), -1)
}

// sentences splits text into trimmed, non-empty sentences. A sentence ends at
// a line break or at terminal punctuation followed by whitespace, so
// "example.com" and "4.5" stay intact.
func sentences(text string) []string {
	var out []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	for _, line := range strings.Split(text, "\n") {
		start := 0
		for i := 0; i < len(line); i++ {
			if !isTerminal(line[i]) {
				continue
			}
			j := i
			for j+1 < len(line) && isTerminal(line[j+1]) {
				j++
			}
			if j+1 == len(line) || line[j+1] == ' ' || line[j+1] == '\t' {
				add(line[start : j+1])
				start = j + 1
			}
			i = j
		}
		add(line[start:])
	}
	return out
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// Truncate returns at most maxRunes runes of text.
// It never splits a multi-byte character.
func Truncate(text string, maxRunes int) string {
	return domain.TruncateRunes(text, maxRunes)
}
