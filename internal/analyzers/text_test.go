package analyzers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		max      int
		expected string
	}{
		{"shorter than limit", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"cut", "hello world", 5, "hello"},
		{"multibyte kept whole", "héllo wörld", 7, "héllo w"},
		{"emoji", "ab😀cd", 3, "ab😀"},
		{"zero", "hello", 0, ""},
		{"negative", "hello", -1, ""},
		{"empty", "", 3, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Truncate(tt.text, tt.max))
		})
	}
}

func TestSentences(t *testing.T) {
	got := sentences("First one. Second one!\nThird without end")
	assert.Equal(t, []string{"First one.", "Second one!", "Third without end"}, got)
}

func TestTokens(t *testing.T) {
	assert.Equal(t, []string{"don't", "stop", "café"}, tokens("Don't STOP, café!"))
}
