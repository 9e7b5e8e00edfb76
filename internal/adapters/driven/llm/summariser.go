package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/logger"
)

// Verify interface compliance.
var _ driven.Summariser = (*Summariser)(nil)

// DefaultSummaryPrompt is used when no PromptStore is configured.
const DefaultSummaryPrompt = `Analyse the document below and reply with a single JSON object with exactly these keys:
"summary": a concise summary of the document (at most five sentences),
"insights": the most important observations, risks or action items as one paragraph,
"structuredData": an object of key facts (names, dates, amounts, identifiers) with string values.
Reply with JSON only.

Document:
%s`

// DefaultMaxTokens bounds the model's reply.
const DefaultMaxTokens = 800

// Summariser asks an LLM for a summary, insights and structured facts.
type Summariser struct {
	service   driven.LLMService
	limiter   *RateLimiter
	prompts   driven.PromptStore
	maxTokens int
}

// NewSummariser wraps service, pacing calls through limiter (nil disables pacing).
func NewSummariser(service driven.LLMService, limiter *RateLimiter) *Summariser {
	if limiter == nil {
		limiter = NewRateLimiter(0, 1)
	}
	return &Summariser{
		service:   service,
		limiter:   limiter,
		maxTokens: DefaultMaxTokens,
	}
}

// SetPromptStore sets the prompt store for loading customisable prompts.
// If not set, the summariser uses DefaultSummaryPrompt.
func (s *Summariser) SetPromptStore(store driven.PromptStore) {
	s.prompts = store
}

// ModelName returns the underlying model name.
func (s *Summariser) ModelName() string {
	return s.service.ModelName()
}

// Summarise sends text to the model and parses its JSON reply.
func (s *Summariser) Summarise(ctx context.Context, text string) (domain.Summary, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		if ctx.Err() != nil {
			return domain.Summary{}, ctx.Err()
		}
		return domain.Summary{}, fmt.Errorf("%w: %w", domain.ErrRateLimited, err)
	}

	prompt := fmt.Sprintf(s.loadPrompt(), text)
	reply, err := s.service.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   s.maxTokens,
		Temperature: 0.2,
		JSON:        true,
	})
	if err != nil {
		if errors.Is(err, domain.ErrRateLimited) {
			s.limiter.RecordRateLimitError(0)
		}
		return domain.Summary{}, fmt.Errorf("summarise with %s: %w", s.service.ModelName(), err)
	}

	summary, err := ParseSummary(reply)
	if err != nil {
		logger.Debug("unparseable summary reply from %s: %q", s.service.ModelName(), reply)
		return domain.Summary{}, err
	}
	return summary, nil
}

// loadPrompt loads the prompt from the store, falling back to the default if unavailable.
func (s *Summariser) loadPrompt() string {
	if s.prompts == nil {
		return DefaultSummaryPrompt
	}
	prompt, err := s.prompts.Load(driven.PromptEnrichSummary)
	if err != nil || !strings.Contains(prompt, "%s") {
		return DefaultSummaryPrompt
	}
	return prompt
}

// ParseSummary extracts the JSON object from a model reply.
// Code fences and text around the object are ignored. "structured_data"
// is accepted as an alias for "structuredData".
func ParseSummary(reply string) (domain.Summary, error) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return domain.Summary{}, fmt.Errorf("%w: reply contains no JSON object", domain.ErrAnalyzerFailed)
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(reply[start:end+1]), &raw); err != nil {
		return domain.Summary{}, fmt.Errorf("%w: decoding reply: %w", domain.ErrAnalyzerFailed, err)
	}

	summary, ok := raw["summary"]
	if !ok || summary == nil {
		return domain.Summary{}, fmt.Errorf("%w: reply has no summary", domain.ErrAnalyzerFailed)
	}

	structured, _ := raw["structuredData"].(map[string]any)
	if structured == nil {
		structured, _ = raw["structured_data"].(map[string]any)
	}
	if structured == nil {
		structured = map[string]any{}
	}

	insights := raw["insights"]
	if insights == nil {
		insights = ""
	}

	return domain.Summary{
		Summary:        summary,
		Insights:       insights,
		StructuredData: structured,
	}, nil
}
