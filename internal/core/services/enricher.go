package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/logger"
)

// SummaryUnavailable is the summary recorded when summarisation fails.
const SummaryUnavailable = "Summarization unavailable"

// DefaultAnalyzerTimeout bounds one analyzer call when none is configured.
const DefaultAnalyzerTimeout = 30 * time.Second

// Enricher fans extracted text out to the analyzers and merges their output.
// Analyzer failures never propagate: each one degrades only its own field.
type Enricher struct {
	analyzers driven.AnalyzerSet
	limits    domain.Limits
	timeout   time.Duration
}

// NewEnricher creates an enricher. Any analyzer in set may be nil.
func NewEnricher(set driven.AnalyzerSet, limits domain.Limits, timeout time.Duration) *Enricher {
	if timeout <= 0 {
		timeout = DefaultAnalyzerTimeout
	}
	return &Enricher{analyzers: set, limits: limits, timeout: timeout}
}

// Enrich runs language detection, then entities, key phrases and the
// summary concurrently. The result always has every field populated.
func (e *Enricher) Enrich(ctx context.Context, ref domain.DocumentRef, text string) domain.Annotations {
	ann := domain.Annotations{
		Language:   domain.LanguageUnknown,
		Entities:   []domain.Entity{},
		KeyPhrases: []domain.KeyPhrase{},
		Summary:    emptySummary(),
	}
	if strings.TrimSpace(text) == "" {
		logger.Debug("%s: no text, skipping analyzers", ref)
		return ann
	}

	ann.Language = e.detectLanguage(ctx, ref, text)

	analysisText := domain.TruncateRunes(text, e.limits.AnalysisInputChars)
	summaryText := domain.TruncateRunes(text, e.limits.SummaryInputChars)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		ann.Entities = e.extractEntities(ctx, ref, analysisText, ann.Language)
	}()
	go func() {
		defer wg.Done()
		ann.KeyPhrases = e.extractKeyPhrases(ctx, ref, analysisText, ann.Language)
	}()
	go func() {
		defer wg.Done()
		ann.Summary = e.summarise(ctx, ref, summaryText)
	}()
	wg.Wait()

	return ann
}

func (e *Enricher) detectLanguage(ctx context.Context, ref domain.DocumentRef, text string) string {
	if e.analyzers.Language == nil {
		return domain.LanguageUnknown
	}
	input := domain.TruncateRunes(text, e.limits.LanguageInputChars)
	lang, err := callWithTimeout(ctx, e.timeout, func(ctx context.Context) (string, error) {
		return e.analyzers.Language.DetectLanguage(ctx, input)
	})
	if err != nil {
		degraded(ref, "language", err)
		return domain.LanguageUnknown
	}
	lang = strings.TrimSpace(lang)
	if lang == "" {
		return domain.LanguageUnknown
	}
	return lang
}

func (e *Enricher) extractEntities(ctx context.Context, ref domain.DocumentRef, text, lang string) []domain.Entity {
	if e.analyzers.Entities == nil {
		return []domain.Entity{}
	}
	entities, err := callWithTimeout(ctx, e.timeout, func(ctx context.Context) ([]domain.Entity, error) {
		return e.analyzers.Entities.ExtractEntities(ctx, text, lang)
	})
	if err != nil {
		degraded(ref, "entities", err)
		return []domain.Entity{}
	}
	if entities == nil {
		return []domain.Entity{}
	}
	return entities
}

func (e *Enricher) extractKeyPhrases(ctx context.Context, ref domain.DocumentRef, text, lang string) []domain.KeyPhrase {
	if e.analyzers.KeyPhrases == nil {
		return []domain.KeyPhrase{}
	}
	phrases, err := callWithTimeout(ctx, e.timeout, func(ctx context.Context) ([]domain.KeyPhrase, error) {
		return e.analyzers.KeyPhrases.ExtractKeyPhrases(ctx, text, lang)
	})
	if err != nil {
		degraded(ref, "key phrases", err)
		return []domain.KeyPhrase{}
	}
	if phrases == nil {
		return []domain.KeyPhrase{}
	}
	return phrases
}

func (e *Enricher) summarise(ctx context.Context, ref domain.DocumentRef, text string) domain.Summary {
	if e.analyzers.Summariser == nil {
		return fallbackSummary("no summariser configured")
	}
	summary, err := callWithTimeout(ctx, e.timeout, func(ctx context.Context) (domain.Summary, error) {
		return e.analyzers.Summariser.Summarise(ctx, text)
	})
	if err != nil {
		degraded(ref, "summary", err)
		return fallbackSummary(err.Error())
	}
	if summary.StructuredData == nil {
		summary.StructuredData = map[string]any{}
	}
	return summary
}

func emptySummary() domain.Summary {
	return domain.Summary{Summary: "", Insights: "", StructuredData: map[string]any{}}
}

func fallbackSummary(reason string) domain.Summary {
	return domain.Summary{
		Summary:        SummaryUnavailable,
		Insights:       reason,
		StructuredData: map[string]any{},
	}
}

func degraded(ref domain.DocumentRef, analyzer string, err error) {
	logger.Warn("%s: %s analyzer degraded: %v", ref, analyzer, err)
}

// callWithTimeout runs fn under its own deadline. It returns when the
// deadline passes even if fn ignores its context, and turns a panic in fn
// into an error.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				var zero T
				done <- result{zero, fmt.Errorf("%w: panic: %v", domain.ErrAnalyzerFailed, r)}
			}
		}()
		v, err := fn(ctx)
		done <- result{v, err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("%w: %w", domain.ErrAnalyzerFailed, ctx.Err())
	}
}
