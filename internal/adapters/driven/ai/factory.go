// Package ai assembles the enrichment analyzers from settings.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/enricher/internal/adapters/driven/llm"
	ollamallm "github.com/custodia-labs/enricher/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/enricher/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/enricher/internal/analyzers"
	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// InitResult contains the result of analyzer initialisation.
type InitResult struct {
	Analyzers  driven.AnalyzerSet
	LLMService driven.LLMService // nil when summaries are local.
	Warnings   []string          // Non-fatal issues that caused fallback.
	FellBack   bool              // True if an LLM was configured but local summaries are used.
}

// Close releases all resources held by InitResult.
func (r *InitResult) Close() {
	if r.LLMService != nil {
		r.LLMService.Close()
	}
}

// LocalAnalyzers returns the offline analyzers.
func LocalAnalyzers() driven.AnalyzerSet {
	return driven.AnalyzerSet{
		Language:   analyzers.NewLanguageDetector(),
		Entities:   analyzers.NewEntityExtractor(),
		KeyPhrases: analyzers.NewKeyPhraseExtractor(),
		Summariser: analyzers.NewFrequencySummariser(),
	}
}

// BuildAnalyzers returns the local analyzers, with the summariser backed by
// an LLM when one is configured and reachable. An unusable LLM is reported
// as a warning and local summaries are used instead.
func BuildAnalyzers(settings *domain.AnalyzerSettings, prompts driven.PromptStore) *InitResult {
	result := &InitResult{Analyzers: LocalAnalyzers()}
	if settings == nil || settings.Provider == domain.AnalyzerLocal || settings.Provider == "" {
		return result
	}

	svc, err := CreateAndValidateLLMService(settings)
	if err != nil {
		result.Warnings = append(result.Warnings, err.Error())
		result.FellBack = true
		return result
	}
	if svc == nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%s is not fully configured, using local summaries", settings.Provider.Description()))
		result.FellBack = true
		return result
	}

	summariser := llm.NewSummariser(svc, llm.NewRateLimiter(settings.RequestsPerSecond, 1))
	if prompts != nil {
		summariser.SetPromptStore(prompts)
	}
	result.Analyzers.Summariser = summariser
	result.LLMService = svc
	return result
}

// CreateAndValidateLLMService creates an LLM service and validates connectivity.
// Returns nil if the provider is local or not configured.
func CreateAndValidateLLMService(settings *domain.AnalyzerSettings) (driven.LLMService, error) {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return nil, fmt.Errorf("%w: %w. Run 'enricher settings analyzer' to fix",
			domain.ErrLLMUnavailable, err)
	}
	if svc == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()

	if err := svc.Ping(ctx); err != nil {
		svc.Close()
		return nil, fmt.Errorf("%w: service unreachable (%w). Run 'enricher settings analyzer' to fix",
			domain.ErrLLMUnavailable, err)
	}
	return svc, nil
}

// ValidateLLMConfig validates an analyzer configuration by creating a service and pinging it.
func ValidateLLMConfig(settings *domain.AnalyzerSettings) error {
	svc, err := CreateLLMService(settings)
	if err != nil {
		return err
	}
	if svc == nil {
		return nil
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return svc.Ping(ctx)
}

// CreateLLMService creates the LLM service for the configured provider.
// Returns nil for the local provider or an incomplete configuration.
func CreateLLMService(settings *domain.AnalyzerSettings) (driven.LLMService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AnalyzerLocal:
		return nil, nil

	case domain.AnalyzerOllama:
		return createOllamaLLM(settings)

	case domain.AnalyzerOpenAI:
		return createOpenAILLM(settings)

	default:
		return nil, fmt.Errorf("unsupported analyzer provider: %s", settings.Provider)
	}
}

// createOllamaLLM creates an Ollama LLM service.
func createOllamaLLM(settings *domain.AnalyzerSettings) (driven.LLMService, error) {
	svc, err := ollamallm.NewLLMService(ollamallm.LLMConfig{
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}

// createOpenAILLM creates an OpenAI LLM service.
func createOpenAILLM(settings *domain.AnalyzerSettings) (driven.LLMService, error) {
	svc, err := openaillm.NewLLMService(openaillm.LLMConfig{
		APIKey:  settings.APIKey,
		BaseURL: settings.BaseURL,
		Model:   settings.Model,
		Timeout: settings.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return svc, nil
}
