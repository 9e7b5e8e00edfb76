package domain

import (
	"fmt"
	"time"
)

const unknownDescription = "Unknown"

// StorageBackend selects where registry and metadata records live.
type StorageBackend string

// Available storage backends.
const (
	// StorageMemory keeps everything in process memory.
	StorageMemory StorageBackend = "memory"

	// StorageSQLite persists to a local SQLite database.
	StorageSQLite StorageBackend = "sqlite"
)

// IsValid returns true if the backend is recognised.
func (b StorageBackend) IsValid() bool {
	switch b {
	case StorageMemory, StorageSQLite:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StorageBackend) String() string {
	return string(b)
}

// AnalyzerProvider identifies the service that produces summaries.
type AnalyzerProvider string

// Available analyzer providers.
const (
	// AnalyzerLocal uses the built-in offline heuristics.
	AnalyzerLocal AnalyzerProvider = "local"

	// AnalyzerOllama uses a local Ollama instance for summaries.
	AnalyzerOllama AnalyzerProvider = "ollama"

	// AnalyzerOpenAI uses the OpenAI API for summaries.
	AnalyzerOpenAI AnalyzerProvider = "openai"
)

// IsValid returns true if the provider is recognised.
func (p AnalyzerProvider) IsValid() bool {
	switch p {
	case AnalyzerLocal, AnalyzerOllama, AnalyzerOpenAI:
		return true
	default:
		return false
	}
}

// AllAnalyzerProviders returns every provider in menu order.
func AllAnalyzerProviders() []AnalyzerProvider {
	return []AnalyzerProvider{AnalyzerLocal, AnalyzerOllama, AnalyzerOpenAI}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AnalyzerProvider) RequiresAPIKey() bool {
	return p == AnalyzerOpenAI
}

// String returns the string representation.
func (p AnalyzerProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AnalyzerProvider) Description() string {
	switch p {
	case AnalyzerLocal:
		return "Local (offline heuristics)"
	case AnalyzerOllama:
		return "Ollama (local LLM)"
	case AnalyzerOpenAI:
		return "OpenAI (cloud)"
	default:
		return unknownDescription
	}
}

// Limits bounds analyzer inputs and persisted record sizes.
type Limits struct {
	// LanguageInputChars caps text sent to language detection (L1).
	LanguageInputChars int

	// AnalysisInputChars caps text sent to entity and key-phrase extraction (L2).
	AnalysisInputChars int

	// SummaryInputChars caps text sent to the summariser (L3).
	SummaryInputChars int

	// MaxItems caps the entity and key-phrase lists.
	MaxItems int

	// ConfidencePrecision is the number of decimals kept on confidences.
	ConfidencePrecision int

	// PreviewChars caps the extracted text preview.
	PreviewChars int

	// MaxTextBytes caps the summary and insights fields.
	MaxTextBytes int

	// MaxFieldBytes caps each serialised structured data value.
	MaxFieldBytes int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		LanguageInputChars:  1000,
		AnalysisInputChars:  5000,
		SummaryInputChars:   10000,
		MaxItems:            25,
		ConfidencePrecision: 4,
		PreviewChars:        1000,
		MaxTextBytes:        4000,
		MaxFieldBytes:       1000,
	}
}

// Validate rejects non-positive limits.
func (l Limits) Validate() error {
	checks := map[string]int{
		"language_input_chars": l.LanguageInputChars,
		"analysis_input_chars": l.AnalysisInputChars,
		"summary_input_chars":  l.SummaryInputChars,
		"max_items":            l.MaxItems,
		"preview_chars":        l.PreviewChars,
		"max_text_bytes":       l.MaxTextBytes,
		"max_field_bytes":      l.MaxFieldBytes,
	}
	for name, v := range checks {
		if v <= 0 {
			return fmt.Errorf("%w: limits.%s must be positive", ErrInvalidInput, name)
		}
	}
	if l.ConfidencePrecision < 0 {
		return fmt.Errorf("%w: limits.confidence_precision must not be negative", ErrInvalidInput)
	}
	return nil
}

// RetryPolicy bounds redelivery of retryable pipeline failures.
type RetryPolicy struct {
	// MaxAttempts is the total number of pipeline runs per document.
	MaxAttempts int

	// BaseBackoff is the delay before the second attempt; it doubles each retry.
	BaseBackoff time.Duration

	// MaxBackoff caps the delay between attempts.
	MaxBackoff time.Duration
}

// DefaultRetryPolicy returns three attempts with 500ms doubling backoff.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  10 * time.Second,
	}
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseBackoff <= 0 {
		return 0
	}
	d := p.BaseBackoff
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.MaxBackoff > 0 && d >= p.MaxBackoff {
			return p.MaxBackoff
		}
	}
	if p.MaxBackoff > 0 && d > p.MaxBackoff {
		return p.MaxBackoff
	}
	return d
}

// AnalyzerSettings configures the enrichment analyzers.
type AnalyzerSettings struct {
	// Provider selects the summariser implementation.
	Provider AnalyzerProvider

	// Model is the LLM model name (ignored for local).
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string

	// Timeout bounds each individual analyzer call.
	Timeout time.Duration

	// RequestsPerSecond rate limits LLM calls; zero disables limiting.
	RequestsPerSecond float64
}

// IsConfigured returns true if the provider is usable.
func (a AnalyzerSettings) IsConfigured() bool {
	if !a.Provider.IsValid() {
		return false
	}
	if a.Provider.RequiresAPIKey() && a.APIKey == "" {
		return false
	}
	return true
}

// Settings holds all application settings.
type Settings struct {
	// Storage selects the registry and metadata backend.
	Storage StorageBackend

	// DataDir is where the SQLite database lives.
	DataDir string

	// SourceRoot is the directory whose subdirectories are containers.
	SourceRoot string

	// Concurrency bounds documents processed at once in batch mode.
	Concurrency int

	Analyzers AnalyzerSettings
	Limits    Limits
	Retry     RetryPolicy
}

// DefaultSettings returns settings that work offline out of the box.
func DefaultSettings() Settings {
	return Settings{
		Storage:     StorageSQLite,
		Concurrency: 4,
		Analyzers: AnalyzerSettings{
			Provider: AnalyzerLocal,
			Timeout:  30 * time.Second,
		},
		Limits: DefaultLimits(),
		Retry:  DefaultRetryPolicy(),
	}
}

// Validate checks the settings are coherent.
func (s Settings) Validate() error {
	if !s.Storage.IsValid() {
		return fmt.Errorf("%w: unknown storage backend %q", ErrInvalidInput, s.Storage)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency must be at least 1", ErrInvalidInput)
	}
	if !s.Analyzers.Provider.IsValid() {
		return fmt.Errorf("%w: unknown analyzer provider %q", ErrInvalidInput, s.Analyzers.Provider)
	}
	if s.Analyzers.Timeout <= 0 {
		return fmt.Errorf("%w: analyzer timeout must be positive", ErrInvalidInput)
	}
	if s.Retry.MaxAttempts < 1 {
		return fmt.Errorf("%w: retry.max_attempts must be at least 1", ErrInvalidInput)
	}
	return s.Limits.Validate()
}

// DefaultLLMModels returns default models for each LLM-backed provider.
func DefaultLLMModels() map[AnalyzerProvider]string {
	return map[AnalyzerProvider]string{
		AnalyzerOllama: "llama3.2",
		AnalyzerOpenAI: "gpt-4o-mini",
	}
}
