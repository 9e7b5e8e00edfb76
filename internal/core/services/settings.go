package services

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyStorageBackend    = "storage.backend"
	keyStorageDataDir    = "storage.data_dir"
	keySourceRoot        = "source.root"
	keyConcurrency       = "pipeline.concurrency"
	keyAnalyzerProvider  = "analyzers.provider"
	keyAnalyzerModel     = "analyzers.model"
	keyAnalyzerBaseURL   = "analyzers.base_url"
	keyAnalyzerAPIKey    = "analyzers.api_key"
	keyAnalyzerTimeout   = "analyzers.timeout"
	keyAnalyzerRPS       = "analyzers.requests_per_second"
	keyLimitLanguage     = "limits.language_input_chars"
	keyLimitAnalysis     = "limits.analysis_input_chars"
	keyLimitSummary      = "limits.summary_input_chars"
	keyLimitMaxItems     = "limits.max_items"
	keyLimitPrecision    = "limits.confidence_precision"
	keyLimitPreview      = "limits.preview_chars"
	keyLimitMaxText      = "limits.max_text_bytes"
	keyLimitMaxField     = "limits.max_field_bytes"
	keyRetryMaxAttempts  = "retry.max_attempts"
	keyRetryBaseBackoff  = "retry.base_backoff"
	keyRetryMaxBackoff   = "retry.max_backoff"
	envOpenAIAPIKey      = "OPENAI_API_KEY"
	defaultOllamaBaseURL = "http://localhost:11434"
)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	validator   driven.AnalyzerValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service. validator may be nil.
func NewSettingsService(configStore driven.ConfigStore, validator driven.AnalyzerValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		validator:   validator,
		getenv:      os.Getenv,
	}
}

// LoadSettings reads and validates settings from a config store.
func LoadSettings(configStore driven.ConfigStore) (domain.Settings, error) {
	svc := NewSettingsService(configStore, nil)
	settings, err := svc.Get()
	if err != nil {
		return domain.Settings{}, err
	}
	if err := settings.Validate(); err != nil {
		return domain.Settings{}, err
	}
	return *settings, nil
}

// Get retrieves current settings. Invalid values fall back to defaults.
func (s *SettingsService) Get() (*domain.Settings, error) {
	defaults := domain.DefaultSettings()

	settings := &domain.Settings{
		Storage:     s.getStorage(defaults.Storage),
		DataDir:     s.configStore.GetString(keyStorageDataDir),
		SourceRoot:  s.configStore.GetString(keySourceRoot),
		Concurrency: s.getInt(keyConcurrency, defaults.Concurrency),
		Analyzers: domain.AnalyzerSettings{
			Provider:          s.getProvider(defaults.Analyzers.Provider),
			Model:             s.configStore.GetString(keyAnalyzerModel),
			BaseURL:           s.configStore.GetString(keyAnalyzerBaseURL),
			APIKey:            s.configStore.GetString(keyAnalyzerAPIKey),
			RequestsPerSecond: s.configStore.GetFloat(keyAnalyzerRPS),
		},
		Limits: domain.Limits{
			LanguageInputChars:  s.getInt(keyLimitLanguage, defaults.Limits.LanguageInputChars),
			AnalysisInputChars:  s.getInt(keyLimitAnalysis, defaults.Limits.AnalysisInputChars),
			SummaryInputChars:   s.getInt(keyLimitSummary, defaults.Limits.SummaryInputChars),
			MaxItems:            s.getInt(keyLimitMaxItems, defaults.Limits.MaxItems),
			ConfidencePrecision: s.getInt(keyLimitPrecision, defaults.Limits.ConfidencePrecision),
			PreviewChars:        s.getInt(keyLimitPreview, defaults.Limits.PreviewChars),
			MaxTextBytes:        s.getInt(keyLimitMaxText, defaults.Limits.MaxTextBytes),
			MaxFieldBytes:       s.getInt(keyLimitMaxField, defaults.Limits.MaxFieldBytes),
		},
		Retry: domain.RetryPolicy{
			MaxAttempts: s.getInt(keyRetryMaxAttempts, defaults.Retry.MaxAttempts),
		},
	}

	var err error
	if settings.Analyzers.Timeout, err = s.getDuration(keyAnalyzerTimeout, defaults.Analyzers.Timeout); err != nil {
		return nil, err
	}
	if settings.Retry.BaseBackoff, err = s.getDuration(keyRetryBaseBackoff, defaults.Retry.BaseBackoff); err != nil {
		return nil, err
	}
	if settings.Retry.MaxBackoff, err = s.getDuration(keyRetryMaxBackoff, defaults.Retry.MaxBackoff); err != nil {
		return nil, err
	}

	if settings.Analyzers.Model == "" {
		settings.Analyzers.Model = domain.DefaultLLMModels()[settings.Analyzers.Provider]
	}
	if settings.Analyzers.Provider == domain.AnalyzerOllama && settings.Analyzers.BaseURL == "" {
		settings.Analyzers.BaseURL = defaultOllamaBaseURL
	}
	if settings.Analyzers.Provider == domain.AnalyzerOpenAI && settings.Analyzers.APIKey == "" {
		settings.Analyzers.APIKey = s.getenv(envOpenAIAPIKey)
	}

	return settings, nil
}

// Save persists settings. An empty API key is not written so that keys
// supplied through the environment never land in the config file.
func (s *SettingsService) Save(settings *domain.Settings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyStorageBackend, settings.Storage.String()},
		{keyStorageDataDir, settings.DataDir},
		{keySourceRoot, settings.SourceRoot},
		{keyConcurrency, settings.Concurrency},
		{keyAnalyzerProvider, settings.Analyzers.Provider.String()},
		{keyAnalyzerModel, settings.Analyzers.Model},
		{keyAnalyzerBaseURL, settings.Analyzers.BaseURL},
		{keyAnalyzerTimeout, settings.Analyzers.Timeout.String()},
		{keyAnalyzerRPS, settings.Analyzers.RequestsPerSecond},
		{keyLimitLanguage, settings.Limits.LanguageInputChars},
		{keyLimitAnalysis, settings.Limits.AnalysisInputChars},
		{keyLimitSummary, settings.Limits.SummaryInputChars},
		{keyLimitMaxItems, settings.Limits.MaxItems},
		{keyLimitPrecision, settings.Limits.ConfidencePrecision},
		{keyLimitPreview, settings.Limits.PreviewChars},
		{keyLimitMaxText, settings.Limits.MaxTextBytes},
		{keyLimitMaxField, settings.Limits.MaxFieldBytes},
		{keyRetryMaxAttempts, settings.Retry.MaxAttempts},
		{keyRetryBaseBackoff, settings.Retry.BaseBackoff.String()},
		{keyRetryMaxBackoff, settings.Retry.MaxBackoff.String()},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}
	if settings.Analyzers.APIKey != "" && settings.Analyzers.APIKey != s.getenv(envOpenAIAPIKey) {
		if err := s.configStore.Set(keyAnalyzerAPIKey, settings.Analyzers.APIKey); err != nil {
			return fmt.Errorf("save %s: %w", keyAnalyzerAPIKey, err)
		}
	}
	return nil
}

// SetAnalyzerProvider configures the summary provider.
func (s *SettingsService) SetAnalyzerProvider(provider domain.AnalyzerProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid analyzer provider: %s", domain.ErrInvalidInput, provider)
	}
	if apiKey == "" && provider.RequiresAPIKey() {
		apiKey = s.getenv(envOpenAIAPIKey)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Analyzers.Provider = provider

	// Set model - use provided or default
	if model != "" {
		settings.Analyzers.Model = model
	} else {
		settings.Analyzers.Model = domain.DefaultLLMModels()[provider]
	}

	switch provider {
	case domain.AnalyzerOllama:
		if settings.Analyzers.BaseURL == "" {
			settings.Analyzers.BaseURL = defaultOllamaBaseURL
		}
	default:
		settings.Analyzers.BaseURL = ""
	}

	settings.Analyzers.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks that the current settings are coherent.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}
	if !settings.Analyzers.IsConfigured() {
		return fmt.Errorf("%w: analyzer provider %q is not fully configured",
			domain.ErrInvalidInput, settings.Analyzers.Provider.Description())
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

// ValidateAnalyzerConfig pings the configured LLM provider.
func (s *SettingsService) ValidateAnalyzerConfig() error {
	if s.validator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.validator.ValidateAnalyzer(&settings.Analyzers)
}

func (s *SettingsService) getStorage(defaultVal domain.StorageBackend) domain.StorageBackend {
	backend := domain.StorageBackend(strings.ToLower(s.configStore.GetString(keyStorageBackend)))
	if backend.IsValid() {
		return backend
	}
	return defaultVal
}

func (s *SettingsService) getProvider(defaultVal domain.AnalyzerProvider) domain.AnalyzerProvider {
	provider := domain.AnalyzerProvider(strings.ToLower(s.configStore.GetString(keyAnalyzerProvider)))
	if provider.IsValid() {
		return provider
	}
	return defaultVal
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, ok := s.configStore.Get(key); !ok {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

// getDuration accepts Go duration strings ("500ms") or whole seconds.
func (s *SettingsService) getDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	raw, ok := s.configStore.Get(key)
	if !ok {
		return defaultVal, nil
	}
	if str, isString := raw.(string); isString {
		if str == "" {
			return defaultVal, nil
		}
		d, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
		}
		return d, nil
	}
	return time.Duration(s.configStore.GetInt(key)) * time.Second, nil
}
