package driving

import "github.com/custodia-labs/enricher/internal/core/domain"

// SettingsService manages application settings.
type SettingsService interface {
	// Get retrieves current settings, filling unset values with defaults.
	Get() (*domain.Settings, error)

	// Save persists settings.
	Save(settings *domain.Settings) error

	// SetAnalyzerProvider configures the summary provider.
	SetAnalyzerProvider(provider domain.AnalyzerProvider, model, apiKey string) error

	// Validate checks that the current settings are coherent.
	Validate() error

	// GetDefaults returns default settings.
	GetDefaults() domain.Settings

	// ValidateAnalyzerConfig pings the configured LLM provider.
	ValidateAnalyzerConfig() error
}
