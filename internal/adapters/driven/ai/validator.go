package ai

import (
	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AnalyzerValidator = (*ConfigValidator)(nil)

// ConfigValidator validates analyzer provider configurations.
type ConfigValidator struct{}

// NewConfigValidator creates a new analyzer config validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateAnalyzer validates an analyzer configuration by pinging the provider.
func (v *ConfigValidator) ValidateAnalyzer(config *domain.AnalyzerSettings) error {
	return ValidateLLMConfig(config)
}
