package ai

import (
	"fmt"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
)

var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// ConfigValidator checks that a provider can serve the role it is configured
// for, then pings it.
type ConfigValidator struct{}

// NewConfigValidator creates a validator.
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// ValidateEmbedding rejects LLM-only providers and pings the rest.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	if config != nil && config.Provider != "" && !config.Provider.SupportsEmbedding() {
		return fmt.Errorf("%w: %s cannot produce embeddings", domain.ErrInvalidInput, config.Provider)
	}
	return ValidateEmbeddingConfig(config)
}

// ValidateLLM rejects embedding-only providers and pings the rest.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	if config != nil && config.Provider != "" && !config.Provider.SupportsLLM() {
		return fmt.Errorf("%w: %s cannot generate text", domain.ErrInvalidInput, config.Provider)
	}
	return ValidateLLMConfig(config)
}
