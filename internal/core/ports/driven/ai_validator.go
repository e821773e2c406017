package driven

import "github.com/custodia-labs/testforge/internal/core/domain"

// AIConfigValidator checks provider settings before they are relied on.
// An unconfigured provider is not an error.
type AIConfigValidator interface {
	// ValidateEmbedding checks the embedding provider can serve embeddings and is reachable.
	ValidateEmbedding(config *domain.EmbeddingSettings) error

	// ValidateLLM checks the LLM provider can generate text and is reachable.
	ValidateLLM(config *domain.LLMSettings) error
}
