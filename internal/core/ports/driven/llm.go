// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import "context"

// LLMService provides generative model operations for test-case authoring.
//
// Implementations may include:
//   - Ollama (local models)
//   - Groq and other OpenAI-compatible APIs
//   - OpenAI
//   - Anthropic
//
// Invocations are long-running blocking calls; implementations must honour
// context cancellation and deadlines.
type LLMService interface {
	// Generate produces text completion from a prompt.
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (string, error)

	// Chat conducts a multi-turn conversation.
	Chat(ctx context.Context, messages []ChatMessage, opts GenerateOptions) (string, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// GenerateOptions is the decoding policy for one invocation.
type GenerateOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// TopP is the nucleus sampling mass; 0 leaves the provider default.
	TopP float64

	// TopK limits sampling to the K most likely tokens; 0 leaves the provider default.
	TopK int

	// Seed fixes sampling where the provider supports it; 0 leaves it unset.
	Seed int

	// StopWords are sequences that stop generation when encountered.
	StopWords []string
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}
