package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is a local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is the OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderGroq is Groq's OpenAI-compatible cloud API.
	AIProviderGroq AIProvider = "groq"

	// AIProviderAnthropic is the Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"

	// AIProviderGenAI is Google's Gemini API (embeddings only).
	AIProviderGenAI AIProvider = "genai"

	// AIProviderHashing is the built-in feature-hashing embedder (embeddings only).
	AIProviderHashing AIProvider = "hashing"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderGroq, AIProviderAnthropic,
		AIProviderGenAI, AIProviderHashing:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	switch p {
	case AIProviderOpenAI, AIProviderGroq, AIProviderAnthropic, AIProviderGenAI:
		return true
	default:
		return false
	}
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderHashing
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderGroq:
		return "Groq (cloud, OpenAI-compatible)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	case AIProviderGenAI:
		return "Google Gemini (cloud)"
	case AIProviderHashing:
		return "Feature hashing (built-in)"
	default:
		return unknownDescription
	}
}

// ChunkingSettings controls how documents become chunks.
type ChunkingSettings struct {
	// Size is the chunk window in characters.
	Size int

	// Overlap is the number of characters shared by adjacent chunks.
	Overlap int

	// MaxDocumentSize is the largest accepted normalised document in characters.
	MaxDocumentSize int
}

// RetrievalSettings controls hybrid retrieval.
type RetrievalSettings struct {
	TopK         int
	TokenBudget  int
	SparseWeight float64
	DenseWeight  float64
}

// GenerationSettings is the decoding and verification policy.
type GenerationSettings struct {
	Temperature float64
	TopP        float64
	TopK        int
	Seed        int

	// MaxTokens caps the completion length; 0 derives it from the requested count.
	MaxTokens int

	// ContextWindow is the model context size in tokens.
	ContextWindow int

	// Timeout bounds one model invocation.
	Timeout time.Duration

	// GroundingThreshold is the minimum claim/chunk overlap to count as grounded.
	GroundingThreshold float64
}

// SynthesisSettings controls script synthesis.
type SynthesisSettings struct {
	MatchThreshold float64
	Framework      Framework
	Browser        Browser
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// Dimensions overrides the model's vector size (hashing provider).
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint.
	BaseURL string

	// APIKey is the API key (for cloud providers).
	APIKey string

	// RequestsPerMinute paces remote providers; 0 disables pacing.
	RequestsPerMinute int
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() || !l.Provider.SupportsLLM() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// SupportsLLM returns true if the provider can generate text.
func (p AIProvider) SupportsLLM() bool {
	for _, candidate := range AllLLMProviders() {
		if candidate == p {
			return true
		}
	}
	return false
}

// SupportsEmbedding returns true if the provider can produce embeddings.
func (p AIProvider) SupportsEmbedding() bool {
	for _, candidate := range AllEmbeddingProviders() {
		if candidate == p {
			return true
		}
	}
	return false
}

// AppSettings holds all application settings.
type AppSettings struct {
	Chunking   ChunkingSettings
	Retrieval  RetrievalSettings
	Generation GenerationSettings
	Synthesis  SynthesisSettings
	Embedding  EmbeddingSettings
	LLM        LLMSettings

	// FallbackLLM is tried when the primary LLM is unavailable.
	FallbackLLM LLMSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Generation runs against a local Ollama model with Groq left unconfigured
// until an API key is provided. Embeddings default to the built-in hashing
// embedder so dense scoring works offline.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Chunking: ChunkingSettings{
			Size:            1000,
			Overlap:         200,
			MaxDocumentSize: 5_000_000,
		},
		Retrieval: RetrievalSettings{
			TopK:         10,
			TokenBudget:  6000,
			SparseWeight: 0.5,
			DenseWeight:  0.5,
		},
		Generation: GenerationSettings{
			Temperature:        0.2,
			TopP:               0.9,
			TopK:               40,
			Seed:               42,
			ContextWindow:      8192,
			Timeout:            120 * time.Second,
			GroundingThreshold: 0.4,
		},
		Synthesis: SynthesisSettings{
			MatchThreshold: 0.5,
			Framework:      FrameworkPytest,
			Browser:        BrowserChrome,
		},
		Embedding: EmbeddingSettings{
			Provider:   AIProviderHashing,
			Model:      "hashing-v1",
			Dimensions: 256,
		},
		LLM: LLMSettings{
			Provider: AIProviderOllama,
			Model:    "llama3.1:8b",
			BaseURL:  "http://localhost:11434",

			RequestsPerMinute: 30,
		},
		FallbackLLM: LLMSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderHashing,
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderGenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderGroq,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderHashing: "hashing-v1",
		AIProviderOllama:  "nomic-embed-text",
		AIProviderOpenAI:  "text-embedding-3-small",
		AIProviderGenAI:   "gemini-embedding-001",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.1:8b",
		AIProviderGroq:      "llama-3.3-70b-versatile",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		// Gemini models
		"gemini-embedding-001": 768,
	}
}
