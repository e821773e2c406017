package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
	"github.com/custodia-labs/testforge/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyChunkSize        = "chunking.size"
	keyChunkOverlap     = "chunking.overlap"
	keyMaxDocumentSize  = "chunking.max_document_size"
	keyTopK             = "retrieval.top_k"
	keyTokenBudget      = "retrieval.token_budget"
	keySparseWeight     = "retrieval.sparse_weight"
	keyDenseWeight      = "retrieval.dense_weight"
	keyTemperature      = "generation.temperature"
	keyTopP             = "generation.top_p"
	keyGenTopK          = "generation.top_k"
	keySeed             = "generation.seed"
	keyTimeout          = "generation.timeout_seconds"
	keyGroundingMin     = "generation.grounding_threshold"
	keyContextWindow    = "generation.context_window"
	keyMaxTokens        = "generation.max_tokens"
	keyEmbedProvider    = "embedding.provider"
	keyEmbedModel       = "embedding.model"
	keyEmbedBaseURL     = "embedding.base_url"
	keyEmbedAPIKey      = "embedding.api_key"
	keyEmbedDims        = "embedding.dimensions"
	keyLLMProvider      = "llm.provider"
	keyLLMModel         = "llm.model"
	keyLLMBaseURL       = "llm.base_url"
	keyLLMAPIKey        = "llm.api_key"
	keyLLMRate          = "llm.requests_per_minute"
	keyFallbackProvider = "llm.fallback_provider"
	keyFallbackModel    = "llm.fallback_model"
	keyFallbackBaseURL  = "llm.fallback_base_url"
	keyFallbackAPIKey   = "llm.fallback_api_key"
	keyMatchThreshold   = "synthesis.match_threshold"
	keyFramework        = "synthesis.framework"
	keyBrowser          = "synthesis.browser"
)

const defaultOllamaURL = "http://localhost:11434"

// setter parses a string value into one field of the settings.
type setter func(s *domain.AppSettings, value string) error

// setters lists every recognised key.
var setters = map[string]setter{
	keyChunkSize:        intField(func(s *domain.AppSettings) *int { return &s.Chunking.Size }),
	keyChunkOverlap:     intField(func(s *domain.AppSettings) *int { return &s.Chunking.Overlap }),
	keyMaxDocumentSize:  intField(func(s *domain.AppSettings) *int { return &s.Chunking.MaxDocumentSize }),
	keyTopK:             intField(func(s *domain.AppSettings) *int { return &s.Retrieval.TopK }),
	keyTokenBudget:      intField(func(s *domain.AppSettings) *int { return &s.Retrieval.TokenBudget }),
	keySparseWeight:     floatField(func(s *domain.AppSettings) *float64 { return &s.Retrieval.SparseWeight }),
	keyDenseWeight:      floatField(func(s *domain.AppSettings) *float64 { return &s.Retrieval.DenseWeight }),
	keyTemperature:      floatField(func(s *domain.AppSettings) *float64 { return &s.Generation.Temperature }),
	keyTopP:             floatField(func(s *domain.AppSettings) *float64 { return &s.Generation.TopP }),
	keyGenTopK:          intField(func(s *domain.AppSettings) *int { return &s.Generation.TopK }),
	keySeed:             intField(func(s *domain.AppSettings) *int { return &s.Generation.Seed }),
	keyGroundingMin:     floatField(func(s *domain.AppSettings) *float64 { return &s.Generation.GroundingThreshold }),
	keyContextWindow:    intField(func(s *domain.AppSettings) *int { return &s.Generation.ContextWindow }),
	keyMaxTokens:        intField(func(s *domain.AppSettings) *int { return &s.Generation.MaxTokens }),
	keyEmbedModel:       stringField(func(s *domain.AppSettings) *string { return &s.Embedding.Model }),
	keyEmbedBaseURL:     stringField(func(s *domain.AppSettings) *string { return &s.Embedding.BaseURL }),
	keyEmbedAPIKey:      stringField(func(s *domain.AppSettings) *string { return &s.Embedding.APIKey }),
	keyEmbedDims:        intField(func(s *domain.AppSettings) *int { return &s.Embedding.Dimensions }),
	keyLLMModel:         stringField(func(s *domain.AppSettings) *string { return &s.LLM.Model }),
	keyLLMBaseURL:       stringField(func(s *domain.AppSettings) *string { return &s.LLM.BaseURL }),
	keyLLMAPIKey:        stringField(func(s *domain.AppSettings) *string { return &s.LLM.APIKey }),
	keyLLMRate:          intField(func(s *domain.AppSettings) *int { return &s.LLM.RequestsPerMinute }),
	keyFallbackModel:    stringField(func(s *domain.AppSettings) *string { return &s.FallbackLLM.Model }),
	keyFallbackBaseURL:  stringField(func(s *domain.AppSettings) *string { return &s.FallbackLLM.BaseURL }),
	keyFallbackAPIKey:   stringField(func(s *domain.AppSettings) *string { return &s.FallbackLLM.APIKey }),
	keyMatchThreshold:   floatField(func(s *domain.AppSettings) *float64 { return &s.Synthesis.MatchThreshold }),
	keyEmbedProvider:    providerField(func(s *domain.AppSettings) *domain.AIProvider { return &s.Embedding.Provider }),
	keyLLMProvider:      providerField(func(s *domain.AppSettings) *domain.AIProvider { return &s.LLM.Provider }),
	keyFallbackProvider: providerField(func(s *domain.AppSettings) *domain.AIProvider { return &s.FallbackLLM.Provider }),
	keyTimeout: func(s *domain.AppSettings, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%q is not a whole number of seconds", v)
		}
		s.Generation.Timeout = time.Duration(n) * time.Second
		return nil
	},
	keyFramework: func(s *domain.AppSettings, v string) error {
		s.Synthesis.Framework = domain.Framework(strings.ToLower(strings.TrimSpace(v)))
		return nil
	},
	keyBrowser: func(s *domain.AppSettings, v string) error {
		s.Synthesis.Browser = domain.Browser(strings.ToLower(strings.TrimSpace(v)))
		return nil
	},
}

func intField(field func(*domain.AppSettings) *int) setter {
	return func(s *domain.AppSettings, v string) error {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%q is not an integer", v)
		}
		*field(s) = n
		return nil
	}
}

func floatField(field func(*domain.AppSettings) *float64) setter {
	return func(s *domain.AppSettings, v string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%q is not a number", v)
		}
		*field(s) = f
		return nil
	}
}

func stringField(field func(*domain.AppSettings) *string) setter {
	return func(s *domain.AppSettings, v string) error {
		*field(s) = strings.TrimSpace(v)
		return nil
	}
}

func providerField(field func(*domain.AppSettings) *domain.AIProvider) setter {
	return func(s *domain.AppSettings, v string) error {
		p := domain.AIProvider(strings.ToLower(strings.TrimSpace(v)))
		if p != "" && !p.IsValid() {
			return fmt.Errorf("unknown provider %q", v)
		}
		*field(s) = p
		return nil
	}
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings. Missing or invalid values
// fall back to defaults.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Chunking: domain.ChunkingSettings{
			Size:            s.getInt(keyChunkSize, d.Chunking.Size),
			Overlap:         s.getInt(keyChunkOverlap, d.Chunking.Overlap),
			MaxDocumentSize: s.getInt(keyMaxDocumentSize, d.Chunking.MaxDocumentSize),
		},
		Retrieval: domain.RetrievalSettings{
			TopK:         s.getInt(keyTopK, d.Retrieval.TopK),
			TokenBudget:  s.getInt(keyTokenBudget, d.Retrieval.TokenBudget),
			SparseWeight: s.getFloat(keySparseWeight, d.Retrieval.SparseWeight),
			DenseWeight:  s.getFloat(keyDenseWeight, d.Retrieval.DenseWeight),
		},
		Generation: domain.GenerationSettings{
			Temperature:        s.getFloat(keyTemperature, d.Generation.Temperature),
			TopP:               s.getFloat(keyTopP, d.Generation.TopP),
			TopK:               s.getInt(keyGenTopK, d.Generation.TopK),
			Seed:               s.getInt(keySeed, d.Generation.Seed),
			MaxTokens:          s.getInt(keyMaxTokens, d.Generation.MaxTokens),
			ContextWindow:      s.getInt(keyContextWindow, d.Generation.ContextWindow),
			Timeout:            time.Duration(s.getInt(keyTimeout, int(d.Generation.Timeout/time.Second))) * time.Second,
			GroundingThreshold: s.getFloat(keyGroundingMin, d.Generation.GroundingThreshold),
		},
		Synthesis: domain.SynthesisSettings{
			MatchThreshold: s.getFloat(keyMatchThreshold, d.Synthesis.MatchThreshold),
			Framework:      s.getFramework(d.Synthesis.Framework),
			Browser:        s.getBrowser(d.Synthesis.Browser),
		},
		Embedding: domain.EmbeddingSettings{
			Provider:   s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:      s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:    s.configStore.GetString(keyEmbedBaseURL), // No default - empty is valid for cloud providers
			APIKey:     s.configStore.GetString(keyEmbedAPIKey),
			Dimensions: s.getInt(keyEmbedDims, d.Embedding.Dimensions),
		},
		LLM: domain.LLMSettings{
			Provider:          s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:             s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:           s.getString(keyLLMBaseURL, d.LLM.BaseURL),
			APIKey:            s.configStore.GetString(keyLLMAPIKey),
			RequestsPerMinute: s.getInt(keyLLMRate, d.LLM.RequestsPerMinute),
		},
		FallbackLLM: domain.LLMSettings{
			Provider:          s.getProvider(keyFallbackProvider, d.FallbackLLM.Provider),
			Model:             s.configStore.GetString(keyFallbackModel),
			BaseURL:           s.configStore.GetString(keyFallbackBaseURL),
			APIKey:            s.configStore.GetString(keyFallbackAPIKey),
			RequestsPerMinute: s.getInt(keyLLMRate, d.LLM.RequestsPerMinute),
		},
	}

	return settings, nil
}

// Save persists application settings.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := map[string]any{
		keyChunkSize:        settings.Chunking.Size,
		keyChunkOverlap:     settings.Chunking.Overlap,
		keyMaxDocumentSize:  settings.Chunking.MaxDocumentSize,
		keyTopK:             settings.Retrieval.TopK,
		keyTokenBudget:      settings.Retrieval.TokenBudget,
		keySparseWeight:     settings.Retrieval.SparseWeight,
		keyDenseWeight:      settings.Retrieval.DenseWeight,
		keyTemperature:      settings.Generation.Temperature,
		keyTopP:             settings.Generation.TopP,
		keyGenTopK:          settings.Generation.TopK,
		keySeed:             settings.Generation.Seed,
		keyMaxTokens:        settings.Generation.MaxTokens,
		keyContextWindow:    settings.Generation.ContextWindow,
		keyTimeout:          int(settings.Generation.Timeout / time.Second),
		keyGroundingMin:     settings.Generation.GroundingThreshold,
		keyMatchThreshold:   settings.Synthesis.MatchThreshold,
		keyFramework:        string(settings.Synthesis.Framework),
		keyBrowser:          string(settings.Synthesis.Browser),
		keyEmbedProvider:    settings.Embedding.Provider.String(),
		keyEmbedModel:       settings.Embedding.Model,
		keyEmbedBaseURL:     settings.Embedding.BaseURL,
		keyEmbedAPIKey:      settings.Embedding.APIKey,
		keyEmbedDims:        settings.Embedding.Dimensions,
		keyLLMProvider:      settings.LLM.Provider.String(),
		keyLLMModel:         settings.LLM.Model,
		keyLLMBaseURL:       settings.LLM.BaseURL,
		keyLLMAPIKey:        settings.LLM.APIKey,
		keyLLMRate:          settings.LLM.RequestsPerMinute,
		keyFallbackProvider: settings.FallbackLLM.Provider.String(),
		keyFallbackModel:    settings.FallbackLLM.Model,
		keyFallbackBaseURL:  settings.FallbackLLM.BaseURL,
		keyFallbackAPIKey:   settings.FallbackLLM.APIKey,
	}

	for _, key := range sortedKeys(values) {
		if err := s.configStore.Set(key, values[key]); err != nil {
			return fmt.Errorf("set %s: %w", key, err)
		}
	}

	return s.configStore.Save()
}

// Set updates a single setting by its config key. The resulting settings
// must pass validation, otherwise nothing is stored.
func (s *SettingsService) Set(key, value string) error {
	apply, ok := setters[key]
	if !ok {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := apply(settings, value); err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if err := checkRanges(settings); err != nil {
		return err
	}

	return s.Save(settings)
}

// Keys returns the recognised config keys, sorted.
func (s *SettingsService) Keys() []string {
	keys := make([]string, 0, len(setters))
	for k := range setters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("%w: invalid embedding provider: %s", domain.ErrInvalidInput, provider)
	}
	if !provider.SupportsEmbedding() {
		return fmt.Errorf("%w: provider %s does not support embeddings", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])

	// Ollama needs a base URL; cloud providers use their own endpoint.
	if provider == domain.AIProviderOllama {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	if d, ok := domain.EmbeddingDimensions()[settings.Embedding.Model]; ok {
		settings.Embedding.Dimensions = d
	}

	return s.Save(settings)
}

// SetLLMProvider configures the primary LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() || !provider.SupportsLLM() {
		return fmt.Errorf("%w: invalid LLM provider: %s", domain.ErrInvalidInput, provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("%w: API key required for %s", domain.ErrInvalidInput, provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

// Validate checks the settings are internally consistent and that the
// configured providers have what they need.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}
	if err := checkRanges(settings); err != nil {
		return err
	}
	if !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %q is not configured", domain.ErrInvalidInput, settings.LLM.Provider)
	}
	if settings.Embedding.Provider != "" && !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrInvalidInput, settings.Embedding.Provider)
	}
	if settings.FallbackLLM.Provider != "" && !settings.FallbackLLM.IsConfigured() {
		return fmt.Errorf("%w: fallback LLM provider %q is not configured", domain.ErrInvalidInput, settings.FallbackLLM.Provider)
	}
	return nil
}

// checkRanges validates numeric bounds and enumerations.
func checkRanges(s *domain.AppSettings) error {
	var problems []string
	check := func(ok bool, format string, args ...any) {
		if !ok {
			problems = append(problems, fmt.Sprintf(format, args...))
		}
	}

	check(s.Chunking.Size > 0, "chunking.size must be positive")
	check(s.Chunking.Overlap >= 0 && s.Chunking.Overlap < s.Chunking.Size,
		"chunking.overlap must be between 0 and chunking.size")
	check(s.Chunking.MaxDocumentSize > 0, "chunking.max_document_size must be positive")
	check(s.Retrieval.TopK > 0, "retrieval.top_k must be positive")
	check(s.Retrieval.TokenBudget > 0, "retrieval.token_budget must be positive")
	check(s.Retrieval.SparseWeight >= 0 && s.Retrieval.DenseWeight >= 0, "retrieval weights must not be negative")
	check(s.Generation.Temperature >= 0 && s.Generation.Temperature <= 2, "generation.temperature must be between 0 and 2")
	check(s.Generation.TopP >= 0 && s.Generation.TopP <= 1, "generation.top_p must be between 0 and 1")
	check(s.Generation.MaxTokens >= 0, "generation.max_tokens must not be negative")
	check(s.Generation.ContextWindow > 0, "generation.context_window must be positive")
	check(s.Generation.Timeout > 0, "generation.timeout_seconds must be positive")
	check(s.Generation.GroundingThreshold >= 0 && s.Generation.GroundingThreshold <= 1,
		"generation.grounding_threshold must be between 0 and 1")
	check(s.Synthesis.MatchThreshold >= 0 && s.Synthesis.MatchThreshold < 1,
		"synthesis.match_threshold must be between 0 and 1")
	check(s.Synthesis.Framework.IsValid(), "synthesis.framework %q is not supported", s.Synthesis.Framework)
	check(s.Synthesis.Browser.IsValid(), "synthesis.browser %q is not supported", s.Synthesis.Browser)
	check(s.LLM.RequestsPerMinute >= 0, "llm.requests_per_minute must not be negative")
	check(s.Embedding.Dimensions >= 0, "embedding.dimensions must not be negative")

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(problems, "; "))
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getFloat(key string, defaultVal float64) float64 {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetFloat(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getFramework(defaultVal domain.Framework) domain.Framework {
	f := domain.Framework(s.configStore.GetString(keyFramework))
	if !f.IsValid() {
		return defaultVal
	}
	return f
}

func (s *SettingsService) getBrowser(defaultVal domain.Browser) domain.Browser {
	b := domain.Browser(s.configStore.GetString(keyBrowser))
	if !b.IsValid() {
		return defaultVal
	}
	return b
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
