package services

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// mockAIValidator records validation calls.
type mockAIValidator struct {
	embeddingErr error
	llmErr       error
	embedding    *domain.EmbeddingSettings
	llm          *domain.LLMSettings
}

func (m *mockAIValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	m.embedding = config
	return m.embeddingErr
}

func (m *mockAIValidator) ValidateLLM(config *domain.LLMSettings) error {
	m.llm = config
	return m.llmErr
}

func TestSettingsService_Get_Defaults(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	settings, err := svc.Get()

	require.NoError(t, err)
	want := domain.DefaultAppSettings()
	// The fallback shares the primary's pacing.
	want.FallbackLLM.RequestsPerMinute = want.LLM.RequestsPerMinute
	assert.Equal(t, want, *settings)
}

func TestSettingsService_Get_StoredValues(t *testing.T) {
	store := newMockConfigStore()
	require.NoError(t, store.Set("retrieval.top_k", 3))
	require.NoError(t, store.Set("retrieval.dense_weight", 0.7))
	require.NoError(t, store.Set("generation.timeout_seconds", int64(30)))
	require.NoError(t, store.Set("llm.provider", "groq"))
	require.NoError(t, store.Set("llm.api_key", "gsk-test"))
	require.NoError(t, store.Set("embedding.provider", "nonsense"))
	require.NoError(t, store.Set("synthesis.browser", "firefox"))

	settings, err := NewSettingsService(store, nil).Get()

	require.NoError(t, err)
	assert.Equal(t, 3, settings.Retrieval.TopK)
	assert.InDelta(t, 0.7, settings.Retrieval.DenseWeight, 1e-9)
	assert.Equal(t, 30*time.Second, settings.Generation.Timeout)
	assert.Equal(t, domain.AIProviderGroq, settings.LLM.Provider)
	assert.Equal(t, "gsk-test", settings.LLM.APIKey)
	assert.Equal(t, domain.AIProviderHashing, settings.Embedding.Provider)
	assert.Equal(t, domain.BrowserFirefox, settings.Synthesis.Browser)
}

func TestSettingsService_Save_RoundTrip(t *testing.T) {
	store := newMockConfigStore()
	svc := NewSettingsService(store, nil)
	want := domain.DefaultAppSettings()
	want.Retrieval.TopK = 7
	want.Generation.Timeout = 45 * time.Second
	want.Synthesis.Framework = domain.FrameworkUnittest
	want.FallbackLLM = domain.LLMSettings{Provider: domain.AIProviderGroq, Model: "m", APIKey: "k", RequestsPerMinute: 30}

	require.NoError(t, svc.Save(&want))
	got, err := svc.Get()

	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.Equal(t, 1, store.saves)
}

func TestSettingsService_Set(t *testing.T) {
	tests := []struct {
		key   string
		value string
		check func(t *testing.T, s *domain.AppSettings)
	}{
		{"retrieval.top_k", "3", func(t *testing.T, s *domain.AppSettings) { assert.Equal(t, 3, s.Retrieval.TopK) }},
		{"retrieval.sparse_weight", "0.25", func(t *testing.T, s *domain.AppSettings) {
			assert.InDelta(t, 0.25, s.Retrieval.SparseWeight, 1e-9)
		}},
		{"generation.timeout_seconds", "60", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, time.Minute, s.Generation.Timeout)
		}},
		{"synthesis.framework", "Unittest", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, domain.FrameworkUnittest, s.Synthesis.Framework)
		}},
		{"llm.model", " llama3.2 ", func(t *testing.T, s *domain.AppSettings) { assert.Equal(t, "llama3.2", s.LLM.Model) }},
		{"llm.fallback_provider", "anthropic", func(t *testing.T, s *domain.AppSettings) {
			assert.Equal(t, domain.AIProviderAnthropic, s.FallbackLLM.Provider)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			svc := NewSettingsService(newMockConfigStore(), nil)

			require.NoError(t, svc.Set(tt.key, tt.value))

			settings, err := svc.Get()
			require.NoError(t, err)
			tt.check(t, settings)
		})
	}
}

func TestSettingsService_Set_Invalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"retrieval.nonsense", "1"},
		{"retrieval.top_k", "many"},
		{"retrieval.top_k", "0"},
		{"chunking.overlap", "5000"},
		{"generation.temperature", "3"},
		{"synthesis.match_threshold", "1.5"},
		{"synthesis.browser", "safari"},
		{"llm.provider", "skynet"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			store := newMockConfigStore()
			svc := NewSettingsService(store, nil)

			err := svc.Set(tt.key, tt.value)

			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Zero(t, store.saves)
		})
	}
}

func TestSettingsService_Keys(t *testing.T) {
	keys := NewSettingsService(newMockConfigStore(), nil).Keys()

	assert.IsIncreasing(t, keys)
	assert.Contains(t, keys, "retrieval.top_k")
	assert.Contains(t, keys, "synthesis.match_threshold")
	assert.Contains(t, keys, "llm.fallback_api_key")
}

func TestSettingsService_SetEmbeddingProvider(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOllama, "", ""))
	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, "nomic-embed-text", settings.Embedding.Model)
	assert.Equal(t, "http://localhost:11434", settings.Embedding.BaseURL)
	assert.Equal(t, 768, settings.Embedding.Dimensions)

	require.NoError(t, svc.SetEmbeddingProvider(domain.AIProviderOpenAI, "text-embedding-3-large", "sk-x"))
	settings, err = svc.Get()
	require.NoError(t, err)
	assert.Empty(t, settings.Embedding.BaseURL)
	assert.Equal(t, 3072, settings.Embedding.Dimensions)

	assert.ErrorIs(t, svc.SetEmbeddingProvider(domain.AIProviderOpenAI, "", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.SetEmbeddingProvider(domain.AIProviderGroq, "", "k"), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.SetEmbeddingProvider("bogus", "", ""), domain.ErrInvalidInput)
}

func TestSettingsService_SetLLMProvider(t *testing.T) {
	svc := NewSettingsService(newMockConfigStore(), nil)

	require.NoError(t, svc.SetLLMProvider(domain.AIProviderGroq, "", "gsk"))
	settings, err := svc.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.AIProviderGroq, settings.LLM.Provider)
	assert.Equal(t, "llama-3.3-70b-versatile", settings.LLM.Model)
	assert.Equal(t, "gsk", settings.LLM.APIKey)

	assert.ErrorIs(t, svc.SetLLMProvider(domain.AIProviderHashing, "", ""), domain.ErrInvalidInput)
	assert.ErrorIs(t, svc.SetLLMProvider(domain.AIProviderAnthropic, "", ""), domain.ErrInvalidInput)
}

func TestSettingsService_Validate(t *testing.T) {
	store := newMockConfigStore()
	svc := NewSettingsService(store, nil)
	require.NoError(t, svc.Validate())

	require.NoError(t, store.Set("llm.provider", "openai"))
	assert.ErrorIs(t, svc.Validate(), domain.ErrInvalidInput)

	require.NoError(t, store.Set("llm.api_key", "sk"))
	require.NoError(t, svc.Validate())

	require.NoError(t, store.Set("llm.fallback_provider", "groq"))
	assert.ErrorIs(t, svc.Validate(), domain.ErrInvalidInput)
}

func TestSettingsService_ValidateProviders(t *testing.T) {
	assert.NoError(t, NewSettingsService(newMockConfigStore(), nil).ValidateLLMConfig())

	validator := &mockAIValidator{llmErr: errors.New("unreachable")}
	svc := NewSettingsService(newMockConfigStore(), validator)

	assert.ErrorContains(t, svc.ValidateLLMConfig(), "unreachable")
	assert.Equal(t, domain.AIProviderOllama, validator.llm.Provider)
	assert.NoError(t, svc.ValidateEmbeddingConfig())
	assert.Equal(t, domain.AIProviderHashing, validator.embedding.Provider)
}

func TestSettingsService_Save_StoreError(t *testing.T) {
	store := newMockConfigStore()
	store.saveErr = errors.New("read-only")
	svc := NewSettingsService(store, nil)

	assert.ErrorContains(t, svc.Set("retrieval.top_k", "4"), "read-only")
}
