package ai

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

func TestConfigValidator_NothingConfigured(t *testing.T) {
	v := NewConfigValidator()

	assert.NoError(t, v.ValidateEmbedding(nil))
	assert.NoError(t, v.ValidateEmbedding(&domain.EmbeddingSettings{}))
	assert.NoError(t, v.ValidateLLM(nil))
	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderGroq}))
}

func TestConfigValidator_Hashing(t *testing.T) {
	assert.NoError(t, NewConfigValidator().ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderHashing}))
}

func TestConfigValidator_PingsProvider(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer up.Close()
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	v := NewConfigValidator()

	assert.NoError(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: up.URL}))
	assert.ErrorContains(t, v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderOllama, BaseURL: down.URL}), "status 502")
	assert.ErrorContains(t, v.ValidateEmbedding(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama, BaseURL: down.URL,
	}), "status 502")
}

func TestConfigValidator_RejectsWrongRole(t *testing.T) {
	v := NewConfigValidator()

	err := v.ValidateLLM(&domain.LLMSettings{Provider: domain.AIProviderHashing})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.ErrorContains(t, err, "cannot generate text")

	err = v.ValidateEmbedding(&domain.EmbeddingSettings{Provider: domain.AIProviderAnthropic, APIKey: "k"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
