package services

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockEmbeddingService implements driven.EmbeddingService with a
// deterministic bag-of-words hash so related texts have similar vectors.
type mockEmbeddingService struct {
	embedErr error
	batchErr error
	dims     int

	mu    sync.Mutex
	calls int
}

func (m *mockEmbeddingService) vector(text string) []float32 {
	dims := m.Dimensions()
	v := make([]float32, dims)
	for _, tok := range domain.Tokenize(text) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		v[h.Sum32()%uint32(dims)]++
	}
	return v
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(text), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	result := make([][]float32, len(texts))
	for i, t := range texts {
		result[i] = m.vector(t)
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 64
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	response string
	err      error

	// block makes Chat wait for context cancellation.
	block bool

	mu       sync.Mutex
	messages []driven.ChatMessage
	opts     driven.GenerateOptions
}

func (m *mockLLMService) Generate(ctx context.Context, prompt string, opts driven.GenerateOptions) (string, error) {
	return m.Chat(ctx, []driven.ChatMessage{{Role: "user", Content: prompt}}, opts)
}

func (m *mockLLMService) Chat(ctx context.Context, messages []driven.ChatMessage, opts driven.GenerateOptions) (string, error) {
	m.mu.Lock()
	m.messages = messages
	m.opts = opts
	m.mu.Unlock()

	if m.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLMService) lastUserMessage() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.messages) - 1; i >= 0; i-- {
		if m.messages[i].Role == "user" {
			return m.messages[i].Content
		}
	}
	return ""
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return m.err
}

func (m *mockLLMService) Close() error {
	return nil
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
	err     error
}

func (m *mockPromptStore) Load(name string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if p, ok := m.prompts[name]; ok {
		return p, nil
	}
	return driven.DefaultPrompts()[name], nil
}

func (m *mockPromptStore) Reload() {}

// mockSnapshotStore implements driven.SnapshotStore for testing.
type mockSnapshotStore struct {
	mu        sync.Mutex
	snapshots []*domain.IndexSnapshot
	saveErr   error
	latestErr error
	pruned    int
}

func (m *mockSnapshotStore) Save(_ context.Context, s *domain.IndexSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.snapshots = append(m.snapshots, s)
	return nil
}

func (m *mockSnapshotStore) Latest(_ context.Context) (*domain.IndexSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latestErr != nil {
		return nil, m.latestErr
	}
	if len(m.snapshots) == 0 {
		return nil, domain.ErrNotFound
	}
	return m.snapshots[len(m.snapshots)-1], nil
}

func (m *mockSnapshotStore) Prune(_ context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pruned++
	if len(m.snapshots) > keep {
		m.snapshots = m.snapshots[len(m.snapshots)-keep:]
	}
	return nil
}

// mockConfigStore implements driven.ConfigStore in memory.
type mockConfigStore struct {
	mu      sync.RWMutex
	values  map[string]any
	saveErr error
	saves   int
}

func newMockConfigStore() *mockConfigStore {
	return &mockConfigStore{values: make(map[string]any)}
}

func (m *mockConfigStore) Get(key string) (any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *mockConfigStore) GetString(key string) string {
	v, _ := m.Get(key)
	s, _ := v.(string)
	return s
}

func (m *mockConfigStore) GetInt(key string) int {
	v, _ := m.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

func (m *mockConfigStore) GetFloat(key string) float64 {
	v, _ := m.Get(key)
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}

func (m *mockConfigStore) GetBool(key string) bool {
	v, _ := m.Get(key)
	b, _ := v.(bool)
	return b
}

func (m *mockConfigStore) GetStringSlice(key string) []string {
	v, _ := m.Get(key)
	s, _ := v.([]string)
	return s
}

func (m *mockConfigStore) Set(key string, value any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *mockConfigStore) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	return m.saveErr
}

func (m *mockConfigStore) Load() error { return nil }

func (m *mockConfigStore) Path() string { return "memory" }

// Verify interface compliance.
var (
	_ driven.EmbeddingService = (*mockEmbeddingService)(nil)
	_ driven.LLMService       = (*mockLLMService)(nil)
	_ driven.PromptStore      = (*mockPromptStore)(nil)
	_ driven.SnapshotStore    = (*mockSnapshotStore)(nil)
	_ driven.ConfigStore      = (*mockConfigStore)(nil)
)

// --- Fixtures ---

func chunk(source string, n int, text string) domain.Chunk {
	return domain.Chunk{
		ID:       source + "__" + strconv.Itoa(n),
		Text:     text,
		Source:   source,
		Position: n - 1,
	}
}

func mustSnapshot(t *testing.T, chunks ...domain.Chunk) *domain.IndexSnapshot {
	t.Helper()
	s, err := domain.NewIndexSnapshot(domain.SnapshotMeta{ID: "snap-test"}, chunks, nil)
	require.NoError(t, err)
	return s
}
