package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driving"
)

type mockAuthoring struct {
	report    *domain.BuildReport
	cases     *domain.GenerateTestCasesResponse
	script    *domain.GenerateScriptResponse
	graph     *domain.DependencyGraph
	status    domain.IndexStatus
	err       error
	built     []domain.RawDocument
	casesReq  domain.GenerateTestCasesRequest
	scriptReq domain.GenerateScriptRequest
}

var _ driving.AuthoringService = (*mockAuthoring)(nil)

func (m *mockAuthoring) BuildIndex(_ context.Context, files []domain.RawDocument) (*domain.BuildReport, error) {
	m.built = files
	return m.report, m.err
}

func (m *mockAuthoring) GenerateTestCases(
	_ context.Context, req domain.GenerateTestCasesRequest,
) (*domain.GenerateTestCasesResponse, error) {
	m.casesReq = req
	return m.cases, m.err
}

func (m *mockAuthoring) GenerateScript(
	_ context.Context, req domain.GenerateScriptRequest,
) (*domain.GenerateScriptResponse, error) {
	m.scriptReq = req
	return m.script, m.err
}

func (m *mockAuthoring) AnalyzePage(_ string) *domain.DependencyGraph { return m.graph }

func (m *mockAuthoring) IndexStatus() domain.IndexStatus { return m.status }

type mockSettings struct {
	settings    domain.AppSettings
	validateErr error
	set         map[string]string
	embedding   []string
	llm         []string
}

var _ driving.SettingsService = (*mockSettings)(nil)

func newMockSettings() *mockSettings {
	return &mockSettings{settings: domain.DefaultAppSettings(), set: map[string]string{}}
}

func (m *mockSettings) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettings) Save(s *domain.AppSettings) error {
	m.settings = *s
	return nil
}

func (m *mockSettings) Set(key, value string) error {
	if key == "bogus" {
		return domain.ErrInvalidInput
	}
	m.set[key] = value
	return nil
}

func (m *mockSettings) Keys() []string {
	return []string{"chunking.size", "retrieval.top_k"}
}

func (m *mockSettings) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.embedding = []string{string(p), model, apiKey}
	return nil
}

func (m *mockSettings) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.llm = []string{string(p), model, apiKey}
	return nil
}

func (m *mockSettings) Validate() error { return m.validateErr }

func (m *mockSettings) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettings) ValidateEmbeddingConfig() error { return nil }

func (m *mockSettings) ValidateLLMConfig() error { return nil }

// execute runs the root command against the given services and returns
// everything written to stdout and stderr.
func execute(t *testing.T, svc *Services, stdin string, args ...string) (string, error) {
	t.Helper()

	original := loaded
	loaded = svc
	t.Cleanup(func() {
		loaded = original
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(bytes.NewBufferString(stdin))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}
