package mcp

import (
	"context"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driving"
)

// mockAuthoringService is a mock implementation of driving.AuthoringService.
type mockAuthoringService struct {
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

func (m *mockAuthoringService) BuildIndex(_ context.Context, files []domain.RawDocument) (*domain.BuildReport, error) {
	m.built = files
	return m.report, m.err
}

func (m *mockAuthoringService) GenerateTestCases(
	_ context.Context, req domain.GenerateTestCasesRequest,
) (*domain.GenerateTestCasesResponse, error) {
	m.casesReq = req
	return m.cases, m.err
}

func (m *mockAuthoringService) GenerateScript(
	_ context.Context, req domain.GenerateScriptRequest,
) (*domain.GenerateScriptResponse, error) {
	m.scriptReq = req
	return m.script, m.err
}

func (m *mockAuthoringService) AnalyzePage(_ string) *domain.DependencyGraph {
	return m.graph
}

func (m *mockAuthoringService) IndexStatus() domain.IndexStatus {
	return m.status
}

// mockIndexService is a mock implementation of driving.IndexService.
type mockIndexService struct {
	snapshot *domain.IndexSnapshot
	err      error
}

func (m *mockIndexService) Build(_ context.Context, _ []domain.RawDocument) (*domain.BuildReport, error) {
	return nil, m.err
}

func (m *mockIndexService) BuildFromChunks(_ context.Context, _ []domain.Chunk) (*domain.BuildReport, error) {
	return nil, m.err
}

func (m *mockIndexService) Active() (*domain.IndexSnapshot, error) {
	if m.snapshot == nil {
		return nil, domain.ErrIndexNotBuilt
	}
	return m.snapshot, m.err
}

func (m *mockIndexService) Restore(_ context.Context) error {
	return m.err
}

func (m *mockIndexService) Status() domain.IndexStatus {
	return domain.IndexStatus{}
}

var (
	_ driving.AuthoringService = (*mockAuthoringService)(nil)
	_ driving.IndexService     = (*mockIndexService)(nil)
)
