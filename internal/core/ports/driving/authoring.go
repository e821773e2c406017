package driving

import (
	"context"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// AuthoringService exposes the test-authoring operations at the system boundary.
// Transports (CLI, MCP, HTTP) call these and map the domain errors.
type AuthoringService interface {
	// BuildIndex indexes uploaded files.
	// Fails with domain.ErrIndexBuild when there are no files or every file
	// is empty or unsupported.
	BuildIndex(ctx context.Context, files []domain.RawDocument) (*domain.BuildReport, error)

	// GenerateTestCases retrieves context for the prompt and generates
	// grounded test cases. Fails with domain.ErrIndexNotBuilt before the first build.
	GenerateTestCases(ctx context.Context, req domain.GenerateTestCasesRequest) (*domain.GenerateTestCasesResponse, error)

	// GenerateScript synthesizes a Page-Object-Model script for the test cases
	// against the given page. Fails with domain.ErrInvalidInput when the page
	// or the test cases are missing.
	GenerateScript(ctx context.Context, req domain.GenerateScriptRequest) (*domain.GenerateScriptResponse, error)

	// AnalyzePage returns the dependency graph of a page.
	AnalyzePage(html string) *domain.DependencyGraph

	// IndexStatus describes the index lifecycle.
	IndexStatus() domain.IndexStatus
}
