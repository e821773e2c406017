package mcp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// FileInput is one uploaded document.
type FileInput struct {
	Name     string `json:"name" jsonschema:"file name, used as the source document name"`
	Content  string `json:"content" jsonschema:"file content"`
	MIMEType string `json:"mime_type,omitempty" jsonschema:"content type; detected from the name when empty"`
}

// BuildIndexInput is the input schema for the build_index tool.
type BuildIndexInput struct {
	Files []FileInput `json:"files,omitempty" jsonschema:"documents to index"`
	Paths []string    `json:"paths,omitempty" jsonschema:"local files or directories to index"`
}

// BuildIndexOutput is the output schema for the build_index tool.
type BuildIndexOutput struct {
	Status        string           `json:"status"`
	SnapshotID    string           `json:"snapshot_id"`
	ChunksIndexed int              `json:"chunks_indexed"`
	Documents     int              `json:"documents"`
	Warnings      []domain.Warning `json:"warnings,omitempty"`
}

// GenerateTestCasesInput is the input schema for the generate_test_cases tool.
type GenerateTestCasesInput struct {
	Prompt      string `json:"prompt" jsonschema:"what to test, e.g. 'generate 5 test cases for promo codes'"`
	Feature     string `json:"feature,omitempty" jsonschema:"feature under test"`
	HTMLContent string `json:"html_content,omitempty" jsonschema:"HTML of the page under test"`
	TopK        int    `json:"top_k,omitempty" jsonschema:"number of chunks to retrieve (default 10)"`
}

// TestCaseInput is a test case supplied to generate_script.
type TestCaseInput struct {
	ID             string   `json:"id,omitempty"`
	Feature        string   `json:"feature,omitempty"`
	Scenario       string   `json:"scenario"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result,omitempty"`
	Type           string   `json:"type,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	GroundedIn     []string `json:"grounded_in,omitempty"`
	Confidence     string   `json:"confidence,omitempty"`
}

// GenerateScriptInput is the input schema for the generate_script tool.
type GenerateScriptInput struct {
	HTMLContent      string          `json:"html_content" jsonschema:"HTML of the page under test"`
	HTMLFilename     string          `json:"html_filename,omitempty" jsonschema:"page file name the script opens"`
	TestCases        []TestCaseInput `json:"test_cases" jsonschema:"test cases to automate"`
	Framework        string          `json:"framework,omitempty" jsonschema:"pytest or unittest (default pytest)"`
	Browser          string          `json:"browser,omitempty" jsonschema:"chrome, firefox or edge (default chrome)"`
	IncludeKBContext bool            `json:"include_kb_context,omitempty" jsonschema:"list knowledge-base sources in the script header"`
}

// AnalyzePageInput is the input schema for the analyze_page tool.
type AnalyzePageInput struct {
	HTMLContent string `json:"html_content" jsonschema:"HTML of the page to analyze"`
}

// AnalyzePageOutput is the output schema for the analyze_page tool.
type AnalyzePageOutput struct {
	Graph     domain.DependencyGraph `json:"graph"`
	FillOrder []string               `json:"fill_order"`
}

// IndexStatusInput is the (empty) input schema for the index_status tool.
type IndexStatusInput struct{}

// IndexStatusOutput is the output schema for the index_status tool.
type IndexStatusOutput struct {
	SnapshotID string   `json:"snapshot_id,omitempty"`
	State      string   `json:"state,omitempty"`
	ChunkCount int      `json:"chunk_count"`
	Sources    []string `json:"sources,omitempty"`
	BuiltAt    string   `json:"built_at,omitempty"`
	Building   bool     `json:"building"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "build_index",
		Description: "Index specification documents into the knowledge base used to ground test cases",
	}, s.handleBuildIndex)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_test_cases",
		Description: "Generate structured test cases grounded in the indexed documents",
	}, s.handleGenerateTestCases)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "generate_script",
		Description: "Synthesize a Selenium Page-Object-Model script for test cases against an HTML page",
	}, s.handleGenerateScript)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "analyze_page",
		Description: "List the interactive elements of an HTML page and their dependencies",
	}, s.handleAnalyzePage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_status",
		Description: "Describe the active knowledge-base snapshot",
	}, s.handleIndexStatus)
}

// handleBuildIndex handles the build_index tool invocation.
func (s *Server) handleBuildIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input BuildIndexInput,
) (*mcp.CallToolResult, BuildIndexOutput, error) {
	files := make([]domain.RawDocument, 0, len(input.Files))
	for _, f := range input.Files {
		files = append(files, domain.RawDocument{
			URI:      f.Name,
			MIMEType: f.MIMEType,
			Content:  []byte(f.Content),
		})
	}

	if len(input.Paths) > 0 {
		if s.ports.Loader == nil {
			return nil, BuildIndexOutput{}, errors.New("loading local paths is not enabled")
		}
		loaded, err := s.ports.Loader(ctx, input.Paths)
		if err != nil {
			return nil, BuildIndexOutput{}, fmt.Errorf("loading paths: %w", err)
		}
		files = append(files, loaded...)
	}

	report, err := s.ports.Authoring.BuildIndex(ctx, files)
	if err != nil {
		return nil, BuildIndexOutput{}, err
	}

	return nil, BuildIndexOutput{
		Status:        report.Status,
		SnapshotID:    report.SnapshotID,
		ChunksIndexed: report.ChunksIndexed,
		Documents:     report.Documents,
		Warnings:      report.Warnings,
	}, nil
}

// handleGenerateTestCases handles the generate_test_cases tool invocation.
func (s *Server) handleGenerateTestCases(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateTestCasesInput,
) (*mcp.CallToolResult, domain.GenerateTestCasesResponse, error) {
	resp, err := s.ports.Authoring.GenerateTestCases(ctx, domain.GenerateTestCasesRequest{
		Prompt:      input.Prompt,
		Feature:     input.Feature,
		HTMLContent: input.HTMLContent,
		TopK:        input.TopK,
	})
	if err != nil {
		return nil, domain.GenerateTestCasesResponse{}, err
	}
	return nil, *resp, nil
}

// handleGenerateScript handles the generate_script tool invocation.
func (s *Server) handleGenerateScript(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateScriptInput,
) (*mcp.CallToolResult, domain.GenerateScriptResponse, error) {
	cases := make([]domain.TestCase, len(input.TestCases))
	for i, tc := range input.TestCases {
		cases[i] = tc.toDomain(i)
	}

	resp, err := s.ports.Authoring.GenerateScript(ctx, domain.GenerateScriptRequest{
		HTMLContent:      input.HTMLContent,
		HTMLFilename:     input.HTMLFilename,
		TestCases:        cases,
		Framework:        domain.Framework(input.Framework),
		Browser:          domain.Browser(input.Browser),
		IncludeKBContext: input.IncludeKBContext,
	})
	if err != nil {
		return nil, domain.GenerateScriptResponse{}, err
	}
	return nil, *resp, nil
}

// handleAnalyzePage handles the analyze_page tool invocation.
func (s *Server) handleAnalyzePage(
	_ context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzePageInput,
) (*mcp.CallToolResult, AnalyzePageOutput, error) {
	graph := s.ports.Authoring.AnalyzePage(input.HTMLContent)
	if graph == nil {
		graph = &domain.DependencyGraph{}
	}
	return nil, AnalyzePageOutput{Graph: *graph, FillOrder: graph.FillOrder()}, nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(
	_ context.Context,
	_ *mcp.CallToolRequest,
	_ IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	st := s.ports.Authoring.IndexStatus()
	out := IndexStatusOutput{
		SnapshotID: st.SnapshotID,
		State:      string(st.State),
		ChunkCount: st.ChunkCount,
		Sources:    st.Sources,
		Building:   st.Building,
	}
	if !st.BuiltAt.IsZero() {
		out.BuiltAt = st.BuiltAt.Format(time.RFC3339)
	}
	return nil, out, nil
}

func (tc TestCaseInput) toDomain(i int) domain.TestCase {
	id := tc.ID
	if id == "" {
		id = domain.TestCaseID(i + 1)
	}
	confidence := domain.Confidence(tc.Confidence)
	if confidence == "" {
		confidence = domain.ConfidenceNeedsReview
	}
	return domain.TestCase{
		ID:             id,
		Feature:        tc.Feature,
		Scenario:       tc.Scenario,
		Steps:          tc.Steps,
		ExpectedResult: tc.ExpectedResult,
		Type:           domain.TestType(tc.Type),
		Priority:       domain.Priority(tc.Priority),
		GroundedIn:     tc.GroundedIn,
		Confidence:     confidence,
	}
}
