package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/ports/driving"
	"github.com/custodia-labs/testforge/internal/logger"
)

// Verify interface compliance.
var _ driving.AuthoringService = (*AuthoringService)(nil)

// AuthoringService composes indexing, retrieval, generation, page analysis
// and script synthesis behind the boundary operations.
type AuthoringService struct {
	index     driving.IndexService
	retriever *Retriever
	generator *GenerationService
	analyzer  *StructureAnalyzer
	synth     *ScriptSynthesizer
	retrieval domain.RetrievalSettings
	synthesis domain.SynthesisSettings
}

// NewAuthoringService creates the authoring service.
func NewAuthoringService(
	index driving.IndexService,
	retriever *Retriever,
	generator *GenerationService,
	settings domain.AppSettings,
) *AuthoringService {
	return &AuthoringService{
		index:     index,
		retriever: retriever,
		generator: generator,
		analyzer:  NewStructureAnalyzer(),
		synth:     NewScriptSynthesizer(settings.Synthesis.MatchThreshold),
		retrieval: settings.Retrieval,
		synthesis: settings.Synthesis,
	}
}

// BuildIndex indexes uploaded files.
func (a *AuthoringService) BuildIndex(ctx context.Context, files []domain.RawDocument) (*domain.BuildReport, error) {
	return a.index.Build(ctx, files)
}

// GenerateTestCases retrieves context for the prompt and generates test cases.
func (a *AuthoringService) GenerateTestCases(
	ctx context.Context, req domain.GenerateTestCasesRequest,
) (*domain.GenerateTestCasesResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, fmt.Errorf("%w: prompt is required", domain.ErrInvalidInput)
	}
	snapshot, err := a.index.Active()
	if err != nil {
		return nil, err
	}

	opts := domain.RetrievalOptions{
		TopK:         a.retrieval.TopK,
		TokenBudget:  a.retrieval.TokenBudget,
		SparseWeight: a.retrieval.SparseWeight,
		DenseWeight:  a.retrieval.DenseWeight,
	}
	if req.TopK > 0 {
		opts.TopK = req.TopK
	}

	query := req.Prompt
	if f := strings.TrimSpace(req.Feature); f != "" {
		query = f + " " + query
	}
	retrieved, err := a.retriever.Retrieve(ctx, query, snapshot, opts)
	if err != nil {
		return nil, err
	}

	var warnings []domain.Warning
	var summary string
	if strings.TrimSpace(req.HTMLContent) != "" {
		graph := a.analyzer.Analyze(req.HTMLContent)
		if graph.IsEmpty() {
			warnings = append(warnings, domain.Warning{
				Kind:    domain.WarningHTMLAnalysisEmpty,
				Message: "page has no interactive elements; generating from documentation only",
			})
		}
		summary = SummarizePage(graph)
	}

	result, err := a.generator.Generate(ctx, domain.GenerationRequest{
		Prompt:         req.Prompt,
		Feature:        req.Feature,
		Retrieval:      retrieved,
		PageSummary:    summary,
		RequestedCount: RequestedCount(req.Prompt),
	}, snapshot)
	if err != nil {
		return nil, err
	}

	cases := result.TestCases
	if cases == nil {
		cases = []domain.TestCase{}
	}
	return &domain.GenerateTestCasesResponse{
		TestCases:       cases,
		Count:           len(cases),
		Sources:         retrieved.Sources(),
		RetrievedChunks: len(retrieved.Hits),
		SnapshotID:      snapshot.ID(),
		Model:           result.Model,
		Warnings:        append(warnings, result.Warnings...),
	}, nil
}

// GenerateScript synthesizes an automation script for test cases against a page.
func (a *AuthoringService) GenerateScript(
	ctx context.Context, req domain.GenerateScriptRequest,
) (*domain.GenerateScriptResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(req.HTMLContent) == "" {
		return nil, fmt.Errorf("%w: html content is required", domain.ErrInvalidInput)
	}
	if len(req.TestCases) == 0 {
		return nil, fmt.Errorf("%w: at least one test case is required", domain.ErrInvalidInput)
	}
	for i := range req.TestCases {
		if err := req.TestCases[i].Validate(); err != nil {
			return nil, err
		}
	}

	opts := domain.SynthesisOptions{
		Framework:    req.Framework,
		Browser:      req.Browser,
		HTMLFilename: req.HTMLFilename,
	}
	if opts.Framework == "" {
		opts.Framework = a.synthesis.Framework
	}
	if opts.Browser == "" {
		opts.Browser = a.synthesis.Browser
	}
	if req.IncludeKBContext {
		opts.KBSources = a.kbSources(req.TestCases)
	}

	graph := a.analyzer.Analyze(req.HTMLContent)
	script, err := a.synth.Synthesize(req.TestCases, graph, opts)
	if err != nil {
		return nil, err
	}

	return &domain.GenerateScriptResponse{
		Status:           "ok",
		Script:           script.Source,
		TestCasesCovered: len(script.TestMethods),
		ElementsMapped:   script.ElementsMapped,
		Uncovered:        script.Uncovered,
		Warnings:         script.Warnings,
	}, nil
}

// kbSources lists the documents the test cases were grounded in, falling
// back to every document of the active snapshot.
func (a *AuthoringService) kbSources(cases []domain.TestCase) []string {
	seen := make(map[string]bool)
	var sources []string
	for _, tc := range cases {
		for _, src := range tc.GroundedIn {
			if !seen[src] {
				seen[src] = true
				sources = append(sources, src)
			}
		}
	}
	if len(sources) > 0 {
		sort.Strings(sources)
		return sources
	}

	snapshot, err := a.index.Active()
	if err != nil {
		logger.Debug("No knowledge base context available: %v", err)
		return nil
	}
	return snapshot.Sources()
}

// AnalyzePage returns the dependency graph of a page.
func (a *AuthoringService) AnalyzePage(html string) *domain.DependencyGraph {
	return a.analyzer.Analyze(html)
}

// IndexStatus describes the index lifecycle.
func (a *AuthoringService) IndexStatus() domain.IndexStatus {
	return a.index.Status()
}
