package mcp

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

func newTestServer(t *testing.T, ports *Ports) *Server {
	t.Helper()
	server, err := NewServer(ports)
	require.NoError(t, err)
	return server
}

func TestServer_handleBuildIndex(t *testing.T) {
	ctx := context.Background()

	t.Run("indexes uploaded files", func(t *testing.T) {
		authoring := &mockAuthoringService{
			report: &domain.BuildReport{Status: "ok", SnapshotID: "snap-1", ChunksIndexed: 4, Documents: 2},
		}
		server := newTestServer(t, &Ports{Authoring: authoring})

		_, out, err := server.handleBuildIndex(ctx, nil, BuildIndexInput{
			Files: []FileInput{
				{Name: "booking.md", Content: "# Booking"},
				{Name: "notes.txt", Content: "notes", MIMEType: "text/plain"},
			},
		})

		require.NoError(t, err)
		assert.Equal(t, "ok", out.Status)
		assert.Equal(t, "snap-1", out.SnapshotID)
		assert.Equal(t, 4, out.ChunksIndexed)
		require.Len(t, authoring.built, 2)
		assert.Equal(t, "booking.md", authoring.built[0].URI)
		assert.Equal(t, "text/plain", authoring.built[1].MIMEType)
	})

	t.Run("loads paths through the loader", func(t *testing.T) {
		authoring := &mockAuthoringService{report: &domain.BuildReport{Status: "ok"}}
		var gotPaths []string
		loader := func(_ context.Context, paths []string) ([]domain.RawDocument, error) {
			gotPaths = paths
			return []domain.RawDocument{{URI: "requirements.md", Content: []byte("x")}}, nil
		}
		server := newTestServer(t, &Ports{Authoring: authoring, Loader: loader})

		_, _, err := server.handleBuildIndex(ctx, nil, BuildIndexInput{Paths: []string{"./docs"}})

		require.NoError(t, err)
		assert.Equal(t, []string{"./docs"}, gotPaths)
		require.Len(t, authoring.built, 1)
		assert.Equal(t, "requirements.md", authoring.built[0].URI)
	})

	t.Run("paths without loader fail", func(t *testing.T) {
		server := newTestServer(t, &Ports{Authoring: &mockAuthoringService{}})
		_, _, err := server.handleBuildIndex(ctx, nil, BuildIndexInput{Paths: []string{"x"}})
		assert.Error(t, err)
	})

	t.Run("propagates build error", func(t *testing.T) {
		authoring := &mockAuthoringService{err: domain.ErrIndexBuild}
		server := newTestServer(t, &Ports{Authoring: authoring})

		_, _, err := server.handleBuildIndex(ctx, nil, BuildIndexInput{})
		assert.ErrorIs(t, err, domain.ErrIndexBuild)
	})
}

func TestServer_handleGenerateTestCases(t *testing.T) {
	ctx := context.Background()

	t.Run("returns test cases", func(t *testing.T) {
		authoring := &mockAuthoringService{
			cases: &domain.GenerateTestCasesResponse{
				TestCases: []domain.TestCase{{ID: "TC-001", Scenario: "Max tickets"}},
				Count:     1,
				Sources:   []string{"booking.md"},
			},
		}
		server := newTestServer(t, &Ports{Authoring: authoring})

		_, out, err := server.handleGenerateTestCases(ctx, nil, GenerateTestCasesInput{
			Prompt: "maximum GEN tickets", Feature: "booking", TopK: 3,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, out.Count)
		assert.Equal(t, []string{"booking.md"}, out.Sources)
		assert.Equal(t, "maximum GEN tickets", authoring.casesReq.Prompt)
		assert.Equal(t, "booking", authoring.casesReq.Feature)
		assert.Equal(t, 3, authoring.casesReq.TopK)
	})

	t.Run("propagates not built", func(t *testing.T) {
		authoring := &mockAuthoringService{err: domain.ErrIndexNotBuilt}
		server := newTestServer(t, &Ports{Authoring: authoring})

		_, _, err := server.handleGenerateTestCases(ctx, nil, GenerateTestCasesInput{Prompt: "x"})
		assert.ErrorIs(t, err, domain.ErrIndexNotBuilt)
	})
}

func TestServer_handleGenerateScript(t *testing.T) {
	ctx := context.Background()
	authoring := &mockAuthoringService{
		script: &domain.GenerateScriptResponse{Status: "ok", Script: "import pytest", ElementsMapped: 2},
	}
	server := newTestServer(t, &Ports{Authoring: authoring})

	_, out, err := server.handleGenerateScript(ctx, nil, GenerateScriptInput{
		HTMLContent: "<input id='promoCode'>",
		TestCases: []TestCaseInput{
			{Scenario: "Apply promo", Steps: []string{"Enter code SAVE10", "Click Apply"}},
			{ID: "TC-009", Scenario: "Other", Steps: []string{"Click Apply"}, Confidence: "grounded"},
		},
		Framework: "unittest",
		Browser:   "firefox",
	})

	require.NoError(t, err)
	assert.Equal(t, 2, out.ElementsMapped)

	req := authoring.scriptReq
	assert.Equal(t, domain.FrameworkUnittest, req.Framework)
	assert.Equal(t, domain.BrowserFirefox, req.Browser)
	require.Len(t, req.TestCases, 2)
	assert.Equal(t, "TC-001", req.TestCases[0].ID)
	assert.Equal(t, domain.ConfidenceNeedsReview, req.TestCases[0].Confidence)
	assert.Equal(t, "TC-009", req.TestCases[1].ID)
	assert.Equal(t, domain.ConfidenceGrounded, req.TestCases[1].Confidence)

	authoring.err = errors.New("boom")
	_, _, err = server.handleGenerateScript(ctx, nil, GenerateScriptInput{})
	assert.Error(t, err)
}

func TestServer_handleAnalyzePage(t *testing.T) {
	graph := &domain.DependencyGraph{
		Nodes: []domain.ElementNode{
			{ID: "n1", Tag: "input", Order: 0},
			{ID: "n2", Tag: "button", Order: 1},
		},
		Edges: []domain.DependencyEdge{{From: "n1", To: "n2", Kind: domain.EdgePrecedes}},
	}
	server := newTestServer(t, &Ports{Authoring: &mockAuthoringService{graph: graph}})

	_, out, err := server.handleAnalyzePage(context.Background(), nil, AnalyzePageInput{HTMLContent: "<form>"})

	require.NoError(t, err)
	assert.Len(t, out.Graph.Nodes, 2)
	assert.Equal(t, []string{"n1", "n2"}, out.FillOrder)

	server = newTestServer(t, &Ports{Authoring: &mockAuthoringService{}})
	_, out, err = server.handleAnalyzePage(context.Background(), nil, AnalyzePageInput{})
	require.NoError(t, err)
	assert.Empty(t, out.Graph.Nodes)
}

func TestServer_handleIndexStatus(t *testing.T) {
	built := time.Date(2026, 5, 1, 9, 30, 0, 0, time.UTC)
	authoring := &mockAuthoringService{status: domain.IndexStatus{
		SnapshotID: "snap-1",
		State:      domain.SnapshotActive,
		ChunkCount: 12,
		Sources:    []string{"a.md"},
		BuiltAt:    built,
	}}
	server := newTestServer(t, &Ports{Authoring: authoring})

	_, out, err := server.handleIndexStatus(context.Background(), nil, IndexStatusInput{})

	require.NoError(t, err)
	assert.Equal(t, "snap-1", out.SnapshotID)
	assert.Equal(t, "active", out.State)
	assert.Equal(t, 12, out.ChunkCount)
	assert.Equal(t, "2026-05-01T09:30:00Z", out.BuiltAt)

	server = newTestServer(t, &Ports{Authoring: &mockAuthoringService{}})
	_, out, err = server.handleIndexStatus(context.Background(), nil, IndexStatusInput{})
	require.NoError(t, err)
	assert.Empty(t, out.BuiltAt)
}
