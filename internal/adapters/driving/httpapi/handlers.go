package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/logger"
)

// uploadedFile is one document in a JSON build-kb request.
type uploadedFile struct {
	Name     string `json:"name"`
	Content  string `json:"content"`
	MIMEType string `json:"mime_type,omitempty"`
}

type buildRequest struct {
	Files []uploadedFile `json:"files"`
}

type analyzeRequest struct {
	HTMLContent string `json:"html_content"`
}

type analyzeResponse struct {
	Graph     *domain.DependencyGraph `json:"graph"`
	FillOrder []string                `json:"fill_order"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.authoring.IndexStatus())
}

// handleBuildIndex accepts multipart uploads (field "files") or a JSON body.
// POST /build-kb
func (s *Server) handleBuildIndex(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)

	files, err := s.readUploads(r)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := s.authoring.BuildIndex(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// POST /generate-test-cases
func (s *Server) handleGenerateTestCases(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateTestCasesRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.authoring.GenerateTestCases(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /generate-selenium
func (s *Server) handleGenerateScript(w http.ResponseWriter, r *http.Request) {
	var req domain.GenerateScriptRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	resp, err := s.authoring.GenerateScript(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// POST /analyze-page
func (s *Server) handleAnalyzePage(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := s.decode(w, r, &req); err != nil {
		writeError(w, err)
		return
	}

	graph := s.authoring.AnalyzePage(req.HTMLContent)
	if graph == nil {
		graph = &domain.DependencyGraph{}
	}
	order := graph.FillOrder()
	if order == nil {
		order = []string{}
	}
	writeJSON(w, http.StatusOK, analyzeResponse{Graph: graph, FillOrder: order})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: invalid JSON body: %w", domain.ErrInvalidInput, err)
	}
	return nil
}

func (s *Server) readUploads(r *http.Request) ([]domain.RawDocument, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")) //nolint:errcheck // empty type falls through to JSON
	if mediaType != "multipart/form-data" {
		var req buildRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, fmt.Errorf("%w: invalid JSON body: %w", domain.ErrInvalidInput, err)
		}
		files := make([]domain.RawDocument, 0, len(req.Files))
		for _, f := range req.Files {
			files = append(files, domain.RawDocument{URI: f.Name, MIMEType: f.MIMEType, Content: []byte(f.Content)})
		}
		return files, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("%w: invalid multipart body: %w", domain.ErrInvalidInput, err)
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	headers := r.MultipartForm.File["files"]
	files := make([]domain.RawDocument, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("opening upload %s: %w", fh.Filename, err)
		}
		content, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading upload %s: %w", fh.Filename, err)
		}
		files = append(files, domain.RawDocument{
			URI:      fh.Filename,
			MIMEType: fh.Header.Get("Content-Type"),
			Content:  content,
		})
	}
	return files, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrIndexBuild),
		errors.Is(err, domain.ErrUnsupportedType),
		errors.Is(err, domain.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrIndexNotBuilt), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrBuildInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrGenerationUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Warn("Request failed: %v", err)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = strings.ToLower(http.StatusText(status))
	}
	writeJSON(w, status, errorResponse{Error: msg, Status: status})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to encode response: %v", err)
	}
}
