package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown document or normaliser type.
	ErrUnsupportedType = errors.New("unsupported type")

	// Index Errors.

	// ErrIndexBuild indicates the corpus could not be indexed.
	// The build is discarded and any previously active snapshot stays valid.
	ErrIndexBuild = errors.New("index build failed")

	// ErrIndexNotBuilt indicates no index snapshot is active yet.
	ErrIndexNotBuilt = errors.New("index not built")

	// ErrBuildInProgress indicates a rebuild was requested while one is running.
	ErrBuildInProgress = errors.New("index build in progress")

	// Generation Errors.

	// ErrGenerationUnavailable indicates the generative model is unreachable or timed out.
	// Callers may retry, optionally against a fallback provider.
	ErrGenerationUnavailable = errors.New("generation unavailable")

	// ErrParse indicates a single generated test case failed schema validation.
	ErrParse = errors.New("parse error")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Dense scoring is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")
)

// ParseError describes one generated item that failed schema validation.
// It is recorded as a warning; the rest of the batch continues.
type ParseError struct {
	// Index is the position of the item in the model output.
	Index int

	// Field is the offending field, empty when the whole item is malformed.
	Field string

	// Reason is a human-readable explanation.
	Reason string
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("item %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("item %d: field %q: %s", e.Index, e.Field, e.Reason)
}

// Unwrap allows errors.Is(err, ErrParse).
func (e *ParseError) Unwrap() error {
	return ErrParse
}
