package domain

import (
	"fmt"
	"strings"
)

// TestType distinguishes positive and negative test cases.
type TestType string

// Test types.
const (
	TestTypePositive TestType = "positive"
	TestTypeNegative TestType = "negative"
)

// IsValid returns true if the test type is recognised.
func (t TestType) IsValid() bool {
	return t == TestTypePositive || t == TestTypeNegative
}

// Priority ranks a test case.
type Priority string

// Priorities.
const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// IsValid returns true if the priority is recognised.
func (p Priority) IsValid() bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// Confidence records the outcome of grounding verification.
type Confidence string

// Confidence values. A test case is never upgraded from needs_review.
const (
	ConfidenceGrounded    Confidence = "grounded"
	ConfidenceNeedsReview Confidence = "needs_review"
)

// TestCase is a structured, source-attributed test case.
type TestCase struct {
	ID             string     `json:"id" yaml:"id"`
	Feature        string     `json:"feature" yaml:"feature"`
	Scenario       string     `json:"scenario" yaml:"scenario"`
	Steps          []string   `json:"steps" yaml:"steps"`
	ExpectedResult string     `json:"expected_result" yaml:"expected_result"`
	Type           TestType   `json:"type" yaml:"type"`
	Priority       Priority   `json:"priority" yaml:"priority"`
	GroundedIn     []string   `json:"grounded_in" yaml:"grounded_in"`
	Confidence     Confidence `json:"confidence" yaml:"confidence"`
}

// IsGrounded returns true if every claim was traced to a retrieved chunk.
func (tc *TestCase) IsGrounded() bool {
	return tc.Confidence == ConfidenceGrounded
}

// Validate checks the fields a script can be synthesized from.
func (tc *TestCase) Validate() error {
	if strings.TrimSpace(tc.Scenario) == "" {
		return fmt.Errorf("%w: test case %q has no scenario", ErrInvalidInput, tc.ID)
	}
	if len(tc.Steps) == 0 {
		return fmt.Errorf("%w: test case %q has no steps", ErrInvalidInput, tc.ID)
	}
	return nil
}

// TestCaseID formats the sequential id for position n (1-based).
func TestCaseID(n int) string {
	return fmt.Sprintf("TC-%03d", n)
}

// GenerationRequest is the input to the generation orchestrator.
type GenerationRequest struct {
	// Prompt is the user's request.
	Prompt string

	// Feature names the feature under test; may be empty.
	Feature string

	// Retrieval is the result that grounds the generation.
	Retrieval RetrievalResult

	// PageSummary optionally describes the page under test.
	PageSummary string

	// RequestedCount is the number of test cases asked for.
	RequestedCount int
}

// GenerationResult is the all-or-nothing output of one generation call.
type GenerationResult struct {
	// TestCases are the parsed and verified test cases.
	TestCases []TestCase

	// Warnings holds parse errors, grounding flags and duplicates.
	Warnings []Warning

	// Relevance is the fraction of prompt terms found in retrieved chunks.
	Relevance float64

	// Model names the model that produced the output.
	Model string
}

// GenerateTestCasesRequest is the GenerateTestCases boundary request.
type GenerateTestCasesRequest struct {
	Prompt      string `json:"prompt"`
	Feature     string `json:"feature,omitempty"`
	HTMLContent string `json:"html_content,omitempty"`
	TopK        int    `json:"top_k,omitempty"`
}

// GenerateTestCasesResponse is the GenerateTestCases boundary response.
type GenerateTestCasesResponse struct {
	TestCases       []TestCase `json:"test_cases"`
	Count           int        `json:"count"`
	Sources         []string   `json:"sources"`
	RetrievedChunks int        `json:"retrieved_chunks"`
	SnapshotID      string     `json:"snapshot_id"`
	Model           string     `json:"model,omitempty"`
	Warnings        []Warning  `json:"warnings,omitempty"`
}
