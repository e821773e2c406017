package domain

// WarningKind classifies a non-fatal problem reported alongside a result.
type WarningKind string

// Warning kinds surfaced to callers.
const (
	// WarningParseError marks a generated item dropped by schema validation.
	WarningParseError WarningKind = "parse_error"

	// WarningGroundingLow marks a test case flagged needs_review.
	WarningGroundingLow WarningKind = "grounding_low"

	// WarningHTMLAnalysisEmpty marks an HTML document with no interactive elements.
	WarningHTMLAnalysisEmpty WarningKind = "html_analysis_empty"

	// WarningUnmappedStep marks a step that matched no page element.
	WarningUnmappedStep WarningKind = "unmapped_step"

	// WarningPossibleDuplicate marks a test case that restates an earlier one.
	WarningPossibleDuplicate WarningKind = "possible_duplicate"

	// WarningSkippedDocument marks an input file that produced no chunks.
	WarningSkippedDocument WarningKind = "skipped_document"

	// WarningLowRelevance marks a prompt whose terms barely occur in the corpus.
	WarningLowRelevance WarningKind = "low_relevance"
)

// Warning is a structured, non-fatal diagnostic.
type Warning struct {
	// Kind classifies the warning.
	Kind WarningKind `json:"kind"`

	// Ref identifies the affected item (test case id, file name, step reference).
	Ref string `json:"ref,omitempty"`

	// Message is a human-readable description.
	Message string `json:"message"`
}

// CountWarnings returns how many warnings have the given kind.
func CountWarnings(warnings []Warning, kind WarningKind) int {
	n := 0
	for _, w := range warnings {
		if w.Kind == kind {
			n++
		}
	}
	return n
}
