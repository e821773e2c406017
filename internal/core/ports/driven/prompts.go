package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	Reload()
}

// Well-known prompt names used throughout the application.
const (
	// PromptSystem is the system message for test-case generation.
	// This prompt has no format placeholders.
	PromptSystem = "system"

	// PromptTestCases asks for test cases grounded in retrieved context.
	// The template takes indexed placeholders:
	//   %[1]s retrieved context, %[2]s page summary (may be empty),
	//   %[3]d requested count, %[4]s feature, %[5]s user request.
	PromptTestCases = "test_cases"
)

// StopToken terminates the JSON payload in generated output.
const StopToken = "</END_JSON>"

// DefaultPrompts returns the built-in prompt templates keyed by name.
// File-backed stores seed user-editable copies from these.
func DefaultPrompts() map[string]string {
	return map[string]string{
		PromptSystem:    defaultSystemPrompt,
		PromptTestCases: defaultTestCasesPrompt,
	}
}

const defaultSystemPrompt = `You are a senior QA engineer. You write precise, executable test cases ` +
	`using only facts stated in the provided documentation. You never invent limits, prices, ` +
	`codes or messages that the documentation does not state. You answer with JSON only.`

const defaultTestCasesPrompt = `Documentation context:
%[1]s

%[2]s
Write %[3]d test cases for the feature "%[4]s".

Request: %[5]s

Rules:
- Every step and expected result must be supported by the documentation context above.
- Copy numbers, prices, percentages and codes exactly as written in the context.
- Cover both positive and negative behaviour where the documentation allows it.
- Use short imperative steps such as "Enter SAVE10 in the promo code field".

Respond with a JSON array only, followed by ` + StopToken + `. Each element has this shape:
{"scenario": "...", "steps": ["...", "..."], "expected_result": "...", "type": "positive|negative", "priority": "high|medium|low"}
`
