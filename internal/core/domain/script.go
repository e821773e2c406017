package domain

// Framework is the test framework a script targets.
type Framework string

// Supported frameworks.
const (
	FrameworkPytest   Framework = "pytest"
	FrameworkUnittest Framework = "unittest"
)

// IsValid returns true if the framework is supported.
func (f Framework) IsValid() bool {
	return f == FrameworkPytest || f == FrameworkUnittest
}

// Browser is the browser a script drives.
type Browser string

// Supported browsers.
const (
	BrowserChrome  Browser = "chrome"
	BrowserFirefox Browser = "firefox"
	BrowserEdge    Browser = "edge"
)

// IsValid returns true if the browser is supported.
func (b Browser) IsValid() bool {
	switch b {
	case BrowserChrome, BrowserFirefox, BrowserEdge:
		return true
	default:
		return false
	}
}

// ActionKind is what a step does to an element.
type ActionKind string

// Step actions.
const (
	ActionFill     ActionKind = "fill"
	ActionSelect   ActionKind = "select"
	ActionCheck    ActionKind = "check"
	ActionClick    ActionKind = "click"
	ActionVerify   ActionKind = "verify"
	ActionNavigate ActionKind = "navigate"
	ActionUnknown  ActionKind = "unknown"
)

// StepAction is one test-case step resolved (or not) against the page.
type StepAction struct {
	// Index is the step position in the test case (0-based).
	Index int `json:"index"`

	// Text is the original step phrase.
	Text string `json:"text"`

	// Action is the extracted verb.
	Action ActionKind `json:"action"`

	// Target is the extracted target noun phrase.
	Target string `json:"target,omitempty"`

	// Value is the data to enter or select, if any.
	Value string `json:"value,omitempty"`

	// NodeID is the matched element, empty when unmapped.
	NodeID string `json:"node_id,omitempty"`

	// Score is the match score of NodeID.
	Score float64 `json:"score"`

	// Method is the page-object method invoked for a mapped step.
	Method string `json:"method,omitempty"`
}

// Mapped reports whether the step matched an element.
func (s StepAction) Mapped() bool {
	return s.NodeID != ""
}

// PageMethod is an action method on the page object.
type PageMethod struct {
	Name    string     `json:"name"`
	NodeID  string     `json:"node_id"`
	Action  ActionKind `json:"action"`
	Locator Locator    `json:"locator"`
}

// PageObject is the page class of a Page-Object-Model script.
type PageObject struct {
	ClassName string       `json:"class_name"`
	Locators  []Locator    `json:"locators"`
	Methods   []PageMethod `json:"methods"`
}

// TestMethod is one generated test, covering one test case.
type TestMethod struct {
	Name           string       `json:"name"`
	TestCaseID     string       `json:"test_case_id"`
	Scenario       string       `json:"scenario"`
	Steps          []StepAction `json:"steps"`
	ExpectedResult string       `json:"expected_result"`
	Confidence     Confidence   `json:"confidence"`
}

// MappedSteps counts the mapped steps of the method.
func (m TestMethod) MappedSteps() int {
	n := 0
	for _, s := range m.Steps {
		if s.Mapped() {
			n++
		}
	}
	return n
}

// Script is a synthesized Page-Object-Model automation script.
type Script struct {
	Framework   Framework    `json:"framework"`
	Browser     Browser      `json:"browser"`
	PageURL     string       `json:"page_url"`
	PageObject  PageObject   `json:"page_object"`
	TestMethods []TestMethod `json:"test_methods"`

	// Uncovered lists test cases with no mappable step.
	Uncovered []string `json:"uncovered,omitempty"`

	// ElementsMapped counts mapped steps across all test methods.
	ElementsMapped int `json:"elements_mapped"`

	// KBSources lists knowledge-base documents referenced in the header.
	KBSources []string `json:"kb_sources,omitempty"`

	// Warnings holds unmapped steps and empty-analysis notices.
	Warnings []Warning `json:"warnings,omitempty"`

	// Source is the rendered script text.
	Source string `json:"source"`
}

// SynthesisOptions configures script synthesis.
type SynthesisOptions struct {
	Framework Framework
	Browser   Browser

	// HTMLFilename is the page file the script opens.
	HTMLFilename string

	// KBSources are listed in the script header when non-empty.
	KBSources []string
}

// GenerateScriptRequest is the GenerateScript boundary request.
type GenerateScriptRequest struct {
	HTMLContent      string     `json:"html_content"`
	HTMLFilename     string     `json:"html_filename"`
	TestCases        []TestCase `json:"test_cases"`
	Framework        Framework  `json:"framework"`
	Browser          Browser    `json:"browser"`
	IncludeKBContext bool       `json:"include_kb_context"`
}

// GenerateScriptResponse is the GenerateScript boundary response.
type GenerateScriptResponse struct {
	Status           string    `json:"status"`
	Script           string    `json:"script"`
	TestCasesCovered int       `json:"test_cases_covered"`
	ElementsMapped   int       `json:"elements_mapped"`
	Uncovered        []string  `json:"uncovered,omitempty"`
	Warnings         []Warning `json:"warnings,omitempty"`
}
