package services

import (
	"bytes"
	"embed"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"text/template"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

var codeValue = regexp.MustCompile("`([^`]+)`")

//go:embed templates/*.tmpl
var scriptTemplates embed.FS

var scriptTemplate = template.Must(template.New("script").Funcs(template.FuncMap{
	"py":      strconv.Quote,
	"comment": pyComment,
	"join":    strings.Join,
}).ParseFS(scriptTemplates, "templates/*.tmpl"))

type scriptView struct {
	Framework string
	Browser   string
	Driver    string
	PageFile  string
	KBSources []string
	Uncovered []string
	ClassName string
	Locators  []locatorView
	Methods   []methodView
	Tests     []testView
}

type locatorView struct {
	Name  string
	By    string
	Value string
}

type methodView struct {
	Name    string
	Action  string
	Locator string
}

type testView struct {
	Name       string
	ID         string
	Scenario   string
	Confidence string
	Expected   string
	Assertion  string
	Lines      []string
}

// renderScript renders the Python source of a synthesized script.
func renderScript(script *domain.Script) (string, error) {
	view := scriptView{
		Framework: string(script.Framework),
		Browser:   string(script.Browser),
		Driver:    driverClass(script.Browser),
		PageFile:  script.PageURL,
		KBSources: script.KBSources,
		Uncovered: script.Uncovered,
		ClassName: script.PageObject.ClassName,
	}
	if view.PageFile == "" {
		view.PageFile = "page.html"
	}

	for _, loc := range script.PageObject.Locators {
		view.Locators = append(view.Locators, locatorView{Name: loc.Name, By: byConstant(loc.Strategy), Value: loc.Value})
	}
	for _, m := range script.PageObject.Methods {
		view.Methods = append(view.Methods, methodView{Name: m.Name, Action: string(m.Action), Locator: m.Locator.Name})
	}

	unittest := script.Framework == domain.FrameworkUnittest
	for _, m := range script.TestMethods {
		tv := testView{
			Name:       m.Name,
			ID:         m.TestCaseID,
			Scenario:   m.Scenario,
			Confidence: string(m.Confidence),
			Expected:   m.ExpectedResult,
			Assertion:  expectedAssertion(m.ExpectedResult, unittest),
		}
		if tv.Confidence == "" {
			tv.Confidence = string(domain.ConfidenceNeedsReview)
		}
		for _, st := range m.Steps {
			tv.Lines = append(tv.Lines, stepLine(st, unittest))
		}
		view.Tests = append(view.Tests, tv)
	}

	var buf bytes.Buffer
	if err := scriptTemplate.ExecuteTemplate(&buf, string(script.Framework)+".py.tmpl", view); err != nil {
		return "", fmt.Errorf("render %s script: %w", script.Framework, err)
	}
	return buf.String(), nil
}

// stepLine is the Python statement for one step. Unmapped steps are kept
// as placeholder comments so coverage can be audited.
func stepLine(st domain.StepAction, unittest bool) string {
	if !st.Mapped() {
		return "# UNMAPPED: " + pyComment(st.Text)
	}
	switch st.Action {
	case domain.ActionFill:
		return fmt.Sprintf("page.%s(%s)", st.Method, strconv.Quote(st.Value))
	case domain.ActionSelect:
		if st.Value == "" {
			return fmt.Sprintf("page.%s()", st.Method)
		}
		return fmt.Sprintf("page.%s(%s)", st.Method, strconv.Quote(st.Value))
	case domain.ActionVerify:
		if unittest {
			return fmt.Sprintf("self.assertTrue(page.%s())", st.Method)
		}
		return fmt.Sprintf("assert page.%s()", st.Method)
	default:
		return fmt.Sprintf("page.%s()", st.Method)
	}
}

// expectedAssertion checks the page for the expected result. A quoted or
// backticked value is asserted on its own, otherwise the whole phrase.
func expectedAssertion(expected string, unittest bool) string {
	text := expectedText(expected)
	if text == "" {
		return ""
	}
	if unittest {
		return fmt.Sprintf("self.assertIn(%s, self.driver.page_source)", strconv.Quote(text))
	}
	return fmt.Sprintf("assert %s in driver.page_source", strconv.Quote(text))
}

func expectedText(expected string) string {
	if m := quotedValue.FindStringSubmatch(expected); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := codeValue.FindStringSubmatch(expected); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimRight(strings.Join(strings.Fields(expected), " "), ".!")
}

func byConstant(s domain.LocatorStrategy) string {
	switch s {
	case domain.LocateByID:
		return "ID"
	case domain.LocateByName:
		return "NAME"
	default:
		return "XPATH"
	}
}

func driverClass(b domain.Browser) string {
	switch b {
	case domain.BrowserFirefox:
		return "Firefox"
	case domain.BrowserEdge:
		return "Edge"
	default:
		return "Chrome"
	}
}

// pyComment flattens text for a Python comment or docstring line.
func pyComment(s string) string {
	s = strings.NewReplacer(`"`, "'", `\`, "/").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
