package services

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

const loginHTML = `<html><head><title>Member Login</title></head><body>
<form id="login">
  <input id="email" type="email" name="email" placeholder="Email">
  <input id="password" type="password" name="password" placeholder="Password">
  <button id="loginBtn" type="submit">Login</button>
</form>
</body></html>`

func promoCase() domain.TestCase {
	return domain.TestCase{
		ID:             "TC-001",
		Scenario:       "Apply promo code SAVE10",
		Steps:          []string{"Enter code SAVE10", "Click Apply"},
		ExpectedResult: "Discount is applied",
		Confidence:     domain.ConfidenceGrounded,
	}
}

func stepIndexes(steps []domain.StepAction) []int {
	out := make([]int, len(steps))
	for i, s := range steps {
		out[i] = s.Index
	}
	return out
}

func TestScriptSynthesizer_Synthesize_MapsPromoSteps(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(promoHTML)

	script, err := NewScriptSynthesizer(0).Synthesize([]domain.TestCase{promoCase()}, graph,
		domain.SynthesisOptions{HTMLFilename: "promo.html"})

	require.NoError(t, err)
	assert.Equal(t, domain.FrameworkPytest, script.Framework)
	assert.Equal(t, domain.BrowserChrome, script.Browser)
	assert.Equal(t, 2, script.ElementsMapped)
	assert.Empty(t, script.Uncovered)
	assert.Empty(t, script.Warnings)

	assert.Equal(t, []domain.Locator{
		{Name: "PROMO_CODE", NodeID: "n1", Strategy: domain.LocateByID, Value: "promoCode"},
		{Name: "APPLY_BTN", NodeID: "n2", Strategy: domain.LocateByID, Value: "applyBtn"},
	}, script.PageObject.Locators)
	assert.Equal(t, "PromoPage", script.PageObject.ClassName)

	require.Len(t, script.TestMethods, 1)
	method := script.TestMethods[0]
	assert.Equal(t, "test_tc_001_apply_promo_code_save10", method.Name)
	assert.Equal(t, []int{0, 1}, stepIndexes(method.Steps))
	assert.Equal(t, "enter_promo_code", method.Steps[0].Method)
	assert.Equal(t, "click_apply_btn", method.Steps[1].Method)

	src := script.Source
	assert.Contains(t, src, `PROMO_CODE = (By.ID, "promoCode")`)
	assert.Contains(t, src, `APPLY_BTN = (By.ID, "applyBtn")`)
	assert.Contains(t, src, `page.enter_promo_code("SAVE10")`)
	assert.Contains(t, src, "page.click_apply_btn()")
	assert.Contains(t, src, "def test_tc_001_apply_promo_code_save10(driver):")
	assert.Contains(t, src, "import pytest")
	assert.Contains(t, src, "webdriver.Chrome()")
	assert.Contains(t, src, `os.path.abspath("promo.html")`)
	assert.Less(t, strings.Index(src, "enter_promo_code(\"SAVE10\")"), strings.Index(src, "click_apply_btn()\n"))
}

func TestScriptSynthesizer_Synthesize_OrdersStepsByPrecedence(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(loginHTML)
	tc := domain.TestCase{
		ID:       "TC-001",
		Scenario: "Login",
		Steps: []string{
			"Click Login",
			"Wait for the page",
			"Enter a@b.co in the email field",
			"Enter Secret1 in the password field",
		},
		ExpectedResult: "Dashboard shown",
	}

	script, err := NewScriptSynthesizer(0).Synthesize([]domain.TestCase{tc}, graph, domain.SynthesisOptions{})

	require.NoError(t, err)
	require.Len(t, script.TestMethods, 1)
	steps := script.TestMethods[0].Steps
	assert.Equal(t, []int{1, 2, 3, 0}, stepIndexes(steps))

	// Every precedes edge between mapped steps is respected.
	position := make(map[string]int)
	for i, s := range steps {
		if s.Mapped() {
			position[s.NodeID] = i
		}
	}
	for _, e := range graph.EdgesOfKind(domain.EdgePrecedes) {
		from, okFrom := position[e.From]
		to, okTo := position[e.To]
		if okFrom && okTo {
			assert.Less(t, from, to, "%s must precede %s", e.From, e.To)
		}
	}

	assert.Equal(t, 1, domain.CountWarnings(script.Warnings, domain.WarningUnmappedStep))
	assert.Equal(t, "TC-001 step 2", script.Warnings[0].Ref)
	assert.Contains(t, script.Source, "# UNMAPPED: Wait for the page")
	assert.Equal(t, "MemberLoginPage", script.PageObject.ClassName)

	// Locators follow fill order.
	names := make([]string, 0, len(script.PageObject.Locators))
	for _, l := range script.PageObject.Locators {
		names = append(names, l.Name)
	}
	assert.Equal(t, []string{"EMAIL", "PASSWORD", "LOGIN_BTN"}, names)
}

func TestScriptSynthesizer_Synthesize_KeepsOrderWithoutEdges(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(`<button id="b">Beta</button><button id="a">Alpha</button>`)
	tc := domain.TestCase{ID: "TC-001", Scenario: "Buttons", Steps: []string{"Click Beta", "Click Alpha", "Click Beta"}}

	script, err := NewScriptSynthesizer(0).Synthesize([]domain.TestCase{tc}, graph, domain.SynthesisOptions{})

	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 2}, stepIndexes(script.TestMethods[0].Steps))
	assert.Len(t, script.PageObject.Methods, 2)
}

func TestScriptSynthesizer_Synthesize_Uncovered(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(promoHTML)
	cases := []domain.TestCase{
		promoCase(),
		{ID: "TC-002", Scenario: "Scroll", Steps: []string{"Scroll down"}, ExpectedResult: "Footer visible"},
	}

	script, err := NewScriptSynthesizer(0).Synthesize(cases, graph, domain.SynthesisOptions{})

	require.NoError(t, err)
	assert.Equal(t, []string{"TC-002"}, script.Uncovered)
	require.Len(t, script.TestMethods, 1)
	assert.Equal(t, "TC-001", script.TestMethods[0].TestCaseID)
	assert.Equal(t, 2, script.ElementsMapped)
	assert.Contains(t, script.Source, "Uncovered test cases: TC-002")

	require.Len(t, script.Warnings, 1)
	assert.Equal(t, domain.WarningUnmappedStep, script.Warnings[0].Kind)
	assert.Equal(t, "TC-002 step 1", script.Warnings[0].Ref)
}

func TestScriptSynthesizer_Synthesize_EmptyGraph(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze("<p>nothing to click</p>")

	script, err := NewScriptSynthesizer(0).Synthesize([]domain.TestCase{promoCase()}, graph,
		domain.SynthesisOptions{HTMLFilename: "empty.html"})

	require.NoError(t, err)
	assert.Empty(t, script.TestMethods)
	assert.Zero(t, script.ElementsMapped)
	assert.Equal(t, []string{"TC-001"}, script.Uncovered)
	assert.Equal(t, 1, domain.CountWarnings(script.Warnings, domain.WarningHTMLAnalysisEmpty))
	assert.Equal(t, 2, domain.CountWarnings(script.Warnings, domain.WarningUnmappedStep))
	assert.Equal(t, "EmptyPage", script.PageObject.ClassName)
	assert.NotEmpty(t, script.Source)
}

func TestScriptSynthesizer_Synthesize_SampleValuesAndNames(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(loginHTML)
	cases := []domain.TestCase{
		{ID: "TC-001", Scenario: "Login", Steps: []string{"Enter the email", "Click Login"}},
		{ID: "TC-002", Scenario: "Login", Steps: []string{"Click Login"}},
		{Scenario: "Third", Steps: []string{"Click Login"}},
	}

	script, err := NewScriptSynthesizer(0).Synthesize(cases, graph, domain.SynthesisOptions{})

	require.NoError(t, err)
	require.Len(t, script.TestMethods, 3)
	assert.Equal(t, "test@example.com", script.TestMethods[0].Steps[0].Value)
	assert.Equal(t, "test_tc_001_login", script.TestMethods[0].Name)
	assert.Equal(t, "test_tc_002_login", script.TestMethods[1].Name)
	assert.Equal(t, "TC-003", script.TestMethods[2].TestCaseID)
	assert.Equal(t, "test_tc_003_third", script.TestMethods[2].Name)
	assert.Contains(t, script.Source, `page.enter_email("test@example.com")`)
}

func TestScriptSynthesizer_Synthesize_Unittest(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(promoHTML)
	tc := promoCase()
	tc.Steps = append(tc.Steps, "Verify the promo code")

	script, err := NewScriptSynthesizer(0).Synthesize([]domain.TestCase{tc}, graph, domain.SynthesisOptions{
		Framework: domain.FrameworkUnittest,
		Browser:   domain.BrowserFirefox,
		KBSources: []string{"promo.md"},
	})

	require.NoError(t, err)
	src := script.Source
	assert.Contains(t, src, "import unittest")
	assert.NotContains(t, src, "import pytest")
	assert.Contains(t, src, "class TestPromoPage(unittest.TestCase):")
	assert.Contains(t, src, "webdriver.Firefox()")
	assert.Contains(t, src, "self.assertTrue(page.verify_promo_code())")
	assert.Contains(t, src, "unittest.main()")
	assert.Contains(t, src, "  - promo.md")
}

func TestScriptSynthesizer_Synthesize_InvalidInput(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(promoHTML)
	s := NewScriptSynthesizer(0)

	_, err := s.Synthesize(nil, graph, domain.SynthesisOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Synthesize([]domain.TestCase{promoCase()}, graph, domain.SynthesisOptions{Framework: "jest"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Synthesize([]domain.TestCase{promoCase()}, graph, domain.SynthesisOptions{Browser: "safari"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestOrderSteps_Cycle(t *testing.T) {
	steps := []domain.StepAction{
		{Index: 0, NodeID: "n1"},
		{Index: 1, NodeID: "n2"},
	}
	precedence := map[string]map[string]bool{
		"n1": {"n2": true},
		"n2": {"n1": true},
	}

	assert.Equal(t, []int{0, 1}, stepIndexes(orderSteps(steps, precedence)))
}

func TestPageClassName(t *testing.T) {
	assert.Equal(t, "CheckoutPage", pageClassName("Checkout Page", ""))
	assert.Equal(t, "SignUpFormPage", pageClassName("", "sign_up-form.html"))
	assert.Equal(t, "Target2024SalePage", pageClassName("2024 Sale", ""))
	assert.Equal(t, "TargetPage", pageClassName("", ""))
}

func TestTestMethodName(t *testing.T) {
	got := testMethodName(domain.TestCase{
		ID:       "TC-012",
		Scenario: "Booking more than the maximum allowed number of GEN tickets shows an error",
	})

	assert.Equal(t, "test_tc_012_booking_more_than_the_maximum_allowed_number_of", got)
}

func TestNameSet(t *testing.T) {
	s := newNameSet()

	assert.Equal(t, "click_go", s.unique("click_go"))
	assert.Equal(t, "click_go_2", s.unique("click_go"))
	assert.Equal(t, "click_go_3", s.unique("click_go"))
}

func TestScriptSynthesizer_Synthesize_AssertsExpectedResult(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(promoHTML)
	tc := promoCase()
	tc.ExpectedResult = "Discount of 10% is applied."

	for _, tt := range []struct {
		framework domain.Framework
		assertion string
	}{
		{domain.FrameworkPytest, `assert "Discount of 10% is applied" in driver.page_source`},
		{domain.FrameworkUnittest, `self.assertIn("Discount of 10% is applied", self.driver.page_source)`},
	} {
		t.Run(string(tt.framework), func(t *testing.T) {
			script, err := NewScriptSynthesizer(0).Synthesize([]domain.TestCase{tc}, graph,
				domain.SynthesisOptions{Framework: tt.framework})
			require.NoError(t, err)

			src := script.Source
			assert.Contains(t, src, tt.assertion)
			assert.Less(t, strings.Index(src, "click_apply_btn()\n"), strings.Index(src, tt.assertion))
		})
	}
}

func TestExpectedAssertion(t *testing.T) {
	tests := []struct {
		name     string
		expected string
		unittest bool
		want     string
	}{
		{"quoted value", `Banner shows "Code applied"`, false, `assert "Code applied" in driver.page_source`},
		{"code value", "Error `E-42` is displayed", true, `self.assertIn("E-42", self.driver.page_source)`},
		{"whole phrase", "  Order   confirmed! ", false, `assert "Order confirmed" in driver.page_source`},
		{"empty", "", false, ""},
		{"punctuation only", "...", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, expectedAssertion(tt.expected, tt.unittest))
		})
	}
}

func TestScriptSynthesizer_Synthesize_NonASCIIStep(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(`<html><body><form>
  <input id="city" name="city" placeholder="City">
</form></body></html>`)
	tc := domain.TestCase{
		ID:             "TC-001",
		Scenario:       "Unicode city",
		Steps:          []string{"Type ȺȺȺȺȺȺȺȺȺȺ into city"},
		ExpectedResult: "City saved",
	}

	script, err := NewScriptSynthesizer(0).Synthesize([]domain.TestCase{tc}, graph, domain.SynthesisOptions{})

	require.NoError(t, err)
	require.Len(t, script.TestMethods, 1)
	require.Len(t, script.TestMethods[0].Steps, 1)
	assert.Equal(t, "ȺȺȺȺȺȺȺȺȺȺ", script.TestMethods[0].Steps[0].Value)
}

func TestSampleValue_Telephone(t *testing.T) {
	node := func(attrs map[string]string) domain.ElementNode {
		return domain.ElementNode{Tag: "input", Attributes: attrs}
	}

	assert.Equal(t, "5550100", sampleValue(node(map[string]string{"type": "tel", "id": "contact"})))
	assert.Equal(t, "5550100", sampleValue(node(map[string]string{"id": "phoneNumber"})))
	assert.Equal(t, "5550100", sampleValue(node(map[string]string{"name": "tel_home"})))
	assert.Equal(t, "Test Value", sampleValue(node(map[string]string{"id": "hotel"})))
	assert.Equal(t, "Test Value", sampleValue(node(map[string]string{"name": "intel_notes"})))
}
