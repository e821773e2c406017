package services

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/logger"
)

var nonIdentifier = regexp.MustCompile(`[^a-z0-9]+`)

// ScriptSynthesizer turns test cases and a dependency graph into a
// Page-Object-Model automation script. It holds no mutable state and is
// safe for concurrent use.
type ScriptSynthesizer struct {
	matcher *StepMatcher
}

// NewScriptSynthesizer creates a synthesizer with the given match threshold.
func NewScriptSynthesizer(threshold float64) *ScriptSynthesizer {
	return &ScriptSynthesizer{matcher: NewStepMatcher(threshold)}
}

// Synthesize maps every step of every test case onto the page and renders
// the script. Test cases with no mapped step are reported as uncovered.
func (s *ScriptSynthesizer) Synthesize(
	cases []domain.TestCase,
	graph *domain.DependencyGraph,
	opts domain.SynthesisOptions,
) (*domain.Script, error) {
	if len(cases) == 0 {
		return nil, fmt.Errorf("%w: no test cases", domain.ErrInvalidInput)
	}
	if opts.Framework == "" {
		opts.Framework = domain.FrameworkPytest
	}
	if opts.Browser == "" {
		opts.Browser = domain.BrowserChrome
	}
	if !opts.Framework.IsValid() {
		return nil, fmt.Errorf("%w: unsupported framework %q", domain.ErrInvalidInput, opts.Framework)
	}
	if !opts.Browser.IsValid() {
		return nil, fmt.Errorf("%w: unsupported browser %q", domain.ErrInvalidInput, opts.Browser)
	}
	if graph == nil {
		graph = &domain.DependencyGraph{}
	}

	logger.Section("Script Synthesis")

	script := &domain.Script{
		Framework: opts.Framework,
		Browser:   opts.Browser,
		PageURL:   opts.HTMLFilename,
		KBSources: opts.KBSources,
	}
	if graph.IsEmpty() {
		script.Warnings = append(script.Warnings, domain.Warning{
			Kind:    domain.WarningHTMLAnalysisEmpty,
			Ref:     opts.HTMLFilename,
			Message: "no interactive elements found; every step is unmapped",
		})
	}

	precedence := graph.Precedence()
	names := newNameSet()
	for i, tc := range cases {
		if tc.ID == "" {
			tc.ID = domain.TestCaseID(i + 1)
		}
		steps := make([]domain.StepAction, len(tc.Steps))
		for j, text := range tc.Steps {
			steps[j] = s.matcher.Match(graph, j, text)
			if steps[j].Mapped() && steps[j].Action == domain.ActionFill && steps[j].Value == "" {
				node, _ := graph.Node(steps[j].NodeID)
				steps[j].Value = sampleValue(node)
			}
			if !steps[j].Mapped() {
				script.Warnings = append(script.Warnings, domain.Warning{
					Kind:    domain.WarningUnmappedStep,
					Ref:     fmt.Sprintf("%s step %d", tc.ID, j+1),
					Message: fmt.Sprintf("no element matched %q", text),
				})
			}
		}

		method := domain.TestMethod{
			Name:           names.unique(testMethodName(tc)),
			TestCaseID:     tc.ID,
			Scenario:       tc.Scenario,
			Steps:          orderSteps(steps, precedence),
			ExpectedResult: tc.ExpectedResult,
			Confidence:     tc.Confidence,
		}
		mapped := method.MappedSteps()
		if mapped == 0 {
			script.Uncovered = append(script.Uncovered, tc.ID)
			logger.Debug("Test case %s has no mapped step; excluded", tc.ID)
			continue
		}
		script.ElementsMapped += mapped
		script.TestMethods = append(script.TestMethods, method)
	}

	script.PageObject = buildPageObject(graph, script.TestMethods, opts)
	source, err := renderScript(script)
	if err != nil {
		return nil, err
	}
	script.Source = source

	logger.Info("Synthesized %d test methods, %d steps mapped, %d uncovered",
		len(script.TestMethods), script.ElementsMapped, len(script.Uncovered))
	return script, nil
}

// orderSteps reorders steps so that for every pair of mapped steps on
// elements A and B with A preceding B, A's step comes first. Steps that
// are not constrained keep their original relative order.
func orderSteps(steps []domain.StepAction, precedence map[string]map[string]bool) []domain.StepAction {
	n := len(steps)
	indegree := make([]int, n)
	after := make([][]int, n)
	for i := range steps {
		for j := range steps {
			if i == j || !steps[i].Mapped() || !steps[j].Mapped() || steps[i].NodeID == steps[j].NodeID {
				continue
			}
			if precedence[steps[i].NodeID][steps[j].NodeID] {
				after[i] = append(after[i], j)
				indegree[j]++
			}
		}
	}

	ordered := make([]domain.StepAction, 0, n)
	done := make([]bool, n)
	for len(ordered) < n {
		next := -1
		for i := range steps {
			if !done[i] && indegree[i] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			// Unreachable for acyclic precedence; keep the remainder as written.
			for i := range steps {
				if !done[i] {
					ordered = append(ordered, steps[i])
					done[i] = true
				}
			}
			break
		}
		done[next] = true
		ordered = append(ordered, steps[next])
		for _, j := range after[next] {
			indegree[j]--
		}
	}
	return ordered
}

// buildPageObject derives locators and action methods for every element
// used by a test method, in fill order, and names each step's method.
func buildPageObject(graph *domain.DependencyGraph, methods []domain.TestMethod, opts domain.SynthesisOptions) domain.PageObject {
	po := domain.PageObject{ClassName: pageClassName(graph.Title, opts.HTMLFilename)}

	used := make(map[string]map[domain.ActionKind]bool)
	for _, m := range methods {
		for _, st := range m.Steps {
			if !st.Mapped() {
				continue
			}
			if used[st.NodeID] == nil {
				used[st.NodeID] = make(map[domain.ActionKind]bool)
			}
			used[st.NodeID][st.Action] = true
		}
	}

	constNames := newNameSet()
	methodNames := newNameSet()
	methodFor := make(map[string]string)
	for _, id := range graph.FillOrder() {
		actions, ok := used[id]
		if !ok {
			continue
		}
		loc, err := graph.LocatorFor(id)
		if err != nil {
			continue
		}
		node, _ := graph.Node(id)
		base := elementName(node)
		loc.Name = constNames.unique(strings.ToUpper(base))
		po.Locators = append(po.Locators, loc)

		kinds := make([]string, 0, len(actions))
		for a := range actions {
			kinds = append(kinds, string(a))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			action := domain.ActionKind(k)
			name := methodNames.unique(methodVerb(action) + "_" + base)
			methodFor[id+"|"+k] = name
			po.Methods = append(po.Methods, domain.PageMethod{Name: name, NodeID: id, Action: action, Locator: loc})
		}
	}

	for i := range methods {
		for j := range methods[i].Steps {
			st := &methods[i].Steps[j]
			if st.Mapped() {
				st.Method = methodFor[st.NodeID+"|"+string(st.Action)]
			}
		}
	}
	return po
}

// sampleValue is placeholder test data for a fill step that names no value.
func sampleValue(n domain.ElementNode) string {
	raw := n.Attr("type") + " " + n.Attr("id") + " " + n.Attr("name") + " " + n.Label
	descriptor := strings.ToLower(raw)
	words := make(map[string]bool)
	for _, w := range splitIdentifier(raw) {
		words[w] = true
	}
	switch {
	case strings.Contains(descriptor, "email"):
		return "test@example.com"
	case strings.Contains(descriptor, "password"):
		return "Test@123"
	case strings.Contains(descriptor, "phone") || words["tel"]:
		return "5550100"
	case strings.Contains(descriptor, "zip") || strings.Contains(descriptor, "postal"):
		return "12345"
	case strings.Contains(descriptor, "date"):
		return "2024-01-15"
	case n.Attr("type") == "number" || quantityHint.MatchString(descriptor):
		return "1"
	default:
		return "Test Value"
	}
}

// elementName is the snake_case name of an element used in identifiers.
func elementName(n domain.ElementNode) string {
	for _, candidate := range []string{n.Attr("id"), n.Attr("name"), n.Label} {
		if name := snake(candidate); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%s_%d", n.Tag, n.Order+1)
}

func methodVerb(a domain.ActionKind) string {
	switch a {
	case domain.ActionFill:
		return "enter"
	case domain.ActionSelect, domain.ActionCheck, domain.ActionClick:
		return string(a)
	case domain.ActionVerify:
		return "verify"
	case domain.ActionNavigate:
		return "follow"
	default:
		return "click"
	}
}

// testMethodName builds "test_tc_001_<scenario slug>".
func testMethodName(tc domain.TestCase) string {
	slug := snake(tc.Scenario)
	if words := strings.Split(slug, "_"); len(words) > 8 {
		slug = strings.Join(words[:8], "_")
	}
	name := "test_" + snake(tc.ID)
	if slug != "" {
		name += "_" + slug
	}
	return name
}

// pageClassName derives a class name from the page title or file name.
func pageClassName(title, filename string) string {
	source := title
	if strings.TrimSpace(source) == "" && filename != "" {
		source = domain.TitleFromURI(filename)
	}
	var sb strings.Builder
	for _, w := range strings.Split(snake(source), "_") {
		if w == "" || w == "page" {
			continue
		}
		sb.WriteString(strings.ToUpper(w[:1]) + w[1:])
		if sb.Len() > 40 {
			break
		}
	}
	name := sb.String()
	if name == "" || (name[0] >= '0' && name[0] <= '9') {
		name = "Target" + name
	}
	return name + "Page"
}

// snake converts text or camelCase identifiers to snake_case.
func snake(s string) string {
	s = camelBoundary.ReplaceAllString(s, "${1}_${2}")
	return strings.Trim(nonIdentifier.ReplaceAllString(strings.ToLower(s), "_"), "_")
}

// nameSet hands out unique identifiers by suffixing repeats.
type nameSet map[string]int

func newNameSet() nameSet { return make(nameSet) }

func (s nameSet) unique(name string) string {
	s[name]++
	if n := s[name]; n > 1 {
		candidate := fmt.Sprintf("%s_%d", name, n)
		s[candidate]++
		return candidate
	}
	return name
}
