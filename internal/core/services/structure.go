package services

import (
	"cmp"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/logger"
)

var (
	// Script hints: elements whose listeners toggle another element's disabled state.
	scriptSource = regexp.MustCompile(`(?:getElementById\(\s*['"]([\w-]+)['"]\s*\)|querySelector\(\s*['"]#([\w-]+)['"]\s*\))`)
	scriptTarget = regexp.MustCompile(`(?:getElementById\(\s*['"]([\w-]+)['"]\s*\)|querySelector\(\s*['"]#([\w-]+)['"]\s*\))\s*\.\s*(?:disabled\s*=|removeAttribute\(\s*['"]disabled['"]\s*\)|toggleAttribute\(\s*['"]disabled['"])`)
	listenerHint = regexp.MustCompile(`addEventListener|\.on(?:change|input|click|keyup)\s*=`)

	// enablerHint marks checkboxes that gate submission.
	enablerHint  = regexp.MustCompile(`(?i)terms|agree|accept|consent|conditions`)
	quantityHint = regexp.MustCompile(`(?i)quantity|qty`)
)

// StructureAnalyzer extracts interactive elements and their dependency
// edges from HTML. It is a total function: malformed or empty markup
// yields a smaller or empty graph, never an error.
type StructureAnalyzer struct{}

// NewStructureAnalyzer creates an analyzer.
func NewStructureAnalyzer() *StructureAnalyzer {
	return &StructureAnalyzer{}
}

// walkState carries context down the tree walk.
type walkState struct {
	graph   *domain.DependencyGraph
	labels  map[string]string
	scripts []string
	forms   int
}

// Analyze parses content and returns its dependency graph.
func (a *StructureAnalyzer) Analyze(content string) (graph *domain.DependencyGraph) {
	graph = &domain.DependencyGraph{Nodes: []domain.ElementNode{}, Edges: []domain.DependencyEdge{}}
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("HTML analysis aborted: %v", r)
			graph = &domain.DependencyGraph{Nodes: []domain.ElementNode{}, Edges: []domain.DependencyEdge{}}
		}
	}()

	root, err := html.Parse(strings.NewReader(content))
	if err != nil {
		logger.Warn("HTML parse failed: %v", err)
		return graph
	}

	st := &walkState{graph: graph, labels: collectLabels(root)}
	st.walk(root, "", "")

	graph.Title = strings.Join(strings.Fields(findText(root, "title")), " ")
	graph.Edges = append(graph.Edges, precedesEdges(graph.Nodes)...)
	graph.Edges = append(graph.Edges, submitEnableEdges(graph.Nodes)...)
	graph.Edges = append(graph.Edges, scriptEnableEdges(graph.Nodes, st.scripts)...)
	graph.Edges = dedupeEdges(graph.Edges)

	logger.Debug("Analyzed page %q: %d elements, %d edges", graph.Title, len(graph.Nodes), len(graph.Edges))
	return graph
}

func (st *walkState) walk(n *html.Node, form, wrappingLabel string) {
	if n.Type == html.ElementNode {
		switch n.Data {
		case "form":
			st.forms++
			form = firstNonEmpty(attr(n, "id"), attr(n, "name"), fmt.Sprintf("form%d", st.forms))
		case "label":
			wrappingLabel = collapse(textOf(n))
		case "script":
			st.scripts = append(st.scripts, textOf(n))
			return
		case "style", "template":
			return
		}

		if role, ok := inferRole(n); ok {
			st.addNode(n, role, form, wrappingLabel)
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		st.walk(c, form, wrappingLabel)
	}
}

func (st *walkState) addNode(n *html.Node, role domain.Role, form, wrappingLabel string) {
	attrs := make(map[string]string, len(n.Attr))
	for _, at := range n.Attr {
		attrs[strings.ToLower(at.Key)] = at.Val
	}
	if f := attrs["form"]; f != "" {
		form = f
	}

	order := len(st.graph.Nodes)
	st.graph.Nodes = append(st.graph.Nodes, domain.ElementNode{
		ID:         fmt.Sprintf("n%d", order+1),
		Tag:        n.Data,
		Attributes: attrs,
		Role:       role,
		Label:      st.labelFor(n, attrs, wrappingLabel),
		Form:       form,
		Path:       xpath(n),
		Order:      order,
	})
}

// labelFor resolves the human-readable label of a control.
func (st *walkState) labelFor(n *html.Node, attrs map[string]string, wrappingLabel string) string {
	if id := attrs["id"]; id != "" {
		if l := st.labels[id]; l != "" {
			return l
		}
	}
	ownText := collapse(textOf(n))
	if wrappingLabel != "" && n.Data != "select" {
		if l := collapse(strings.Replace(wrappingLabel, ownText, "", 1)); l != "" {
			return l
		}
	}
	candidates := []string{attrs["aria-label"], attrs["placeholder"], attrs["title"]}
	if n.Data == "button" || n.Data == "a" {
		candidates = append(candidates, ownText)
	}
	if n.Data == "input" {
		candidates = append(candidates, attrs["value"])
	}
	return collapse(firstNonEmpty(candidates...))
}

// inferRole maps an element to its interaction role.
func inferRole(n *html.Node) (domain.Role, bool) {
	switch strings.ToLower(attr(n, "role")) {
	case "textbox", "searchbox", "spinbutton":
		return domain.RoleInput, true
	case "button":
		return domain.RoleButton, true
	case "checkbox", "radio", "switch":
		return domain.RoleCheckbox, true
	case "combobox", "listbox":
		return domain.RoleSelect, true
	case "link":
		return domain.RoleLink, true
	}

	switch n.Data {
	case "input":
		switch strings.ToLower(attr(n, "type")) {
		case "hidden":
			return "", false
		case "checkbox", "radio":
			return domain.RoleCheckbox, true
		case "submit", "button", "reset", "image":
			return domain.RoleButton, true
		default:
			return domain.RoleInput, true
		}
	case "textarea":
		return domain.RoleInput, true
	case "select":
		return domain.RoleSelect, true
	case "button":
		return domain.RoleButton, true
	case "a":
		if hasAttr(n, "href") {
			return domain.RoleLink, true
		}
	}

	if hasAttr(n, "onclick") {
		return domain.RoleOther, true
	}
	return "", false
}

// precedesEdges orders consecutive elements of the same form.
func precedesEdges(nodes []domain.ElementNode) []domain.DependencyEdge {
	var edges []domain.DependencyEdge
	last := make(map[string]string)
	for _, n := range nodes {
		if n.Form == "" {
			continue
		}
		if prev, ok := last[n.Form]; ok {
			edges = append(edges, domain.DependencyEdge{From: prev, To: n.ID, Kind: domain.EdgePrecedes})
		}
		last[n.Form] = n.ID
	}
	return edges
}

// submitEnableEdges links the prerequisites of a disabled button in a form
// to that button: required fields, terms checkboxes, e-mail and quantity inputs.
func submitEnableEdges(nodes []domain.ElementNode) []domain.DependencyEdge {
	var edges []domain.DependencyEdge
	for _, btn := range nodes {
		if btn.Role != domain.RoleButton || btn.Form == "" {
			continue
		}
		if !btn.HasAttr("disabled") && btn.Attr("aria-disabled") != "true" {
			continue
		}
		for _, n := range nodes {
			if n.ID == btn.ID || n.Form != btn.Form || !isEnabler(n) {
				continue
			}
			edges = append(edges, domain.DependencyEdge{From: n.ID, To: btn.ID, Kind: domain.EdgeEnables})
		}
	}
	return edges
}

func isEnabler(n domain.ElementNode) bool {
	if n.Role == domain.RoleButton || n.Role == domain.RoleLink {
		return false
	}
	if n.HasAttr("required") || n.Attr("aria-required") == "true" {
		return true
	}
	descriptor := n.Attr("id") + " " + n.Attr("name") + " " + n.Label
	switch n.Role {
	case domain.RoleCheckbox:
		return enablerHint.MatchString(descriptor)
	case domain.RoleInput:
		return strings.EqualFold(n.Attr("type"), "email") || quantityHint.MatchString(descriptor)
	}
	return false
}

// scriptEnableEdges reads co-located scripts and inline handlers for
// listeners on one element that change another element's disabled state.
func scriptEnableEdges(nodes []domain.ElementNode, scripts []string) []domain.DependencyEdge {
	byID := make(map[string]string)
	for _, n := range nodes {
		if id := n.Attr("id"); id != "" {
			if _, dup := byID[id]; !dup {
				byID[id] = n.ID
			}
		}
	}

	var edges []domain.DependencyEdge
	link := func(sourceID string, targets map[string]bool) {
		from, ok := byID[sourceID]
		if !ok {
			return
		}
		for target := range targets {
			if to, ok := byID[target]; ok && to != from {
				edges = append(edges, domain.DependencyEdge{From: from, To: to, Kind: domain.EdgeEnables})
			}
		}
	}

	for _, script := range scripts {
		if !listenerHint.MatchString(script) {
			continue
		}
		targets := matchedIDs(scriptTarget, script)
		if len(targets) == 0 {
			continue
		}
		for source := range matchedIDs(scriptSource, script) {
			if !targets[source] {
				link(source, targets)
			}
		}
	}

	for _, n := range nodes {
		for _, handler := range []string{"onchange", "oninput", "onclick", "onkeyup"} {
			if code := n.Attr(handler); code != "" {
				link(n.Attr("id"), matchedIDs(scriptTarget, code))
			}
		}
	}

	// Map iteration above is unordered; sort for reproducible graphs.
	sortEdges(edges)
	return edges
}

func matchedIDs(re *regexp.Regexp, text string) map[string]bool {
	ids := make(map[string]bool)
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		if id := m[1] + m[2]; id != "" {
			ids[id] = true
		}
	}
	return ids
}

func dedupeEdges(edges []domain.DependencyEdge) []domain.DependencyEdge {
	seen := make(map[domain.DependencyEdge]bool, len(edges))
	out := make([]domain.DependencyEdge, 0, len(edges))
	for _, e := range edges {
		if !seen[e] {
			seen[e] = true
			out = append(out, e)
		}
	}
	return out
}

func sortEdges(edges []domain.DependencyEdge) {
	slices.SortFunc(edges, func(a, b domain.DependencyEdge) int {
		if c := cmp.Compare(nodeNumber(a.From), nodeNumber(b.From)); c != 0 {
			return c
		}
		return cmp.Compare(nodeNumber(a.To), nodeNumber(b.To))
	})
}

func nodeNumber(id string) int {
	n, _ := strconv.Atoi(strings.TrimPrefix(id, "n")) //nolint:errcheck // ids are generated
	return n
}

// collectLabels maps label[for] targets to label text.
func collectLabels(root *html.Node) map[string]string {
	labels := make(map[string]string)
	var visit func(*html.Node)
	visit = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "label" {
			if target := attr(n, "for"); target != "" {
				if _, seen := labels[target]; !seen {
					labels[target] = collapse(textOf(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(root)
	return labels
}

// xpath builds an absolute path that selects exactly n. Positional
// predicates are added where siblings share the tag name.
func xpath(n *html.Node) string {
	var parts []string
	for cur := n; cur != nil && cur.Type == html.ElementNode; cur = cur.Parent {
		index, total := 0, 0
		if cur.Parent != nil {
			for s := cur.Parent.FirstChild; s != nil; s = s.NextSibling {
				if s.Type == html.ElementNode && s.Data == cur.Data {
					total++
					if s == cur {
						index = total
					}
				}
			}
		}
		step := cur.Data
		if total > 1 {
			step = fmt.Sprintf("%s[%d]", cur.Data, index)
		}
		parts = append([]string{step}, parts...)
	}
	return "/" + strings.Join(parts, "/")
}

func findText(n *html.Node, tag string) string {
	if n.Type == html.ElementNode && n.Data == tag {
		return textOf(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findText(c, tag); t != "" {
			return t
		}
	}
	return ""
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "select" || c.Data == "script" || c.Data == "style") {
			continue
		}
		sb.WriteString(textOf(c))
		sb.WriteByte(' ')
	}
	return sb.String()
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return true
		}
	}
	return false
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// SummarizePage describes a page's interactive elements and fill order for
// inclusion in a generation prompt.
func SummarizePage(graph *domain.DependencyGraph) string {
	if graph.IsEmpty() {
		return ""
	}

	var sb strings.Builder
	if graph.Title != "" {
		fmt.Fprintf(&sb, "Title: %s\n", graph.Title)
	}
	sb.WriteString("Interactive elements:\n")
	for _, n := range graph.Nodes {
		fmt.Fprintf(&sb, "- %s %s", n.Role, describeNode(n))
		if n.Label != "" {
			fmt.Fprintf(&sb, " %q", n.Label)
		}
		if n.HasAttr("required") {
			sb.WriteString(" (required)")
		}
		if n.HasAttr("disabled") {
			sb.WriteString(" (initially disabled)")
		}
		sb.WriteByte('\n')
	}

	order := graph.FillOrder()
	names := make([]string, 0, len(order))
	for _, id := range order {
		if n, ok := graph.Node(id); ok {
			names = append(names, describeNode(n))
		}
	}
	fmt.Fprintf(&sb, "Fill order: %s\n", strings.Join(names, " -> "))
	return sb.String()
}

func describeNode(n domain.ElementNode) string {
	switch {
	case n.Attr("id") != "":
		return "#" + n.Attr("id")
	case n.Attr("name") != "":
		return "[name=" + n.Attr("name") + "]"
	default:
		return n.Tag
	}
}
