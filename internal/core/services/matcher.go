package services

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/sahilm/fuzzy"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// DefaultMatchThreshold is the minimum score for a step to map onto an element.
const DefaultMatchThreshold = 0.5

// stepVerbs maps leading verbs to actions. Inflected forms are
// reduced by stemVerb before lookup.
var stepVerbs = map[string]domain.ActionKind{
	"enter": domain.ActionFill, "type": domain.ActionFill, "input": domain.ActionFill,
	"fill": domain.ActionFill, "provide": domain.ActionFill, "write": domain.ActionFill,
	"set": domain.ActionFill, "add": domain.ActionFill,
	"select": domain.ActionSelect, "choose": domain.ActionSelect, "pick": domain.ActionSelect,
	"check": domain.ActionCheck, "tick": domain.ActionCheck, "accept": domain.ActionCheck,
	"agree": domain.ActionCheck, "toggle": domain.ActionCheck, "uncheck": domain.ActionCheck,
	"click": domain.ActionClick, "press": domain.ActionClick, "tap": domain.ActionClick,
	"submit": domain.ActionClick, "hit": domain.ActionClick, "follow": domain.ActionClick,
	"verify": domain.ActionVerify, "confirm": domain.ActionVerify, "ensure": domain.ActionVerify,
	"observe": domain.ActionVerify, "assert": domain.ActionVerify, "expect": domain.ActionVerify,
	"see": domain.ActionVerify, "validate": domain.ActionVerify,
	"open": domain.ActionNavigate, "navigate": domain.ActionNavigate, "go": domain.ActionNavigate,
	"visit": domain.ActionNavigate, "load": domain.ActionNavigate,
}

// leadingFiller is skipped before the verb ("The user enters ...").
var leadingFiller = map[string]bool{"the": true, "user": true, "then": true, "and": true, "now": true, "customer": true}

// targetFiller is dropped from target phrases.
var targetFiller = map[string]bool{
	"the": true, "a": true, "an": true, "field": true, "box": true, "textbox": true,
	"value": true, "option": true, "on": true, "in": true, "into": true, "of": true,
	"to": true, "from": true, "with": true, "is": true, "that": true, "are": true,
	"page": true, "again": true,
}

// roleWords name element roles inside a target phrase.
var roleWords = map[string]domain.Role{
	"button": domain.RoleButton, "btn": domain.RoleButton,
	"checkbox": domain.RoleCheckbox, "radio": domain.RoleCheckbox,
	"dropdown": domain.RoleSelect, "select": domain.RoleSelect, "menu": domain.RoleSelect,
	"link": domain.RoleLink, "input": domain.RoleInput,
}

var (
	quotedValue   = regexp.MustCompile(`(?:^|\s)["'\x{201c}\x{2018}]([^"'\x{201c}\x{201d}\x{2018}\x{2019}]+)["'\x{201d}\x{2019}]`)
	camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	prepositions  = []*regexp.Regexp{
		regexp.MustCompile(`(?i) into `),
		regexp.MustCompile(`(?i) in `),
		regexp.MustCompile(`(?i) on `),
		regexp.MustCompile(`(?i) from `),
		regexp.MustCompile(`(?i) for `),
		regexp.MustCompile(`(?i) to `),
	}
)

// StepMatcher maps step phrases onto page elements by normalised string
// similarity between the step target and element descriptors.
type StepMatcher struct {
	threshold float64
}

// NewStepMatcher creates a matcher. A non-positive threshold uses DefaultMatchThreshold.
func NewStepMatcher(threshold float64) *StepMatcher {
	if threshold <= 0 {
		threshold = DefaultMatchThreshold
	}
	return &StepMatcher{threshold: threshold}
}

// Threshold returns the minimum match score.
func (m *StepMatcher) Threshold() float64 {
	return m.threshold
}

// Match parses one step and resolves it against graph. The returned
// action carries the best node only when its score exceeds the threshold.
func (m *StepMatcher) Match(graph *domain.DependencyGraph, index int, step string) domain.StepAction {
	action, target, value := ParseStep(step)
	result := domain.StepAction{Index: index, Text: step, Action: action, Target: target, Value: value}
	if graph.IsEmpty() || target == "" {
		return result
	}

	tokens, hint := targetTokens(target)
	if len(tokens) == 0 {
		return result
	}

	bestScore := 0.0
	var best *domain.ElementNode
	for i := range graph.Nodes {
		node := &graph.Nodes[i]
		score := scoreNode(node, tokens, hint, action)
		if score > bestScore || (score == bestScore && best != nil && betterRole(node, best, action)) {
			bestScore, best = score, node
		}
	}

	if best == nil || bestScore <= m.threshold {
		result.Score = bestScore
		return result
	}

	result.NodeID = best.ID
	result.Score = bestScore
	if action == domain.ActionUnknown {
		result.Action = defaultAction(best.Role)
	}
	if result.Action == domain.ActionSelect && result.Value == "" {
		result.Value = leftoverWords(target, best)
	}
	return result
}

// ParseStep extracts the action verb, target phrase and value of a step.
func ParseStep(step string) (domain.ActionKind, string, string) {
	text := strings.TrimSpace(strings.TrimRight(strings.TrimSpace(step), ".!"))

	var value string
	if m := quotedValue.FindStringSubmatchIndex(text); m != nil {
		value = text[m[2]:m[3]]
		text = strings.TrimSpace(text[:m[0]] + " " + text[m[1]:])
	}

	words := strings.Fields(text)
	for len(words) > 0 && leadingFiller[strings.ToLower(words[0])] {
		words = words[1:]
	}
	if len(words) == 0 {
		return domain.ActionUnknown, "", value
	}

	verb := stemVerb(strings.ToLower(strings.Trim(words[0], ",:")))
	action, ok := stepVerbs[verb]
	if !ok {
		return domain.ActionUnknown, strings.Join(words, " "), value
	}
	rest := words[1:]

	// "Check that ..." asserts rather than ticks.
	if action == domain.ActionCheck && len(rest) > 0 {
		switch strings.ToLower(rest[0]) {
		case "that", "if", "whether":
			action, rest = domain.ActionVerify, rest[1:]
		}
	}
	if action == domain.ActionNavigate && len(rest) > 0 && strings.EqualFold(rest[0], "to") {
		rest = rest[1:]
	}

	phrase := strings.Join(rest, " ")
	if action != domain.ActionFill && action != domain.ActionSelect {
		return action, phrase, value
	}

	// "Enter SAVE10 in the promo code field": value before, target after.
	padded := " " + phrase + " "
	for _, prep := range prepositions {
		if loc := prep.FindStringIndex(padded); loc != nil {
			before := strings.TrimSpace(padded[:loc[0]])
			after := strings.TrimSpace(padded[loc[1]:])
			if after == "" {
				break
			}
			if value == "" {
				value = before
			} else if before != "" {
				after = before + " " + after
			}
			return action, after, value
		}
	}

	if value != "" || action == domain.ActionSelect {
		return action, phrase, value
	}

	// "Enter code SAVE10": value-like tokens are the value.
	var target, found []string
	for _, w := range rest {
		if looksLikeValue(w) {
			found = append(found, w)
		} else {
			target = append(target, w)
		}
	}
	return action, strings.Join(target, " "), strings.Join(found, " ")
}

// looksLikeValue reports whether a word is test data rather than a noun.
func looksLikeValue(w string) bool {
	w = strings.Trim(w, ",;:")
	if w == "" {
		return false
	}
	if strings.ContainsAny(w, "@$%") {
		return true
	}
	upper, letters := 0, 0
	for _, r := range w {
		switch {
		case unicode.IsDigit(r):
			return true
		case unicode.IsLetter(r):
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 2 && upper == letters
}

func stemVerb(w string) string {
	if _, ok := stepVerbs[w]; ok {
		return w
	}
	for _, suffix := range []string{"ing", "es", "ed", "s", "d"} {
		if base := strings.TrimSuffix(w, suffix); base != w {
			if _, ok := stepVerbs[base]; ok {
				return base
			}
			if _, ok := stepVerbs[base+"e"]; ok {
				return base + "e"
			}
		}
	}
	return w
}

// targetTokens splits a target phrase into match tokens and an optional role hint.
func targetTokens(target string) ([]string, domain.Role) {
	var hint domain.Role
	var tokens []string
	for _, tok := range splitIdentifier(target) {
		if role, ok := roleWords[tok]; ok {
			hint = role
			continue
		}
		if targetFiller[tok] || stopwords[tok] {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens, hint
}

// splitIdentifier tokenizes text, also breaking camelCase identifiers.
func splitIdentifier(s string) []string {
	return domain.Tokenize(camelBoundary.ReplaceAllString(s, "$1 $2"))
}

// descriptorTokens collects the words that describe an element.
func descriptorTokens(n *domain.ElementNode) []string {
	var parts []string
	for _, key := range []string{"id", "name", "placeholder", "aria-label", "title", "value"} {
		if v := n.Attr(key); v != "" {
			parts = append(parts, v)
		}
	}
	parts = append(parts, n.Label)
	return splitIdentifier(strings.Join(parts, " "))
}

// scoreNode is the fraction of target tokens found among the element's
// descriptors, adjusted for role compatibility with the action.
func scoreNode(n *domain.ElementNode, tokens []string, hint domain.Role, action domain.ActionKind) float64 {
	desc := descriptorTokens(n)
	if len(desc) == 0 {
		return 0
	}

	total := 0.0
	for _, t := range tokens {
		best := 0.0
		for _, d := range desc {
			if s := tokenSimilarity(t, d); s > best {
				best = s
			}
		}
		total += best
	}
	score := total / float64(len(tokens))

	if !roleCompatible(action, n.Role) {
		score *= 0.5
	}
	if hint != "" && hint == n.Role {
		score += 0.1
	}
	return min(score, 1)
}

// tokenSimilarity scores two tokens: exact, plural variants, then
// abbreviations such as "btn" for "button" or "qty" for "quantity".
func tokenSimilarity(a, b string) float64 {
	switch {
	case a == b:
		return 1
	case strings.TrimSuffix(a, "s") == strings.TrimSuffix(b, "s"),
		strings.TrimSuffix(a, "es") == b, strings.TrimSuffix(b, "es") == a:
		return 0.9
	}

	short, long := a, b
	if len(short) > len(long) {
		short, long = long, short
	}
	if len(short) < 3 || short[0] != long[0] {
		return 0
	}
	if strings.HasPrefix(long, short) {
		return 0.8
	}
	if len(fuzzy.Find(short, []string{long})) > 0 {
		return 0.7
	}
	return 0
}

func roleCompatible(action domain.ActionKind, role domain.Role) bool {
	switch action {
	case domain.ActionFill:
		return role == domain.RoleInput
	case domain.ActionSelect:
		return role == domain.RoleSelect || role == domain.RoleCheckbox
	case domain.ActionCheck:
		return role == domain.RoleCheckbox
	case domain.ActionClick:
		return role == domain.RoleButton || role == domain.RoleLink || role == domain.RoleOther || role == domain.RoleCheckbox
	case domain.ActionNavigate:
		return role == domain.RoleLink
	default:
		return true
	}
}

// betterRole breaks score ties: a role-compatible node wins, then document order.
func betterRole(candidate, current *domain.ElementNode, action domain.ActionKind) bool {
	return roleCompatible(action, candidate.Role) && !roleCompatible(action, current.Role)
}

func defaultAction(role domain.Role) domain.ActionKind {
	switch role {
	case domain.RoleInput:
		return domain.ActionFill
	case domain.RoleSelect:
		return domain.ActionSelect
	case domain.RoleCheckbox:
		return domain.ActionCheck
	default:
		return domain.ActionClick
	}
}

// leftoverWords returns target words that do not describe the node,
// used as the option text of "Select Express shipping".
func leftoverWords(target string, n *domain.ElementNode) string {
	desc := make(map[string]bool)
	for _, d := range descriptorTokens(n) {
		desc[d] = true
	}
	var out []string
	for _, w := range strings.Fields(target) {
		lw := strings.ToLower(strings.Trim(w, ",.;:"))
		if desc[lw] || targetFiller[lw] {
			continue
		}
		if _, ok := roleWords[lw]; ok {
			continue
		}
		out = append(out, w)
	}
	return strings.Join(out, " ")
}
