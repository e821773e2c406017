package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

const checkoutHTML = `<html><head><title>Checkout</title></head><body>
<form id="checkout">
  <label for="email">Email address</label>
  <input id="email" type="email" name="email" required>
  <input type="hidden" name="csrf" value="x">
  <label><input type="checkbox" id="terms"> I agree to the terms</label>
  <select id="shipping" name="shipping"><option>Standard</option><option>Express</option></select>
  <textarea name="notes" placeholder="Order notes"></textarea>
  <button id="placeOrder" type="submit" disabled>Place order</button>
</form>
<a href="/help">Help</a>
<div onclick="closeBanner()" aria-label="Close banner">x</div>
</body></html>`

func TestStructureAnalyzer_Analyze_Nodes(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(checkoutHTML)

	assert.Equal(t, "Checkout", graph.Title)
	require.Len(t, graph.Nodes, 7)

	tests := []struct {
		id    string
		tag   string
		role  domain.Role
		label string
		form  string
	}{
		{"n1", "input", domain.RoleInput, "Email address", "checkout"},
		{"n2", "input", domain.RoleCheckbox, "I agree to the terms", "checkout"},
		{"n3", "select", domain.RoleSelect, "", "checkout"},
		{"n4", "textarea", domain.RoleInput, "Order notes", "checkout"},
		{"n5", "button", domain.RoleButton, "Place order", "checkout"},
		{"n6", "a", domain.RoleLink, "Help", ""},
		{"n7", "div", domain.RoleOther, "Close banner", ""},
	}
	for i, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			n := graph.Nodes[i]
			assert.Equal(t, tt.id, n.ID)
			assert.Equal(t, i, n.Order)
			assert.Equal(t, tt.tag, n.Tag)
			assert.Equal(t, tt.role, n.Role)
			assert.Equal(t, tt.label, n.Label)
			assert.Equal(t, tt.form, n.Form)
		})
	}

	assert.Equal(t, "email", graph.Nodes[0].Attr("type"))
	assert.True(t, graph.Nodes[0].HasAttr("required"))
}

func TestStructureAnalyzer_Analyze_Paths(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(checkoutHTML)

	assert.Equal(t, "/html/body/form/input[1]", graph.Nodes[0].Path)
	assert.Equal(t, "/html/body/form/label[2]/input", graph.Nodes[1].Path)
	assert.Equal(t, "/html/body/form/select", graph.Nodes[2].Path)
	assert.Equal(t, "/html/body/a", graph.Nodes[5].Path)

	for _, n := range graph.Nodes {
		loc, err := graph.LocatorFor(n.ID)
		require.NoError(t, err)
		assert.Len(t, graph.Resolve(loc), 1, "locator for %s must be unique", n.ID)
	}
}

func TestStructureAnalyzer_Analyze_FormEdges(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(checkoutHTML)

	assert.Equal(t, []domain.DependencyEdge{
		{From: "n1", To: "n2", Kind: domain.EdgePrecedes},
		{From: "n2", To: "n3", Kind: domain.EdgePrecedes},
		{From: "n3", To: "n4", Kind: domain.EdgePrecedes},
		{From: "n4", To: "n5", Kind: domain.EdgePrecedes},
	}, graph.EdgesOfKind(domain.EdgePrecedes))

	assert.Equal(t, []domain.DependencyEdge{
		{From: "n1", To: "n5", Kind: domain.EdgeEnables},
		{From: "n2", To: "n5", Kind: domain.EdgeEnables},
	}, graph.EdgesOfKind(domain.EdgeEnables))
}

func TestStructureAnalyzer_Analyze_ScriptEdges(t *testing.T) {
	tests := []struct {
		name string
		html string
	}{
		{
			name: "event listener",
			html: `<input id="qty" type="number"><button id="buy" disabled>Buy</button>
<script>
document.getElementById('qty').addEventListener('input', function () {
  document.getElementById('buy').disabled = this.value < 1;
});
</script>`,
		},
		{
			name: "inline handler",
			html: `<input type="checkbox" id="agree" onchange="document.getElementById('buy').disabled = !this.checked">
<button id="buy" disabled>Buy</button>`,
		},
		{
			name: "query selector",
			html: `<input id="code"><button id="buy" disabled>Buy</button>
<script>
document.querySelector('#code').oninput = () => document.querySelector('#buy').removeAttribute('disabled');
</script>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			graph := NewStructureAnalyzer().Analyze(tt.html)
			require.Len(t, graph.Nodes, 2)
			assert.Equal(t, []domain.DependencyEdge{{From: "n1", To: "n2", Kind: domain.EdgeEnables}}, graph.Edges)
		})
	}
}

func TestStructureAnalyzer_Analyze_Roles(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(`
<div role="button" id="go">Go</div>
<span role="checkbox" id="opt"></span>
<div role="combobox" id="city"></div>
<input type="submit" value="Send">
<input type="radio" name="size" value="m">
<input type="search" name="q">
<a name="anchor">no href</a>
<p>plain text</p>`)

	roles := make([]domain.Role, 0, len(graph.Nodes))
	for _, n := range graph.Nodes {
		roles = append(roles, n.Role)
	}
	assert.Equal(t, []domain.Role{
		domain.RoleButton, domain.RoleCheckbox, domain.RoleSelect,
		domain.RoleButton, domain.RoleCheckbox, domain.RoleInput,
	}, roles)
	assert.Equal(t, "Send", graph.Nodes[3].Label)
}

func TestStructureAnalyzer_Analyze_SiblingIndex(t *testing.T) {
	graph := NewStructureAnalyzer().Analyze(`<div><button>One</button><button>Two</button></div>`)

	require.Len(t, graph.Nodes, 2)
	assert.Equal(t, "/html/body/div/button[1]", graph.Nodes[0].Path)
	assert.Equal(t, "/html/body/div/button[2]", graph.Nodes[1].Path)
}

func TestStructureAnalyzer_Analyze_Degenerate(t *testing.T) {
	inputs := []string{
		"",
		"not html at all",
		"<<<>>>",
		"<div><p>Only text</p></div>",
		"<form><input type='hidden' name='x'></form>",
		"<html><body><input id='a'",
	}

	for _, in := range inputs {
		graph := NewStructureAnalyzer().Analyze(in)
		require.NotNil(t, graph)
		assert.NotNil(t, graph.Nodes)
		assert.NotNil(t, graph.Edges)
		if in != "<html><body><input id='a'" {
			assert.True(t, graph.IsEmpty(), "input %q", in)
		}
	}
}

func TestStructureAnalyzer_Analyze_Deterministic(t *testing.T) {
	a := NewStructureAnalyzer().Analyze(checkoutHTML)
	b := NewStructureAnalyzer().Analyze(checkoutHTML)

	assert.Equal(t, a, b)
}

func TestSummarizePage(t *testing.T) {
	summary := SummarizePage(NewStructureAnalyzer().Analyze(checkoutHTML))

	assert.Contains(t, summary, "Title: Checkout\n")
	assert.Contains(t, summary, `- input #email "Email address" (required)`)
	assert.Contains(t, summary, `- button #placeOrder "Place order" (initially disabled)`)
	assert.Contains(t, summary, "Fill order: #email -> #terms -> #shipping -> [name=notes] -> #placeOrder -> a -> div\n")

	assert.Empty(t, SummarizePage(&domain.DependencyGraph{}))
	assert.Empty(t, SummarizePage(nil))
}
