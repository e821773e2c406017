package domain

import (
	"fmt"
	"sort"
)

// Role is the inferred interaction role of a page element.
type Role string

// Element roles.
const (
	RoleInput    Role = "input"
	RoleButton   Role = "button"
	RoleSelect   Role = "select"
	RoleCheckbox Role = "checkbox"
	RoleLink     Role = "link"
	RoleOther    Role = "other"
)

// ElementNode is one interactive element of an HTML document.
type ElementNode struct {
	// ID is the node identifier within the graph ("n1", "n2", ...).
	ID string `json:"id"`

	// Tag is the lower-case tag name.
	Tag string `json:"tag"`

	// Attributes holds the element attributes (id, name, type, ...).
	Attributes map[string]string `json:"attributes"`

	// Role is inferred from tag, type and role attributes.
	Role Role `json:"inferred_role"`

	// Label is the associated label, aria-label, placeholder or button text.
	Label string `json:"label,omitempty"`

	// Form identifies the enclosing form, empty when outside any form.
	Form string `json:"form,omitempty"`

	// Path is an absolute XPath that selects exactly this element.
	Path string `json:"path"`

	// Order is the document-order index.
	Order int `json:"order"`
}

// Attr returns an attribute value or "".
func (n *ElementNode) Attr(name string) string {
	return n.Attributes[name]
}

// HasAttr reports whether an attribute is present.
func (n *ElementNode) HasAttr(name string) bool {
	_, ok := n.Attributes[name]
	return ok
}

// EdgeKind is the kind of dependency between two elements.
type EdgeKind string

// Edge kinds.
const (
	// EdgePrecedes orders elements within a form.
	EdgePrecedes EdgeKind = "precedes"

	// EdgeEnables marks an element whose state enables another.
	EdgeEnables EdgeKind = "enables"
)

// DependencyEdge is a directed constraint between two element nodes.
type DependencyEdge struct {
	From string   `json:"from_node"`
	To   string   `json:"to_node"`
	Kind EdgeKind `json:"kind"`
}

// DependencyGraph is the analyzer output: interactive elements and the
// edges between them. An empty graph is a valid result for pages with no
// interactive elements or unparseable markup.
type DependencyGraph struct {
	Nodes []ElementNode    `json:"nodes"`
	Edges []DependencyEdge `json:"edges"`
	Title string           `json:"title,omitempty"`
}

// IsEmpty returns true if no interactive elements were found.
func (g *DependencyGraph) IsEmpty() bool {
	return g == nil || len(g.Nodes) == 0
}

// Node looks a node up by id.
func (g *DependencyGraph) Node(id string) (ElementNode, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return g.Nodes[i], true
		}
	}
	return ElementNode{}, false
}

// EdgesOfKind returns the edges of one kind.
func (g *DependencyGraph) EdgesOfKind(kind EdgeKind) []DependencyEdge {
	var out []DependencyEdge
	for _, e := range g.Edges {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// Precedence returns the transitive closure of precedes edges:
// closure[a][b] is true when a must be acted on before b.
func (g *DependencyGraph) Precedence() map[string]map[string]bool {
	adj := make(map[string][]string)
	for _, e := range g.Edges {
		if e.Kind == EdgePrecedes {
			adj[e.From] = append(adj[e.From], e.To)
		}
	}

	closure := make(map[string]map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		reach := make(map[string]bool)
		stack := append([]string(nil), adj[n.ID]...)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if reach[cur] || cur == n.ID {
				continue
			}
			reach[cur] = true
			stack = append(stack, adj[cur]...)
		}
		closure[n.ID] = reach
	}
	return closure
}

// FillOrder returns node ids in an order consistent with all edges,
// breaking ties by document order. Nodes caught in a cycle are appended
// in document order.
func (g *DependencyGraph) FillOrder() []string {
	order := make(map[string]int, len(g.Nodes))
	for _, n := range g.Nodes {
		order[n.ID] = n.Order
	}

	indegree := make(map[string]int, len(g.Nodes))
	adj := make(map[string][]string)
	seenEdge := make(map[[2]string]bool)
	for _, e := range g.Edges {
		key := [2]string{e.From, e.To}
		if seenEdge[key] || e.From == e.To {
			continue
		}
		if _, ok := order[e.From]; !ok {
			continue
		}
		if _, ok := order[e.To]; !ok {
			continue
		}
		seenEdge[key] = true
		adj[e.From] = append(adj[e.From], e.To)
		indegree[e.To]++
	}

	var ready []string
	for _, n := range g.Nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	result := make([]string, 0, len(g.Nodes))
	placed := make(map[string]bool, len(g.Nodes))
	for len(ready) > 0 {
		sort.SliceStable(ready, func(i, j int) bool { return order[ready[i]] < order[ready[j]] })
		cur := ready[0]
		ready = ready[1:]
		result = append(result, cur)
		placed[cur] = true
		for _, next := range adj[cur] {
			indegree[next]--
			if indegree[next] == 0 {
				ready = append(ready, next)
			}
		}
	}

	for _, n := range g.Nodes {
		if !placed[n.ID] {
			result = append(result, n.ID)
		}
	}
	return result
}

// LocatorStrategy is how a locator selects its element.
type LocatorStrategy string

// Locator strategies, in order of preference.
const (
	LocateByID    LocatorStrategy = "id"
	LocateByName  LocatorStrategy = "name"
	LocateByXPath LocatorStrategy = "xpath"
)

// Locator is a stable selector for one element node. Locators are derived
// from the graph on demand and never stored separately.
type Locator struct {
	// Name is the page-object constant holding the locator.
	Name string `json:"name,omitempty"`

	NodeID   string          `json:"node_id"`
	Strategy LocatorStrategy `json:"strategy"`
	Value    string          `json:"value"`
}

// LocatorFor derives the locator for a node: its id when unique in the
// graph, then its name when unique, then its structural path.
func (g *DependencyGraph) LocatorFor(nodeID string) (Locator, error) {
	node, ok := g.Node(nodeID)
	if !ok {
		return Locator{}, fmt.Errorf("%w: node %s", ErrNotFound, nodeID)
	}

	if id := node.Attr("id"); id != "" && g.countAttr("id", id) == 1 {
		return Locator{NodeID: nodeID, Strategy: LocateByID, Value: id}, nil
	}
	if name := node.Attr("name"); name != "" && g.countAttr("name", name) == 1 {
		return Locator{NodeID: nodeID, Strategy: LocateByName, Value: name}, nil
	}
	return Locator{NodeID: nodeID, Strategy: LocateByXPath, Value: node.Path}, nil
}

// Resolve returns the nodes a locator selects within the graph.
func (g *DependencyGraph) Resolve(loc Locator) []ElementNode {
	var out []ElementNode
	for _, n := range g.Nodes {
		var match bool
		switch loc.Strategy {
		case LocateByID:
			match = n.Attr("id") == loc.Value
		case LocateByName:
			match = n.Attr("name") == loc.Value
		case LocateByXPath:
			match = n.Path == loc.Value
		}
		if match {
			out = append(out, n)
		}
	}
	return out
}

func (g *DependencyGraph) countAttr(name, value string) int {
	n := 0
	for i := range g.Nodes {
		if g.Nodes[i].Attr(name) == value {
			n++
		}
	}
	return n
}
