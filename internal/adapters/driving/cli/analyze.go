package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

var analyzeJSON bool

var analyzeCmd = &cobra.Command{
	Use:   "analyze PAGE",
	Short: "List the interactive elements of an HTML page",
	Long: `Parse an HTML page and print its interactive elements, the locator
each would be found by, and the order a form is filled in.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the dependency graph as JSON")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	html, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading page: %w", err)
	}

	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}

	graph := svc.Authoring.AnalyzePage(string(html))
	if graph == nil {
		graph = &domain.DependencyGraph{}
	}

	if analyzeJSON {
		data, err := json.MarshalIndent(struct {
			Graph     *domain.DependencyGraph `json:"graph"`
			FillOrder []string                `json:"fill_order"`
		}{graph, graph.FillOrder()}, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal graph: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if graph.IsEmpty() {
		cmd.Println("No interactive elements found.")
		return nil
	}

	st := newStyles(cmd)
	if graph.Title != "" {
		cmd.Println(st.title.Render(graph.Title))
	}
	cmd.Printf("%d element(s), %d dependency edge(s)\n\n", len(graph.Nodes), len(graph.Edges))
	for i := range graph.Nodes {
		n := &graph.Nodes[i]
		locator := st.muted.Render("(no stable locator)")
		if loc, err := graph.LocatorFor(n.ID); err == nil {
			locator = fmt.Sprintf("%s=%s", loc.Strategy, loc.Value)
		}
		label := strings.TrimSpace(n.Label)
		cmd.Printf("  %-6s %-10s %-40s %s\n", n.ID, n.Role, locator, label)
	}

	if order := graph.FillOrder(); len(order) > 0 {
		cmd.Printf("\nFill order: %s\n", strings.Join(order, " -> "))
	}
	return nil
}
