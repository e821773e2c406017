package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

// Output formats for generated test cases.
const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// styles holds the terminal styles for one output stream.
type styles struct {
	title    lipgloss.Style
	grounded lipgloss.Style
	review   lipgloss.Style
	warning  lipgloss.Style
	muted    lipgloss.Style
}

// newStyles renders for the command's output, so colours are dropped
// when it is not a terminal.
func newStyles(cmd *cobra.Command) styles {
	r := lipgloss.NewRenderer(cmd.OutOrStdout())
	return styles{
		title:    r.NewStyle().Bold(true),
		grounded: r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		review:   r.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
		warning:  r.NewStyle().Foreground(lipgloss.Color("3")),
		muted:    r.NewStyle().Faint(true),
	}
}

func (s styles) badge(c domain.Confidence) string {
	if c == domain.ConfidenceGrounded {
		return s.grounded.Render("[grounded]")
	}
	return s.review.Render("[needs review]")
}

// printWarnings writes one line per warning.
func printWarnings(cmd *cobra.Command, st styles, warnings []domain.Warning) {
	for _, w := range warnings {
		line := fmt.Sprintf("warning: %s", w.Message)
		if w.Ref != "" {
			line = fmt.Sprintf("warning: %s: %s", w.Ref, w.Message)
		}
		cmd.Println(st.warning.Render(line))
	}
}

// writeTestCasesText prints test cases for a human reader.
func writeTestCasesText(cmd *cobra.Command, resp *domain.GenerateTestCasesResponse) {
	st := newStyles(cmd)

	if len(resp.TestCases) == 0 {
		cmd.Println("No test cases generated.")
	}
	for i := range resp.TestCases {
		tc := &resp.TestCases[i]
		cmd.Printf("%s %s %s\n", st.title.Render(tc.ID), tc.Scenario, st.badge(tc.Confidence))
		cmd.Println(st.muted.Render(fmt.Sprintf("  %s | %s | %s", tc.Feature, tc.Type, tc.Priority)))
		for n, step := range tc.Steps {
			cmd.Printf("  %d. %s\n", n+1, step)
		}
		cmd.Printf("  Expected: %s\n", tc.ExpectedResult)
		if len(tc.GroundedIn) > 0 {
			cmd.Println(st.muted.Render("  Sources: " + strings.Join(tc.GroundedIn, ", ")))
		}
		cmd.Println()
	}

	cmd.Printf("%d test case(s) from %d chunk(s) of snapshot %s\n", resp.Count, resp.RetrievedChunks, resp.SnapshotID)
	printWarnings(cmd, st, resp.Warnings)
}

// encodeTestCases renders the response in a machine-readable format.
func encodeTestCases(w io.Writer, format string, resp *domain.GenerateTestCasesResponse) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(casesFile{TestCases: resp.TestCases}); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("%w: unknown format %q", domain.ErrInvalidInput, format)
	}
}

// casesFile is the document layout of a test case file.
type casesFile struct {
	TestCases []domain.TestCase `json:"test_cases" yaml:"test_cases"`
}

// parseCasesFile accepts a bare list of test cases or a document with a
// test_cases key, in YAML or JSON.
func parseCasesFile(data []byte) ([]domain.TestCase, error) {
	var doc casesFile
	if err := yaml.Unmarshal(data, &doc); err == nil && len(doc.TestCases) > 0 {
		return doc.TestCases, nil
	}

	var list []domain.TestCase
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("%w: test case file: %w", domain.ErrInvalidInput, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: test case file contains no test cases", domain.ErrInvalidInput)
	}
	return list, nil
}

// writeOutput writes data to path, or to the command output when path is empty.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	cmd.PrintErrf("Wrote %s\n", path)
	return nil
}
