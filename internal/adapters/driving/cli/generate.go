package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/testforge/internal/core/domain"
)

var (
	casesFeature string
	casesHTML    string
	casesTopK    int
	casesFormat  string
	casesOutput  string

	scriptHTML      string
	scriptCases     string
	scriptFramework string
	scriptBrowser   string
	scriptKBContext bool
	scriptOutput    string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate test cases and Selenium scripts",
}

var generateCasesCmd = &cobra.Command{
	Use:   "cases PROMPT",
	Short: "Generate grounded test cases",
	Long: `Retrieve the documentation relevant to PROMPT and generate structured
test cases. Each case is verified against the retrieved chunks and marked
grounded or needs_review.

Examples:
  testforge generate cases "5 test cases for the discount code feature"
  testforge generate cases "checkout validation" --html checkout.html --format yaml -o cases.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerateCases,
}

var generateScriptCmd = &cobra.Command{
	Use:   "script",
	Short: "Generate a Selenium Page-Object-Model script",
	Long: `Turn test cases into a runnable Python Selenium script for an HTML page.
The cases file is YAML or JSON, either a list or a document with a
test_cases key, as written by 'testforge generate cases --format yaml'.`,
	Args: cobra.NoArgs,
	RunE: runGenerateScript,
}

func init() {
	generateCasesCmd.Flags().StringVar(&casesFeature, "feature", "", "feature under test")
	generateCasesCmd.Flags().StringVar(&casesHTML, "html", "", "HTML page under test")
	generateCasesCmd.Flags().IntVarP(&casesTopK, "top-k", "k", 0, "number of chunks to retrieve (default from settings)")
	generateCasesCmd.Flags().StringVarP(&casesFormat, "format", "f", formatText, "output format: text, json or yaml")
	generateCasesCmd.Flags().StringVarP(&casesOutput, "output", "o", "", "write to file instead of stdout")

	generateScriptCmd.Flags().StringVar(&scriptHTML, "html", "", "HTML page under test (required)")
	generateScriptCmd.Flags().StringVar(&scriptCases, "cases", "", "test case file, YAML or JSON (required)")
	generateScriptCmd.Flags().StringVar(&scriptFramework, "framework", "", "pytest or unittest (default from settings)")
	generateScriptCmd.Flags().StringVar(&scriptBrowser, "browser", "", "chrome, firefox or edge (default from settings)")
	generateScriptCmd.Flags().BoolVar(&scriptKBContext, "kb-context", false, "list knowledge base sources in the script header")
	generateScriptCmd.Flags().StringVarP(&scriptOutput, "output", "o", "", "write the script to file instead of stdout")
	_ = generateScriptCmd.MarkFlagRequired("html")
	_ = generateScriptCmd.MarkFlagRequired("cases")

	generateCmd.AddCommand(generateCasesCmd)
	generateCmd.AddCommand(generateScriptCmd)
	rootCmd.AddCommand(generateCmd)
}

func runGenerateCases(cmd *cobra.Command, args []string) error {
	switch casesFormat {
	case formatText, formatJSON, formatYAML:
	default:
		return fmt.Errorf("unknown format %q: use text, json or yaml", casesFormat)
	}

	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}

	req := domain.GenerateTestCasesRequest{
		Prompt:  args[0],
		Feature: casesFeature,
		TopK:    casesTopK,
	}
	if casesHTML != "" {
		html, err := os.ReadFile(casesHTML)
		if err != nil {
			return fmt.Errorf("reading page: %w", err)
		}
		req.HTMLContent = string(html)
	}

	resp, err := svc.Authoring.GenerateTestCases(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	if casesFormat == formatText && casesOutput == "" {
		writeTestCasesText(cmd, resp)
		return nil
	}
	format := casesFormat
	if format == formatText {
		format = formatYAML
	}
	return writeOutput(cmd, casesOutput, func(w io.Writer) error {
		return encodeTestCases(w, format, resp)
	})
}

func runGenerateScript(cmd *cobra.Command, _ []string) error {
	html, err := os.ReadFile(scriptHTML)
	if err != nil {
		return fmt.Errorf("reading page: %w", err)
	}
	data, err := os.ReadFile(scriptCases)
	if err != nil {
		return fmt.Errorf("reading test cases: %w", err)
	}
	cases, err := parseCasesFile(data)
	if err != nil {
		return err
	}

	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}

	resp, err := svc.Authoring.GenerateScript(cmd.Context(), domain.GenerateScriptRequest{
		HTMLContent:      string(html),
		HTMLFilename:     filepath.Base(scriptHTML),
		TestCases:        cases,
		Framework:        domain.Framework(scriptFramework),
		Browser:          domain.Browser(scriptBrowser),
		IncludeKBContext: scriptKBContext,
	})
	if err != nil {
		return fmt.Errorf("script generation failed: %w", err)
	}

	if err := writeOutput(cmd, scriptOutput, func(w io.Writer) error {
		_, err := io.WriteString(w, resp.Script)
		return err
	}); err != nil {
		return err
	}

	st := newStyles(cmd)
	cmd.PrintErrf("Covered %d test case(s), mapped %d element(s)\n", resp.TestCasesCovered, resp.ElementsMapped)
	for _, id := range resp.Uncovered {
		cmd.PrintErrln(st.review.Render("uncovered: " + id))
	}
	for _, w := range resp.Warnings {
		cmd.PrintErrln(st.warning.Render(fmt.Sprintf("warning: %s: %s", w.Ref, w.Message)))
	}
	return nil
}
