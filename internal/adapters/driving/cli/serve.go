package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/testforge/internal/adapters/driving/httpapi"
)

var (
	serveAddr    string
	serveMaxBody int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serve the authoring operations over HTTP:

  POST /build-kb             multipart "files" or JSON {"files": [...]}
  POST /generate-test-cases  {"prompt": "...", "top_k": 10}
  POST /generate-selenium    {"html_content": "...", "test_cases": [...]}
  POST /analyze-page         {"html_content": "..."}
  GET  /status
  GET  /healthz`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "127.0.0.1:8000", "listen address")
	serveCmd.Flags().Int64Var(&serveMaxBody, "max-body", httpapi.DefaultMaxBodyBytes, "maximum request body in bytes")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}

	server := httpapi.NewServer(svc.Authoring, httpapi.WithMaxBodyBytes(serveMaxBody))
	cmd.Printf("HTTP API listening on http://%s\n", serveAddr)
	return server.ListenAndServe(cmd.Context(), serveAddr)
}
