package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/testforge/internal/connectors/filesystem"
	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/core/services"
)

var (
	indexStatusJSON bool
	watchDelay      time.Duration
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the knowledge base index",
	Long: `Build and inspect the knowledge base that grounds generated test cases.

Each build produces a new snapshot. The previous snapshot keeps serving
requests until the new one is complete.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build PATH...",
	Short: "Index specification documents",
	Long: `Index Markdown, HTML, text and JSON files. Directories are read
recursively; hidden files and unsupported types are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIndexBuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active snapshot",
	RunE:  runIndexStatus,
}

var indexWatchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Rebuild the index when documents change",
	Long: `Build the index from DIR, then watch it and rebuild after every change.
Bursts of changes are coalesced into a single rebuild.`,
	Args: cobra.ExactArgs(1),
	RunE: runIndexWatch,
}

func init() {
	indexStatusCmd.Flags().BoolVar(&indexStatusJSON, "json", false, "output status as JSON")
	indexWatchCmd.Flags().DurationVar(&watchDelay, "delay", services.DefaultRebuildDelay, "quiet period before a rebuild")

	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
	indexCmd.AddCommand(indexWatchCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}

	files, err := filesystem.LoadFiles(cmd.Context(), args, fileOptions(svc)...)
	if err != nil {
		return err
	}

	report, err := svc.Authoring.BuildIndex(cmd.Context(), files)
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	printBuildReport(cmd, report)
	return nil
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}

	status := svc.Authoring.IndexStatus()
	if indexStatusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	if status.SnapshotID == "" {
		cmd.Println("No index built. Run 'testforge index build PATH' first.")
		return nil
	}

	cmd.Printf("Snapshot:   %s\n", status.SnapshotID)
	cmd.Printf("State:      %s\n", status.State)
	cmd.Printf("Chunks:     %d\n", status.ChunkCount)
	cmd.Printf("Built at:   %s\n", status.BuiltAt.Local().Format(time.RFC1123))
	if status.Building {
		cmd.Println("A new build is in progress.")
	}
	cmd.Printf("Sources (%d):\n", len(status.Sources))
	for _, src := range status.Sources {
		cmd.Printf("  - %s\n", src)
	}
	return nil
}

func runIndexWatch(cmd *cobra.Command, args []string) error {
	svc, err := loadServices(cmd)
	if err != nil {
		return err
	}
	if svc.Index == nil {
		return errors.New("index service not configured")
	}

	conn := filesystem.New(args[0], fileOptions(svc)...)
	if err := conn.Validate(); err != nil {
		return err
	}
	defer conn.Close()

	ctx := cmd.Context()
	changes, err := conn.Watch(ctx)
	if err != nil {
		return err
	}

	rebuilder := services.NewRebuilder(svc.Index, conn.Load, watchDelay, func(r services.RebuildResult) {
		if r.Err != nil {
			cmd.PrintErrf("Rebuild failed: %v\n", r.Err)
			return
		}
		cmd.Printf("[%s] ", r.EndedAt.Format(time.TimeOnly))
		printBuildReport(cmd, r.Report)
	})

	done := make(chan error, 1)
	go func() { done <- rebuilder.Start(ctx) }()
	defer rebuilder.Stop()

	cmd.Printf("Watching %s (Ctrl+C to stop)\n", conn.Root())
	rebuilder.Trigger()

	for {
		select {
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			cmd.PrintErrf("%s %s\n", change.Type, change.Path)
			rebuilder.Trigger()
		case err := <-done:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
	}
}

// fileOptions restricts corpus files to the types the normalisers accept.
func fileOptions(svc *Services) []filesystem.Option {
	if svc.Accept == nil {
		return nil
	}
	return []filesystem.Option{filesystem.WithFilter(svc.Accept)}
}

func printBuildReport(cmd *cobra.Command, report *domain.BuildReport) {
	st := newStyles(cmd)
	cmd.Printf("Indexed %d chunk(s) from %d document(s) into snapshot %s\n",
		report.ChunksIndexed, report.Documents, report.SnapshotID)
	if n := domain.CountWarnings(report.Warnings, domain.WarningSkippedDocument); n > 0 {
		cmd.Println(st.warning.Render(fmt.Sprintf("Skipped %d document(s):", n)))
		for _, w := range report.Warnings {
			cmd.Println(st.muted.Render("  " + strings.TrimSpace(w.Ref+" "+w.Message)))
		}
	}
}
