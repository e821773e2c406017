// Package cli implements the testforge command line with cobra.
package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/testforge/internal/core/ports/driving"
	"github.com/custodia-labs/testforge/internal/logger"
)

var version = "dev"

// Options are the global flags passed to the bootstrap function.
type Options struct {
	// Home overrides the testforge home directory.
	Home string

	// Ephemeral keeps config and snapshots in memory.
	Ephemeral bool
}

// Services are the driving ports the commands call.
type Services struct {
	Authoring driving.AuthoringService
	Index     driving.IndexService
	Settings  driving.SettingsService

	// Accept reports whether a corpus file can be normalised. Optional.
	Accept func(path string) bool

	// Warnings are printed once after bootstrap.
	Warnings []string

	// Close releases resources such as the snapshot database. Optional.
	Close func() error
}

// Bootstrap builds the services for the given options.
type Bootstrap func(ctx context.Context, opts Options) (*Services, error)

var (
	opts      Options
	verbose   bool
	bootstrap Bootstrap
	loaded    *Services
)

var rootCmd = &cobra.Command{
	Use:   "testforge",
	Short: "Grounded test-case and Selenium script authoring",
	Long: `testforge indexes specification documents, generates structured test cases
grounded in them with a language model, and turns test cases into Selenium
Page-Object-Model scripts for an HTML page.

Every generated test case is checked against the retrieved documentation.
Cases that cannot be traced to a source are marked needs_review.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print pipeline details to stderr")
	rootCmd.PersistentFlags().StringVar(&opts.Home, "home", "", "testforge home directory (default $TESTFORGE_HOME or ~/.testforge)")
	rootCmd.PersistentFlags().BoolVar(&opts.Ephemeral, "ephemeral", false, "keep settings and index in memory only")
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// SetBootstrap installs the function that builds services on first use.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetServices installs ready-made services, bypassing the bootstrap.
func SetServices(s *Services) {
	loaded = s
}

// Execute runs the root command until it finishes or the process is interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Sync()

	err := rootCmd.ExecuteContext(ctx)
	if loaded != nil && loaded.Close != nil {
		if cerr := loaded.Close(); cerr != nil {
			logger.Warn("Failed to close resources: %v", cerr)
		}
	}
	return err
}

// loadServices returns the services, bootstrapping them on first use.
func loadServices(cmd *cobra.Command) (*Services, error) {
	if loaded != nil {
		return loaded, nil
	}
	if bootstrap == nil {
		return nil, errors.New("services not configured")
	}

	s, err := bootstrap(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}
	for _, w := range s.Warnings {
		logger.Warn("%s", w)
	}
	loaded = s
	return s, nil
}
