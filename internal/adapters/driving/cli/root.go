// Package cli implements the enricher command-line interface.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
	"github.com/custodia-labs/enricher/internal/logger"
)

// version is set at build time.
var version = "dev"

// Options carries the global flags to the bootstrap function.
type Options struct {
	// ConfigPath overrides the default config file location.
	ConfigPath string

	// Verbose enables debug logging.
	Verbose bool

	// SettingsOnly is set for commands that only read or write settings,
	// so a broken configuration can still be inspected and fixed.
	SettingsOnly bool
}

// Services holds what the commands run against.
type Services struct {
	Runner      driving.Runner
	Records     driving.RecordService
	Settings    driving.SettingsService
	Source      driven.WatchableSource
	Hasher      driven.ContentHasher
	Concurrency int

	// Close releases stores and clients. May be nil.
	Close func()
}

// Bootstrap builds the services for a command invocation.
type Bootstrap func(opts Options) (*Services, error)

// Services used by commands. Tests assign these directly.
var (
	runner          driving.Runner
	recordService   driving.RecordService
	settingsService driving.SettingsService
	documentSource  driven.WatchableSource
	contentHasher   driven.ContentHasher

	bootstrap     Bootstrap
	closeServices func()
)

// concurrency bounds documents in flight for batch and watch.
var concurrency = 4

// Global flags.
var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "enricher",
	Short: "Fingerprint, deduplicate and enrich documents",
	Long: `Enricher fingerprints each document, skips content it has already seen,
extracts text and records language, entities, key phrases and a summary.

Records are append-only and can be read back with the record commands or
through the MCP server.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: teardown,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.enricher/config.toml)")
}

// Execute runs the root command with the given bootstrap and version.
func Execute(ctx context.Context, boot Bootstrap, v string) error {
	bootstrap = boot
	if v != "" {
		version = v
	}
	return rootCmd.ExecuteContext(ctx)
}

// setup configures logging and builds the services unless the command
// needs none.
func setup(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)

	if bootstrap == nil || cmd == versionCmd {
		return nil
	}

	svc, err := bootstrap(Options{
		ConfigPath:   configPath,
		Verbose:      verbose,
		SettingsOnly: isSettingsCommand(cmd),
	})
	if err != nil {
		return err
	}
	if svc == nil {
		return errors.New("bootstrap returned no services")
	}

	runner = svc.Runner
	recordService = svc.Records
	settingsService = svc.Settings
	documentSource = svc.Source
	contentHasher = svc.Hasher
	if svc.Concurrency > 0 {
		concurrency = svc.Concurrency
	}
	closeServices = svc.Close
	return nil
}

func teardown(_ *cobra.Command, _ []string) {
	if closeServices != nil {
		closeServices()
		closeServices = nil
	}
}

func isSettingsCommand(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c == settingsCmd {
			return true
		}
	}
	return false
}
