// Package cli implements the tome command line.
//
// Commands reach the core through driving ports only. The ports are
// installed either directly with SetServices (tests, embedding) or lazily
// by a Bootstrap function that runs before any command needing them.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tome/internal/core/ports/driving"
	"github.com/custodia-labs/tome/internal/logger"
)

// version is set at build time.
var version = "dev"

// defaultGameSystem is used when --game-system is not given.
const defaultGameSystem = "dnd5e"

// Services bundles the driving ports used by commands.
type Services struct {
	Ingestion driving.IngestionService
	Retrieval driving.RetrievalService
	Settings  driving.SettingsService

	// Supports reports whether a file can be ingested. Optional.
	Supports func(path string) bool
}

// Options are the global flag values passed to Bootstrap.
type Options struct {
	ConfigPath string
}

// Bootstrap builds the services for a command run. The returned cleanup
// function is called after the command finishes.
type Bootstrap func(ctx context.Context, opts Options) (*Services, func() error, error)

var (
	ingestionService driving.IngestionService
	retrievalService driving.RetrievalService
	settingsService  driving.SettingsService
	supportsFile     func(path string) bool

	bootstrap Bootstrap
	cleanup   func() error
)

// Global flags.
var (
	configPath string
	verbose    bool
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "tome",
	Short: "Rulebook retrieval for tabletop RPGs",
	Long: `tome ingests tabletop RPG rulebooks and answers rules questions with
citations back to the printed page.

Books are split into chunks that never break a spell, feat or table,
embedded, and indexed for hybrid (semantic + keyword) search.`,
	SilenceUsage:       true,
	PersistentPreRunE:  preRun,
	PersistentPostRunE: postRun,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "config file (default ~/.tome/config.toml, or $TOME_CONFIG)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	flags.StringVar(&logFormat, "log-format", logger.FormatConsole, "log format: console or json")
}

// SetServices installs the driving ports used by commands.
func SetServices(s *Services) {
	if s == nil {
		s = &Services{}
	}
	ingestionService = s.Ingestion
	retrievalService = s.Retrieval
	settingsService = s.Settings
	supportsFile = s.Supports
}

// SetBootstrap installs the function that builds services before a command runs.
func SetBootstrap(b Bootstrap) {
	bootstrap = b
}

// SetVersion sets the version reported by "tome version".
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command. Cleanup runs even when the command fails.
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	return errors.Join(err, postRun(nil, nil))
}

func preRun(cmd *cobra.Command, _ []string) error {
	logger.SetVerbose(verbose)
	if err := logger.SetFormat(logFormat); err != nil {
		return err
	}

	if !needsServices(cmd) || bootstrap == nil {
		return nil
	}

	path := configPath
	if path == "" {
		path = os.Getenv("TOME_CONFIG")
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svcs, closeFn, err := bootstrap(ctx, Options{ConfigPath: path})
	if err != nil {
		return fmt.Errorf("initialising: %w", err)
	}
	SetServices(svcs)
	cleanup = closeFn
	return nil
}

func postRun(_ *cobra.Command, _ []string) error {
	if cleanup == nil {
		return nil
	}
	fn := cleanup
	cleanup = nil
	return fn()
}

// needsServices is false for commands that work without a configured core.
func needsServices(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "version", "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return false
	}
	return true
}

var (
	errIngestionUnavailable = errors.New("ingestion service not configured")
	errRetrievalUnavailable = errors.New("retrieval service not configured")
	errSettingsUnavailable  = errors.New("settings service not configured")
)
