package cli

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tome/internal/adapters/driving/tui"
)

var tuiGameSystem string

// tuiCmd represents the tui command.
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Launch the interactive terminal UI",
	Long: `Launch the interactive terminal user interface for tome.

Type a rules question and press Enter. Results show the content type,
score and citation of each matching chunk.

Controls:
  Enter     - Search
  Tab       - Cycle content-type filter
  ↑/k, ↓/j  - Navigate results
  Space     - Expand the selected result
  n or /    - New search
  ctrl+j    - Ingestion jobs
  ?         - Help (from the results list)
  ctrl+c    - Quit`,
	Args: cobra.NoArgs,
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVarP(&tuiGameSystem, "game-system", "s", defaultGameSystem, "rules system to search")
	rootCmd.AddCommand(tuiCmd)
}

// newTUIApp builds the TUI from the installed services.
func newTUIApp(cmd *cobra.Command) (*tui.App, error) {
	if retrievalService == nil {
		return nil, errRetrievalUnavailable
	}
	app, err := tui.NewApp(tui.NewPorts(retrievalService, ingestionService, tuiGameSystem))
	if err != nil {
		return nil, fmt.Errorf("failed to create TUI: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return app.WithContext(ctx), nil
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// Bubbletea owns the terminal; print panics after it lets go.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in TUI: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	app, err := newTUIApp(cmd)
	if err != nil {
		return err
	}
	if err := app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
