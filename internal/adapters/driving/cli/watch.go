package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/tome/internal/adapters/driving/watcher"
	"github.com/custodia-labs/tome/internal/core/domain"
)

var (
	watchGameSystem string
	watchVersion    string
	watchExisting   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest rulebooks as they appear in a directory",
	Long: `Watches a directory and submits an ingestion job for every supported
file that is created or changed. The book title comes from the file name.
Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	flags := watchCmd.Flags()
	flags.StringVarP(&watchGameSystem, "game-system", "s", defaultGameSystem, "rules system of the watched books")
	flags.StringVar(&watchVersion, "version", "", "book version applied to every file")
	flags.BoolVar(&watchExisting, "existing", false, "also ingest files already in the directory")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}

	template := domain.SubmitRequest{
		GameSystem: watchGameSystem,
		Version:    watchVersion,
		Chunking:   domain.DefaultChunkConfig(),
		Extraction: domain.DefaultExtractionConfig(),
		Embedding:  domain.DefaultEmbeddingConfig(),
	}
	if settingsService != nil {
		if settings, err := settingsService.Get(); err == nil {
			template.Chunking = settings.Chunking
			template.Extraction = settings.Extraction
			template.Embedding = settings.Embedding.Defaults
		}
	}

	opts := []watcher.Option{
		watcher.WithInitialScan(watchExisting),
		watcher.OnSubmit(func(path, jobID string, err error) {
			if err != nil {
				cmd.PrintErrf("%s: %v\n", path, err)
				return
			}
			cmd.Printf("%s -> job %s\n", path, jobID)
		}),
	}
	if supportsFile != nil {
		opts = append(opts, watcher.WithFilter(supportsFile))
	}

	w := watcher.New(args[0], ingestionService, template, opts...)
	cmd.Printf("Watching %s (Ctrl+C to stop)\n", args[0])
	return w.Run(cmd.Context())
}
