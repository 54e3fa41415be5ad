package cli

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/tome/internal/adapters/driving/watcher"
	"github.com/custodia-labs/tome/internal/core/domain"
)

var (
	ingestGameSystem string
	ingestBook       string
	ingestVersion    string
	ingestFormat     string
	ingestChunkSize  int
	ingestOverlap    int
	ingestNoSemantic bool
	ingestWait       bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a rulebook",
	Long: `Extracts, classifies, chunks, embeds and indexes a rulebook.

The format is chosen from the file extension (.pdf, .md, .txt, .html,
.docx, or pre-extracted segments as .json/.yaml). The job id is printed
as soon as the job is queued and tome exits once the job is done; use
--wait to print its progress report, or "tome status" afterwards.
Ctrl-C stops the job, which can then be picked up with "tome resume".`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var statusCmd = &cobra.Command{
	Use:   "status [job-id]",
	Short: "Show the progress of an ingestion job",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List ingestion jobs",
	Args:  cobra.NoArgs,
	RunE:  runJobs,
}

var resumeCmd = &cobra.Command{
	Use:   "resume [job-id]",
	Short: "Resume a failed ingestion job",
	Long: `Restarts a failed or cancelled job at the stage where it stopped,
reusing everything the earlier run already produced.`,
	Args: cobra.ExactArgs(1),
	RunE: runResume,
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [job-id]",
	Short: "Cancel a running ingestion job",
	Long: `Cancels a job running in this process. Jobs started by another tome
process are stopped with Ctrl-C in that process.`,
	Args: cobra.ExactArgs(1),
	RunE:  runCancel,
}

var resumeWait bool

func init() {
	flags := ingestCmd.Flags()
	flags.StringVarP(&ingestGameSystem, "game-system", "s", defaultGameSystem, "rules system the book belongs to")
	flags.StringVarP(&ingestBook, "book", "b", "", "book title used in citations (default: file name)")
	flags.StringVar(&ingestVersion, "version", "", "book version or printing")
	flags.StringVar(&ingestFormat, "format", "", "override the format detected from the extension")
	flags.IntVar(&ingestChunkSize, "chunk-size", 0, "chunk size in tokens (default from config)")
	flags.IntVar(&ingestOverlap, "overlap", -1, "overlap between chunks in tokens (default from config)")
	flags.BoolVar(&ingestNoSemantic, "no-semantic", false, "cut chunks at the size limit without looking for sentence boundaries")
	flags.BoolVarP(&ingestWait, "wait", "w", false, "wait for the job to finish")

	resumeCmd.Flags().BoolVarP(&resumeWait, "wait", "w", false, "wait for the job to finish")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(jobsCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(cancelCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}

	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}

	req, err := buildSubmitRequest(cmd, path)
	if err != nil {
		return err
	}

	jobID, err := ingestionService.Submit(cmd.Context(), req)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	cmd.Printf("Submitted %s as job %s\n", req.Book, jobID)

	if !ingestWait {
		cmd.Printf("Finishing the job before exit; run 'tome status %s' for the report.\n", jobID)
		return nil
	}
	return waitAndReport(cmd, jobID)
}

// buildSubmitRequest turns flags into a request. Per-job configs start from
// the stored settings so that flags override only what they name.
func buildSubmitRequest(cmd *cobra.Command, path string) (domain.SubmitRequest, error) {
	req := domain.SubmitRequest{
		Document:   domain.DocumentRef{URI: path, Format: ingestFormat},
		GameSystem: ingestGameSystem,
		Book:       ingestBook,
		Version:    ingestVersion,
	}
	if req.Book == "" {
		req.Book = watcher.BookName(path)
	}

	if settingsService != nil {
		settings, err := settingsService.Get()
		if err != nil {
			return req, fmt.Errorf("loading settings: %w", err)
		}
		req.Chunking = settings.Chunking
		req.Extraction = settings.Extraction
		req.Embedding = settings.Embedding.Defaults
	} else {
		req.Chunking = domain.DefaultChunkConfig()
		req.Extraction = domain.DefaultExtractionConfig()
		req.Embedding = domain.DefaultEmbeddingConfig()
	}

	if cmd.Flags().Changed("chunk-size") {
		req.Chunking.Size = ingestChunkSize
	}
	if cmd.Flags().Changed("overlap") {
		req.Chunking.Overlap = ingestOverlap
	}
	if ingestNoSemantic {
		req.Chunking.Semantic = false
	}
	return req, nil
}

func waitAndReport(cmd *cobra.Command, jobID string) error {
	cmd.Println("Waiting for job to finish...")
	status, err := ingestionService.Wait(cmd.Context(), jobID)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	printStatus(cmd, status)
	if status.State == domain.JobFailed {
		return fmt.Errorf("job %s failed at %s: %s", jobID, status.Stage, status.Error)
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}
	status, err := ingestionService.Status(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("status failed: %w", err)
	}
	printStatus(cmd, status)
	return nil
}

func printStatus(cmd *cobra.Command, status *domain.Status) {
	cmd.Printf("Job:       %s\n", status.JobID)
	cmd.Printf("Document:  %s\n", status.DocumentID)
	cmd.Printf("State:     %s\n", status.State)
	if status.Stage != "" && status.Stage != status.State {
		cmd.Printf("Stage:     %s\n", status.Stage)
	}
	cmd.Printf("Chunks:    %d\n", status.Chunks)
	cmd.Printf("Indexed:   %d\n", status.Processed)
	if status.Error != "" {
		cmd.Printf("Error:     %s\n", status.Error)
	}
	if len(status.Failures) > 0 {
		cmd.Printf("Skipped:   %d\n", len(status.Failures))
		for _, f := range status.Failures {
			cmd.Printf("  - %s\n", f)
		}
	}
}

func runJobs(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}
	jobs, err := ingestionService.Jobs(cmd.Context())
	if err != nil {
		return fmt.Errorf("listing jobs: %w", err)
	}
	if len(jobs) == 0 {
		cmd.Println("No jobs.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tSTATE\tSTAGE\tCHUNKS\tINDEXED\tSKIPPED")
	for i := range jobs {
		j := &jobs[i]
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\n", j.JobID, j.State, j.Stage, j.Chunks, j.Processed, len(j.Failures))
	}
	return w.Flush()
}

func runResume(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}
	if err := ingestionService.Resume(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("resume failed: %w", err)
	}
	cmd.Printf("Resumed job %s\n", args[0])
	if resumeWait {
		return waitAndReport(cmd, args[0])
	}
	return nil
}

func runCancel(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errIngestionUnavailable
	}
	if err := ingestionService.Cancel(args[0]); err != nil {
		return fmt.Errorf("cancel failed: %w", err)
	}
	cmd.Printf("Cancelling job %s\n", args[0])
	return nil
}
