package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/tome/internal/core/domain"
)

const snippetLength = 240

var (
	searchGameSystem string
	searchTypes      []string
	searchBooks      []string
	searchVersions   []string
	searchLimit      int
	searchThreshold  float64
	searchJSON       bool
	searchYAML       bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed rulebooks",
	Long: `Performs hybrid search across indexed rulebooks.
Combines keyword (BM25) and semantic (vector) search, reranks the best
candidates and prints each result with its book and page citation.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var (
	statsGameSystem string
	statsJSON       bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show what is indexed for a game system",
	Long:  `Counts the indexed chunks of a game system, in total and per content type.`,
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var (
	similarGameSystem string
	similarLimit      int
	similarThreshold  float64
)

var similarCmd = &cobra.Command{
	Use:   "similar [text]",
	Short: "Find passages similar to a reference text",
	Long: `Finds rulebook passages that are semantically close to the given text,
using vector similarity only.`,
	Args: cobra.ExactArgs(1),
	RunE: runSimilar,
}

func init() {
	flags := searchCmd.Flags()
	flags.StringVarP(&searchGameSystem, "game-system", "s", defaultGameSystem, "rules system to search")
	flags.StringSliceVarP(&searchTypes, "type", "t", nil, "restrict to content types (spell, feat, class_feature, equipment, table, rule)")
	flags.StringSliceVarP(&searchBooks, "book", "b", nil, "restrict to books")
	flags.StringSliceVar(&searchVersions, "version", nil, "restrict to book versions")
	flags.IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	flags.Float64Var(&searchThreshold, "threshold", 0, "minimum score (0 to 1)")
	flags.BoolVar(&searchJSON, "json", false, "output results as JSON")
	flags.BoolVar(&searchYAML, "yaml", false, "output results as YAML")
	searchCmd.MarkFlagsMutuallyExclusive("json", "yaml")

	sflags := similarCmd.Flags()
	sflags.StringVarP(&similarGameSystem, "game-system", "s", defaultGameSystem, "rules system to search")
	sflags.IntVarP(&similarLimit, "limit", "n", 10, "maximum number of results")
	sflags.Float64Var(&similarThreshold, "threshold", 0, "minimum score (0 to 1)")

	tflags := statsCmd.Flags()
	tflags.StringVarP(&statsGameSystem, "game-system", "s", defaultGameSystem, "rules system to count")
	tflags.BoolVar(&statsJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(similarCmd)
	rootCmd.AddCommand(statsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errRetrievalUnavailable
	}

	types := make([]domain.ContentType, 0, len(searchTypes))
	for _, name := range searchTypes {
		ct, err := domain.ParseContentType(name)
		if err != nil {
			return err
		}
		types = append(types, ct)
	}

	results, err := retrievalService.Search(cmd.Context(), domain.SearchQuery{
		Text:           args[0],
		GameSystem:     searchGameSystem,
		ContentTypes:   types,
		Books:          searchBooks,
		Versions:       searchVersions,
		Limit:          searchLimit,
		ScoreThreshold: thresholdFlag(cmd, searchThreshold),
	})
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	switch {
	case searchJSON:
		return outputSearchJSON(cmd, results)
	case searchYAML:
		return outputSearchYAML(cmd, results)
	default:
		return outputSearchTable(cmd, results)
	}
}

func runSimilar(cmd *cobra.Command, args []string) error {
	if retrievalService == nil {
		return errRetrievalUnavailable
	}
	if strings.TrimSpace(args[0]) == "" {
		return errors.New("reference text is empty")
	}

	results, err := retrievalService.FindSimilar(cmd.Context(), domain.SimilarQuery{
		Text:           args[0],
		GameSystem:     similarGameSystem,
		Limit:          similarLimit,
		ScoreThreshold: thresholdFlag(cmd, similarThreshold),
	})
	if err != nil {
		return fmt.Errorf("similar search failed: %w", err)
	}
	return outputSearchTable(cmd, results)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if retrievalService == nil {
		return errRetrievalUnavailable
	}
	stats, err := retrievalService.Stats(cmd.Context(), statsGameSystem)
	if err != nil {
		return fmt.Errorf("stats failed: %w", err)
	}

	if statsJSON {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal stats: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Game system: %s\n", stats.GameSystem)
	cmd.Printf("Chunks:      %d\n", stats.Chunks)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	for _, ct := range domain.AllContentTypes() {
		if n := stats.ByType[ct]; n > 0 {
			fmt.Fprintf(w, "  %s\t%d\n", ct.Label(), n)
		}
	}
	return w.Flush()
}

// thresholdFlag returns nil unless --threshold was given, so an explicit
// zero overrides the configured default.
func thresholdFlag(cmd *cobra.Command, v float64) *float64 {
	if !cmd.Flags().Changed("threshold") {
		return nil
	}
	return domain.Threshold(v)
}

func outputSearchJSON(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchYAML(cmd *cobra.Command, results []domain.SearchResult) error {
	data, err := yaml.Marshal(results)
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Print(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	if results[0].Degraded {
		cmd.Println("Note: semantic search unavailable, showing keyword matches only.")
		cmd.Println()
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		cmd.Printf("  [%d] %s (%s, %.2f)\n", i+1, r.Citation, r.Chunk.Type.Label(), r.Score())
		if s := snippet(r); s != "" {
			cmd.Printf("      %s\n", s)
		}
		cmd.Println()
	}
	return nil
}

// snippet prefers the citation quote and falls back to the start of the chunk.
func snippet(r *domain.SearchResult) string {
	text := r.Citation.Quote
	if text == "" {
		text = r.Chunk.Text
	}
	text = strings.Join(strings.Fields(text), " ")
	if runes := []rune(text); len(runes) > snippetLength {
		text = string(runes[:snippetLength]) + "..."
	}
	return text
}
