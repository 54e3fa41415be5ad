package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/tome/internal/core/domain"
)

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Query        string   `json:"query" jsonschema:"the rules question or keywords to search for"`
	GameSystem   string   `json:"game_system,omitempty" jsonschema:"rules system to search, e.g. dnd5e (defaults to the server's game system)"`
	ContentTypes []string `json:"content_types,omitempty" jsonschema:"restrict to these content types: spell, feat, class_feature, equipment, table, rule"`
	Books        []string `json:"books,omitempty" jsonschema:"restrict to these book titles"`
	Versions     []string `json:"versions,omitempty" jsonschema:"restrict to these book versions"`
	Limit        int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Threshold    *float64 `json:"threshold,omitempty" jsonschema:"drop results scoring below this value (0 to 1, defaults to the configured threshold)"`
}

// SimilarInput is the input schema for the find_similar tool.
type SimilarInput struct {
	Text       string   `json:"text" jsonschema:"reference text to find similar rules for"`
	GameSystem string   `json:"game_system,omitempty" jsonschema:"rules system to search, e.g. dnd5e (defaults to the server's game system)"`
	Limit      int      `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
	Threshold  *float64 `json:"threshold,omitempty" jsonschema:"drop results scoring below this value (0 to 1, defaults to the configured threshold)"`
}

// JobStatusInput is the input schema for the job_status tool.
type JobStatusInput struct {
	JobID string `json:"job_id" jsonschema:"the ingestion job id returned when the book was submitted"`
}

// StatsInput is the input schema for the index_stats tool.
type StatsInput struct {
	GameSystem string `json:"game_system,omitempty" jsonschema:"rules system to report on (defaults to the server's game system)"`
}

// StatsOutput counts the indexed chunks of one game system.
type StatsOutput struct {
	GameSystem string         `json:"game_system"`
	Chunks     int            `json:"chunk_count"`
	ByType     map[string]int `json:"by_content_type,omitempty"`
}

// SearchOutput is the output schema for the search and find_similar tools.
type SearchOutput struct {
	Results  []SearchResultOutput `json:"results"`
	Count    int                  `json:"count"`
	Degraded bool                 `json:"degraded,omitempty"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	Text        string         `json:"text"`
	Name        string         `json:"name,omitempty"`
	ContentType string         `json:"content_type"`
	Score       float64        `json:"score"`
	Citation    CitationOutput `json:"citation"`
}

// CitationOutput points back to the printed source.
type CitationOutput struct {
	Text      string `json:"text"`
	Book      string `json:"book"`
	PageStart int    `json:"page_start,omitempty"`
	PageEnd   int    `json:"page_end,omitempty"`
	Version   string `json:"version,omitempty"`
	Quote     string `json:"quote,omitempty"`
}

// JobStatusOutput reports an ingestion job's progress.
type JobStatusOutput struct {
	JobID     string   `json:"job_id"`
	State     string   `json:"state"`
	Stage     string   `json:"stage"`
	Chunks    int      `json:"chunk_count"`
	Processed int      `json:"processed_count"`
	Failures  []string `json:"failures,omitempty"`
	Error     string   `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search indexed rulebooks and return passages with book and page citations",
	}, s.handleSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "find_similar",
		Description: "Find rulebook passages similar to a reference text",
	}, s.handleFindSimilar)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_stats",
		Description: "Count the indexed rulebook passages of a game system by content type",
	}, s.handleStats)

	if s.ports.Ingestion != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "job_status",
			Description: "Report the progress of a rulebook ingestion job",
		}, s.handleJobStatus)
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	types := make([]domain.ContentType, 0, len(input.ContentTypes))
	for _, name := range input.ContentTypes {
		ct, err := domain.ParseContentType(name)
		if err != nil {
			return nil, SearchOutput{}, err
		}
		types = append(types, ct)
	}

	results, err := s.ports.Retrieval.Search(ctx, domain.SearchQuery{
		Text:           input.Query,
		GameSystem:     s.gameSystem(input.GameSystem),
		ContentTypes:   types,
		Books:          input.Books,
		Versions:       input.Versions,
		Limit:          input.Limit,
		ScoreThreshold: input.Threshold,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

// handleFindSimilar handles the find_similar tool invocation.
func (s *Server) handleFindSimilar(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SimilarInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.ports.Retrieval.FindSimilar(ctx, domain.SimilarQuery{
		Text:           input.Text,
		GameSystem:     s.gameSystem(input.GameSystem),
		Limit:          input.Limit,
		ScoreThreshold: input.Threshold,
	})
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

// handleStats handles the index_stats tool invocation.
func (s *Server) handleStats(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input StatsInput,
) (*mcp.CallToolResult, StatsOutput, error) {
	stats, err := s.ports.Retrieval.Stats(ctx, s.gameSystem(input.GameSystem))
	if err != nil {
		return nil, StatsOutput{}, err
	}
	out := StatsOutput{GameSystem: stats.GameSystem, Chunks: stats.Chunks}
	if len(stats.ByType) > 0 {
		out.ByType = make(map[string]int, len(stats.ByType))
		for ct, n := range stats.ByType {
			out.ByType[ct.String()] = n
		}
	}
	return nil, out, nil
}

// handleJobStatus handles the job_status tool invocation.
func (s *Server) handleJobStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JobStatusInput,
) (*mcp.CallToolResult, JobStatusOutput, error) {
	if s.ports.Ingestion == nil {
		return nil, JobStatusOutput{}, ErrMissingIngestionService
	}
	if strings.TrimSpace(input.JobID) == "" {
		return nil, JobStatusOutput{}, fmt.Errorf("%w: job_id is required", domain.ErrInvalidInput)
	}

	status, err := s.ports.Ingestion.Status(ctx, input.JobID)
	if err != nil {
		return nil, JobStatusOutput{}, err
	}
	return nil, toJobStatusOutput(status), nil
}

func (s *Server) gameSystem(requested string) string {
	if g := strings.TrimSpace(requested); g != "" {
		return g
	}
	return s.ports.DefaultGameSystem
}

func toSearchOutput(results []domain.SearchResult) SearchOutput {
	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}
	for i := range results {
		r := &results[i]
		output.Results[i] = SearchResultOutput{
			Text:        r.Chunk.Text,
			Name:        r.Chunk.Name,
			ContentType: r.Chunk.Type.String(),
			Score:       r.Score(),
			Citation: CitationOutput{
				Text:      r.Citation.String(),
				Book:      r.Citation.Book,
				PageStart: r.Citation.Pages.Start,
				PageEnd:   r.Citation.Pages.End,
				Version:   r.Citation.Version,
				Quote:     r.Citation.Quote,
			},
		}
		output.Degraded = output.Degraded || r.Degraded
	}
	return output
}

func toJobStatusOutput(status *domain.Status) JobStatusOutput {
	out := JobStatusOutput{
		JobID:     status.JobID,
		State:     status.State.String(),
		Stage:     status.Stage.String(),
		Chunks:    status.Chunks,
		Processed: status.Processed,
		Error:     status.Error,
	}
	for _, f := range status.Failures {
		out.Failures = append(out.Failures, f.String())
	}
	return out
}
