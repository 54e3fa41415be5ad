package mcp

import (
	"github.com/custodia-labs/tome/internal/core/ports/driving"
)

// Ports aggregates the driving port interfaces used by the MCP server.
type Ports struct {
	// Retrieval provides search and find-similar.
	Retrieval driving.RetrievalService

	// Ingestion reports job progress. Optional.
	Ingestion driving.IngestionService

	// DefaultGameSystem is used when a tool call omits game_system.
	DefaultGameSystem string
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	return nil
}
