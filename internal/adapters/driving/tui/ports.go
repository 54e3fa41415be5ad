// Package tui provides an interactive terminal user interface for tome.
// It implements a driving adapter following hexagonal architecture principles.
package tui

import (
	"github.com/custodia-labs/tome/internal/core/ports/driving"
)

// Ports aggregates the driving ports the TUI talks to.
type Ports struct {
	// Retrieval answers rules queries.
	Retrieval driving.RetrievalService

	// Ingestion lists and resumes jobs. Optional; the jobs view reports
	// it as unavailable when nil.
	Ingestion driving.IngestionService

	// GameSystem scopes every query.
	GameSystem string
}

// NewPorts creates a new Ports aggregate with the given services.
func NewPorts(retrieval driving.RetrievalService, ingestion driving.IngestionService, gameSystem string) *Ports {
	return &Ports{
		Retrieval:  retrieval,
		Ingestion:  ingestion,
		GameSystem: gameSystem,
	}
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p == nil {
		return ErrInvalidPorts
	}
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.GameSystem == "" {
		return ErrMissingGameSystem
	}
	return nil
}
