package mcp

import (
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Records reads persisted enrichment records.
	Records driving.RecordService

	// Runner enriches documents on request. Optional: without it the
	// server is read-only.
	Runner driving.Runner
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Records == nil {
		return ErrMissingRecordService
	}
	return nil
}
