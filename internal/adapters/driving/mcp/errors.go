// Package mcp provides an MCP (Model Context Protocol) server adapter for the enricher.
// It lets AI assistants read enrichment records and duplicate fingerprints.
package mcp

import "errors"

// ErrMissingRecordService is returned when the record service is not provided.
var ErrMissingRecordService = errors.New("mcp: record service is required")
