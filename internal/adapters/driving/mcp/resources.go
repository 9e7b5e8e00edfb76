package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for enricher resources.
	uriScheme = "enricher://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for record counts.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "stats",
		Name:        "stats",
		Description: "Enrichment record counts per status",
		MIMEType:    "application/json",
	}, s.handleStatsResource)

	// Template for the latest record of a document.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "records/{containerId}/{key}",
		Name:        "enrichment-record",
		Description: "Latest enrichment record of a document",
		MIMEType:    "application/json",
	}, s.handleRecordResource)
}

// handleStatsResource returns record counts per status.
func (s *Server) handleStatsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	counts, err := s.ports.Records.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stats: %w", err)
	}
	return jsonResult(req.Params.URI, counts)
}

// handleRecordResource returns the latest record of a document.
func (s *Server) handleRecordResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	// Extract the document ID from URI: enricher://records/{containerId}/{key}
	docID := extractDocumentID(req.Params.URI)
	if docID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	record, err := s.ports.Records.Get(ctx, docID)
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrInvalidInput) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting record: %w", err)
	}
	return jsonResult(req.Params.URI, record)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractDocumentID extracts "container/key" from a URI like
// enricher://records/{containerId}/{key}. Keys may be path-escaped
// so that nested keys fit the template.
func extractDocumentID(uri string) string {
	const prefix = uriScheme + "records/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	container, key, ok := strings.Cut(strings.TrimPrefix(uri, prefix), "/")
	if !ok || container == "" || key == "" {
		return ""
	}

	unescaped, err := url.PathUnescape(key)
	if err != nil {
		return ""
	}
	return container + "/" + unescaped
}
