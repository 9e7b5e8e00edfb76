package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// GetRecordInput is the input schema for the get_record tool.
type GetRecordInput struct {
	DocumentID string `json:"document_id" jsonschema:"document identity in the form container/key"`
	History    bool   `json:"history,omitempty" jsonschema:"return every record for the document, newest first"`
}

// timeLayout formats timestamps in tool output.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// RecordOutput is one enrichment record as returned by tools.
type RecordOutput struct {
	ID                    string             `json:"id"`
	DocumentID            string             `json:"document_id"`
	ProcessingTimestamp   string             `json:"processing_timestamp"`
	Status                string             `json:"status"`
	Language              string             `json:"language"`
	Entities              []domain.Entity    `json:"entities"`
	KeyPhrases            []domain.KeyPhrase `json:"key_phrases"`
	ExtractedTextPreview  string             `json:"extracted_text_preview"`
	FullTextLength        int                `json:"full_text_length"`
	Summary               string             `json:"summary"`
	Insights              string             `json:"insights"`
	StructuredData        map[string]string  `json:"structured_data,omitempty"`
	DuplicateOfDocumentID string             `json:"duplicate_of_document_id,omitempty"`
	ContentHash           string             `json:"content_hash,omitempty"`
	FailureReason         string             `json:"failure_reason,omitempty"`
}

func toRecordOutput(r *domain.EnrichmentRecord) RecordOutput {
	return RecordOutput{
		ID:                    r.ID,
		DocumentID:            r.DocumentID,
		ProcessingTimestamp:   r.ProcessingTimestamp.UTC().Format(timeLayout),
		Status:                r.Status.String(),
		Language:              r.Language,
		Entities:              r.Entities,
		KeyPhrases:            r.KeyPhrases,
		ExtractedTextPreview:  r.ExtractedTextPreview,
		FullTextLength:        r.FullTextLength,
		Summary:               r.Summary,
		Insights:              r.Insights,
		StructuredData:        r.StructuredData,
		DuplicateOfDocumentID: r.DuplicateOfDocumentID,
		ContentHash:           r.ContentHash,
		FailureReason:         r.FailureReason,
	}
}

func toRecordOutputs(records []domain.EnrichmentRecord) []RecordOutput {
	out := make([]RecordOutput, len(records))
	for i := range records {
		out[i] = toRecordOutput(&records[i])
	}
	return out
}

// GetRecordOutput is the output schema for the get_record tool.
type GetRecordOutput struct {
	Records []RecordOutput `json:"records"`
	Count   int            `json:"count"`
}

// ListByLanguageInput is the input schema for the list_by_language tool.
type ListByLanguageInput struct {
	Language string `json:"language" jsonschema:"ISO language code such as en, or unknown"`
	Limit    int    `json:"limit,omitempty" jsonschema:"maximum number of records to return (default 20)"`
	Cursor   string `json:"cursor,omitempty" jsonschema:"next_cursor from a previous call"`
}

// ListByLanguageOutput is the output schema for the list_by_language tool.
type ListByLanguageOutput struct {
	Records    []RecordOutput `json:"records"`
	Count      int            `json:"count"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// LookupFingerprintInput is the input schema for the lookup_fingerprint tool.
type LookupFingerprintInput struct {
	Hash string `json:"hash" jsonschema:"lower-case hex SHA-256 content hash"`
}

// LookupFingerprintOutput is the output schema for the lookup_fingerprint tool.
type LookupFingerprintOutput struct {
	Found            bool   `json:"found"`
	ContentHash      string `json:"content_hash"`
	FirstDocumentID  string `json:"first_document_id,omitempty"`
	FirstSeen        string `json:"first_seen,omitempty"`
	Occurrences      int    `json:"occurrences,omitempty"`
	LatestDocumentID string `json:"latest_document_id,omitempty"`
	LastSeen         string `json:"last_seen,omitempty"`
}

// EnrichDocumentInput is the input schema for the enrich_document tool.
type EnrichDocumentInput struct {
	DocumentID string `json:"document_id" jsonschema:"document identity in the form container/key"`
}

// EnrichDocumentOutput is the output schema for the enrich_document tool.
type EnrichDocumentOutput struct {
	Status      string        `json:"status"`
	Transitions []string      `json:"transitions"`
	Record      *RecordOutput `json:"record,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "get_record",
		Description: "Get the latest enrichment record for a document, or its full history",
	}, s.handleGetRecord)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_by_language",
		Description: "List enrichment records of one language, newest first",
	}, s.handleListByLanguage)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "lookup_fingerprint",
		Description: "Find which document first produced a content hash",
	}, s.handleLookupFingerprint)

	if s.ports.Runner != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "enrich_document",
			Description: "Run a document through the enrichment pipeline",
		}, s.handleEnrichDocument)
	}
}

// handleGetRecord handles the get_record tool invocation.
func (s *Server) handleGetRecord(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GetRecordInput,
) (*mcp.CallToolResult, GetRecordOutput, error) {
	if input.History {
		records, err := s.ports.Records.History(ctx, input.DocumentID)
		if err != nil {
			return nil, GetRecordOutput{}, err
		}
		return nil, GetRecordOutput{Records: toRecordOutputs(records), Count: len(records)}, nil
	}

	record, err := s.ports.Records.Get(ctx, input.DocumentID)
	if err != nil {
		return nil, GetRecordOutput{}, err
	}
	return nil, GetRecordOutput{Records: []RecordOutput{toRecordOutput(record)}, Count: 1}, nil
}

// handleListByLanguage handles the list_by_language tool invocation.
func (s *Server) handleListByLanguage(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ListByLanguageInput,
) (*mcp.CallToolResult, ListByLanguageOutput, error) {
	page, err := s.ports.Records.ListByLanguage(ctx, input.Language, domain.Page{
		Limit:  input.Limit,
		Cursor: input.Cursor,
	})
	if err != nil {
		return nil, ListByLanguageOutput{}, err
	}

	return nil, ListByLanguageOutput{
		Records:    toRecordOutputs(page.Records),
		Count:      len(page.Records),
		NextCursor: page.NextCursor,
	}, nil
}

// handleLookupFingerprint handles the lookup_fingerprint tool invocation.
// An unknown hash is reported as not found rather than as a tool error.
func (s *Server) handleLookupFingerprint(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input LookupFingerprintInput,
) (*mcp.CallToolResult, LookupFingerprintOutput, error) {
	rec, err := s.ports.Records.LookupFingerprint(ctx, input.Hash)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, LookupFingerprintOutput{Found: false, ContentHash: input.Hash}, nil
	}
	if err != nil {
		return nil, LookupFingerprintOutput{}, err
	}

	return nil, LookupFingerprintOutput{
		Found:            true,
		ContentHash:      rec.ContentHash.String(),
		FirstDocumentID:  rec.FirstDocumentID,
		FirstSeen:        rec.FirstSeen.UTC().Format(timeLayout),
		Occurrences:      rec.Occurrences,
		LatestDocumentID: rec.LatestDocumentID,
		LastSeen:         rec.LastSeen.UTC().Format(timeLayout),
	}, nil
}

// handleEnrichDocument handles the enrich_document tool invocation.
// Pipeline failures are returned in the output so the caller sees the
// transitions taken.
func (s *Server) handleEnrichDocument(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input EnrichDocumentInput,
) (*mcp.CallToolResult, EnrichDocumentOutput, error) {
	ref, err := domain.ParseDocumentRef(input.DocumentID)
	if err != nil {
		return nil, EnrichDocumentOutput{}, err
	}

	out, runErr := s.ports.Runner.Run(ctx, ref)
	if out == nil {
		return nil, EnrichDocumentOutput{}, fmt.Errorf("enriching %s: %w", ref, runErr)
	}

	output := EnrichDocumentOutput{
		Status:      out.Status().String(),
		Transitions: make([]string, len(out.Transitions)),
	}
	if out.Record != nil {
		rec := toRecordOutput(out.Record)
		output.Record = &rec
	}
	for i, st := range out.Transitions {
		output.Transitions[i] = st.String()
	}
	if runErr != nil {
		output.Error = runErr.Error()
	}
	return nil, output, nil
}
