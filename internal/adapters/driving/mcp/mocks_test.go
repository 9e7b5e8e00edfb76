package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
)

// mockRecordService is a mock implementation of driving.RecordService.
type mockRecordService struct {
	record      *domain.EnrichmentRecord
	history     []domain.EnrichmentRecord
	page        domain.RecordPage
	duplicate   *domain.DuplicateRecord
	stats       map[domain.RecordStatus]int
	deadLetters []domain.DeadLetter
	err         error

	lastDocumentID string
	lastLanguage   string
	lastPage       domain.Page
}

func (m *mockRecordService) Get(_ context.Context, documentID string) (*domain.EnrichmentRecord, error) {
	m.lastDocumentID = documentID
	return m.record, m.err
}

func (m *mockRecordService) History(_ context.Context, documentID string) ([]domain.EnrichmentRecord, error) {
	m.lastDocumentID = documentID
	return m.history, m.err
}

func (m *mockRecordService) ListByLanguage(
	_ context.Context,
	language string,
	page domain.Page,
) (domain.RecordPage, error) {
	m.lastLanguage = language
	m.lastPage = page
	return m.page, m.err
}

func (m *mockRecordService) LookupFingerprint(_ context.Context, _ string) (*domain.DuplicateRecord, error) {
	return m.duplicate, m.err
}

func (m *mockRecordService) Stats(_ context.Context) (map[domain.RecordStatus]int, error) {
	return m.stats, m.err
}

func (m *mockRecordService) DeadLetters(_ context.Context) ([]domain.DeadLetter, error) {
	return m.deadLetters, m.err
}

// mockRunner is a mock implementation of driving.Runner.
type mockRunner struct {
	outcome *driving.Outcome
	err     error
}

func (m *mockRunner) Run(_ context.Context, ref domain.DocumentRef) (*driving.Outcome, error) {
	if m.outcome != nil {
		m.outcome.Ref = ref
	}
	return m.outcome, m.err
}

func (m *mockRunner) RunBatch(
	_ context.Context,
	_ []domain.DocumentRef,
	_ int,
) (*driving.BatchReport, error) {
	return &driving.BatchReport{}, m.err
}

func (m *mockRunner) Redrive(_ context.Context, _ string) (*driving.Outcome, error) {
	return m.outcome, m.err
}

func sampleRecord() *domain.EnrichmentRecord {
	return &domain.EnrichmentRecord{
		ID:                  "01JA0000000000000000000000",
		DocumentID:          "inbox/report.txt",
		ProcessingTimestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:              domain.StatusProcessed,
		Language:            "en",
		Entities:            []domain.Entity{{Text: "Acme Corp", Type: "ORGANIZATION", Confidence: 0.8123}},
		KeyPhrases:          []domain.KeyPhrase{{Text: "quarterly revenue", Confidence: 0.5}},
		Summary:             "A short report.",
		ContentHash:         "ab12",
	}
}
