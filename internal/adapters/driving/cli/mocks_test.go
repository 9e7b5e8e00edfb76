package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
)

// mockRunner implements driving.Runner for testing.
type mockRunner struct {
	mu         sync.Mutex
	runs       []domain.DocumentRef
	failKeys   map[string]error
	report     *driving.BatchReport
	batchErr   error
	redrive    *driving.Outcome
	redriveErr error
}

func (m *mockRunner) Run(_ context.Context, ref domain.DocumentRef) (*driving.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs = append(m.runs, ref)

	if err := m.failKeys[ref.ObjectKey]; err != nil {
		return &driving.Outcome{Ref: ref, State: domain.StateFailed}, err
	}
	return processedOutcome(ref), nil
}

func (m *mockRunner) RunBatch(
	_ context.Context,
	refs []domain.DocumentRef,
	_ int,
) (*driving.BatchReport, error) {
	m.mu.Lock()
	m.runs = append(m.runs, refs...)
	m.mu.Unlock()
	return m.report, m.batchErr
}

func (m *mockRunner) Redrive(_ context.Context, _ string) (*driving.Outcome, error) {
	return m.redrive, m.redriveErr
}

func processedOutcome(ref domain.DocumentRef) *driving.Outcome {
	return &driving.Outcome{
		Ref:   ref,
		State: domain.StateDone,
		Record: &domain.EnrichmentRecord{
			DocumentID: ref.ID(),
			Status:     domain.StatusProcessed,
			Language:   "en",
		},
	}
}

// mockRecordService implements driving.RecordService for testing.
type mockRecordService struct {
	record      *domain.EnrichmentRecord
	history     []domain.EnrichmentRecord
	page        domain.RecordPage
	duplicate   *domain.DuplicateRecord
	stats       map[domain.RecordStatus]int
	deadLetters []domain.DeadLetter
	err         error

	lastPage domain.Page
}

func (m *mockRecordService) Get(_ context.Context, _ string) (*domain.EnrichmentRecord, error) {
	return m.record, m.err
}

func (m *mockRecordService) History(_ context.Context, _ string) ([]domain.EnrichmentRecord, error) {
	return m.history, m.err
}

func (m *mockRecordService) ListByLanguage(_ context.Context, _ string, page domain.Page) (domain.RecordPage, error) {
	m.lastPage = page
	return m.page, m.err
}

func (m *mockRecordService) LookupFingerprint(_ context.Context, _ string) (*domain.DuplicateRecord, error) {
	if m.duplicate == nil && m.err == nil {
		return nil, domain.ErrNotFound
	}
	return m.duplicate, m.err
}

func (m *mockRecordService) Stats(_ context.Context) (map[domain.RecordStatus]int, error) {
	return m.stats, m.err
}

func (m *mockRecordService) DeadLetters(_ context.Context) ([]domain.DeadLetter, error) {
	return m.deadLetters, m.err
}

// mockSettingsService implements driving.SettingsService for testing.
type mockSettingsService struct {
	settings    domain.Settings
	validateErr error
	pingErr     error

	setProvider domain.AnalyzerProvider
	setModel    string
	setAPIKey   string
}

func newMockSettingsService() *mockSettingsService {
	return &mockSettingsService{settings: domain.DefaultSettings()}
}

func (m *mockSettingsService) Get() (*domain.Settings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.Settings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) SetAnalyzerProvider(provider domain.AnalyzerProvider, model, apiKey string) error {
	m.setProvider = provider
	m.setModel = model
	m.setAPIKey = apiKey
	m.settings.Analyzers.Provider = provider
	m.settings.Analyzers.Model = model
	m.settings.Analyzers.APIKey = apiKey
	return nil
}

func (m *mockSettingsService) Validate() error {
	return m.validateErr
}

func (m *mockSettingsService) GetDefaults() domain.Settings {
	return domain.DefaultSettings()
}

func (m *mockSettingsService) ValidateAnalyzerConfig() error {
	return m.pingErr
}

// mockSource implements driven.WatchableSource for testing.
type mockSource struct {
	refs    []domain.DocumentRef
	listErr error
	watched []domain.DocumentRef
}

func (m *mockSource) Open(_ context.Context, _ domain.DocumentRef) (io.ReadCloser, error) {
	return nil, errors.New("not implemented")
}

func (m *mockSource) MIMEType(_ context.Context, _ domain.DocumentRef) (string, error) {
	return "text/plain", nil
}

func (m *mockSource) List(_ context.Context, _ string) ([]domain.DocumentRef, error) {
	return m.refs, m.listErr
}

func (m *mockSource) Watch(_ context.Context, _ string) (<-chan domain.DocumentRef, <-chan error) {
	refs := make(chan domain.DocumentRef, len(m.watched))
	errs := make(chan error)
	for _, r := range m.watched {
		refs <- r
	}
	close(refs)
	close(errs)
	return refs, errs
}

// setupCLITest installs mocks and resets flag state. Everything is
// restored when the test ends.
func setupCLITest(t *testing.T) (*mockRunner, *mockRecordService, *mockSettingsService, *mockSource) {
	t.Helper()

	oldRunner, oldRecords, oldSettings := runner, recordService, settingsService
	oldSource, oldHasher, oldBootstrap := documentSource, contentHasher, bootstrap
	oldConcurrency := concurrency

	r := &mockRunner{}
	rec := &mockRecordService{}
	set := newMockSettingsService()
	src := &mockSource{}

	runner = r
	recordService = rec
	settingsService = set
	documentSource = src
	bootstrap = nil

	recordHistory = false
	recordOutput = formatText
	languageLimit = domain.DefaultPageLimit
	languageAfter = ""
	batchConcurrency = 0
	analyzerModel = ""
	analyzerAPIKey = ""
	versionShort = false

	t.Cleanup(func() {
		runner, recordService, settingsService = oldRunner, oldRecords, oldSettings
		documentSource, contentHasher, bootstrap = oldSource, oldHasher, oldBootstrap
		concurrency = oldConcurrency
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	})
	return r, rec, set, src
}

// executeCommand runs the root command with args and returns its output.
func executeCommand(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func sampleRecord() *domain.EnrichmentRecord {
	return &domain.EnrichmentRecord{
		ID:                   "01JA0000000000000000000000",
		DocumentID:           "inbox/report.txt",
		ProcessingTimestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:               domain.StatusProcessed,
		Language:             "en",
		Entities:             []domain.Entity{{Text: "Acme Corp", Type: "ORGANIZATION", Confidence: 0.8123}},
		KeyPhrases:           []domain.KeyPhrase{{Text: "quarterly revenue", Confidence: 0.5}},
		ExtractedTextPreview: "Acme Corp reported quarterly revenue.",
		FullTextLength:       37,
		Summary:              "A short report.",
		ContentHash:          "ab12",
	}
}
