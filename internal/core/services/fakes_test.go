package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/enricher/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
)

// --- Mock implementations for pipeline testing ---

// mockSource implements driven.WatchableSource over an in-memory map.
type mockSource struct {
	mu       sync.Mutex
	docs     map[string][]byte
	openErrs map[string][]error
	opens    map[string]int

	watchRefs []domain.DocumentRef
	watchErr  error
	watchSent int
}

// sent returns how many watched refs the consumer has received.
func (m *mockSource) sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.watchSent
}

func newMockSource() *mockSource {
	return &mockSource{
		docs:     make(map[string][]byte),
		openErrs: make(map[string][]error),
		opens:    make(map[string]int),
	}
}

func (m *mockSource) put(ref domain.DocumentRef, content string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[ref.ID()] = []byte(content)
}

// failOpen queues errors returned by the next Open calls for ref.
func (m *mockSource) failOpen(ref domain.DocumentRef, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.openErrs[ref.ID()] = append(m.openErrs[ref.ID()], errs...)
}

func (m *mockSource) Open(_ context.Context, ref domain.DocumentRef) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opens[ref.ID()]++
	if q := m.openErrs[ref.ID()]; len(q) > 0 {
		m.openErrs[ref.ID()] = q[1:]
		return nil, q[0]
	}
	content, ok := m.docs[ref.ID()]
	if !ok {
		return nil, fmt.Errorf("%w: %s not found", domain.ErrSourceUnavailable, ref)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (m *mockSource) MIMEType(_ context.Context, _ domain.DocumentRef) (string, error) {
	return "text/plain", nil
}

func (m *mockSource) List(_ context.Context, containerID string) ([]domain.DocumentRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var refs []domain.DocumentRef
	for id := range m.docs {
		ref, err := domain.ParseDocumentRef(id)
		if err == nil && ref.ContainerID == containerID {
			refs = append(refs, ref)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ObjectKey < refs[j].ObjectKey })
	return refs, nil
}

func (m *mockSource) Watch(ctx context.Context, _ string) (<-chan domain.DocumentRef, <-chan error) {
	refs := make(chan domain.DocumentRef)
	errs := make(chan error, 1)

	go func() {
		defer close(refs)
		defer close(errs)

		if m.watchErr != nil {
			errs <- m.watchErr
			return
		}
		for _, ref := range m.watchRefs {
			select {
			case <-ctx.Done():
				return
			case refs <- ref:
				m.mu.Lock()
				m.watchSent++
				m.mu.Unlock()
			}
		}
		<-ctx.Done()
	}()

	return refs, errs
}

// mockExtractor implements driven.TextExtractor with scripted results.
type mockExtractor struct {
	mu     sync.Mutex
	source *mockSource
	errs   map[string][]error
	calls  map[string]int

	// gate, when set, holds every Extract call until it is closed.
	gate chan struct{}
}

func newMockExtractor(source *mockSource) *mockExtractor {
	return &mockExtractor{
		source: source,
		errs:   make(map[string][]error),
		calls:  make(map[string]int),
	}
}

func (m *mockExtractor) fail(ref domain.DocumentRef, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[ref.ID()] = append(m.errs[ref.ID()], errs...)
}

func (m *mockExtractor) callCount(ref domain.DocumentRef) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[ref.ID()]
}

// Extract returns the document bytes as text.
func (m *mockExtractor) Extract(ctx context.Context, ref domain.DocumentRef) (string, error) {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	m.mu.Lock()
	m.calls[ref.ID()]++
	if q := m.errs[ref.ID()]; len(q) > 0 {
		m.errs[ref.ID()] = q[1:]
		m.mu.Unlock()
		return "", q[0]
	}
	m.mu.Unlock()

	m.source.mu.Lock()
	defer m.source.mu.Unlock()
	return string(m.source.docs[ref.ID()]), nil
}

// faultyRegistry wraps the memory registry with scripted faults.
type faultyRegistry struct {
	*memory.DuplicateRegistry
	mu           sync.Mutex
	registerErrs []error
	repeatErr    error
	completeErr  error
}

func (f *faultyRegistry) Complete(ctx context.Context, fp domain.Fingerprint) error {
	if f.completeErr != nil {
		return f.completeErr
	}
	return f.DuplicateRegistry.Complete(ctx, fp)
}

func (f *faultyRegistry) RegisterIfNew(
	ctx context.Context,
	fp domain.Fingerprint,
	documentID string,
	ts time.Time,
) (domain.RegistrationResult, error) {
	f.mu.Lock()
	if len(f.registerErrs) > 0 {
		err := f.registerErrs[0]
		f.registerErrs = f.registerErrs[1:]
		f.mu.Unlock()
		return domain.RegistrationResult{}, err
	}
	f.mu.Unlock()
	return f.DuplicateRegistry.RegisterIfNew(ctx, fp, documentID, ts)
}

func (f *faultyRegistry) RecordRepeat(ctx context.Context, fp domain.Fingerprint, documentID string, ts time.Time) error {
	if f.repeatErr != nil {
		return f.repeatErr
	}
	return f.DuplicateRegistry.RecordRepeat(ctx, fp, documentID, ts)
}

// faultyStore wraps the memory metadata store with scripted Put faults.
type faultyStore struct {
	*memory.MetadataStore
	mu      sync.Mutex
	putErrs []error
}

func (f *faultyStore) Put(ctx context.Context, record *domain.EnrichmentRecord) error {
	f.mu.Lock()
	if len(f.putErrs) > 0 {
		err := f.putErrs[0]
		f.putErrs = f.putErrs[1:]
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()
	return f.MetadataStore.Put(ctx, record)
}

// --- Analyzer stubs ---

type stubLanguage struct {
	lang  string
	err   error
	input string
}

func (s *stubLanguage) DetectLanguage(_ context.Context, text string) (string, error) {
	s.input = text
	return s.lang, s.err
}

type stubEntities struct {
	entities []domain.Entity
	err      error
	input    string
	lang     string
}

func (s *stubEntities) ExtractEntities(_ context.Context, text, lang string) ([]domain.Entity, error) {
	s.input, s.lang = text, lang
	return s.entities, s.err
}

type stubPhrases struct {
	phrases []domain.KeyPhrase
	err     error
	lang    string
}

func (s *stubPhrases) ExtractKeyPhrases(_ context.Context, _, lang string) ([]domain.KeyPhrase, error) {
	s.lang = lang
	return s.phrases, s.err
}

type stubSummariser struct {
	summary domain.Summary
	err     error
	input   string
	calls   int
	mu      sync.Mutex
}

func (s *stubSummariser) Summarise(_ context.Context, text string) (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.input = text
	return s.summary, s.err
}

func (s *stubSummariser) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// blockingSummariser ignores its context and never returns on its own.
type blockingSummariser struct {
	release chan struct{}
}

func (b *blockingSummariser) Summarise(_ context.Context, _ string) (domain.Summary, error) {
	<-b.release
	return domain.Summary{Summary: "late"}, nil
}

// panickingEntities panics on every call.
type panickingEntities struct{}

func (panickingEntities) ExtractEntities(context.Context, string, string) ([]domain.Entity, error) {
	panic("boom")
}

func defaultAnalyzers() driven.AnalyzerSet {
	return driven.AnalyzerSet{
		Language: &stubLanguage{lang: "en"},
		Entities: &stubEntities{entities: []domain.Entity{
			{Text: "Acme Corp", Type: "ORGANIZATION", Confidence: 0.812345},
		}},
		KeyPhrases: &stubPhrases{phrases: []domain.KeyPhrase{
			{Text: "quarterly report", Confidence: 1},
		}},
		Summariser: &stubSummariser{summary: domain.Summary{
			Summary:        "A short report.",
			Insights:       "Revenue grew.",
			StructuredData: map[string]any{"wordCount": 5},
		}},
	}
}

// stepClock returns a clock that advances one second per call.
func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// scriptedProcessor implements driving.DocumentProcessor with queued results.
type scriptedProcessor struct {
	mu      sync.Mutex
	results map[string][]error
	calls   map[string]int
	status  domain.RecordStatus
}

func newScriptedProcessor() *scriptedProcessor {
	return &scriptedProcessor{
		results: make(map[string][]error),
		calls:   make(map[string]int),
		status:  domain.StatusProcessed,
	}
}

// script queues the errors returned by successive Process calls for ref.
// A nil entry means success; once the queue is empty calls succeed.
func (s *scriptedProcessor) script(ref domain.DocumentRef, errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[ref.ID()] = append(s.results[ref.ID()], errs...)
}

func (s *scriptedProcessor) callCount(ref domain.DocumentRef) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[ref.ID()]
}

func (s *scriptedProcessor) Process(_ context.Context, ref domain.DocumentRef) (*driving.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[ref.ID()]++

	var err error
	if q := s.results[ref.ID()]; len(q) > 0 {
		err = q[0]
		s.results[ref.ID()] = q[1:]
	}
	if err != nil {
		return &driving.Outcome{Ref: ref, State: domain.StateFailed},
			&domain.PipelineError{Ref: ref, State: domain.StateHashing, Err: err}
	}

	record := &domain.EnrichmentRecord{DocumentID: ref.ID(), Status: s.status}
	if s.status == domain.StatusDuplicate {
		record.DuplicateOfDocumentID = "other/doc"
	}
	return &driving.Outcome{Ref: ref, State: domain.StateDone, Record: record}, nil
}
