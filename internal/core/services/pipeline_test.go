package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/enricher/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
	"github.com/custodia-labs/enricher/internal/hashing"
)

type pipelineFixture struct {
	source    *mockSource
	extractor *mockExtractor
	registry  *faultyRegistry
	store     *faultyStore
	pipeline  *Pipeline
}

func newPipelineFixture(t *testing.T, set driven.AnalyzerSet) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		source:   newMockSource(),
		registry: &faultyRegistry{DuplicateRegistry: memory.NewDuplicateRegistry()},
		store:    &faultyStore{MetadataStore: memory.NewMetadataStore()},
	}
	f.extractor = newMockExtractor(f.source)

	p, err := NewPipeline(PipelineDeps{
		Source:    f.source,
		Hasher:    hashing.New(),
		Registry:  f.registry,
		Extractor: f.extractor,
		Enricher:  NewEnricher(set, domain.DefaultLimits(), time.Second),
		Store:     f.store,
		Limits:    domain.DefaultLimits(),
		Clock:     stepClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	f.pipeline = p
	return f
}

func ref(key string) domain.DocumentRef {
	return domain.DocumentRef{ContainerID: "inbox", ObjectKey: key}
}

func TestNewPipeline_RequiresDependencies(t *testing.T) {
	_, err := NewPipeline(PipelineDeps{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPipeline_ProcessNewDocument(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("report.txt")
	f.source.put(doc, "Acme Corp published the quarterly report.")

	out, err := f.pipeline.Process(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, out.State)
	assert.Equal(t, []domain.PipelineState{
		domain.StateStart,
		domain.StateHashing,
		domain.StateDedupCheck,
		domain.StateExtracting,
		domain.StateEnriching,
		domain.StatePersisting,
		domain.StateDone,
	}, out.Transitions)

	fp, err := hashing.HashBytes([]byte("Acme Corp published the quarterly report."))
	require.NoError(t, err)
	assert.Equal(t, fp, out.Fingerprint)

	require.NotNil(t, out.Record)
	assert.Equal(t, domain.StatusProcessed, out.Status())
	assert.Equal(t, "inbox/report.txt", out.Record.DocumentID)
	assert.Equal(t, fp.String(), out.Record.ContentHash)
	assert.Equal(t, "en", out.Record.Language)
	assert.Equal(t, "A short report.", out.Record.Summary)
	assert.Equal(t, "5", out.Record.StructuredData["wordCount"])
	require.Len(t, out.Record.Entities, 1)
	assert.Equal(t, 0.8123, out.Record.Entities[0].Confidence)
	assert.Empty(t, out.Record.DuplicateOfDocumentID)
	assert.NotEmpty(t, out.Record.ID)

	stored, err := f.store.GetLatest(context.Background(), doc.ID())
	require.NoError(t, err)
	assert.Equal(t, out.Record.ID, stored.ID)

	reg, err := f.registry.Lookup(context.Background(), fp)
	require.NoError(t, err)
	assert.Equal(t, doc.ID(), reg.FirstDocumentID)
	assert.Equal(t, 1, reg.Occurrences)
}

func TestPipeline_DuplicateContentSkipsExtraction(t *testing.T) {
	set := defaultAnalyzers()
	f := newPipelineFixture(t, set)
	first, second := ref("a.txt"), ref("copy-of-a.txt")
	f.source.put(first, "same bytes")
	f.source.put(second, "same bytes")

	_, err := f.pipeline.Process(context.Background(), first)
	require.NoError(t, err)

	out, err := f.pipeline.Process(context.Background(), second)

	require.NoError(t, err)
	assert.Contains(t, out.Transitions, domain.StateSkippedDuplicate)
	assert.NotContains(t, out.Transitions, domain.StateExtracting)
	assert.NotContains(t, out.Transitions, domain.StateEnriching)
	assert.Equal(t, 0, f.extractor.callCount(second))
	assert.Equal(t, 1, set.Summariser.(*stubSummariser).callCount())

	require.NotNil(t, out.Record)
	assert.Equal(t, domain.StatusDuplicate, out.Record.Status)
	assert.Equal(t, first.ID(), out.Record.DuplicateOfDocumentID)
	assert.Equal(t, domain.LanguageUnknown, out.Record.Language)
	assert.NotNil(t, out.Record.Entities)

	reg, err := f.registry.Lookup(context.Background(), out.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, first.ID(), reg.FirstDocumentID)
	assert.Equal(t, 2, reg.Occurrences)
	assert.Equal(t, second.ID(), reg.LatestDocumentID)
}

func TestPipeline_ConcurrentSameContent(t *testing.T) {
	f := newPipelineFixture(t, driven.AnalyzerSet{})
	const n = 12
	refs := make([]domain.DocumentRef, n)
	for i := range refs {
		refs[i] = ref(fmt.Sprintf("doc-%02d.txt", i))
		f.source.put(refs[i], "identical content")
	}

	var wg sync.WaitGroup
	for _, r := range refs {
		wg.Add(1)
		go func(r domain.DocumentRef) {
			defer wg.Done()
			_, err := f.pipeline.Process(context.Background(), r)
			assert.NoError(t, err)
		}(r)
	}
	wg.Wait()

	var processed []string
	duplicateOf := map[string]int{}
	for _, r := range refs {
		rec, err := f.store.GetLatest(context.Background(), r.ID())
		require.NoError(t, err)
		switch rec.Status {
		case domain.StatusProcessed:
			processed = append(processed, rec.DocumentID)
		case domain.StatusDuplicate:
			duplicateOf[rec.DuplicateOfDocumentID]++
		}
	}

	require.Len(t, processed, 1)
	assert.Equal(t, map[string]int{processed[0]: n - 1}, duplicateOf)
}

func TestPipeline_ReprocessingUnchangedDocumentIsDuplicate(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("notes.md")
	f.source.put(doc, "unchanged")

	_, err := f.pipeline.Process(context.Background(), doc)
	require.NoError(t, err)
	out, err := f.pipeline.Process(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDuplicate, out.Status())
	assert.Equal(t, doc.ID(), out.Record.DuplicateOfDocumentID)
	assert.Equal(t, 1, f.extractor.callCount(doc))

	history, err := f.store.History(context.Background(), doc.ID())
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestPipeline_EmptyInputWritesFailedRecord(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("empty.txt")
	f.source.put(doc, "")

	out, err := f.pipeline.Process(context.Background(), doc)

	require.Error(t, err)
	var perr *domain.PipelineError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.StateHashing, perr.State)
	assert.Equal(t, domain.CodeEmptyInput, perr.Code())
	assert.False(t, domain.IsRetryable(err))
	assert.Equal(t, domain.StateFailed, out.State)

	require.NotNil(t, out.Record)
	assert.Equal(t, domain.StatusFailed, out.Record.Status)
	assert.Contains(t, out.Record.FailureReason, domain.CodeEmptyInput)

	stored, err := f.store.GetLatest(context.Background(), doc.ID())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, stored.Status)
}

func TestPipeline_InvalidReferenceWritesNothing(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())

	out, err := f.pipeline.Process(context.Background(), domain.DocumentRef{ContainerID: "inbox"})

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Nil(t, out.Record)
	assert.Equal(t, []domain.PipelineState{domain.StateStart, domain.StateFailed}, out.Transitions)
}

func TestPipeline_RetryableFailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(f *pipelineFixture, doc domain.DocumentRef)
		wantState domain.PipelineState
		wantCode  string
	}{
		{
			name:      "source unavailable",
			setup:     func(_ *pipelineFixture, _ domain.DocumentRef) {},
			wantState: domain.StateHashing,
			wantCode:  domain.CodeSourceUnavailable,
		},
		{
			name: "unclassified open error",
			setup: func(f *pipelineFixture, doc domain.DocumentRef) {
				f.source.put(doc, "content")
				f.source.failOpen(doc, errors.New("connection reset"))
			},
			wantState: domain.StateHashing,
			wantCode:  domain.CodeSourceUnavailable,
		},
		{
			name: "registry fault",
			setup: func(f *pipelineFixture, doc domain.DocumentRef) {
				f.source.put(doc, "content")
				f.registry.registerErrs = []error{errors.New("table locked")}
			},
			wantState: domain.StateDedupCheck,
			wantCode:  domain.CodeRegistryFault,
		},
		{
			name: "extraction failed",
			setup: func(f *pipelineFixture, doc domain.DocumentRef) {
				f.source.put(doc, "content")
				f.extractor.fail(doc, fmt.Errorf("%w: corrupt zip", domain.ErrExtractionFailed))
			},
			wantState: domain.StateExtracting,
			wantCode:  domain.CodeExtractionFailed,
		},
		{
			name: "persist failed",
			setup: func(f *pipelineFixture, doc domain.DocumentRef) {
				f.source.put(doc, "content")
				f.store.putErrs = []error{errors.New("disk full")}
			},
			wantState: domain.StatePersisting,
			wantCode:  domain.CodePersistFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, defaultAnalyzers())
			doc := ref("doc.txt")
			tt.setup(f, doc)

			out, err := f.pipeline.Process(context.Background(), doc)

			var perr *domain.PipelineError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.wantState, perr.State)
			assert.Equal(t, tt.wantCode, perr.Code())
			assert.True(t, domain.IsRetryable(err))
			assert.Equal(t, domain.StateFailed, out.State)
			assert.Nil(t, out.Record)

			_, err = f.store.GetLatest(context.Background(), doc.ID())
			assert.ErrorIs(t, err, domain.ErrNotFound)
		})
	}
}

func TestPipeline_RetryAfterExtractionFailureResumesClaim(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("flaky.docx")
	f.source.put(doc, "eventually readable")
	f.extractor.fail(doc, fmt.Errorf("%w: timeout", domain.ErrExtractionFailed))

	_, err := f.pipeline.Process(context.Background(), doc)
	require.Error(t, err)

	out, err := f.pipeline.Process(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, out.Status())
	assert.Equal(t, 2, f.extractor.callCount(doc))
	assert.NotContains(t, out.Transitions, domain.StateSkippedDuplicate)
}

func TestPipeline_RecordRepeatFailureIsSwallowed(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	f.registry.repeatErr = errors.New("write conflict")
	first, second := ref("one.txt"), ref("two.txt")
	f.source.put(first, "shared")
	f.source.put(second, "shared")

	_, err := f.pipeline.Process(context.Background(), first)
	require.NoError(t, err)
	out, err := f.pipeline.Process(context.Background(), second)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDuplicate, out.Status())
}

func TestPipeline_AnalyzerFailuresDegrade(t *testing.T) {
	set := driven.AnalyzerSet{
		Language:   &stubLanguage{err: errors.New("detector offline")},
		Entities:   &stubEntities{err: errors.New("quota")},
		KeyPhrases: &stubPhrases{phrases: []domain.KeyPhrase{{Text: "budget", Confidence: 0.5}}},
		Summariser: &stubSummariser{err: fmt.Errorf("%w: model overloaded", domain.ErrLLMUnavailable)},
	}
	f := newPipelineFixture(t, set)
	doc := ref("memo.txt")
	f.source.put(doc, "The budget was approved.")

	out, err := f.pipeline.Process(context.Background(), doc)

	require.NoError(t, err)
	rec := out.Record
	assert.Equal(t, domain.StatusProcessed, rec.Status)
	assert.Equal(t, domain.LanguageUnknown, rec.Language)
	assert.Empty(t, rec.Entities)
	assert.NotNil(t, rec.Entities)
	assert.Len(t, rec.KeyPhrases, 1)
	assert.Equal(t, SummaryUnavailable, rec.Summary)
	assert.Contains(t, rec.Insights, "model overloaded")
	assert.Empty(t, rec.StructuredData)
}

func TestPipeline_EmptyTextIsProcessed(t *testing.T) {
	set := defaultAnalyzers()
	f := newPipelineFixture(t, set)
	doc := ref("whitespace.txt")
	f.source.put(doc, "   \n  ")

	out, err := f.pipeline.Process(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, out.Record.Status)
	assert.Equal(t, domain.LanguageUnknown, out.Record.Language)
	assert.Equal(t, 0, set.Summariser.(*stubSummariser).callCount())
	assert.Equal(t, 6, out.Record.FullTextLength)
}

func TestPipeline_CancelledContext(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("doc.txt")
	f.source.put(doc, "content")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.pipeline.Process(ctx, doc)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, out.Record)
	assert.False(t, domain.IsRetryable(err))
}

func TestPipeline_ConcurrentSameDocument(t *testing.T) {
	f := newPipelineFixture(t, driven.AnalyzerSet{})
	doc := ref("shared.txt")
	f.source.put(doc, "delivered many times")
	f.extractor.gate = make(chan struct{})

	const n = 8
	outcomes := make(chan *driving.Outcome, n)
	for i := 0; i < n; i++ {
		go func() {
			out, err := f.pipeline.Process(context.Background(), doc)
			assert.NoError(t, err)
			outcomes <- out
		}()
	}

	// The claim holder is parked in Extract, so every other delivery
	// has to finish first.
	for i := 0; i < n-1; i++ {
		out := <-outcomes
		require.NotNil(t, out)
		assert.Equal(t, domain.StatusDuplicate, out.Status())
		assert.Equal(t, doc.ID(), out.Record.DuplicateOfDocumentID)
	}
	close(f.extractor.gate)
	last := <-outcomes
	require.NotNil(t, last)
	assert.Equal(t, domain.StatusProcessed, last.Status())
	assert.Equal(t, 1, f.extractor.callCount(doc))

	history, err := f.store.History(context.Background(), doc.ID())
	require.NoError(t, err)
	require.Len(t, history, n)
	statuses := map[domain.RecordStatus]int{}
	for _, rec := range history {
		statuses[rec.Status]++
	}
	assert.Equal(t, map[domain.RecordStatus]int{
		domain.StatusProcessed: 1,
		domain.StatusDuplicate: n - 1,
	}, statuses)

	reg, err := f.registry.Lookup(context.Background(), last.Fingerprint)
	require.NoError(t, err)
	assert.True(t, reg.Completed)
}

func TestPipeline_ExistingClaimOnSameDocument(t *testing.T) {
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name        string
		claimedAt   time.Time
		wantStatus  domain.RecordStatus
		wantExtract int
	}{
		{"held by a live run", start, domain.StatusDuplicate, 0},
		{"left behind by a crashed run", start.Add(-DefaultClaimTTL - time.Minute), domain.StatusProcessed, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newPipelineFixture(t, defaultAnalyzers())
			doc := ref("contract.pdf")
			f.source.put(doc, "signed by both parties")
			fp, err := hashing.HashBytes([]byte("signed by both parties"))
			require.NoError(t, err)
			reg, err := f.registry.RegisterIfNew(context.Background(), fp, doc.ID(), tt.claimedAt)
			require.NoError(t, err)
			require.True(t, reg.Inserted)

			out, err := f.pipeline.Process(context.Background(), doc)

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, out.Status())
			assert.Equal(t, tt.wantExtract, f.extractor.callCount(doc))
		})
	}
}

func TestPipeline_FailedRunReleasesClaim(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("report.txt")
	f.source.put(doc, "quarterly numbers")
	f.store.putErrs = []error{errors.New("disk full")}

	out, err := f.pipeline.Process(context.Background(), doc)
	require.Error(t, err)

	reg, err := f.registry.Lookup(context.Background(), out.Fingerprint)
	require.NoError(t, err)
	assert.True(t, reg.ClaimedAt.IsZero())
	assert.False(t, reg.Completed)

	out, err = f.pipeline.Process(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, out.Status())
	reg, err = f.registry.Lookup(context.Background(), out.Fingerprint)
	require.NoError(t, err)
	assert.True(t, reg.Completed)
}

func TestPipeline_CancelledRunStillReleasesClaim(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("slow.txt")
	f.source.put(doc, "takes a while")
	fp, err := hashing.HashBytes([]byte("takes a while"))
	require.NoError(t, err)
	f.extractor.gate = make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		_, err := f.pipeline.Process(ctx, doc)
		done <- err
	}()

	require.Eventually(t, func() bool {
		reg, err := f.registry.Lookup(context.Background(), fp)
		return err == nil && !reg.ClaimedAt.IsZero()
	}, time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	reg, err := f.registry.Lookup(context.Background(), fp)
	require.NoError(t, err)
	assert.True(t, reg.ClaimedAt.IsZero())
	assert.False(t, reg.Completed)
}

func TestPipeline_PersistedRunWithUncompletedClaimIsNotRedone(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("ledger.csv")
	f.source.put(doc, "a,b,c")
	f.registry.completeErr = errors.New("connection lost")

	first, err := f.pipeline.Process(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, domain.StatusProcessed, first.Status())

	// Simulate the claim expiring before anyone completes it.
	require.NoError(t, f.registry.Release(context.Background(), first.Fingerprint, doc.ID()))
	f.registry.completeErr = nil

	out, err := f.pipeline.Process(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusDuplicate, out.Status())
	assert.Equal(t, doc.ID(), out.Record.DuplicateOfDocumentID)
	assert.Equal(t, 1, f.extractor.callCount(doc))

	reg, err := f.registry.Lookup(context.Background(), first.Fingerprint)
	require.NoError(t, err)
	assert.True(t, reg.Completed)
}
