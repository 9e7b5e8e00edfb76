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
)

type runnerFixture struct {
	processor   *scriptedProcessor
	deadLetters *memory.DeadLetterStore
	runner      *Runner

	mu     sync.Mutex
	sleeps []time.Duration
}

func newRunnerFixture(policy domain.RetryPolicy) *runnerFixture {
	f := &runnerFixture{
		processor:   newScriptedProcessor(),
		deadLetters: memory.NewDeadLetterStore(),
	}
	f.runner = NewRunner(f.processor, f.deadLetters, policy)
	f.runner.sleep = func(ctx context.Context, d time.Duration) error {
		f.mu.Lock()
		f.sleeps = append(f.sleeps, d)
		f.mu.Unlock()
		return ctx.Err()
	}
	return f
}

func testPolicy() domain.RetryPolicy {
	return domain.RetryPolicy{MaxAttempts: 3, BaseBackoff: 100 * time.Millisecond, MaxBackoff: time.Second}
}

var (
	errTransient = fmt.Errorf("%w: network blip", domain.ErrSourceUnavailable)
	errPermanent = domain.ErrEmptyInput
)

func TestRunner_SucceedsFirstTime(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	doc := ref("a.txt")

	out, err := f.runner.Run(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, out.State)
	assert.Equal(t, 1, f.processor.callCount(doc))
	assert.Empty(t, f.sleeps)
}

func TestRunner_RetriesTransientFailures(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	doc := ref("a.txt")
	f.processor.script(doc, errTransient, errTransient)

	out, err := f.runner.Run(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, out.State)
	assert.Equal(t, 3, f.processor.callCount(doc))
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, f.sleeps)

	entries, err := f.deadLetters.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_DeadLettersAfterExhaustion(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	doc := ref("a.txt")
	f.processor.script(doc, errTransient, errTransient, errTransient)

	_, err := f.runner.Run(context.Background(), doc)

	require.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, 3, f.processor.callCount(doc))
	assert.Len(t, f.sleeps, 2)

	entries, err := f.deadLetters.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, doc.ID(), entries[0].DocumentID)
	assert.Equal(t, domain.CodeSourceUnavailable, entries[0].Code)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Contains(t, entries[0].Reason, "network blip")
	assert.NotEmpty(t, entries[0].ID)
}

func TestRunner_NonRetryableFailsImmediately(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	doc := ref("empty.txt")
	f.processor.script(doc, errPermanent)

	_, err := f.runner.Run(context.Background(), doc)

	require.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.Equal(t, 1, f.processor.callCount(doc))
	assert.Empty(t, f.sleeps)

	entries, err := f.deadLetters.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.CodeEmptyInput, entries[0].Code)
	assert.Equal(t, 1, entries[0].Attempts)
}

func TestRunner_CancellationSkipsDeadLetter(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	doc := ref("a.txt")
	f.processor.script(doc, errTransient, errTransient, errTransient)

	ctx, cancel := context.WithCancel(context.Background())
	f.runner.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	_, err := f.runner.Run(ctx, doc)

	require.Error(t, err)
	assert.Equal(t, 1, f.processor.callCount(doc))
	entries, err := f.deadLetters.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRunner_RunBatch(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	docs := []domain.DocumentRef{ref("1.txt"), ref("2.txt"), ref("3.txt"), ref("4.txt"), ref("5.txt")}
	f.processor.script(docs[1], errPermanent)
	f.processor.script(docs[3], errTransient, errTransient, errTransient)

	report, err := f.runner.RunBatch(context.Background(), docs, 2)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
	assert.Equal(t, 3, report.Processed)
	assert.Equal(t, 0, report.Duplicates)
	assert.Equal(t, 2, report.Failed)
	assert.Equal(t, 5, report.Total())
	require.Len(t, report.Outcomes, 5)
	for i, out := range report.Outcomes {
		assert.Equal(t, docs[i], out.Ref)
	}
}

func TestRunner_RunBatchCountsDuplicates(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	f.processor.status = domain.StatusDuplicate

	report, err := f.runner.RunBatch(context.Background(), []domain.DocumentRef{ref("a"), ref("b")}, 4)

	require.NoError(t, err)
	assert.Equal(t, 2, report.Duplicates)
	assert.Equal(t, 0, report.Processed)
}

func TestRunner_RunBatchEmpty(t *testing.T) {
	f := newRunnerFixture(testPolicy())

	report, err := f.runner.RunBatch(context.Background(), nil, 4)

	require.NoError(t, err)
	assert.Equal(t, 0, report.Total())
}

func TestRunner_RunBatchCancelled(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.runner.RunBatch(ctx, []domain.DocumentRef{ref("a"), ref("b"), ref("c")}, 1)

	require.Error(t, err)
	assert.Equal(t, 3, report.Total())
	for _, out := range report.Outcomes {
		require.NotNil(t, out)
	}
}

func TestRunner_RedriveSuccessRemovesEntry(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	doc := ref("a.txt")
	f.processor.script(doc, errPermanent)

	_, err := f.runner.Run(context.Background(), doc)
	require.Error(t, err)
	entries, err := f.deadLetters.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)

	out, err := f.runner.Redrive(context.Background(), entries[0].ID)

	require.NoError(t, err)
	assert.Equal(t, domain.StateDone, out.State)
	_, err = f.deadLetters.Get(context.Background(), entries[0].ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunner_RedriveFailureUpdatesEntry(t *testing.T) {
	f := newRunnerFixture(testPolicy())
	doc := ref("a.txt")
	f.processor.script(doc, errPermanent, errPermanent)

	_, err := f.runner.Run(context.Background(), doc)
	require.Error(t, err)
	entries, err := f.deadLetters.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	id := entries[0].ID

	_, err = f.runner.Redrive(context.Background(), id)

	require.Error(t, err)
	entries, err = f.deadLetters.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, id, entries[0].ID)
	assert.Equal(t, 2, entries[0].Attempts)
}

func TestRunner_RedriveUnknown(t *testing.T) {
	f := newRunnerFixture(testPolicy())

	_, err := f.runner.Redrive(context.Background(), "missing")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRunner_DeadLetterStoreFailureIsJoined(t *testing.T) {
	processor := newScriptedProcessor()
	doc := ref("a.txt")
	processor.script(doc, errPermanent)
	runner := NewRunner(processor, failingDeadLetters{}, testPolicy())

	_, err := runner.Run(context.Background(), doc)

	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	assert.ErrorContains(t, err, "dead-letter store down")
}

func TestRunner_WithRealPipeline(t *testing.T) {
	f := newPipelineFixture(t, defaultAnalyzers())
	doc := ref("flaky.txt")
	f.source.put(doc, "content that eventually loads")
	f.source.failOpen(doc, errors.New("timeout"))

	runner := NewRunner(f.pipeline, memory.NewDeadLetterStore(), testPolicy())
	runner.sleep = func(context.Context, time.Duration) error { return nil }

	out, err := runner.Run(context.Background(), doc)

	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessed, out.Status())
	assert.Equal(t, 2, f.source.opens[doc.ID()])
}

func TestSleepWithCtx(t *testing.T) {
	assert.NoError(t, sleepWithCtx(context.Background(), time.Millisecond))
	assert.NoError(t, sleepWithCtx(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepWithCtx(ctx, time.Hour), context.Canceled)
}

// failingDeadLetters rejects every write.
type failingDeadLetters struct{}

func (failingDeadLetters) Add(context.Context, domain.DeadLetter) error {
	return errors.New("dead-letter store down")
}
func (failingDeadLetters) List(context.Context) ([]domain.DeadLetter, error) { return nil, nil }
func (failingDeadLetters) Get(context.Context, string) (*domain.DeadLetter, error) {
	return nil, domain.ErrNotFound
}
func (failingDeadLetters) Remove(context.Context, string) error { return nil }
