package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
	"github.com/custodia-labs/enricher/internal/logger"
)

// Ensure Runner implements the interface.
var _ driving.Runner = (*Runner)(nil)

// Runner wraps a DocumentProcessor with bounded retries and a dead-letter
// destination for documents that fail permanently.
type Runner struct {
	processor   driving.DocumentProcessor
	deadLetters driven.DeadLetterStore
	policy      domain.RetryPolicy
	clock       func() time.Time
	sleep       func(context.Context, time.Duration) error
}

// NewRunner creates a runner.
func NewRunner(
	processor driving.DocumentProcessor,
	deadLetters driven.DeadLetterStore,
	policy domain.RetryPolicy,
) *Runner {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	return &Runner{
		processor:   processor,
		deadLetters: deadLetters,
		policy:      policy,
		clock:       func() time.Time { return time.Now().UTC() },
		sleep:       sleepWithCtx,
	}
}

// Run processes ref, retrying retryable failures with exponential backoff.
func (r *Runner) Run(ctx context.Context, ref domain.DocumentRef) (*driving.Outcome, error) {
	return r.run(ctx, ref, nil)
}

// run retries ref and dead-letters it on permanent failure. A non-nil
// prior entry is updated in place instead of adding a new one.
func (r *Runner) run(ctx context.Context, ref domain.DocumentRef, prior *domain.DeadLetter) (*driving.Outcome, error) {
	var (
		out     *driving.Outcome
		err     error
		attempt int
	)
	for attempt = 1; attempt <= r.policy.MaxAttempts; attempt++ {
		out, err = r.processor.Process(ctx, ref)
		if err == nil {
			return out, nil
		}
		if ctx.Err() != nil {
			return out, err
		}
		if !domain.IsRetryable(err) {
			break
		}
		if attempt == r.policy.MaxAttempts {
			break
		}

		delay := r.policy.Backoff(attempt)
		logger.Info("%s: attempt %d/%d failed (%s), retrying in %s",
			ref, attempt, r.policy.MaxAttempts, domain.ErrorCode(err), delay)
		if serr := r.sleep(ctx, delay); serr != nil {
			return out, err
		}
	}

	if dlErr := r.deadLetter(ctx, ref, err, attempt, prior); dlErr != nil {
		return out, errors.Join(err, dlErr)
	}
	return out, err
}

func (r *Runner) deadLetter(
	ctx context.Context,
	ref domain.DocumentRef,
	cause error,
	attempts int,
	prior *domain.DeadLetter,
) error {
	entry := domain.DeadLetter{
		ID:         uuid.NewString(),
		DocumentID: ref.ID(),
		Code:       domain.ErrorCode(cause),
		Reason:     cause.Error(),
		Attempts:   attempts,
		FailedAt:   r.clock(),
	}
	if prior != nil {
		entry.ID = prior.ID
		entry.Attempts += prior.Attempts
	}

	logger.Error("%s: dead-lettered after %d attempt(s): %v", ref, entry.Attempts, cause)
	if r.deadLetters == nil {
		return nil
	}
	if err := r.deadLetters.Add(ctx, entry); err != nil {
		return fmt.Errorf("dead-letter %s: %w", ref, err)
	}
	return nil
}

// RunBatch processes refs with at most concurrency documents in flight.
// Documents are independent: one failure never stops the others. The
// returned error joins every per-document failure.
func (r *Runner) RunBatch(
	ctx context.Context,
	refs []domain.DocumentRef,
	concurrency int,
) (*driving.BatchReport, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	outcomes := make([]*driving.Outcome, len(refs))
	errs := make([]error, len(refs))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < min(concurrency, len(refs)); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				outcomes[i], errs[i] = r.Run(ctx, refs[i])
			}
		}()
	}

feed:
	for i := range refs {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()

	report := &driving.BatchReport{Outcomes: outcomes}
	for i, out := range outcomes {
		if out == nil {
			// Never started because the batch was cancelled.
			outcomes[i] = &driving.Outcome{Ref: refs[i], State: domain.StateFailed}
			if errs[i] == nil {
				errs[i] = &domain.PipelineError{Ref: refs[i], State: domain.StateStart, Err: ctx.Err()}
			}
		}
		switch {
		case errs[i] != nil:
			report.Failed++
		case outcomes[i].Status() == domain.StatusDuplicate:
			report.Duplicates++
		default:
			report.Processed++
		}
	}

	return report, errors.Join(errs...)
}

// Redrive re-runs a dead-lettered document. The entry is removed on
// success and updated with the new failure otherwise.
func (r *Runner) Redrive(ctx context.Context, deadLetterID string) (*driving.Outcome, error) {
	if r.deadLetters == nil {
		return nil, fmt.Errorf("%w: no dead-letter store configured", domain.ErrInvalidInput)
	}
	entry, err := r.deadLetters.Get(ctx, deadLetterID)
	if err != nil {
		return nil, err
	}
	ref, err := domain.ParseDocumentRef(entry.DocumentID)
	if err != nil {
		return nil, err
	}

	logger.Info("redriving %s (dead letter %s)", ref, entry.ID)
	out, err := r.run(ctx, ref, entry)
	if err != nil {
		return out, err
	}
	if err := r.deadLetters.Remove(ctx, entry.ID); err != nil {
		return out, fmt.Errorf("remove dead letter %s: %w", entry.ID, err)
	}
	return out, nil
}

// sleepWithCtx sleeps for d or until ctx is done.
func sleepWithCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
