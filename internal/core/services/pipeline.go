package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
	"github.com/custodia-labs/enricher/internal/logger"
)

// Ensure Pipeline implements the interface.
var _ driving.DocumentProcessor = (*Pipeline)(nil)

// DefaultClaimTTL is how long a fingerprint claim protects an in-flight
// run from being taken over by another delivery of the same document.
const DefaultClaimTTL = 10 * time.Minute

// PipelineDeps are the collaborators of a Pipeline.
// Clock, NewID and ClaimTTL are optional; everything else is required.
type PipelineDeps struct {
	Source    driven.DocumentSource
	Hasher    driven.ContentHasher
	Registry  driven.DuplicateRegistry
	Extractor driven.TextExtractor
	Enricher  *Enricher
	Store     driven.MetadataStore
	Limits    domain.Limits

	// Clock returns the processing time (default: time.Now in UTC).
	Clock func() time.Time

	// NewID mints a record ID for the given time (default: ULID).
	NewID func(time.Time) string

	// ClaimTTL bounds how long a crashed run can hold its claim
	// (default: DefaultClaimTTL). It must exceed the slowest run.
	ClaimTTL time.Duration
}

// Pipeline drives one document through hashing, duplicate detection,
// extraction, enrichment and persistence.
type Pipeline struct {
	deps PipelineDeps
}

// NewPipeline validates deps and creates a pipeline.
func NewPipeline(deps PipelineDeps) (*Pipeline, error) {
	switch {
	case deps.Source == nil:
		return nil, fmt.Errorf("%w: pipeline needs a document source", domain.ErrInvalidInput)
	case deps.Hasher == nil:
		return nil, fmt.Errorf("%w: pipeline needs a content hasher", domain.ErrInvalidInput)
	case deps.Registry == nil:
		return nil, fmt.Errorf("%w: pipeline needs a duplicate registry", domain.ErrInvalidInput)
	case deps.Extractor == nil:
		return nil, fmt.Errorf("%w: pipeline needs a text extractor", domain.ErrInvalidInput)
	case deps.Enricher == nil:
		return nil, fmt.Errorf("%w: pipeline needs an enricher", domain.ErrInvalidInput)
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: pipeline needs a metadata store", domain.ErrInvalidInput)
	}
	if err := deps.Limits.Validate(); err != nil {
		return nil, err
	}
	if deps.Clock == nil {
		deps.Clock = func() time.Time { return time.Now().UTC() }
	}
	if deps.NewID == nil {
		deps.NewID = NewRecordIDs().New
	}
	if deps.ClaimTTL <= 0 {
		deps.ClaimTTL = DefaultClaimTTL
	}
	return &Pipeline{deps: deps}, nil
}

// run tracks the state of one Process call.
type run struct {
	out *driving.Outcome

	// claimed is set while this run holds the fingerprint claim.
	claimed bool
}

func (r *run) enter(state domain.PipelineState) {
	r.out.State = state
	r.out.Transitions = append(r.out.Transitions, state)
	logger.Event("pipeline transition", "doc", r.out.Ref.ID(), "state", state)
}

// Process runs the state machine for ref once.
//
// Retryable failures write nothing so that a redelivery starts clean.
// Data problems (empty or malformed input) write a FAILED record, since
// retrying them cannot succeed.
func (p *Pipeline) Process(ctx context.Context, ref domain.DocumentRef) (*driving.Outcome, error) {
	r := &run{out: &driving.Outcome{Ref: ref}}
	logger.Section(ref.ID())
	r.enter(domain.StateStart)

	if err := ref.Validate(); err != nil {
		return p.fail(ctx, r, domain.StateStart, err)
	}

	// HASHING
	r.enter(domain.StateHashing)
	fp, err := p.hash(ctx, ref)
	if err != nil {
		return p.fail(ctx, r, domain.StateHashing, err)
	}
	r.out.Fingerprint = fp

	// DEDUP_CHECK
	r.enter(domain.StateDedupCheck)
	now := p.deps.Clock()
	reg, err := p.deps.Registry.RegisterIfNew(ctx, fp, ref.ID(), now)
	if err != nil {
		if !errors.Is(err, domain.ErrRegistryFault) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrRegistryFault, err)
		}
		return p.fail(ctx, r, domain.StateDedupCheck, err)
	}

	if !reg.Inserted {
		resume, err := p.reclaim(ctx, ref, fp, reg.Existing, now)
		if err != nil {
			return p.fail(ctx, r, domain.StateDedupCheck, err)
		}
		if !resume {
			return p.skipDuplicate(ctx, r, fp, reg.Existing, now)
		}
		logger.Info("%s: resuming unfinished claim on %s", ref, fp)
	}
	r.claimed = true

	// EXTRACTING
	r.enter(domain.StateExtracting)
	text, err := p.deps.Extractor.Extract(ctx, ref)
	if err != nil {
		if !isClassified(err) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrExtractionFailed, err)
		}
		return p.fail(ctx, r, domain.StateExtracting, err)
	}

	// ENRICHING
	r.enter(domain.StateEnriching)
	ann := p.deps.Enricher.Enrich(ctx, ref, text)
	if err := ctx.Err(); err != nil {
		return p.fail(ctx, r, domain.StateEnriching, err)
	}

	// PERSISTING
	r.enter(domain.StatePersisting)
	ts := p.deps.Clock()
	record := &domain.EnrichmentRecord{
		ID:                  p.deps.NewID(ts),
		DocumentID:          ref.ID(),
		ProcessingTimestamp: ts,
		Status:              domain.StatusProcessed,
		ContentHash:         fp.String(),
	}
	Normalise(record, text, ann, p.deps.Limits)
	if err := p.put(ctx, record); err != nil {
		return p.fail(ctx, r, domain.StatePersisting, err)
	}
	r.out.Record = record
	r.claimed = false
	if err := p.deps.Registry.Complete(ctx, fp); err != nil {
		logger.Warn("%s: completing claim on %s: %v", ref, fp, err)
	}

	r.enter(domain.StateDone)
	logger.Info("%s: processed (language=%s, entities=%d, phrases=%d)",
		ref, record.Language, len(record.Entities), len(record.KeyPhrases))
	return r.out, nil
}

func (p *Pipeline) hash(ctx context.Context, ref domain.DocumentRef) (domain.Fingerprint, error) {
	rc, err := p.deps.Source.Open(ctx, ref)
	if err != nil {
		if !isClassified(err) && ctx.Err() == nil {
			err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
		}
		return domain.Fingerprint{}, err
	}
	defer rc.Close()

	fp, err := p.deps.Hasher.Hash(ctx, rc)
	if err != nil && !isClassified(err) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
	}
	return fp, err
}

// reclaim decides whether a run that lost RegisterIfNew may carry on.
// Only the owning document can continue, and only by atomically taking
// over a claim that was released or went stale; a run still in flight
// keeps its claim, so a concurrent delivery becomes a duplicate.
//
// A PROCESSED record already in history means an earlier run persisted
// but never completed the claim; that run is finished off instead.
func (p *Pipeline) reclaim(
	ctx context.Context,
	ref domain.DocumentRef,
	fp domain.Fingerprint,
	existing *domain.DuplicateRecord,
	now time.Time,
) (bool, error) {
	if existing == nil || !existing.Reclaimable(ref.ID(), now.Add(-p.deps.ClaimTTL)) {
		return false, nil
	}
	ok, err := p.deps.Registry.Reclaim(ctx, fp, ref.ID(), now, now.Add(-p.deps.ClaimTTL))
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		if !errors.Is(err, domain.ErrRegistryFault) {
			err = fmt.Errorf("%w: %w", domain.ErrRegistryFault, err)
		}
		return false, err
	}
	if !ok {
		return false, nil
	}

	history, err := p.deps.Store.History(ctx, ref.ID())
	if err != nil {
		p.release(ctx, ref, fp)
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		return false, fmt.Errorf("%w: reading history: %w", domain.ErrRegistryFault, err)
	}
	hash := fp.String()
	for i := range history {
		if history[i].Status == domain.StatusProcessed && history[i].ContentHash == hash {
			if err := p.deps.Registry.Complete(ctx, fp); err != nil {
				logger.Warn("%s: completing claim on %s: %v", ref, fp, err)
			}
			return false, nil
		}
	}
	return true, nil
}

// release hands back a claim after a failed run so a retry can take it
// without waiting for it to go stale. It runs even when ctx is cancelled.
func (p *Pipeline) release(ctx context.Context, ref domain.DocumentRef, fp domain.Fingerprint) {
	if err := p.deps.Registry.Release(context.WithoutCancel(ctx), fp, ref.ID()); err != nil {
		logger.Warn("%s: releasing claim on %s: %v", ref, fp, err)
	}
}

// skipDuplicate records a repeat sighting and writes a DUPLICATE record.
// No extraction or analysis happens for duplicate content.
func (p *Pipeline) skipDuplicate(
	ctx context.Context,
	r *run,
	fp domain.Fingerprint,
	existing *domain.DuplicateRecord,
	now time.Time,
) (*driving.Outcome, error) {
	r.enter(domain.StateSkippedDuplicate)

	if existing == nil {
		// A conforming registry always returns the owner on conflict.
		return p.fail(ctx, r, domain.StateDedupCheck,
			fmt.Errorf("%w: conflict without existing record", domain.ErrRegistryFault))
	}

	if err := p.deps.Registry.RecordRepeat(ctx, fp, r.out.Ref.ID(), now); err != nil {
		logger.Warn("%s: recording repeat of %s failed: %v", r.out.Ref, fp, err)
	}

	r.enter(domain.StatePersisting)
	ts := p.deps.Clock()
	record := &domain.EnrichmentRecord{
		ID:                    p.deps.NewID(ts),
		DocumentID:            r.out.Ref.ID(),
		ProcessingTimestamp:   ts,
		Status:                domain.StatusDuplicate,
		DuplicateOfDocumentID: existing.FirstDocumentID,
		ContentHash:           fp.String(),
	}
	Normalise(record, "", domain.Annotations{}, p.deps.Limits)
	if err := p.put(ctx, record); err != nil {
		return p.fail(ctx, r, domain.StatePersisting, err)
	}
	r.out.Record = record

	r.enter(domain.StateDone)
	logger.Info("%s: duplicate of %s", r.out.Ref, existing.FirstDocumentID)
	return r.out, nil
}

func (p *Pipeline) put(ctx context.Context, record *domain.EnrichmentRecord) error {
	err := p.deps.Store.Put(ctx, record)
	if err != nil && !errors.Is(err, domain.ErrPersistFailed) && ctx.Err() == nil {
		err = fmt.Errorf("%w: %w", domain.ErrPersistFailed, err)
	}
	return err
}

// fail moves the run to FAILED and returns the typed error. Non-retryable
// data failures leave a FAILED record behind.
func (p *Pipeline) fail(
	ctx context.Context,
	r *run,
	state domain.PipelineState,
	cause error,
) (*driving.Outcome, error) {
	r.enter(domain.StateFailed)
	if r.claimed {
		r.claimed = false
		p.release(ctx, r.out.Ref, r.out.Fingerprint)
	}
	perr := &domain.PipelineError{Ref: r.out.Ref, State: state, Err: cause}
	logger.Debug("%v", perr)

	code := perr.Code()
	if code != domain.CodeEmptyInput && code != domain.CodeInvalidInput {
		return r.out, perr
	}
	if r.out.Ref.Validate() != nil {
		// Without an identity there is nothing to attach a record to.
		return r.out, perr
	}

	ts := p.deps.Clock()
	record := &domain.EnrichmentRecord{
		ID:                  p.deps.NewID(ts),
		DocumentID:          r.out.Ref.ID(),
		ProcessingTimestamp: ts,
		Status:              domain.StatusFailed,
		FailureReason:       fmt.Sprintf("%s: %v", code, cause),
	}
	if !r.out.Fingerprint.IsZero() {
		record.ContentHash = r.out.Fingerprint.String()
	}
	Normalise(record, "", domain.Annotations{}, p.deps.Limits)
	record.FailureReason = domain.TruncateBytes(record.FailureReason, p.deps.Limits.MaxTextBytes)

	if err := p.put(ctx, record); err != nil {
		logger.Warn("%s: writing failure record: %v", r.out.Ref, err)
		return r.out, perr
	}
	r.out.Record = record
	return r.out, perr
}

// isClassified reports whether err already carries a pipeline taxonomy code.
func isClassified(err error) bool {
	return domain.ErrorCode(err) != domain.CodeUnknown
}
