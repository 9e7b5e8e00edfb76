package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/core/ports/driving"
	"github.com/custodia-labs/enricher/internal/logger"
)

// WatchHandler is called after each watched document finishes.
type WatchHandler func(out *driving.Outcome, err error)

// Watch runs every document reported by src through runner until ctx is
// done. At most concurrency documents are processed at once. Source errors
// are logged and watching continues; per-document failures go to handle.
//
// A document reported again while it is still running is not started a
// second time; it is run once more after the current run finishes.
func Watch(
	ctx context.Context,
	src driven.WatchableSource,
	containerID string,
	runner driving.Runner,
	concurrency int,
	handle WatchHandler,
) error {
	if concurrency < 1 {
		concurrency = 1
	}
	refs, errs := src.Watch(ctx, containerID)

	sem := make(chan struct{}, concurrency)
	active := newInflight()
	var wg sync.WaitGroup
	defer wg.Wait()

	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			lastErr = err
			logger.Warn("watch %s: %v", containerID, err)
		case ref, ok := <-refs:
			if !ok {
				// The source stopped on its own; report why.
				if errs != nil {
					for err := range errs {
						lastErr = err
					}
				}
				if ctx.Err() != nil {
					return nil
				}
				return lastErr
			}
			if !active.start(ref.ID()) {
				logger.Debug("watch %s: %s already running, queued rerun", containerID, ref)
				continue
			}
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return nil
			}
			wg.Add(1)
			go func(ref domain.DocumentRef) {
				defer wg.Done()
				defer func() { <-sem }()
				for {
					out, err := runner.Run(ctx, ref)
					if handle != nil {
						handle(out, err)
					}
					if !active.finish(ref.ID()) || ctx.Err() != nil {
						return
					}
				}
			}(ref)
		}
	}
}

// inflight tracks documents with a run in progress and whether they were
// reported again meanwhile.
type inflight struct {
	mu      sync.Mutex
	running map[string]bool
}

func newInflight() *inflight {
	return &inflight{running: make(map[string]bool)}
}

// start claims id for a new run. If id is already running it is marked
// for a rerun and start returns false.
func (f *inflight) start(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.running[id]; ok {
		f.running[id] = true
		return false
	}
	f.running[id] = false
	return true
}

// finish reports whether id must run again. When it returns false the
// claim on id is dropped.
func (f *inflight) finish(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running[id] {
		f.running[id] = false
		return true
	}
	delete(f.running, id)
	return false
}
