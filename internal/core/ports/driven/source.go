package driven

import (
	"context"
	"io"

	"github.com/custodia-labs/enricher/internal/core/domain"
)

// DocumentSource fetches raw document bytes.
// Failures to fetch must wrap domain.ErrSourceUnavailable.
type DocumentSource interface {
	// Open returns a stream over the document's full byte content.
	// The caller must close it.
	Open(ctx context.Context, ref domain.DocumentRef) (io.ReadCloser, error)

	// MIMEType returns the content type of the document.
	MIMEType(ctx context.Context, ref domain.DocumentRef) (string, error)

	// List returns every document in a container.
	List(ctx context.Context, containerID string) ([]domain.DocumentRef, error)
}

// WatchableSource is a DocumentSource that can report newly available documents.
type WatchableSource interface {
	DocumentSource

	// Watch emits references to created or modified documents until ctx is done.
	// Errors are sent on the error channel; both channels close on exit.
	Watch(ctx context.Context, containerID string) (<-chan domain.DocumentRef, <-chan error)
}
