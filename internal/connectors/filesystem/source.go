package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/logger"
)

// Verify interface compliance.
var _ driven.WatchableSource = (*Source)(nil)

// DefaultSettleDelay is how long a watched file must stay quiet before it
// is reported.
const DefaultSettleDelay = 300 * time.Millisecond

// Source serves documents from a local directory tree.
// Each immediate subdirectory of the root is a container and
// object keys are slash-separated paths within it.
type Source struct {
	rootPath string
	settle   time.Duration
}

// Option configures a Source.
type Option func(*Source)

// WithSettleDelay sets the quiet window Watch waits for after the last
// write to a file. Zero or negative values keep the default.
func WithSettleDelay(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.settle = d
		}
	}
}

// New creates a filesystem source rooted at rootPath.
func New(rootPath string, opts ...Option) *Source {
	s := &Source{rootPath: rootPath, settle: DefaultSettleDelay}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RootPath returns the directory containers are resolved against.
func (s *Source) RootPath() string {
	return s.rootPath
}

// Open returns a stream over the document's bytes.
func (s *Source) Open(ctx context.Context, ref domain.DocumentRef) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, ref, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", domain.ErrSourceUnavailable, ref)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrSourceUnavailable, ref, err)
	}
	return f, nil
}

// MIMEType returns the content type derived from the object key's extension.
func (s *Source) MIMEType(_ context.Context, ref domain.DocumentRef) (string, error) {
	if _, err := s.resolve(ref); err != nil {
		return "", err
	}
	return detectMIMEType(ref.ObjectKey), nil
}

// List walks a container and returns every visible regular file, sorted by key.
func (s *Source) List(ctx context.Context, containerID string) ([]domain.DocumentRef, error) {
	dir, err := s.containerPath(containerID)
	if err != nil {
		return nil, err
	}

	var refs []domain.DocumentRef
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		if rel != "." && isHidden(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		refs = append(refs, domain.DocumentRef{
			ContainerID: containerID,
			ObjectKey:   filepath.ToSlash(rel),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: listing %s: %w", domain.ErrSourceUnavailable, containerID, err)
	}

	sort.Slice(refs, func(i, j int) bool { return refs[i].ObjectKey < refs[j].ObjectKey })
	return refs, nil
}

// Watch reports files created or written in a container until ctx is done.
// Subdirectories created while watching are added to the watch set.
//
// A file is reported once it has seen no events for the settle delay, so
// a copy arriving in several writes yields a single reference.
func (s *Source) Watch(ctx context.Context, containerID string) (<-chan domain.DocumentRef, <-chan error) {
	refs := make(chan domain.DocumentRef)
	errs := make(chan error, 1)

	dir, err := s.containerPath(containerID)
	if err != nil {
		errs <- err
		close(refs)
		close(errs)
		return refs, errs
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		errs <- fmt.Errorf("%w: creating watcher: %w", domain.ErrSourceUnavailable, err)
		close(refs)
		close(errs)
		return refs, errs
	}

	if err := addRecursive(watcher, dir); err != nil {
		watcher.Close()
		errs <- fmt.Errorf("%w: watching %s: %w", domain.ErrSourceUnavailable, containerID, err)
		close(refs)
		close(errs)
		return refs, errs
	}

	go func() {
		defer close(refs)
		defer close(errs)
		defer watcher.Close()

		settled := make(chan string)
		stop := make(chan struct{})
		pending := make(map[string]*time.Timer)
		defer func() {
			close(stop)
			for _, timer := range pending {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !s.handleFsEvent(watcher, dir, event) {
					continue
				}
				if timer, ok := pending[event.Name]; ok {
					timer.Reset(s.settle)
					continue
				}
				path := event.Name
				pending[path] = time.AfterFunc(s.settle, func() {
					select {
					case settled <- path:
					case <-stop:
					}
				})
			case path := <-settled:
				delete(pending, path)
				ref, ok := settledRef(dir, containerID, path)
				if !ok {
					continue
				}
				select {
				case refs <- ref:
				case <-ctx.Done():
					return
				}
			case werr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				select {
				case errs <- fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, werr):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return refs, errs
}

// handleFsEvent reports whether event touched a visible regular file.
// Removals, renames and chmods produce nothing; there is nothing to enrich.
// New directories are added to the watch set.
func (s *Source) handleFsEvent(watcher *fsnotify.Watcher, dir string, event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}

	rel, err := filepath.Rel(dir, event.Name)
	if err != nil || isHidden(rel) {
		return false
	}

	info, err := os.Stat(event.Name)
	if err != nil {
		return false
	}
	if info.IsDir() {
		if event.Has(fsnotify.Create) {
			if err := addRecursive(watcher, event.Name); err != nil {
				logger.Warn("watch: failed to add %s: %v", event.Name, err)
			}
		}
		return false
	}
	return info.Mode().IsRegular()
}

// settledRef builds the reference for a file that has gone quiet.
// Files removed during the settle window are dropped.
func settledRef(dir, containerID, path string) (domain.DocumentRef, bool) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return domain.DocumentRef{}, false
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return domain.DocumentRef{}, false
	}
	return domain.DocumentRef{ContainerID: containerID, ObjectKey: filepath.ToSlash(rel)}, true
}

// resolve maps a reference onto a path inside the root.
// Keys that escape their container are rejected.
func (s *Source) resolve(ref domain.DocumentRef) (string, error) {
	if err := ref.Validate(); err != nil {
		return "", err
	}
	dir, err := s.containerPath(ref.ContainerID)
	if err != nil {
		return "", err
	}

	clean := filepath.Clean(filepath.FromSlash(ref.ObjectKey))
	if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: object key %q escapes container", domain.ErrInvalidInput, ref.ObjectKey)
	}
	return filepath.Join(dir, clean), nil
}

func (s *Source) containerPath(containerID string) (string, error) {
	if containerID == "" || containerID == "." || containerID == ".." ||
		strings.ContainsAny(containerID, `/\`) {
		return "", fmt.Errorf("%w: invalid container id %q", domain.ErrInvalidInput, containerID)
	}
	return filepath.Join(s.rootPath, containerID), nil
}

// addRecursive watches dir and every visible directory below it.
func addRecursive(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.FieldsFunc(path, func(r rune) bool { return r == '/' || r == filepath.Separator }) {
		if part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// fallbackMIMETypes covers extensions the platform mime table often lacks.
var fallbackMIMETypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".text":     "text/plain",
	".log":      "text/plain",
	".csv":      "text/csv",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
	".htm":      "text/html",
	".html":     "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".json":     "application/json",
	".xml":      "application/xml",
	".pdf":      "application/pdf",
}

// detectMIMEType returns the MIME type for a filename without parameters.
// Files without an extension are treated as plain text.
func detectMIMEType(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "text/plain"
	}
	if mt, ok := fallbackMIMETypes[ext]; ok {
		return mt
	}
	if mt := mime.TypeByExtension(ext); mt != "" {
		if base, _, err := mime.ParseMediaType(mt); err == nil {
			return base
		}
		return mt
	}
	return "application/octet-stream"
}
