package file

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/enricher/internal/core/ports/driven"
	"github.com/custodia-labs/enricher/internal/logger"
)

var _ driven.PromptStore = (*PromptStore)(nil)

// PromptStore serves LLM prompt templates from user-editable files.
// Files are created from embedded defaults on first use, and an edited
// file is picked up on the next Load because entries are keyed by mtime.
// A file that no longer has exactly one %s placeholder is ignored in
// favour of the default.
type PromptStore struct {
	mu        sync.RWMutex
	promptDir string
	cache     map[string]cachedPrompt
	initOnce  sync.Once
	initErr   error
}

type cachedPrompt struct {
	text    string
	modTime time.Time
}

// defaultPrompts contains embedded default prompts.
// These are used when user files don't exist and as the initial content for new files.
var defaultPrompts = map[string]string{
	driven.PromptEnrichSummary: `Analyse the document below and reply with a single JSON object with exactly these keys:
"summary": a concise summary of the document (at most five sentences),
"insights": the most important observations, risks or action items as one paragraph,
"structuredData": an object of key facts (names, dates, amounts, identifiers) with string values.
Reply with JSON only.

Document:
%s`,
}

// NewPromptStore creates a new file-based prompt store.
// If promptDir is empty, defaults to ~/.enricher/prompts/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewPromptStore(promptDir string) (*PromptStore, error) {
	if promptDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		promptDir = filepath.Join(home, ".enricher", "prompts")
	}

	return &PromptStore{
		promptDir: promptDir,
		cache:     make(map[string]cachedPrompt),
	}, nil
}

// Load returns the template for name, reading the file again only when
// it changed since the last call.
func (s *PromptStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	fallback, hasDefault := defaultPrompts[name]
	if s.initErr != nil {
		if hasDefault {
			return fallback, nil
		}
		return "", fmt.Errorf("prompt store init failed: %w", s.initErr)
	}

	path := s.path(name)
	info, err := os.Stat(path)
	if err != nil {
		if hasDefault {
			return fallback, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}

	s.mu.RLock()
	cached, ok := s.cache[name]
	s.mu.RUnlock()
	if ok && cached.modTime.Equal(info.ModTime()) {
		return cached.text, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if hasDefault {
			return fallback, nil
		}
		return "", fmt.Errorf("load prompt %q: %w", name, err)
	}
	prompt := strings.TrimSpace(string(data))
	if hasDefault && !validTemplate(prompt) {
		logger.Warn("prompt %s: expected one %%s placeholder, using default", path)
		prompt = fallback
	}

	s.mu.Lock()
	s.cache[name] = cachedPrompt{text: prompt, modTime: info.ModTime()}
	s.mu.Unlock()
	return prompt, nil
}

// validTemplate reports whether prompt takes exactly one string argument.
func validTemplate(prompt string) bool {
	return strings.Count(strings.ReplaceAll(prompt, "%%", ""), "%s") == 1
}

// Reload forgets every cached template.
func (s *PromptStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]cachedPrompt)
	s.mu.Unlock()
}

// Dir returns the prompt directory path.
func (s *PromptStore) Dir() string {
	return s.promptDir
}

func (s *PromptStore) path(name string) string {
	return filepath.Join(s.promptDir, name+".txt")
}

// initialise writes missing default files and the README.
func (s *PromptStore) initialise() {
	if err := os.MkdirAll(s.promptDir, 0700); err != nil {
		s.initErr = fmt.Errorf("create prompt directory: %w", err)
		return
	}

	for name, content := range defaultPrompts {
		path := s.path(name)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0600); err != nil {
				s.initErr = fmt.Errorf("create default prompt %q: %w", name, err)
				return
			}
		}
	}

	if err := s.createReadme(); err != nil {
		s.initErr = err
	}
}

// createReadme writes a README file explaining the prompts directory.
func (s *PromptStore) createReadme() error {
	path := filepath.Join(s.promptDir, "README.md")
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return nil // Already exists or stat error (ignore)
	}

	content := `# Enricher Prompts

This directory contains customisable prompts used by the LLM summary analyzer.

## Files

- ` + "`enrich_summary.txt`" + ` - Asks the model for a summary, insights and key facts as JSON

## Customisation

Edit any file to customise LLM behaviour. An edited file is used from the
next document onwards, including while a watch is running.

## Format Placeholders

Prompts use exactly one Go fmt placeholder; a file without it is ignored:
- ` + "`%s`" + ` - The extracted document text

The reply must stay a JSON object with "summary", "insights" and
"structuredData" keys or the summary analyzer reports a failure.
`
	return os.WriteFile(path, []byte(content), 0600)
}
