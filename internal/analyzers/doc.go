// Package analyzers provides offline, deterministic implementations of the
// enrichment analyzer ports: language detection, entity extraction,
// key phrase extraction and frequency-based summarisation.
//
// They need no network access and are the default when no LLM provider
// is configured.
package analyzers
