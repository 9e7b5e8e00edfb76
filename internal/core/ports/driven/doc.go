// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the pipeline to function:
//
//   - DocumentSource: Fetches raw document bytes by (container, key)
//   - ContentHasher: Computes the content fingerprint of a byte stream
//   - DuplicateRegistry: Insert-if-absent ownership of fingerprints
//   - TextExtractor: Pulls raw text out of a stored document
//   - MetadataStore: Append-only enrichment record persistence
//   - DeadLetterStore: Permanently failed documents
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the affected record fields degrade to defaults:
//
//   - LanguageDetector: Without it, language is "unknown".
//   - EntityExtractor: Without it, entities are empty.
//   - KeyPhraseExtractor: Without it, key phrases are empty.
//   - Summariser: Without it, the summary fallback is recorded.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, extractor, or analyzer package
package driven
