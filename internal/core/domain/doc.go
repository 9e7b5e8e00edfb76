// Package domain defines the core business entities for the enrichment pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - DocumentRef: The (container, key) identity of a stored document
//   - Fingerprint: The SHA-256 content digest used for duplicate detection
//   - DuplicateRecord: The registry entry for the first owner of a fingerprint
//   - EnrichmentRecord: The persisted, append-only result of one processing attempt
//   - DeadLetter: A document whose retry budget was exhausted
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
