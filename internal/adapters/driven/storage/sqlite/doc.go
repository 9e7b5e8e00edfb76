// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DuplicateRegistry: Fingerprint ownership via INSERT ... ON CONFLICT DO NOTHING
//   - MetadataStore: Append-only enrichment records
//   - DeadLetterStore: Permanently failed documents
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Timestamps are stored as Unix nanoseconds so that newest-first ordering is exact.
//
// # Data Location
//
// By default, the database is stored at ~/.enricher/data/enricher.db
//
// # Thread Safety
//
// All operations are thread-safe. Writes are serialised through a single
// connection and SQLite runs in WAL mode.
package sqlite
