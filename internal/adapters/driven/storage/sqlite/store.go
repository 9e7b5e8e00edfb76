package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/enricher/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/enricher/internal/core/domain"
	"github.com/custodia-labs/enricher/internal/core/ports/driven"
)

// DatabaseFile is the name of the database inside the data directory.
const DatabaseFile = "enricher.db"

// Store is a unified SQLite-based storage that provides access to
// all store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.enricher/data/enricher.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".enricher", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// One writer at a time; SQLite serialises writes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DuplicateRegistry returns a DuplicateRegistry interface backed by this store.
func (s *Store) DuplicateRegistry() driven.DuplicateRegistry {
	return &duplicateRegistry{store: s}
}

// MetadataStore returns a MetadataStore interface backed by this store.
func (s *Store) MetadataStore() driven.MetadataStore {
	return &metadataStore{store: s}
}

// DeadLetterStore returns a DeadLetterStore interface backed by this store.
func (s *Store) DeadLetterStore() driven.DeadLetterStore {
	return &deadLetterStore{store: s}
}

// migrate runs all pending migrations and records each applied version.
func (s *Store) migrate(fsys fs.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if err := s.applyMigration(version, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *Store) applyMigration(version int, script string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.Exec(script); err != nil {
		return err
	}
	if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
		return err
	}
	return tx.Commit()
}

// ==================== Duplicate Registry ====================

// duplicateRegistry implements driven.DuplicateRegistry.
type duplicateRegistry struct {
	store *Store
}

var _ driven.DuplicateRegistry = (*duplicateRegistry)(nil)

// RegisterIfNew inserts the fingerprint unless it is already owned.
// The conflict clause makes the check and insert one atomic statement.
func (r *duplicateRegistry) RegisterIfNew(
	ctx context.Context,
	fp domain.Fingerprint,
	documentID string,
	ts time.Time,
) (domain.RegistrationResult, error) {
	res, err := r.store.db.ExecContext(ctx, `
		INSERT INTO duplicate_registry
			(content_hash, first_document_id, first_seen, occurrences, latest_document_id, last_seen,
			 claimed_at, completed)
		VALUES (?, ?, ?, 1, ?, ?, ?, 0)
		ON CONFLICT(content_hash) DO NOTHING
	`, fp.String(), documentID, ts.UnixNano(), documentID, ts.UnixNano(), ts.UnixNano())
	if err != nil {
		return domain.RegistrationResult{}, fmt.Errorf("%w: inserting fingerprint: %w", domain.ErrRegistryFault, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return domain.RegistrationResult{}, fmt.Errorf("%w: reading rows affected: %w", domain.ErrRegistryFault, err)
	}
	if affected == 1 {
		return domain.RegistrationResult{Inserted: true}, nil
	}

	existing, err := r.Lookup(ctx, fp)
	if err != nil {
		return domain.RegistrationResult{}, fmt.Errorf("%w: reading existing fingerprint: %w", domain.ErrRegistryFault, err)
	}
	return domain.RegistrationResult{Inserted: false, Existing: existing}, nil
}

// RecordRepeat counts another sighting of the fingerprint.
func (r *duplicateRegistry) RecordRepeat(ctx context.Context, fp domain.Fingerprint, documentID string, ts time.Time) error {
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE duplicate_registry
		SET occurrences = occurrences + 1,
			latest_document_id = ?,
			last_seen = MAX(last_seen, ?)
		WHERE content_hash = ?
	`, documentID, ts.UnixNano(), fp.String())
	if err != nil {
		return fmt.Errorf("recording repeat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording repeat: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Reclaim re-takes an unfinished claim with a single conditional update,
// so two callers racing for the same stale claim cannot both win.
// A released claim is stored as claimed_at = 0.
func (r *duplicateRegistry) Reclaim(
	ctx context.Context,
	fp domain.Fingerprint,
	documentID string,
	now, staleBefore time.Time,
) (bool, error) {
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE duplicate_registry
		SET claimed_at = ?
		WHERE content_hash = ?
			AND first_document_id = ?
			AND completed = 0
			AND (claimed_at = 0 OR claimed_at < ?)
	`, now.UnixNano(), fp.String(), documentID, staleBefore.UnixNano())
	if err != nil {
		return false, fmt.Errorf("%w: reclaiming fingerprint: %w", domain.ErrRegistryFault, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: reading rows affected: %w", domain.ErrRegistryFault, err)
	}
	return affected == 1, nil
}

// Release drops the owner's unfinished claim.
func (r *duplicateRegistry) Release(ctx context.Context, fp domain.Fingerprint, documentID string) error {
	_, err := r.store.db.ExecContext(ctx, `
		UPDATE duplicate_registry
		SET claimed_at = 0
		WHERE content_hash = ? AND first_document_id = ? AND completed = 0
	`, fp.String(), documentID)
	if err != nil {
		return fmt.Errorf("releasing claim: %w", err)
	}
	return nil
}

// Complete marks the claim on a fingerprint finished.
func (r *duplicateRegistry) Complete(ctx context.Context, fp domain.Fingerprint) error {
	res, err := r.store.db.ExecContext(ctx, `
		UPDATE duplicate_registry SET completed = 1 WHERE content_hash = ?
	`, fp.String())
	if err != nil {
		return fmt.Errorf("completing claim: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("completing claim: %w", err)
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Lookup returns the record for a fingerprint.
func (r *duplicateRegistry) Lookup(ctx context.Context, fp domain.Fingerprint) (*domain.DuplicateRecord, error) {
	row := r.store.db.QueryRowContext(ctx, `
		SELECT first_document_id, first_seen, occurrences, latest_document_id, last_seen,
			claimed_at, completed
		FROM duplicate_registry WHERE content_hash = ?
	`, fp.String())

	rec := domain.DuplicateRecord{ContentHash: fp}
	var firstSeen, lastSeen, claimedAt int64
	if err := row.Scan(
		&rec.FirstDocumentID, &firstSeen, &rec.Occurrences, &rec.LatestDocumentID, &lastSeen,
		&claimedAt, &rec.Completed,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning fingerprint: %w", err)
	}
	rec.FirstSeen = time.Unix(0, firstSeen).UTC()
	rec.LastSeen = time.Unix(0, lastSeen).UTC()
	if claimedAt != 0 {
		rec.ClaimedAt = time.Unix(0, claimedAt).UTC()
	}
	return &rec, nil
}

// ==================== Metadata Store ====================

// metadataStore implements driven.MetadataStore.
type metadataStore struct {
	store *Store
}

var _ driven.MetadataStore = (*metadataStore)(nil)

const recordColumns = `id, document_id, processed_at, status, language, entities, key_phrases,
	text_preview, full_text_length, summary, insights, structured_data,
	duplicate_of, content_hash, failure_reason`

// Put appends a record. It never updates an existing row.
func (m *metadataStore) Put(ctx context.Context, record *domain.EnrichmentRecord) error {
	if record == nil {
		return fmt.Errorf("%w: nil record", domain.ErrInvalidInput)
	}
	if err := record.Validate(); err != nil {
		return err
	}

	entities, err := marshalJSON(record.Entities, "[]")
	if err != nil {
		return fmt.Errorf("marshalling entities: %w", err)
	}
	phrases, err := marshalJSON(record.KeyPhrases, "[]")
	if err != nil {
		return fmt.Errorf("marshalling key phrases: %w", err)
	}
	structured, err := marshalJSON(record.StructuredData, "{}")
	if err != nil {
		return fmt.Errorf("marshalling structured data: %w", err)
	}

	_, err = m.store.db.ExecContext(ctx, `
		INSERT INTO enrichment_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.DocumentID, record.ProcessingTimestamp.UnixNano(), string(record.Status),
		record.Language, entities, phrases, record.ExtractedTextPreview, record.FullTextLength,
		record.Summary, record.Insights, structured,
		nullString(record.DuplicateOfDocumentID), nullString(record.ContentHash), nullString(record.FailureReason))
	if err != nil {
		return fmt.Errorf("%w: inserting record: %w", domain.ErrPersistFailed, err)
	}
	return nil
}

// GetLatest returns the newest record for a document.
func (m *metadataStore) GetLatest(ctx context.Context, documentID string) (*domain.EnrichmentRecord, error) {
	row := m.store.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM enrichment_records WHERE document_id = ?
		ORDER BY processed_at DESC, id DESC, seq DESC
		LIMIT 1
	`, documentID)

	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return rec, nil
}

// History returns all records for a document, newest first.
func (m *metadataStore) History(ctx context.Context, documentID string) ([]domain.EnrichmentRecord, error) {
	rows, err := m.store.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM enrichment_records WHERE document_id = ?
		ORDER BY processed_at DESC, id DESC, seq DESC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying history: %w", err)
	}
	return collectRecords(rows)
}

// QueryByLanguage returns one page of records with the given language.
func (m *metadataStore) QueryByLanguage(
	ctx context.Context,
	language string,
	page domain.Page,
) (domain.RecordPage, error) {
	limit := page.EffectiveLimit()

	var rows *sql.Rows
	var err error
	if page.Cursor == "" {
		rows, err = m.store.db.QueryContext(ctx, `
			SELECT `+recordColumns+`
			FROM enrichment_records WHERE language = ?
			ORDER BY processed_at DESC, id DESC
			LIMIT ?
		`, language, limit+1)
	} else {
		pos, decodeErr := domain.DecodeCursor(page.Cursor)
		if decodeErr != nil {
			return domain.RecordPage{}, decodeErr
		}
		ts := pos.ProcessingTimestamp.UnixNano()
		rows, err = m.store.db.QueryContext(ctx, `
			SELECT `+recordColumns+`
			FROM enrichment_records
			WHERE language = ? AND (processed_at < ? OR (processed_at = ? AND id < ?))
			ORDER BY processed_at DESC, id DESC
			LIMIT ?
		`, language, ts, ts, pos.ID, limit+1)
	}
	if err != nil {
		return domain.RecordPage{}, fmt.Errorf("querying by language: %w", err)
	}

	records, err := collectRecords(rows)
	if err != nil {
		return domain.RecordPage{}, err
	}

	var result domain.RecordPage
	if len(records) > limit {
		records = records[:limit]
		result.NextCursor = domain.EncodeCursor(&records[limit-1])
	}
	result.Records = records
	return result, nil
}

// CountByStatus returns the number of records per status.
func (m *metadataStore) CountByStatus(ctx context.Context) (map[domain.RecordStatus]int, error) {
	rows, err := m.store.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM enrichment_records GROUP BY status
	`)
	if err != nil {
		return nil, fmt.Errorf("counting records: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.RecordStatus]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count: %w", err)
		}
		counts[domain.RecordStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating counts: %w", err)
	}
	return counts, nil
}

// ==================== Dead Letter Store ====================

// deadLetterStore implements driven.DeadLetterStore.
type deadLetterStore struct {
	store *Store
}

var _ driven.DeadLetterStore = (*deadLetterStore)(nil)

// Add stores an entry, replacing one with the same ID.
func (d *deadLetterStore) Add(ctx context.Context, entry domain.DeadLetter) error {
	if entry.ID == "" {
		return domain.ErrInvalidInput
	}
	_, err := d.store.db.ExecContext(ctx, `
		INSERT INTO dead_letters (id, document_id, code, reason, attempts, failed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			code = excluded.code,
			reason = excluded.reason,
			attempts = excluded.attempts,
			failed_at = excluded.failed_at
	`, entry.ID, entry.DocumentID, entry.Code, entry.Reason, entry.Attempts, entry.FailedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving dead letter: %w", err)
	}
	return nil
}

// List returns all entries, newest first.
func (d *deadLetterStore) List(ctx context.Context) ([]domain.DeadLetter, error) {
	rows, err := d.store.db.QueryContext(ctx, `
		SELECT id, document_id, code, reason, attempts, failed_at
		FROM dead_letters ORDER BY failed_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying dead letters: %w", err)
	}
	defer rows.Close()

	var entries []domain.DeadLetter //nolint:prealloc // size unknown from query
	for rows.Next() {
		var e domain.DeadLetter
		var failedAt int64
		if err := rows.Scan(&e.ID, &e.DocumentID, &e.Code, &e.Reason, &e.Attempts, &failedAt); err != nil {
			return nil, fmt.Errorf("scanning dead letter: %w", err)
		}
		e.FailedAt = time.Unix(0, failedAt).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dead letters: %w", err)
	}
	return entries, nil
}

// Get returns an entry by ID.
func (d *deadLetterStore) Get(ctx context.Context, id string) (*domain.DeadLetter, error) {
	row := d.store.db.QueryRowContext(ctx, `
		SELECT id, document_id, code, reason, attempts, failed_at
		FROM dead_letters WHERE id = ?
	`, id)

	var e domain.DeadLetter
	var failedAt int64
	if err := row.Scan(&e.ID, &e.DocumentID, &e.Code, &e.Reason, &e.Attempts, &failedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning dead letter: %w", err)
	}
	e.FailedAt = time.Unix(0, failedAt).UTC()
	return &e, nil
}

// Remove deletes an entry.
func (d *deadLetterStore) Remove(ctx context.Context, id string) error {
	if _, err := d.store.db.ExecContext(ctx, "DELETE FROM dead_letters WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting dead letter: %w", err)
	}
	return nil
}

// ==================== Helpers ====================

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.EnrichmentRecord, error) {
	var rec domain.EnrichmentRecord
	var processedAt int64
	var status, entities, phrases, structured string
	var duplicateOf, contentHash, failureReason sql.NullString

	if err := row.Scan(&rec.ID, &rec.DocumentID, &processedAt, &status, &rec.Language,
		&entities, &phrases, &rec.ExtractedTextPreview, &rec.FullTextLength,
		&rec.Summary, &rec.Insights, &structured,
		&duplicateOf, &contentHash, &failureReason); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	rec.ProcessingTimestamp = time.Unix(0, processedAt).UTC()
	rec.Status = domain.RecordStatus(status)
	rec.DuplicateOfDocumentID = duplicateOf.String
	rec.ContentHash = contentHash.String
	rec.FailureReason = failureReason.String

	if err := json.Unmarshal([]byte(entities), &rec.Entities); err != nil {
		return nil, fmt.Errorf("unmarshalling entities: %w", err)
	}
	if err := json.Unmarshal([]byte(phrases), &rec.KeyPhrases); err != nil {
		return nil, fmt.Errorf("unmarshalling key phrases: %w", err)
	}
	if err := json.Unmarshal([]byte(structured), &rec.StructuredData); err != nil {
		return nil, fmt.Errorf("unmarshalling structured data: %w", err)
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]domain.EnrichmentRecord, error) {
	defer rows.Close()

	var records []domain.EnrichmentRecord //nolint:prealloc // size unknown from query
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}
	return records, nil
}

// marshalJSON encodes v, substituting empty for a nil slice or map.
func marshalJSON(v any, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

// nullString converts an empty string to SQL NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
