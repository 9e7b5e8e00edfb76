package domain

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// DocumentRef identifies a stored document by container and object key
// (e.g. bucket and path). It is immutable once assigned.
type DocumentRef struct {
	// ContainerID names the container holding the document.
	ContainerID string

	// ObjectKey is the document's key within the container.
	ObjectKey string
}

// ID renders the reference as "containerId/objectKey".
func (r DocumentRef) ID() string {
	return r.ContainerID + "/" + r.ObjectKey
}

// String implements fmt.Stringer.
func (r DocumentRef) String() string {
	return r.ID()
}

// Validate checks that both parts of the identity are present.
func (r DocumentRef) Validate() error {
	if strings.TrimSpace(r.ContainerID) == "" {
		return fmt.Errorf("%w: empty container id", ErrInvalidInput)
	}
	if strings.TrimSpace(r.ObjectKey) == "" {
		return fmt.Errorf("%w: empty object key", ErrInvalidInput)
	}
	return nil
}

// ParseDocumentRef splits a document ID on its first slash.
func ParseDocumentRef(id string) (DocumentRef, error) {
	container, key, ok := strings.Cut(id, "/")
	ref := DocumentRef{ContainerID: container, ObjectKey: key}
	if !ok {
		return ref, fmt.Errorf("%w: document id %q has no object key", ErrInvalidInput, id)
	}
	if err := ref.Validate(); err != nil {
		return ref, err
	}
	return ref, nil
}

// FingerprintSize is the digest length in bytes (256 bits).
const FingerprintSize = 32

// Fingerprint is the content digest of a document's bytes.
// Identical bytes always produce identical fingerprints.
type Fingerprint [FingerprintSize]byte

// String returns the lower-case hex encoding.
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether the fingerprint is unset.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// ParseFingerprint decodes a hex-encoded fingerprint.
func ParseFingerprint(s string) (Fingerprint, error) {
	var fp Fingerprint
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return fp, fmt.Errorf("%w: fingerprint: %w", ErrInvalidInput, err)
	}
	if len(b) != FingerprintSize {
		return fp, fmt.Errorf("%w: fingerprint must be %d bytes, got %d", ErrInvalidInput, FingerprintSize, len(b))
	}
	copy(fp[:], b)
	return fp, nil
}
