package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDocumentRef_ID(t *testing.T) {
	ref := DocumentRef{ContainerID: "bucket", ObjectKey: "reports/q1.pdf"}
	assert.Equal(t, "bucket/reports/q1.pdf", ref.ID())
	assert.Equal(t, ref.ID(), ref.String())
}

func TestDocumentRef_Validate(t *testing.T) {
	tests := []struct {
		name    string
		ref     DocumentRef
		wantErr bool
	}{
		{"valid", DocumentRef{ContainerID: "bucket", ObjectKey: "doc1"}, false},
		{"empty container", DocumentRef{ObjectKey: "doc1"}, true},
		{"empty key", DocumentRef{ContainerID: "bucket"}, true},
		{"blank container", DocumentRef{ContainerID: "  ", ObjectKey: "doc1"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ref.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestParseDocumentRef(t *testing.T) {
	t.Run("splits on first slash", func(t *testing.T) {
		ref, err := ParseDocumentRef("bucket/a/b/c.txt")
		require.NoError(t, err)
		assert.Equal(t, "bucket", ref.ContainerID)
		assert.Equal(t, "a/b/c.txt", ref.ObjectKey)
	})

	t.Run("round trips through ID", func(t *testing.T) {
		orig := DocumentRef{ContainerID: "bucket", ObjectKey: "doc1"}
		ref, err := ParseDocumentRef(orig.ID())
		require.NoError(t, err)
		assert.Equal(t, orig, ref)
	})

	t.Run("rejects id without key", func(t *testing.T) {
		_, err := ParseDocumentRef("bucket")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("rejects empty key", func(t *testing.T) {
		_, err := ParseDocumentRef("bucket/")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestFingerprint_String(t *testing.T) {
	var fp Fingerprint
	fp[0] = 0xab
	fp[31] = 0x01

	s := fp.String()
	assert.Len(t, s, 64)
	assert.True(t, strings.HasPrefix(s, "ab"))
	assert.True(t, strings.HasSuffix(s, "01"))
}

func TestParseFingerprint(t *testing.T) {
	var fp Fingerprint
	for i := range fp {
		fp[i] = byte(i)
	}

	t.Run("round trip", func(t *testing.T) {
		parsed, err := ParseFingerprint(fp.String())
		require.NoError(t, err)
		assert.Equal(t, fp, parsed)
	})

	t.Run("upper case accepted", func(t *testing.T) {
		parsed, err := ParseFingerprint(strings.ToUpper(fp.String()))
		require.NoError(t, err)
		assert.Equal(t, fp, parsed)
	})

	t.Run("wrong length", func(t *testing.T) {
		_, err := ParseFingerprint("abcd")
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("not hex", func(t *testing.T) {
		_, err := ParseFingerprint(strings.Repeat("zz", 32))
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestFingerprint_IsZero(t *testing.T) {
	var fp Fingerprint
	assert.True(t, fp.IsZero())
	fp[5] = 1
	assert.False(t, fp.IsZero())
}
