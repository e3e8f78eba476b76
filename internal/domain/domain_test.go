package domain

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactKeyRoundTrip(t *testing.T) {
	tests := []struct {
		id      string
		variant Variant
		key     string
	}{
		{"abc123", VariantRaw, "transcripts/abc123/raw.txt"},
		{"abc123", VariantClean, "transcripts/abc123/clean.txt"},
		{"a-b_c", VariantClean, "transcripts/a-b_c/clean.txt"},
		{"abcde_clean", VariantRaw, "transcripts/abcde_clean/raw.txt"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.key, ArtifactKey(tt.id, tt.variant))
			id, v, ok := ParseArtifactKey(tt.key)
			require.True(t, ok)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.variant, v)
		})
	}

	bad := []string{
		"abc.txt",
		"transcripts/abc.txt",
		"transcripts//raw.txt",
		"transcripts/a/b/raw.txt",
		"transcripts/a/summary.txt",
		"transcripts/a/raw.json",
	}
	for _, key := range bad {
		_, _, ok := ParseArtifactKey(key)
		assert.False(t, ok, key)
	}
}

func TestArtifactKeysNeverCollide(t *testing.T) {
	ids := []string{"abcde", "abcde_clean", "abcde_raw", "abcde-clean"}
	seen := map[string]string{}
	for _, id := range ids {
		for _, v := range []Variant{VariantRaw, VariantClean} {
			key := ArtifactKey(id, v)
			prev, dup := seen[key]
			require.False(t, dup, "%s collides with %s", key, prev)
			seen[key] = id + "/" + string(v)
		}
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range AllStatuses {
		got, err := ParseStatus(string(s))
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	_, err := ParseStatus("COMPLETED_WITH_WARNINGS")
	assert.Error(t, err)

	_, err = Status("bogus").Value()
	assert.Error(t, err)
}

func TestNewIndexDocument(t *testing.T) {
	title := strings.Repeat("é", 600) // 1200 bytes
	doc := NewIndexDocument("abc123", title, "body")

	assert.Equal(t, "abc123", doc.ID)
	assert.Equal(t, "abc123", doc.ParentID)
	assert.Equal(t, "https://www.youtube.com/watch?v=abc123", doc.URL)
	assert.LessOrEqual(t, len(doc.Title), MaxIndexTitleLength)
	assert.Equal(t, strings.Repeat("é", 500), doc.Title)
}

func TestErrorWrapping(t *testing.T) {
	fe := &FetchError{Identifier: "abc123", Err: errors.New("not found")}
	assert.Equal(t, "not found", fe.Error())

	te := &TransitionError{Identifier: "abc123", From: StatusProcessing, To: StatusProcessing}
	assert.ErrorIs(t, te, ErrInvalidTransition)

	se := &StorageError{Op: "put raw", Err: errors.New("disk full")}
	assert.Equal(t, "disk full", se.Error())
}
