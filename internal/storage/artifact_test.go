package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/courtside/internal/domain"
)

func newArtifactStore(t *testing.T) (*ArtifactStore, *FileStorage) {
	t.Helper()
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	return NewArtifactStore(fs), fs
}

func TestArtifactStoreRoundTrip(t *testing.T) {
	store, _ := newArtifactStore(t)
	ctx := context.Background()

	ok, err := store.Exists(ctx, "abc123", domain.VariantRaw)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(ctx, "abc123", domain.VariantRaw, []byte("raw words")))
	require.NoError(t, store.Put(ctx, "abc123", domain.VariantClean, []byte("Clean words.")))

	ok, err = store.Exists(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := store.Get(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.Equal(t, "Clean words.", string(data))

	require.NoError(t, store.Put(ctx, "abc123", domain.VariantClean, []byte("Redone.")))
	data, err = store.Get(ctx, "abc123", domain.VariantClean)
	require.NoError(t, err)
	assert.Equal(t, "Redone.", string(data))
}

func TestArtifactStoreGetMissing(t *testing.T) {
	store, _ := newArtifactStore(t)
	_, err := store.Get(context.Background(), "nope", domain.VariantRaw)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestArtifactStoreDeleteIgnoresMissing(t *testing.T) {
	store, _ := newArtifactStore(t)
	ctx := context.Background()
	require.NoError(t, store.Delete(ctx, "nope", domain.VariantClean))

	require.NoError(t, store.Put(ctx, "v1", domain.VariantRaw, []byte("x")))
	require.NoError(t, store.Delete(ctx, "v1", domain.VariantRaw))
	ok, err := store.Exists(ctx, "v1", domain.VariantRaw)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArtifactStoreList(t *testing.T) {
	store, fs := newArtifactStore(t)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "b2", domain.VariantRaw, []byte("12345")))
	require.NoError(t, store.Put(ctx, "a1", domain.VariantRaw, []byte("123")))
	require.NoError(t, store.Put(ctx, "a1", domain.VariantClean, []byte("12")))
	require.NoError(t, fs.Upload(ctx, "transcripts/notes.md", strings.NewReader("x"), 1, "text/markdown"))
	require.NoError(t, fs.Upload(ctx, "transcripts/a1/summary.txt", strings.NewReader("x"), 1, "text/plain"))
	require.NoError(t, fs.Upload(ctx, "other/a1.txt", strings.NewReader("x"), 1, "text/plain"))

	artifacts, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, artifacts, 3)

	assert.Equal(t, "a1", artifacts[0].Identifier)
	assert.Equal(t, domain.VariantClean, artifacts[0].Variant)
	assert.EqualValues(t, 2, artifacts[0].Size)
	assert.Equal(t, "a1", artifacts[1].Identifier)
	assert.Equal(t, domain.VariantRaw, artifacts[1].Variant)
	assert.EqualValues(t, 3, artifacts[1].Size)
	assert.Equal(t, "b2", artifacts[2].Identifier)
}

func TestFileStorageRejectsEscapingKeys(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	err = fs.Upload(context.Background(), "../escape.txt", strings.NewReader("x"), 1, "text/plain")
	assert.Error(t, err)
}

func TestFileStorageDownloadMissing(t *testing.T) {
	fs, err := NewFileStorage(t.TempDir())
	require.NoError(t, err)
	_, err = fs.Download(context.Background(), "transcripts/none.txt")
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, fs.Upload(context.Background(), "k.txt", strings.NewReader("body"), 4, "text/plain"))
	rc, err := fs.Download(context.Background(), "k.txt")
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "body", string(b))
}

func TestDetectStorageType(t *testing.T) {
	tests := map[string]StorageType{
		"https://acct.r2.cloudflarestorage.com": StorageTypeR2,
		"s3.us-east-1.amazonaws.com":            StorageTypeS3,
		"":                                      StorageTypeS3,
		"localhost:9000":                        StorageTypeS3Compatible,
	}
	for endpoint, want := range tests {
		assert.Equal(t, want, detectStorageType(endpoint), endpoint)
	}
	assert.Equal(t, "minio:9000", normalizeEndpoint("http://minio:9000/path"))
}
