package localdir

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/timmy/courtside/internal/domain"
)

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestFetcher(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "v1.txt", "first serve\nace\n")
	writeFile(t, dir, "empty.txt", "  \n")
	writeFile(t, dir, ManifestFileName, `{"id":"v1","title":"Final","playlist":"PLone"}
not json
{"id":"v2","playlist":"PLone"}
{"id":"v3","title":"Semi","playlist":"PLone"}
`)
	f := NewFetcher(dir)
	ctx := context.Background()

	text, err := f.FetchTranscript(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "first serve\nace\n", text)

	_, err = f.FetchTranscript(ctx, "missing")
	var fe *domain.FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "not found", fe.Error())

	_, err = f.FetchTranscript(ctx, "empty")
	assert.Error(t, err)

	_, err = f.FetchTranscript(ctx, "../v1")
	assert.Error(t, err)

	title, err := f.Title(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "Final", title)
	_, err = f.Title(ctx, "v2")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	ids, err := f.PlaylistVideoIDs(ctx, "PLone", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"v1", "v2"}, ids)

	_, err = f.PlaylistVideoIDs(ctx, "PLnone", 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestFetcherWithoutManifest(t *testing.T) {
	f := NewFetcher(t.TempDir())
	_, err := f.Title(context.Background(), "v1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
