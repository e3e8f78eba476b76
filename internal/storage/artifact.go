package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/timmy/courtside/internal/domain"
)

const transcriptContentType = "text/plain; charset=utf-8"

// ArtifactStore keeps raw and clean transcripts keyed by (identifier, variant).
type ArtifactStore struct {
	objects ObjectStorage
}

// NewArtifactStore wraps an ObjectStorage.
func NewArtifactStore(objects ObjectStorage) *ArtifactStore {
	return &ArtifactStore{objects: objects}
}

// Exists reports whether the artifact is stored.
func (s *ArtifactStore) Exists(ctx context.Context, identifier string, variant domain.Variant) (bool, error) {
	return s.objects.Exists(ctx, domain.ArtifactKey(identifier, variant))
}

// Put stores data as the artifact, replacing any previous version.
func (s *ArtifactStore) Put(ctx context.Context, identifier string, variant domain.Variant, data []byte) error {
	return s.objects.Upload(ctx, domain.ArtifactKey(identifier, variant), bytes.NewReader(data), int64(len(data)), transcriptContentType)
}

// Get reads an artifact. Returns domain.ErrNotFound if it does not exist.
func (s *ArtifactStore) Get(ctx context.Context, identifier string, variant domain.Variant) ([]byte, error) {
	rc, err := s.objects.Download(ctx, domain.ArtifactKey(identifier, variant))
	if err != nil {
		if errors.Is(err, ErrObjectNotFound) {
			return nil, fmt.Errorf("%s transcript for %s: %w", variant, identifier, domain.ErrNotFound)
		}
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s transcript for %s: %w", variant, identifier, err)
	}
	return data, nil
}

// Delete removes an artifact. A missing artifact is not an error.
func (s *ArtifactStore) Delete(ctx context.Context, identifier string, variant domain.Variant) error {
	return s.objects.Delete(ctx, domain.ArtifactKey(identifier, variant))
}

// List returns every transcript artifact, sorted by key. Objects outside the naming scheme are skipped.
func (s *ArtifactStore) List(ctx context.Context) ([]domain.ArtifactInfo, error) {
	objects, err := s.objects.List(ctx, domain.ArtifactPrefix)
	if err != nil {
		return nil, err
	}

	artifacts := make([]domain.ArtifactInfo, 0, len(objects))
	for _, obj := range objects {
		id, variant, ok := domain.ParseArtifactKey(obj.Key)
		if !ok {
			continue
		}
		artifacts = append(artifacts, domain.ArtifactInfo{
			Identifier:   id,
			Variant:      variant,
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}
	sort.Slice(artifacts, func(i, j int) bool { return artifacts[i].Key < artifacts[j].Key })
	return artifacts, nil
}
