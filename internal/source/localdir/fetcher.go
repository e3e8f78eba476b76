// Package localdir serves captions from a directory of pre-downloaded text files.
//
// Layout:
//
//	<dir>/<videoID>.txt    caption text
//	<dir>/manifest.jsonl   optional; one {"id","title","playlist"} object per line
package localdir

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/timmy/courtside/internal/domain"
)

// ManifestFileName is the JSONL manifest read from the caption directory.
const ManifestFileName = "manifest.jsonl"

// ManifestItem is one line of the manifest.
type ManifestItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Playlist string `json:"playlist"`
}

// Fetcher implements source.Fetcher over a local directory.
type Fetcher struct {
	dir string

	once      sync.Once
	loadErr   error
	titles    map[string]string
	playlists map[string][]string
}

// NewFetcher creates a Fetcher rooted at dir.
func NewFetcher(dir string) *Fetcher {
	return &Fetcher{dir: dir}
}

// Name identifies the fetcher in logs.
func (f *Fetcher) Name() string {
	return "localdir"
}

// FetchTranscript reads <dir>/<videoID>.txt.
func (f *Fetcher) FetchTranscript(_ context.Context, videoID string) (string, error) {
	if strings.ContainsAny(videoID, `/\`) || videoID == "" || videoID == "." || videoID == ".." {
		return "", &domain.FetchError{Identifier: videoID, Err: fmt.Errorf("invalid video id %q", videoID)}
	}
	data, err := os.ReadFile(filepath.Join(f.dir, videoID+".txt"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &domain.FetchError{Identifier: videoID, Err: errors.New("not found")}
		}
		return "", &domain.FetchError{Identifier: videoID, Err: err}
	}
	if strings.TrimSpace(string(data)) == "" {
		return "", &domain.FetchError{Identifier: videoID, Err: errors.New("no transcript available for this video")}
	}
	return string(data), nil
}

// Title returns the manifest title for videoID.
func (f *Fetcher) Title(_ context.Context, videoID string) (string, error) {
	if err := f.load(); err != nil {
		return "", err
	}
	title, ok := f.titles[videoID]
	if !ok || title == "" {
		return "", fmt.Errorf("title for %s: %w", videoID, domain.ErrNotFound)
	}
	return title, nil
}

// PlaylistVideoIDs returns up to max manifest entries tagged with playlistID.
func (f *Fetcher) PlaylistVideoIDs(_ context.Context, playlistID string, max int) ([]string, error) {
	if err := f.load(); err != nil {
		return nil, err
	}
	ids, ok := f.playlists[playlistID]
	if !ok {
		return nil, fmt.Errorf("playlist %s: %w", playlistID, domain.ErrNotFound)
	}
	if max > 0 && len(ids) > max {
		ids = ids[:max]
	}
	return append([]string(nil), ids...), nil
}

// load reads the manifest once. A missing manifest is treated as empty.
func (f *Fetcher) load() error {
	f.once.Do(func() {
		f.titles = map[string]string{}
		f.playlists = map[string][]string{}

		file, err := os.Open(filepath.Join(f.dir, ManifestFileName))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				f.loadErr = fmt.Errorf("failed to open manifest: %w", err)
			}
			return
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var item ManifestItem
			if err := json.Unmarshal([]byte(line), &item); err != nil || item.ID == "" {
				continue
			}
			if item.Title != "" {
				f.titles[item.ID] = item.Title
			}
			if item.Playlist != "" {
				f.playlists[item.Playlist] = append(f.playlists[item.Playlist], item.ID)
			}
		}
		if err := scanner.Err(); err != nil {
			f.loadErr = fmt.Errorf("error reading manifest: %w", err)
		}
	})
	return f.loadErr
}
