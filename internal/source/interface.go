// Package source resolves user input into video identifiers and fetches caption text.
package source

import "context"

// Fetcher is an upstream caption provider.
type Fetcher interface {
	// Name identifies the provider in logs.
	Name() string

	// FetchTranscript returns the raw caption text for a video.
	// Returns a *domain.FetchError when the video or its captions are unavailable.
	FetchTranscript(ctx context.Context, videoID string) (string, error)

	// Title looks up a video's title.
	Title(ctx context.Context, videoID string) (string, error)

	// PlaylistVideoIDs lists up to max video IDs of a playlist, in playlist order.
	PlaylistVideoIDs(ctx context.Context, playlistID string, max int) ([]string, error)
}
