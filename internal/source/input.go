package source

import (
	"errors"
	"regexp"
	"strings"
)

// InputKind says whether user input names one video or a playlist.
type InputKind string

const (
	InputVideo    InputKind = "video"
	InputPlaylist InputKind = "playlist"
)

// Input is parsed user input.
type Input struct {
	Kind InputKind `json:"type"`
	ID   string    `json:"id"`
}

var (
	playlistURL = regexp.MustCompile(`youtube\.com/playlist\?list=([\w-]+)`)
	videoURLs   = []*regexp.Regexp{
		regexp.MustCompile(`youtube\.com/watch\?v=([\w-]+)`),
		regexp.MustCompile(`youtu\.be/([\w-]+)`),
		regexp.MustCompile(`youtube\.com/embed/([\w-]+)`),
	}
	bareID = regexp.MustCompile(`^[\w-]+$`)
)

// ErrEmptyInput is returned for blank input.
var ErrEmptyInput = errors.New("no input provided")

// ParseVideoInput accepts a video ID, a watch/short/embed URL, a playlist URL,
// or a bare playlist ID (PL prefix, longer than 10 characters).
func ParseVideoInput(s string) (Input, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Input{}, ErrEmptyInput
	}

	if m := playlistURL.FindStringSubmatch(s); m != nil {
		return Input{Kind: InputPlaylist, ID: m[1]}, nil
	}
	for _, re := range videoURLs {
		if m := re.FindStringSubmatch(s); m != nil {
			return Input{Kind: InputVideo, ID: m[1]}, nil
		}
	}

	if !bareID.MatchString(s) {
		return Input{}, errors.New("unrecognized video or playlist reference: " + s)
	}
	if strings.HasPrefix(s, "PL") && len(s) > 10 {
		return Input{Kind: InputPlaylist, ID: s}, nil
	}
	return Input{Kind: InputVideo, ID: s}, nil
}

// FallbackTitle is used when no title can be looked up.
func FallbackTitle(videoID string) string {
	return "Unknown Title (" + videoID + ")"
}
