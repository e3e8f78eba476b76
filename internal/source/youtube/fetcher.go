// Package youtube fetches captions, titles and playlist contents from YouTube.
package youtube

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/timmy/courtside/internal/domain"
)

const (
	defaultAPIBaseURL = "https://www.googleapis.com/youtube/v3"
	defaultCaptionURL = "https://www.youtube.com/api/timedtext"
	playlistPageSize  = 50
)

// errNoCaptions means the video exists but publishes no captions in the requested language.
var errNoCaptions = errors.New("no transcript available for this video")

// Config holds YouTube client settings.
type Config struct {
	APIKey      string
	APIBaseURL  string
	CaptionURL  string
	CaptionLang string
	Timeout     time.Duration
}

// Fetcher implements source.Fetcher against the timedtext caption endpoint and the Data API v3.
type Fetcher struct {
	client      *resty.Client
	apiKey      string
	apiBaseURL  string
	captionURL  string
	captionLang string
}

// NewFetcher creates a YouTube fetcher.
func NewFetcher(cfg *Config) *Fetcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := resty.New().SetTimeout(timeout)

	f := &Fetcher{
		client:      client,
		apiKey:      cfg.APIKey,
		apiBaseURL:  strings.TrimSuffix(cfg.APIBaseURL, "/"),
		captionURL:  cfg.CaptionURL,
		captionLang: cfg.CaptionLang,
	}
	if f.apiBaseURL == "" {
		f.apiBaseURL = defaultAPIBaseURL
	}
	if f.captionURL == "" {
		f.captionURL = defaultCaptionURL
	}
	if f.captionLang == "" {
		f.captionLang = "en"
	}
	return f
}

// Name identifies the fetcher in logs.
func (f *Fetcher) Name() string {
	return "youtube"
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// FetchTranscript downloads the caption track and joins its lines with newlines.
func (f *Fetcher) FetchTranscript(ctx context.Context, videoID string) (string, error) {
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"lang": f.captionLang, "v": videoID}).
		Get(f.captionURL)
	if err != nil {
		return "", &domain.FetchError{Identifier: videoID, Err: fmt.Errorf("failed to call caption API: %w", err)}
	}
	if resp.StatusCode() == http.StatusNotFound {
		return "", &domain.FetchError{Identifier: videoID, Err: errNoCaptions}
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", &domain.FetchError{Identifier: videoID, Err: fmt.Errorf("caption API returned HTTP %d", resp.StatusCode())}
	}

	body := resp.Body()
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", &domain.FetchError{Identifier: videoID, Err: errNoCaptions}
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", &domain.FetchError{Identifier: videoID, Err: fmt.Errorf("failed to parse captions: %w", err)}
	}

	var b strings.Builder
	for _, line := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(line.Text))
		if text == "" {
			continue
		}
		b.WriteString(text)
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "", &domain.FetchError{Identifier: videoID, Err: errNoCaptions}
	}
	return b.String(), nil
}

type videosResponse struct {
	Items []struct {
		Snippet struct {
			Title string `json:"title"`
		} `json:"snippet"`
	} `json:"items"`
	Error *apiError `json:"error,omitempty"`
}

type playlistItemsResponse struct {
	Items []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
	NextPageToken string    `json:"nextPageToken"`
	Error         *apiError `json:"error,omitempty"`
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func apiFailure(what string, resp *resty.Response, apiErr *apiError) error {
	if apiErr != nil && apiErr.Message != "" {
		return fmt.Errorf("%s: HTTP %d: %s", what, resp.StatusCode(), apiErr.Message)
	}
	return fmt.Errorf("%s: HTTP %d", what, resp.StatusCode())
}

// Title returns the video title from the Data API.
func (f *Fetcher) Title(ctx context.Context, videoID string) (string, error) {
	if f.apiKey == "" {
		return "", errors.New("youtube api key not configured")
	}

	var out videosResponse
	resp, err := f.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{"part": "snippet", "id": videoID, "key": f.apiKey}).
		SetResult(&out).
		SetError(&out).
		Get(f.apiBaseURL + "/videos")
	if err != nil {
		return "", fmt.Errorf("failed to call videos API: %w", err)
	}
	if resp.IsError() {
		return "", apiFailure("videos API", resp, out.Error)
	}
	if len(out.Items) == 0 {
		return "", fmt.Errorf("video %s: %w", videoID, domain.ErrNotFound)
	}
	return out.Items[0].Snippet.Title, nil
}

// PlaylistVideoIDs pages through playlistItems until max IDs are collected.
func (f *Fetcher) PlaylistVideoIDs(ctx context.Context, playlistID string, max int) ([]string, error) {
	if f.apiKey == "" {
		return nil, errors.New("youtube api key not configured")
	}

	var ids []string
	pageToken := ""
	for {
		params := map[string]string{
			"part":       "contentDetails",
			"playlistId": playlistID,
			"maxResults": fmt.Sprint(playlistPageSize),
			"key":        f.apiKey,
		}
		if pageToken != "" {
			params["pageToken"] = pageToken
		}

		var out playlistItemsResponse
		resp, err := f.client.R().
			SetContext(ctx).
			SetQueryParams(params).
			SetResult(&out).
			SetError(&out).
			Get(f.apiBaseURL + "/playlistItems")
		if err != nil {
			return nil, fmt.Errorf("failed to call playlistItems API: %w", err)
		}
		if resp.IsError() {
			return nil, apiFailure("playlistItems API", resp, out.Error)
		}

		for _, item := range out.Items {
			if max > 0 && len(ids) >= max {
				return ids, nil
			}
			if id := item.ContentDetails.VideoID; id != "" {
				ids = append(ids, id)
			}
		}
		if out.NextPageToken == "" || (max > 0 && len(ids) >= max) {
			return ids, nil
		}
		pageToken = out.NextPageToken
	}
}
