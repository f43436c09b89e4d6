// Package youtubeapi wraps the YouTube Data API for the single purpose of
// finding the video that matches a resolved (title, artist) pair. Searches use
// API-key auth, are side-effect free, and a miss is an ordinary outcome, not
// an error.
package youtubeapi

import (
	"context"
	"fmt"
	"log/slog"

	yt "google.golang.org/api/youtube/v3"
	"google.golang.org/api/option"

	"github.com/bangersociety/banger-link/telemetry"
)

// Client performs YouTube searches.
type Client struct {
	svc *yt.Service
}

// New builds a Client using API-key auth. Extra options are appended after the
// key so tests can point the client at a fake endpoint.
func New(ctx context.Context, apiKey string, opts ...option.ClientOption) (*Client, error) {
	all := append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := yt.NewService(ctx, all...)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// Search returns the watch URL of the first video matching "title artist".
// Empty results and transport errors both map to ok=false.
func (c *Client) Search(ctx context.Context, title, artist string) (string, bool) {
	telemetry.SearchesTotal.Inc()
	query := title + " " + artist
	res, err := c.svc.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(1).
		Context(ctx).
		Do()
	if err != nil {
		slog.Warn("youtube search failed", slog.String("query", query), slog.Any("err", err))
		telemetry.SearchMisses.Inc()
		return "", false
	}
	if len(res.Items) == 0 || res.Items[0].Id == nil || res.Items[0].Id.VideoId == "" {
		slog.Info("youtube search: no results", slog.String("query", query))
		telemetry.SearchMisses.Inc()
		return "", false
	}
	return WatchURL(res.Items[0].Id.VideoId), true
}

// WatchURL returns the canonical watch URL for a video id. This URL is the
// track key used by the ledger, so its shape must stay stable.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
