// Package resolver turns shared music-service links into a (title, artist)
// pair by scraping the share page. Resolution is best effort: each service has
// an ordered list of extraction strategies tried first-success-wins, and any
// network or markup failure degrades to "not found" rather than an error, so
// remote page drift can never crash the dispatch loop.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Service identifies the music service a link belongs to.
type Service string

const (
	ServiceAppleMusic Service = "apple_music"
	ServiceSpotify    Service = "spotify"
)

// Track is a resolved track identity.
type Track struct {
	Service Service
	Title   string
	Artist  string
}

const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// Resolver scrapes music-service share pages. Stateless and safe for
// concurrent use.
type Resolver struct {
	client *http.Client
}

// New returns a Resolver with a bounded request timeout.
func New() *Resolver {
	return &Resolver{client: &http.Client{Timeout: 10 * time.Second}}
}

// DetectService classifies a link by domain. YouTube links are deliberately
// not a music service: sharing one needs no resolution.
func DetectService(link string) (Service, bool) {
	switch {
	case strings.Contains(link, "apple.com"):
		return ServiceAppleMusic, true
	case strings.Contains(link, "spotify.com"):
		return ServiceSpotify, true
	default:
		return "", false
	}
}

// Resolve extracts the track identity from a supported music link. A single
// attempt per strategy; false means the link could not be read.
func (r *Resolver) Resolve(ctx context.Context, link string) (Track, bool) {
	svc, ok := DetectService(link)
	if !ok {
		return Track{}, false
	}
	var title, artist string
	switch svc {
	case ServiceAppleMusic:
		title, artist, ok = r.extract(ctx, link, appleStrategies)
	case ServiceSpotify:
		title, artist, ok = r.extract(ctx, spotifyEmbedURL(link), spotifyStrategies)
	}
	if !ok {
		slog.Warn("track resolution failed", slog.String("service", string(svc)), slog.String("link", link))
		return Track{}, false
	}
	return Track{Service: svc, Title: title, Artist: artist}, true
}

// strategy extracts (title, artist) from a parsed page, returning ok=false on
// any structural miss.
type strategy func(doc *goquery.Document) (title, artist string, ok bool)

func (r *Resolver) extract(ctx context.Context, url string, strategies []strategy) (string, string, bool) {
	doc, err := r.fetch(ctx, url)
	if err != nil {
		slog.Debug("fetch failed", slog.String("url", url), slog.Any("err", err))
		return "", "", false
	}
	for _, try := range strategies {
		if title, artist, ok := try(doc); ok {
			return title, artist, true
		}
	}
	return "", "", false
}

func (r *Resolver) fetch(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Debug("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// Apple Music ---------------------------------------------------------------

var appleStrategies = []strategy{appleJSONLD, openGraphMeta}

// appleJSONLD reads the structured-data script Apple embeds on song pages.
func appleJSONLD(doc *goquery.Document) (string, string, bool) {
	raw := doc.Find(`script[type="application/ld+json"]`).First().Text()
	if raw == "" {
		return "", "", false
	}
	var data struct {
		Name  string `json:"name"`
		Audio struct {
			ByArtist []struct {
				Name string `json:"name"`
			} `json:"byArtist"`
		} `json:"audio"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", "", false
	}
	if data.Name == "" || len(data.Audio.ByArtist) == 0 || data.Audio.ByArtist[0].Name == "" {
		return "", "", false
	}
	return data.Name, data.Audio.ByArtist[0].Name, true
}

// openGraphMeta falls back to og:/twitter: meta tags. Shared by both services.
func openGraphMeta(doc *goquery.Document) (string, string, bool) {
	title := metaContent(doc, `meta[property="og:title"]`, `meta[name="twitter:title"]`)
	desc := metaContent(doc, `meta[property="og:description"]`, `meta[name="twitter:description"]`)
	if title == "" || desc == "" {
		return "", "", false
	}
	song := strings.TrimSpace(strings.SplitN(title, " - ", 2)[0])
	artist := strings.TrimSpace(strings.SplitN(desc, " · ", 2)[0])
	if song == "" || artist == "" {
		return "", "", false
	}
	return song, artist, true
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && v != "" {
			return v
		}
	}
	return ""
}

// Spotify -------------------------------------------------------------------

var spotifyStrategies = []strategy{spotifyNextData, spotifyOGMeta, spotifyTitleTag}

// spotifyEmbedURL rewrites an open.spotify.com link to the embed page, which
// carries the track JSON without requiring a logged-in session.
func spotifyEmbedURL(link string) string {
	if !strings.Contains(link, "open.spotify.com") || strings.Contains(link, "/embed/") {
		return link
	}
	parts := strings.SplitN(link, "spotify.com", 2)
	rest := strings.SplitN(parts[1], "?", 2)[0]
	return parts[0] + "spotify.com/embed" + rest
}

// spotifyNextData reads the __NEXT_DATA__ JSON blob on the embed page.
func spotifyNextData(doc *goquery.Document) (string, string, bool) {
	raw := doc.Find(`script#__NEXT_DATA__[type="application/json"]`).First().Text()
	if raw == "" {
		return "", "", false
	}
	var data struct {
		Props struct {
			PageProps struct {
				State struct {
					Data struct {
						Entity struct {
							Name    string `json:"name"`
							Artists []struct {
								Name string `json:"name"`
							} `json:"artists"`
						} `json:"entity"`
					} `json:"data"`
				} `json:"state"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", "", false
	}
	entity := data.Props.PageProps.State.Data.Entity
	if entity.Name == "" || len(entity.Artists) == 0 {
		return "", "", false
	}
	names := make([]string, 0, len(entity.Artists))
	for _, a := range entity.Artists {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	if len(names) == 0 {
		return "", "", false
	}
	return entity.Name, strings.Join(names, ", "), true
}

// spotifyOGMeta parses titles of the form "Song by Artist | Spotify".
func spotifyOGMeta(doc *goquery.Document) (string, string, bool) {
	title := metaContent(doc, `meta[property="og:title"]`)
	desc := metaContent(doc, `meta[property="og:description"]`)
	if title == "" || desc == "" {
		return "", "", false
	}
	artist := strings.TrimSpace(strings.SplitN(desc, " · ", 2)[0])
	song := strings.TrimSpace(strings.SplitN(title, " | ", 2)[0])
	if parts := strings.SplitN(title, " by ", 2); len(parts) == 2 {
		song = strings.TrimSpace(parts[0])
		artist = strings.TrimSpace(strings.SplitN(parts[1], " | ", 2)[0])
	}
	if song == "" || artist == "" {
		return "", "", false
	}
	return song, artist, true
}

// spotifyTitleTag is the last resort: "<Song> - song by <Artist> | Spotify".
func spotifyTitleTag(doc *goquery.Document) (string, string, bool) {
	title := doc.Find("title").First().Text()
	parts := strings.SplitN(title, " - song by ", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	song := strings.TrimSpace(parts[0])
	artist := strings.TrimSpace(strings.SplitN(parts[1], " | ", 2)[0])
	if song == "" || artist == "" {
		return "", "", false
	}
	return song, artist, true
}
