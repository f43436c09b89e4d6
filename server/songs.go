package server

import (
	"encoding/json"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bangersociety/banger-link/store"
)

// songView is the read-API shape of a ledger entry, enriched with the YouTube
// video id and thumbnail derived from the track key.
type songView struct {
	TrackKey        string    `json:"track_key"`
	ChatID          int64     `json:"chat_id"`
	Title           string    `json:"title"`
	Artist          string    `json:"artist"`
	YouTubeID       string    `json:"youtube_id"`
	ThumbnailURL    string    `json:"thumbnail_url"`
	Mentions        int       `json:"mentions"`
	Likes           int       `json:"likes"`
	Dislikes        int       `json:"dislikes"`
	SharedBy        string    `json:"shared_by"`
	FirstSharedAt   time.Time `json:"first_shared_at"`
	LastMentionedAt time.Time `json:"last_mentioned_at"`
}

func songViewOf(e store.Entry) songView {
	id := videoID(e.TrackKey)
	thumb := ""
	if id != "" {
		thumb = "https://img.youtube.com/vi/" + id + "/hqdefault.jpg"
	}
	return songView{
		TrackKey:        e.TrackKey,
		ChatID:          e.ChatID,
		Title:           e.Title,
		Artist:          e.Artist,
		YouTubeID:       id,
		ThumbnailURL:    thumb,
		Mentions:        e.MentionCount,
		Likes:           e.Likes,
		Dislikes:        e.Dislikes,
		SharedBy:        e.Submitter.DisplayName,
		FirstSharedAt:   e.CreatedAt,
		LastMentionedAt: e.LastMentionedAt,
	}
}

// videoID extracts the YouTube video id from a watch URL. Track keys are
// canonical watch URLs, but short youtu.be links are handled too.
func videoID(trackKey string) string {
	u, err := url.Parse(trackKey)
	if err != nil {
		return ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v
	}
	if strings.Contains(u.Host, "youtu.be") {
		return strings.TrimPrefix(u.Path, "/")
	}
	return ""
}

// handleSongs lists ledger entries as JSON, most recently mentioned first.
// An optional chat_id query parameter narrows the list to one chat.
func handleSongs(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var entries []store.Entry
		if raw := r.URL.Query().Get("chat_id"); raw != "" {
			chatID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				http.Error(w, "invalid chat_id", http.StatusBadRequest)
				return
			}
			entries = st.List(chatID)
		} else {
			entries = st.ListAll()
		}

		songs := make([]songView, 0, len(entries))
		for _, e := range entries {
			songs = append(songs, songViewOf(e))
		}
		sort.Slice(songs, func(i, j int) bool {
			if !songs[i].LastMentionedAt.Equal(songs[j].LastMentionedAt) {
				return songs[i].LastMentionedAt.After(songs[j].LastMentionedAt)
			}
			return songs[i].TrackKey < songs[j].TrackKey
		})

		writeJSON(w, songs)
	}
}

type userStat struct {
	DisplayName string `json:"display_name"`
	Shares      int    `json:"shares"`
}

// handleSongsStats aggregates the ledger: total tracked songs plus per-user
// share counts ordered by most shares.
func handleSongsStats(st *store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries := st.ListAll()

		byUser := map[string]int{}
		for _, e := range entries {
			name := e.Submitter.DisplayName
			if name == "" {
				name = "Unknown"
			}
			byUser[name]++
		}
		stats := make([]userStat, 0, len(byUser))
		for name, shares := range byUser {
			stats = append(stats, userStat{DisplayName: name, Shares: shares})
		}
		sort.Slice(stats, func(i, j int) bool {
			if stats[i].Shares != stats[j].Shares {
				return stats[i].Shares > stats[j].Shares
			}
			return stats[i].DisplayName < stats[j].DisplayName
		})

		writeJSON(w, map[string]any{
			"total_songs": len(entries),
			"user_stats":  stats,
		})
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	// Titles and artist names are arbitrary Unicode; serve them byte-exact.
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
