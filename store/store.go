// Package store implements the per-chat ledger of shared tracks. Each entry is
// keyed by (chat id, track key) and carries mention counts plus per-user
// like/dislike reactions. All mutations are serialized behind a single mutex
// and flushed to disk before they return, so a successful call is durable and
// concurrent callbacks can never race each other into a duplicate entry or a
// lost increment.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// ErrNotFound is returned when a reaction targets a track that was never shared
// in the chat (e.g. a stale callback after the ledger file was replaced).
var ErrNotFound = errors.New("store: entry not found")

// ReactionKind is a user's reaction to a shared track.
type ReactionKind string

const (
	ReactionLike    ReactionKind = "like"
	ReactionDislike ReactionKind = "dislike"
)

func (k ReactionKind) valid() bool {
	return k == ReactionLike || k == ReactionDislike
}

// Submitter identifies the user who first shared a track.
type Submitter struct {
	ID          int64  `json:"id"`
	DisplayName string `json:"display_name"`
}

// Entry is a single ledger record. Values returned from Store methods are
// snapshots; mutating one never affects store state.
type Entry struct {
	ChatID          int64                   `json:"chat_id"`
	TrackKey        string                  `json:"track_key"`
	Title           string                  `json:"title"`
	Artist          string                  `json:"artist"`
	Submitter       Submitter               `json:"submitter"`
	MentionCount    int                     `json:"mention_count"`
	Likes           int                     `json:"likes"`
	Dislikes        int                     `json:"dislikes"`
	Reactions       map[string]ReactionKind `json:"reactions"`
	CreatedAt       time.Time               `json:"created_at"`
	LastMentionedAt time.Time               `json:"last_mentioned_at"`
}

// Reaction returns the user's current reaction, or "" when neutral.
func (e *Entry) Reaction(userID string) ReactionKind {
	return e.Reactions[userID]
}

func (e *Entry) clone() Entry {
	out := *e
	out.Reactions = make(map[string]ReactionKind, len(e.Reactions))
	for u, k := range e.Reactions {
		out.Reactions[u] = k
	}
	return out
}

// deriveCounts recomputes the cached aggregates from the reaction map. Counts
// are always derived inside the same critical section as the map mutation, so
// they cannot drift from it.
func (e *Entry) deriveCounts() {
	likes, dislikes := 0, 0
	for _, k := range e.Reactions {
		switch k {
		case ReactionLike:
			likes++
		case ReactionDislike:
			dislikes++
		}
	}
	e.Likes = likes
	e.Dislikes = dislikes
}

type entryKey struct {
	chatID   int64
	trackKey string
}

// Store is the file-backed share ledger. Obtain one with Open.
type Store struct {
	mu      sync.Mutex
	path    string
	entries map[entryKey]*Entry

	now func() time.Time
}

// UpsertShare records a share of trackKey in chatID. The first share creates
// the entry with the given metadata; later shares only bump the mention count
// and timestamp, keeping the original title, artist and submitter. The mutation
// is persisted before the snapshot is returned.
func (s *Store) UpsertShare(ctx context.Context, chatID int64, trackKey, title, artist string, sub Submitter) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if trackKey == "" {
		return Entry{}, errors.New("store: empty track key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{chatID: chatID, trackKey: trackKey}
	now := s.now().UTC()

	prev, existed := s.entries[key]
	var next *Entry
	if existed {
		c := prev.clone()
		c.MentionCount++
		c.LastMentionedAt = now
		next = &c
	} else {
		next = &Entry{
			ChatID:          chatID,
			TrackKey:        trackKey,
			Title:           title,
			Artist:          artist,
			Submitter:       sub,
			MentionCount:    1,
			Reactions:       map[string]ReactionKind{},
			CreatedAt:       now,
			LastMentionedAt: now,
		}
	}

	s.entries[key] = next
	if err := s.persistLocked(); err != nil {
		// Roll back so memory and disk stay in agreement.
		if existed {
			s.entries[key] = prev
		} else {
			delete(s.entries, key)
		}
		return Entry{}, fmt.Errorf("persist share: %w", err)
	}
	return next.clone(), nil
}

// ToggleReaction applies the per-user reaction state machine: a repeated
// reaction clears back to neutral, the opposite reaction switches in a single
// step. Returns ErrNotFound when the track was never shared in the chat.
func (s *Store) ToggleReaction(ctx context.Context, chatID int64, trackKey, userID string, kind ReactionKind) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	if !kind.valid() {
		return Entry{}, fmt.Errorf("store: invalid reaction kind %q", kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := entryKey{chatID: chatID, trackKey: trackKey}
	prev, ok := s.entries[key]
	if !ok {
		return Entry{}, ErrNotFound
	}

	next := prev.clone()
	if next.Reactions[userID] == kind {
		delete(next.Reactions, userID)
	} else {
		next.Reactions[userID] = kind
	}
	next.deriveCounts()

	s.entries[key] = &next
	if err := s.persistLocked(); err != nil {
		s.entries[key] = prev
		return Entry{}, fmt.Errorf("persist reaction: %w", err)
	}
	return next.clone(), nil
}

// Get returns a snapshot of the entry for (chatID, trackKey), if present.
func (s *Store) Get(chatID int64, trackKey string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryKey{chatID: chatID, trackKey: trackKey}]
	if !ok {
		return Entry{}, false
	}
	return e.clone(), true
}

// List returns snapshots of every entry in the chat, ordered by creation time
// (track key as tiebreaker) so the order is stable for a given store state.
func (s *Store) List(chatID int64) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0)
	for k, e := range s.entries {
		if k.chatID == chatID {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].TrackKey < out[j].TrackKey
	})
	return out
}

// ListAll returns snapshots of every entry across all chats, in the same
// (chat id, track key) order the ledger file uses.
func (s *Store) ListAll() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.clone())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ChatID != out[j].ChatID {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].TrackKey < out[j].TrackKey
	})
	return out
}

// Count returns the total number of entries across all chats.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Path returns the ledger file path.
func (s *Store) Path() string { return s.path }
