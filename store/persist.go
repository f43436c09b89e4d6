package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// ledgerVersion is the on-disk envelope version. Older single-scalar reaction
// files are not readable and fail validation on load.
const ledgerVersion = 1

type ledgerFile struct {
	Version int      `json:"version"`
	Entries []*Entry `json:"entries"`
}

// Open loads the ledger at path, creating parent directories as needed. A
// missing file yields an empty store; an unreadable, corrupt, or
// invariant-violating file is an error so the process refuses to start on
// partial data.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		path:    path,
		entries: map[entryKey]*Entry{},
		now:     time.Now,
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		slog.Info("ledger file absent, starting empty", slog.String("path", path))
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	var lf ledgerFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&lf); err != nil {
		return nil, fmt.Errorf("decode ledger %s: %w", path, err)
	}
	if lf.Version != ledgerVersion {
		return nil, fmt.Errorf("ledger %s: unsupported version %d", path, lf.Version)
	}
	for _, e := range lf.Entries {
		if err := validateEntry(e); err != nil {
			return nil, fmt.Errorf("ledger %s: %w", path, err)
		}
		key := entryKey{chatID: e.ChatID, trackKey: e.TrackKey}
		if _, dup := s.entries[key]; dup {
			return nil, fmt.Errorf("ledger %s: duplicate entry for chat %d track %q", path, e.ChatID, e.TrackKey)
		}
		if e.Reactions == nil {
			e.Reactions = map[string]ReactionKind{}
		}
		s.entries[key] = e
	}
	slog.Info("ledger loaded", slog.String("path", path), slog.Int("entries", len(s.entries)))
	return s, nil
}

// validateEntry re-derives the cached counters and rejects any record whose
// persisted counts disagree with its reaction map. A mismatch means a prior
// writer corrupted the file, which is fatal rather than silently repaired.
func validateEntry(e *Entry) error {
	if e.TrackKey == "" {
		return fmt.Errorf("entry for chat %d has empty track key", e.ChatID)
	}
	if e.MentionCount < 1 {
		return fmt.Errorf("entry %q: mention count %d < 1", e.TrackKey, e.MentionCount)
	}
	likes, dislikes := 0, 0
	for user, k := range e.Reactions {
		if !k.valid() {
			return fmt.Errorf("entry %q: invalid reaction %q for user %q", e.TrackKey, k, user)
		}
		if k == ReactionLike {
			likes++
		} else {
			dislikes++
		}
	}
	if e.Likes != likes || e.Dislikes != dislikes {
		slog.Error("ledger counter mismatch",
			slog.String("track_key", e.TrackKey),
			slog.Int("stored_likes", e.Likes), slog.Int("derived_likes", likes),
			slog.Int("stored_dislikes", e.Dislikes), slog.Int("derived_dislikes", dislikes))
		return fmt.Errorf("entry %q: counters disagree with reaction map", e.TrackKey)
	}
	if e.Likes < 0 || e.Dislikes < 0 {
		return fmt.Errorf("entry %q: negative counter", e.TrackKey)
	}
	return nil
}

// persistLocked rewrites the ledger file atomically: encode, write to a temp
// file in the same directory, fsync, then rename over the old file. Callers
// must hold s.mu.
func (s *Store) persistLocked() error {
	entries := make([]*Entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].ChatID != entries[j].ChatID {
			return entries[i].ChatID < entries[j].ChatID
		}
		return entries[i].TrackKey < entries[j].TrackKey
	})

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	// Titles and artist names are arbitrary Unicode; keep them byte-exact.
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(ledgerFile{Version: ledgerVersion, Entries: entries}); err != nil {
		return fmt.Errorf("encode ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		cleanup()
		return fmt.Errorf("write temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}
