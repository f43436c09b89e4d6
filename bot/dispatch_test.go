package bot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bangersociety/banger-link/config"
	"github.com/bangersociety/banger-link/resolver"
	"github.com/bangersociety/banger-link/store"
)

type sentMessage struct {
	chatID   int64
	text     string
	keyboard *tgbotapi.InlineKeyboardMarkup
}

// fakeMessenger records outbound calls instead of hitting Telegram.
type fakeMessenger struct {
	mu        sync.Mutex
	sent      []sentMessage
	textEdits []string
	kbEdits   []tgbotapi.InlineKeyboardMarkup
	answers   []string
	audios    []string
}

func (f *fakeMessenger) SendMessage(chatID int64, replyTo int, text string, kb *tgbotapi.InlineKeyboardMarkup) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{chatID: chatID, text: text, keyboard: kb})
	return len(f.sent), nil
}

func (f *fakeMessenger) EditMessageText(chatID int64, messageID int, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textEdits = append(f.textEdits, text)
	return nil
}

func (f *fakeMessenger) EditMessageKeyboard(chatID int64, messageID int, kb tgbotapi.InlineKeyboardMarkup) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kbEdits = append(f.kbEdits, kb)
	return nil
}

func (f *fakeMessenger) AnswerCallback(callbackID, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, text)
	return nil
}

func (f *fakeMessenger) SendAudio(chatID int64, path, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.audios = append(f.audios, path)
	return nil
}

type fakeResolver struct {
	track resolver.Track
	ok    bool
}

func (f *fakeResolver) Resolve(ctx context.Context, link string) (resolver.Track, bool) {
	return f.track, f.ok
}

type fakeSearcher struct {
	url string
	ok  bool
}

func (f *fakeSearcher) Search(ctx context.Context, title, artist string) (string, bool) {
	return f.url, f.ok
}

const testTrackKey = "https://www.youtube.com/watch?v=abc"

type fixture struct {
	bot *Bot
	st  *store.Store
	msg *fakeMessenger
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "bangers.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg == nil {
		cfg = &config.Config{DownloadDir: t.TempDir()}
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = t.TempDir()
	}
	msg := &fakeMessenger{}
	res := &fakeResolver{track: resolver.Track{Service: resolver.ServiceSpotify, Title: "Song A", Artist: "Artist A"}, ok: true}
	search := &fakeSearcher{url: testTrackKey, ok: true}
	download := func(ctx context.Context, videoURL, dir string) (string, error) {
		path := filepath.Join(dir, "fake.m4a")
		if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
			return "", err
		}
		return path, nil
	}
	return &fixture{bot: New(cfg, st, res, search, download, msg), st: st, msg: msg}
}

func spotifyMessage() InboundMessage {
	return InboundMessage{
		ChatID:    10,
		MessageID: 1,
		Text:      "banger alert https://open.spotify.com/track/abc",
		Sender:    store.Submitter{ID: 1, DisplayName: "Alice"},
	}
}

func TestHandleMessageRecordsShare(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.bot.HandleMessage(ctx, spotifyMessage())

	e, ok := f.st.Get(10, testTrackKey)
	if !ok {
		t.Fatal("share was not recorded")
	}
	if e.MentionCount != 1 || e.Title != "Song A" {
		t.Errorf("entry = %+v", e)
	}
	if len(f.msg.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(f.msg.sent))
	}
	if f.msg.sent[0].keyboard == nil {
		t.Error("share reply should carry the reaction keyboard")
	}
	if !strings.Contains(f.msg.sent[0].text, "First time") {
		t.Errorf("first share text: %q", f.msg.sent[0].text)
	}

	// Repeat share bumps the count and switches to the repeat variant.
	f.bot.HandleMessage(ctx, spotifyMessage())
	e, _ = f.st.Get(10, testTrackKey)
	if e.MentionCount != 2 {
		t.Errorf("MentionCount = %d, want 2", e.MentionCount)
	}
	if !strings.Contains(f.msg.sent[1].text, "Shared 2 times") {
		t.Errorf("repeat share text: %q", f.msg.sent[1].text)
	}
}

func TestHandleMessageWhitelist(t *testing.T) {
	cfg := &config.Config{WhitelistedChatIDs: map[int64]struct{}{99: {}}}
	f := newFixture(t, cfg)

	f.bot.HandleMessage(context.Background(), spotifyMessage())

	if f.st.Count() != 0 || len(f.msg.sent) != 0 {
		t.Error("non-whitelisted chat must be ignored entirely")
	}
}

func TestHandleMessageIgnoredDomain(t *testing.T) {
	cfg := &config.Config{IgnoredDomains: []string{"open.spotify.com"}}
	f := newFixture(t, cfg)

	f.bot.HandleMessage(context.Background(), spotifyMessage())

	if f.st.Count() != 0 || len(f.msg.sent) != 0 {
		t.Error("blacklisted domain must be ignored entirely")
	}
}

func TestHandleMessageNonMusicLink(t *testing.T) {
	f := newFixture(t, nil)
	msg := spotifyMessage()
	msg.Text = "look https://www.youtube.com/watch?v=xyz"

	f.bot.HandleMessage(context.Background(), msg)

	if f.st.Count() != 0 || len(f.msg.sent) != 0 {
		t.Error("plain YouTube links need no handling")
	}
}

func TestHandleMessageResolveFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.resolver = &fakeResolver{ok: false}

	f.bot.HandleMessage(context.Background(), spotifyMessage())

	if f.st.Count() != 0 {
		t.Error("failed resolution must not create a ledger entry")
	}
	if len(f.msg.sent) != 1 || !strings.Contains(f.msg.sent[0].text, "couldn't extract") {
		t.Errorf("expected friendly resolve-failure reply, got %+v", f.msg.sent)
	}
}

func TestHandleMessageSearchMiss(t *testing.T) {
	f := newFixture(t, nil)
	f.bot.search = &fakeSearcher{ok: false}

	f.bot.HandleMessage(context.Background(), spotifyMessage())

	if f.st.Count() != 0 {
		t.Error("search miss must not create a ledger entry")
	}
	if len(f.msg.sent) != 1 || !strings.Contains(f.msg.sent[0].text, "couldn't find") {
		t.Errorf("expected friendly search-miss reply, got %+v", f.msg.sent)
	}
}

func TestHandleCallbackUnknownAction(t *testing.T) {
	f := newFixture(t, nil)

	for _, data := range []string{"explode:now:key", "reaction:like", "", "garbage"} {
		f.bot.HandleCallback(context.Background(), InboundCallback{ID: "cb", ChatID: 10, UserID: "2", Data: data})
	}

	if len(f.msg.answers) != 4 {
		t.Fatalf("got %d answers, want 4 (every payload acknowledged)", len(f.msg.answers))
	}
	for _, a := range f.msg.answers {
		if a != "Unknown action" {
			t.Errorf("answer = %q, want Unknown action", a)
		}
	}
}

func TestReactionFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.bot.HandleMessage(ctx, spotifyMessage())

	cb := InboundCallback{ID: "cb1", ChatID: 10, MessageID: 5, UserID: "2", Data: ReactionCallback(store.ReactionLike, testTrackKey)}
	f.bot.HandleCallback(ctx, cb)

	e, _ := f.st.Get(10, testTrackKey)
	if e.Likes != 1 {
		t.Errorf("Likes = %d, want 1", e.Likes)
	}
	if len(f.msg.kbEdits) != 1 {
		t.Fatalf("keyboard edits = %d, want 1", len(f.msg.kbEdits))
	}
	if f.msg.kbEdits[0].InlineKeyboard[0][0].Text != "👍 1" {
		t.Errorf("keyboard shows %q", f.msg.kbEdits[0].InlineKeyboard[0][0].Text)
	}
	if len(f.msg.answers) != 1 || !strings.Contains(f.msg.answers[0], "like") {
		t.Errorf("answers = %v", f.msg.answers)
	}

	// Same button again: back to neutral.
	f.bot.HandleCallback(ctx, cb)
	e, _ = f.st.Get(10, testTrackKey)
	if e.Likes != 0 {
		t.Errorf("Likes after toggle-off = %d, want 0", e.Likes)
	}
	if f.msg.answers[1] != "Reaction removed" {
		t.Errorf("answer = %q", f.msg.answers[1])
	}
}

func TestReactionUnknownTrack(t *testing.T) {
	f := newFixture(t, nil)

	f.bot.HandleCallback(context.Background(), InboundCallback{
		ID: "cb", ChatID: 10, UserID: "2",
		Data: ReactionCallback(store.ReactionLike, "https://www.youtube.com/watch?v=missing"),
	})

	if len(f.msg.answers) != 1 || !strings.Contains(f.msg.answers[0], "not found") {
		t.Errorf("answers = %v", f.msg.answers)
	}
	if len(f.msg.kbEdits) != 0 {
		t.Error("no keyboard edit expected for unknown track")
	}
}

func TestDownloadFlow(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.bot.HandleMessage(ctx, spotifyMessage())

	f.bot.HandleCallback(ctx, InboundCallback{ID: "cb", ChatID: 10, MessageID: 5, UserID: "2", Data: DownloadCallback(testTrackKey)})

	if len(f.msg.audios) != 1 {
		t.Fatalf("audios sent = %d, want 1", len(f.msg.audios))
	}
	// Temp file removed after delivery.
	if _, err := os.Stat(f.msg.audios[0]); !os.IsNotExist(err) {
		t.Errorf("downloaded file not cleaned up: %v", err)
	}
	last := f.msg.textEdits[len(f.msg.textEdits)-1]
	if !strings.Contains(last, "Download complete") {
		t.Errorf("final edit = %q", last)
	}
}

func TestDownloadFailureCleansUp(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.bot.HandleMessage(ctx, spotifyMessage())

	var leftover string
	f.bot.download = func(ctx context.Context, videoURL, dir string) (string, error) {
		leftover = filepath.Join(dir, "partial.m4a")
		if err := os.WriteFile(leftover, []byte("partial"), 0o644); err != nil {
			return "", err
		}
		return leftover, errors.New("network gone")
	}

	f.bot.HandleCallback(ctx, InboundCallback{ID: "cb", ChatID: 10, MessageID: 5, UserID: "2", Data: DownloadCallback(testTrackKey)})

	if len(f.msg.audios) != 0 {
		t.Error("no audio should be sent on failure")
	}
	last := f.msg.textEdits[len(f.msg.textEdits)-1]
	if !strings.Contains(last, "error downloading") {
		t.Errorf("final edit = %q", last)
	}
	if _, err := os.Stat(leftover); !os.IsNotExist(err) {
		t.Error("partial download not cleaned up")
	}
}

func TestDownloadUnknownTrack(t *testing.T) {
	f := newFixture(t, nil)

	f.bot.HandleCallback(context.Background(), InboundCallback{
		ID: "cb", ChatID: 10, UserID: "2",
		Data: DownloadCallback("https://www.youtube.com/watch?v=missing"),
	})

	if len(f.msg.answers) != 1 || !strings.Contains(f.msg.answers[0], "not found") {
		t.Errorf("answers = %v", f.msg.answers)
	}
	if len(f.msg.textEdits) != 0 {
		t.Error("no edit expected for unknown track")
	}
}
