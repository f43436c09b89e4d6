package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/bangersociety/banger-link/resolver"
	"github.com/bangersociety/banger-link/store"
	"github.com/bangersociety/banger-link/telemetry"
)

// InboundMessage is a text message event from the chat platform.
type InboundMessage struct {
	ChatID    int64
	MessageID int
	Text      string
	Sender    store.Submitter
}

// InboundCallback is a button-press event.
type InboundCallback struct {
	ID        string
	ChatID    int64
	MessageID int
	UserID    string
	Data      string
}

var linkPattern = regexp.MustCompile(`https?://\S+`)

// extractLink returns the first URL in the text.
func extractLink(text string) (string, bool) {
	m := linkPattern.FindString(text)
	return m, m != ""
}

const (
	replyResolveFailed = "Sorry, I couldn't extract song information from that link. " +
		"I support Apple Music and Spotify links."
	replySearchMiss = "Sorry, I couldn't find that song on YouTube. " +
		"Please try a different song or check the spelling."
	replyStoreFailed = "Something went wrong while saving that track. Please try again."
)

// HandleMessage routes a text message: filter, resolve, search, record, reply.
// Every failure before the ledger call leaves the ledger untouched.
func (b *Bot) HandleMessage(ctx context.Context, msg InboundMessage) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.Int64("chat_id", msg.ChatID))

	if !b.cfg.ChatAllowed(msg.ChatID) {
		logger.Debug("message from non-whitelisted chat ignored")
		return
	}
	link, ok := extractLink(msg.Text)
	if !ok {
		return
	}
	if b.cfg.DomainIgnored(link) {
		logger.Debug("link from ignored domain", slog.String("link", link))
		return
	}
	if _, supported := resolver.DetectService(link); !supported {
		return
	}

	track, ok := b.resolver.Resolve(ctx, link)
	if !ok {
		telemetry.ResolveFailures.Inc()
		b.reply(msg, replyResolveFailed)
		return
	}

	videoURL, ok := b.search.Search(ctx, track.Title, track.Artist)
	if !ok {
		b.reply(msg, replySearchMiss)
		return
	}

	entry, err := b.store.UpsertShare(ctx, msg.ChatID, videoURL, track.Title, track.Artist, msg.Sender)
	if err != nil {
		logger.Error("upsert share failed", slog.String("track_key", videoURL), slog.Any("err", err))
		b.reply(msg, replyStoreFailed)
		return
	}
	telemetry.SharesTotal.Inc()
	telemetry.SetTrackedEntries(b.store.Count())
	logger.Info("share recorded",
		slog.String("track_key", entry.TrackKey),
		slog.String("title", entry.Title),
		slog.Int("mentions", entry.MentionCount))

	kb := reactionKeyboard(entry)
	if _, err := b.msg.SendMessage(msg.ChatID, msg.MessageID, renderShareMessage(entry), &kb); err != nil {
		logger.Error("send share message failed", slog.Any("err", err))
	}
}

// HandleCallback decodes and routes a button press. Malformed or unknown
// payloads are answered with a toast, never dropped or fatal.
func (b *Bot) HandleCallback(ctx context.Context, cb InboundCallback) {
	cmd, ok := ParseCommand(cb.Data)
	if !ok {
		slog.Warn("invalid callback payload", slog.String("data", cb.Data))
		b.answer(cb, "Unknown action")
		return
	}
	switch cmd.Action {
	case ActionReaction:
		b.handleReaction(ctx, cb, store.ReactionKind(cmd.Subtype), cmd.Payload)
	case ActionDownload:
		b.handleDownload(ctx, cb, cmd.Payload)
	}
}

func (b *Bot) handleReaction(ctx context.Context, cb InboundCallback, kind store.ReactionKind, trackKey string) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.Int64("chat_id", cb.ChatID), slog.String("track_key", trackKey))

	entry, err := b.store.ToggleReaction(ctx, cb.ChatID, trackKey, cb.UserID, kind)
	if errors.Is(err, store.ErrNotFound) {
		logger.Warn("reaction on unknown track")
		b.answer(cb, "Error: track not found")
		return
	}
	if err != nil {
		logger.Error("toggle reaction failed", slog.Any("err", err))
		b.answer(cb, "Could not update reaction. Please try again.")
		return
	}
	telemetry.ReactionsTotal.Inc()

	if err := b.msg.EditMessageKeyboard(cb.ChatID, cb.MessageID, reactionKeyboard(entry)); err != nil {
		logger.Warn("keyboard update failed", slog.Any("err", err))
	}
	if entry.Reaction(cb.UserID) == kind {
		emoji := "👍"
		if kind == store.ReactionDislike {
			emoji = "👎"
		}
		b.answer(cb, fmt.Sprintf("You %sd this track! %s", kind, emoji))
	} else {
		b.answer(cb, "Reaction removed")
	}
}

func (b *Bot) handleDownload(ctx context.Context, cb InboundCallback, trackKey string) {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.Int64("chat_id", cb.ChatID), slog.String("track_key", trackKey))

	entry, found := b.store.Get(cb.ChatID, trackKey)
	if !found {
		logger.Warn("download for unknown track")
		b.answer(cb, "Error: track not found")
		return
	}
	b.answer(cb, "")
	if err := b.msg.EditMessageText(cb.ChatID, cb.MessageID,
		fmt.Sprintf("🎵 Downloading audio... This may take a moment.\n\n🔗 %s", trackKey)); err != nil {
		logger.Warn("status edit failed", slog.Any("err", err))
	}

	telemetry.DownloadsStarted.Inc()
	ctx, span := telemetry.StartSpan(ctx, "bot", "download-audio",
		attribute.String("track_key", trackKey))
	defer span.End()
	start := time.Now()
	path, err := b.download(ctx, trackKey, b.cfg.DownloadDir)
	if path != "" {
		defer func() {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn("download cleanup failed", slog.String("path", path), slog.Any("err", err))
			}
		}()
	}
	if err != nil {
		telemetry.DownloadsFailed.Inc()
		telemetry.RecordError(span, err)
		logger.Error("audio download failed", slog.Any("err", err))
		b.editText(cb, fmt.Sprintf("❌ Sorry, there was an error downloading the audio.\nPlease try again later.\n\n🔗 %s", trackKey))
		return
	}
	telemetry.DownloadsSucceeded.Inc()
	telemetry.DownloadDuration.Observe(time.Since(start).Seconds())

	if err := b.msg.SendAudio(cb.ChatID, path, fmt.Sprintf("%s - %s", entry.Title, entry.Artist)); err != nil {
		logger.Error("send audio failed", slog.Any("err", err))
		b.editText(cb, fmt.Sprintf("❌ Sorry, there was an error sending the audio.\n\n🔗 %s", trackKey))
		return
	}
	logger.Info("audio delivered", slog.Duration("download_duration", time.Since(start)))
	b.editText(cb, fmt.Sprintf("✅ Download complete! Enjoy your music! 🎧\n\n🔗 %s", trackKey))
}

func (b *Bot) reply(msg InboundMessage, text string) {
	if _, err := b.msg.SendMessage(msg.ChatID, msg.MessageID, text, nil); err != nil {
		slog.Error("send reply failed", slog.Int64("chat_id", msg.ChatID), slog.Any("err", err))
	}
}

func (b *Bot) answer(cb InboundCallback, text string) {
	if err := b.msg.AnswerCallback(cb.ID, text); err != nil {
		slog.Warn("answer callback failed", slog.Any("err", err))
	}
}

func (b *Bot) editText(cb InboundCallback, text string) {
	if err := b.msg.EditMessageText(cb.ChatID, cb.MessageID, text); err != nil {
		slog.Warn("message edit failed", slog.Any("err", err))
	}
}
