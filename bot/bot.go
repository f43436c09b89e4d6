// Package bot hosts the Telegram dispatch loop. It scans incoming messages for
// music-service links, drives the resolver → search → ledger pipeline, and
// routes button-press callbacks to reaction toggles and audio downloads.
// External I/O (scraping, search, download) always happens before the ledger
// call, never while holding its lock.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bangersociety/banger-link/config"
	"github.com/bangersociety/banger-link/resolver"
	"github.com/bangersociety/banger-link/store"
)

// TrackResolver resolves a music link to a track identity.
type TrackResolver interface {
	Resolve(ctx context.Context, link string) (resolver.Track, bool)
}

// Searcher maps a track identity to a playable video URL.
type Searcher interface {
	Search(ctx context.Context, title, artist string) (videoURL string, ok bool)
}

// DownloadFunc fetches the audio of a video into dir and returns the file path.
type DownloadFunc func(ctx context.Context, videoURL, dir string) (string, error)

// Messenger is the narrow outbound surface against the chat platform. The
// production implementation wraps the Telegram Bot API; tests use a fake.
type Messenger interface {
	SendMessage(chatID int64, replyTo int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (messageID int, err error)
	EditMessageText(chatID int64, messageID int, text string) error
	EditMessageKeyboard(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error
	AnswerCallback(callbackID, text string) error
	SendAudio(chatID int64, path, title string) error
}

// Bot wires the dispatch loop to its collaborators.
type Bot struct {
	cfg      *config.Config
	store    *store.Store
	resolver TrackResolver
	search   Searcher
	download DownloadFunc
	msg      Messenger
}

// New assembles a Bot. All collaborators are required.
func New(cfg *config.Config, st *store.Store, res TrackResolver, search Searcher, download DownloadFunc, msg Messenger) *Bot {
	return &Bot{cfg: cfg, store: st, resolver: res, search: search, download: download, msg: msg}
}

// Run connects to Telegram and dispatches updates until ctx is canceled. Each
// update is handled in its own goroutine; the ledger is the only shared state.
func Run(ctx context.Context, cfg *config.Config, st *store.Store, res TrackResolver, search Searcher, download DownloadFunc) error {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram connect: %w", err)
	}
	slog.Info("telegram bot authorized", slog.String("username", api.Self.UserName))

	b := New(cfg, st, res, search, download, &tgMessenger{api: api})

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := api.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			api.StopReceivingUpdates()
			slog.Info("telegram bot stopped")
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			go b.dispatch(ctx, upd)
		}
	}
}

func (b *Bot) dispatch(ctx context.Context, upd tgbotapi.Update) {
	switch {
	case upd.Message != nil && upd.Message.Text != "":
		b.HandleMessage(ctx, InboundMessage{
			ChatID:    upd.Message.Chat.ID,
			MessageID: upd.Message.MessageID,
			Text:      upd.Message.Text,
			Sender:    submitterFromUser(upd.Message.From),
		})
	case upd.CallbackQuery != nil:
		cb := upd.CallbackQuery
		if cb.Message == nil {
			return
		}
		b.HandleCallback(ctx, InboundCallback{
			ID:        cb.ID,
			ChatID:    cb.Message.Chat.ID,
			MessageID: cb.Message.MessageID,
			UserID:    fmt.Sprintf("%d", cb.From.ID),
			Data:      cb.Data,
		})
	}
}

func submitterFromUser(u *tgbotapi.User) store.Submitter {
	if u == nil {
		return store.Submitter{}
	}
	name := strings.TrimSpace(u.FirstName)
	if name == "" {
		name = u.UserName
	}
	return store.Submitter{ID: u.ID, DisplayName: name}
}

// tgMessenger adapts the Telegram Bot API to the Messenger interface.
type tgMessenger struct {
	api *tgbotapi.BotAPI
}

func (m *tgMessenger) SendMessage(chatID int64, replyTo int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	sent, err := m.api.Send(msg)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (m *tgMessenger) EditMessageText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	edit.DisableWebPagePreview = true
	_, err := m.api.Send(edit)
	return err
}

func (m *tgMessenger) EditMessageKeyboard(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error {
	_, err := m.api.Send(tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, keyboard))
	return err
}

func (m *tgMessenger) AnswerCallback(callbackID, text string) error {
	_, err := m.api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}

func (m *tgMessenger) SendAudio(chatID int64, path, title string) error {
	audio := tgbotapi.NewAudio(chatID, tgbotapi.FilePath(path))
	audio.Title = title
	_, err := m.api.Send(audio)
	return err
}
