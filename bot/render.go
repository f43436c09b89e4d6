package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/bangersociety/banger-link/store"
)

// renderShareMessage formats the reply for a recorded share. Pure function of
// the ledger snapshot.
func renderShareMessage(e store.Entry) string {
	if e.MentionCount == 1 {
		return fmt.Sprintf("🎵 *%s* by *%s*\n\nFirst time on the Bangers ledger! 🎉\n\n🔗 %s",
			e.Title, e.Artist, e.TrackKey)
	}
	return fmt.Sprintf("🎵 *%s* by *%s*\n\nShared %d times. First shared by %s.\n\n🔗 %s",
		e.Title, e.Artist, e.MentionCount, e.Submitter.DisplayName, e.TrackKey)
}

// reactionKeyboard builds the reaction control: like/dislike with current
// counts plus a download button.
func reactionKeyboard(e store.Entry) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("👍 %d", e.Likes), ReactionCallback(store.ReactionLike, e.TrackKey)),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("👎 %d", e.Dislikes), ReactionCallback(store.ReactionDislike, e.TrackKey)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬇️ Download audio", DownloadCallback(e.TrackKey)),
		),
	)
}
