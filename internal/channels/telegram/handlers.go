package telegram

import (
	"fmt"
	"log/slog"

	"github.com/mymmrac/telego"

	"github.com/liveline-bot/liveline/internal/bus"
	"github.com/liveline-bot/liveline/internal/channels"
)

// handleMessage normalizes an incoming Telegram update and publishes it to
// the bus. All routing decisions happen downstream; this layer only maps
// transport payloads onto InboundMessage.
func (c *Channel) handleMessage(update telego.Update) {
	message := update.Message
	user := message.From
	if user == nil {
		return
	}
	if user.IsBot {
		slog.Debug("telegram bot sender skipped", "user_id", user.ID)
		return
	}

	// Redelivered updates after reconnects must not re-enter the queue.
	if c.dedupe.Seen(fmt.Sprintf("%d", update.UpdateID)) {
		slog.Debug("telegram duplicate update skipped", "update_id", update.UpdateID)
		return
	}

	// Group traffic is out of scope for a one-on-one support line.
	if message.Chat.Type != telego.ChatTypePrivate {
		slog.Debug("telegram non-private chat skipped",
			"chat_id", message.Chat.ID, "chat_type", message.Chat.Type)
		return
	}

	userID := fmt.Sprintf("%d", user.ID)

	content := message.Text
	if message.Caption != "" {
		if content != "" {
			content += "\n"
		}
		content += message.Caption
	}

	media := extractMedia(message)

	slog.Debug("telegram message received",
		"user_id", user.ID,
		"username", user.Username,
		"is_admin", c.config.IsAdmin(userID),
		"media", len(media),
		"text_preview", channels.Truncate(content, 60),
	)

	c.HandleMessage(bus.InboundMessage{
		SenderID: userID,
		ChatID:   fmt.Sprintf("%d", message.Chat.ID),
		Handle:   user.Username,
		Content:  content,
		Media:    media,
		IsAdmin:  c.config.IsAdmin(userID),
		UpdateID: fmt.Sprintf("%d", update.UpdateID),
	})
}

// extractMedia collects typed transport file references from a message.
// Photos use the highest resolution variant; files are forwarded by file_id
// and never downloaded. The kind decides which send method replays the
// file later: a voice file_id is only valid through sendVoice.
func extractMedia(msg *telego.Message) []bus.MediaAttachment {
	var atts []bus.MediaAttachment
	if len(msg.Photo) > 0 {
		atts = append(atts, bus.MediaAttachment{FileRef: msg.Photo[len(msg.Photo)-1].FileID, Kind: "photo"})
	}
	if msg.Video != nil {
		atts = append(atts, bus.MediaAttachment{FileRef: msg.Video.FileID, Kind: "video"})
	}
	if msg.Voice != nil {
		atts = append(atts, bus.MediaAttachment{FileRef: msg.Voice.FileID, Kind: "voice"})
	}
	if msg.Audio != nil {
		atts = append(atts, bus.MediaAttachment{FileRef: msg.Audio.FileID, Kind: "audio"})
	}
	if msg.Document != nil {
		atts = append(atts, bus.MediaAttachment{FileRef: msg.Document.FileID, Kind: "document"})
	}
	if msg.VideoNote != nil {
		atts = append(atts, bus.MediaAttachment{FileRef: msg.VideoNote.FileID, Kind: "video_note"})
	}
	if msg.Sticker != nil {
		atts = append(atts, bus.MediaAttachment{FileRef: msg.Sticker.FileID, Kind: "sticker"})
	}
	return atts
}
