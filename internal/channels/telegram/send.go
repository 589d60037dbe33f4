package telegram

import (
	"context"
	"fmt"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"github.com/liveline-bot/liveline/internal/bus"
)

// Send delivers an outbound message. All sends pass through the rate
// limiter so broadcast fanout cannot trip the Bot API flood control.
func (c *Channel) Send(ctx context.Context, msg bus.OutboundMessage) error {
	chatID, err := parseChatID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid chat ID %q: %w", msg.ChatID, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if len(msg.Media) == 0 {
		_, err := c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), msg.Content))
		return err
	}

	// First attachment carries the message text as its caption; the rest
	// go out bare.
	for i, att := range msg.Media {
		caption := att.Caption
		if i == 0 && caption == "" {
			caption = msg.Content
		}
		if err := c.sendAttachment(ctx, chatID, att, caption); err != nil {
			return err
		}
	}
	return nil
}

func (c *Channel) sendAttachment(ctx context.Context, chatID int64, att bus.MediaAttachment, caption string) error {
	file := telego.InputFile{FileID: att.FileRef}
	var err error

	switch att.Kind {
	case "video":
		_, err = c.bot.SendVideo(ctx, &telego.SendVideoParams{
			ChatID: tu.ID(chatID), Video: file, Caption: caption,
		})
	case "voice":
		_, err = c.bot.SendVoice(ctx, &telego.SendVoiceParams{
			ChatID: tu.ID(chatID), Voice: file, Caption: caption,
		})
	case "audio":
		_, err = c.bot.SendAudio(ctx, &telego.SendAudioParams{
			ChatID: tu.ID(chatID), Audio: file, Caption: caption,
		})
	case "document":
		_, err = c.bot.SendDocument(ctx, &telego.SendDocumentParams{
			ChatID: tu.ID(chatID), Document: file, Caption: caption,
		})
	case "video_note", "sticker":
		// Neither type carries a caption; deliver it as its own message.
		if caption != "" {
			if _, err = c.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), caption)); err != nil {
				return err
			}
		}
		if att.Kind == "video_note" {
			_, err = c.bot.SendVideoNote(ctx, &telego.SendVideoNoteParams{
				ChatID: tu.ID(chatID), VideoNote: file,
			})
		} else {
			_, err = c.bot.SendSticker(ctx, &telego.SendStickerParams{
				ChatID: tu.ID(chatID), Sticker: file,
			})
		}
	default: // "photo" and unspecified
		_, err = c.bot.SendPhoto(ctx, &telego.SendPhotoParams{
			ChatID: tu.ID(chatID), Photo: file, Caption: caption,
		})
	}
	return err
}
