package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/psds-microservice/supportbot/internal/conversation"
	"github.com/psds-microservice/supportbot/internal/model"
)

// ToEvent reduces an update to a dialogue event. It reports false for
// updates that carry no user message, such as edits or channel posts.
func ToEvent(upd tgbotapi.Update) (conversation.Event, int64, bool) {
	m := upd.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return conversation.Event{}, 0, false
	}

	ev := conversation.Event{
		UserID:    m.From.ID,
		FirstName: m.From.FirstName,
		Username:  m.From.UserName,
		Text:      m.Text,
	}
	if m.IsCommand() {
		ev.Command = m.Command()
	}
	ev.File = attachment(m)
	return ev, m.Chat.ID, true
}

func attachment(m *tgbotapi.Message) *conversation.Attachment {
	switch {
	case len(m.Photo) > 0:
		// Sizes are ascending; keep the largest.
		ph := m.Photo[len(m.Photo)-1]
		return &conversation.Attachment{FileID: ph.FileID, Type: model.MessageTypePhoto, Caption: m.Caption}
	case m.Video != nil:
		return &conversation.Attachment{
			FileID:   m.Video.FileID,
			Type:     model.MessageTypeVideo,
			FileName: m.Video.FileName,
			MimeType: m.Video.MimeType,
			Caption:  m.Caption,
		}
	case m.Document != nil:
		return &conversation.Attachment{
			FileID:   m.Document.FileID,
			Type:     model.MessageTypeDocument,
			FileName: m.Document.FileName,
			MimeType: m.Document.MimeType,
			Caption:  m.Caption,
		}
	}
	return nil
}
