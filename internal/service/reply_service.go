package service

import (
	"context"
	"strings"

	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/model"
)

// ReplyPrefix heads every staff reply delivered to a user's chat.
const ReplyPrefix = "👨‍💼 Ответ от поддержки:\n\n"

// Sender delivers text to a chat; implemented by the Telegram client.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

type ReplyService struct {
	tickets TicketServicer
	sender  Sender
}

// NewReplyService wires outbound replies; a nil sender makes every send fail with ErrTransportUnavailable.
func NewReplyService(tickets TicketServicer, sender Sender) *ReplyService {
	return &ReplyService{tickets: tickets, sender: sender}
}

// SendToTicketOwner delivers text to the ticket owner and records it only after the
// transport confirms delivery.
func (s *ReplyService) SendToTicketOwner(ctx context.Context, ticketID uint64, text string) (*model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errs.ErrEmptyMessage
	}
	t, err := s.tickets.GetTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if s.sender == nil {
		return nil, errs.ErrTransportUnavailable
	}
	if err := s.sender.SendText(ctx, t.UserID, ReplyPrefix+text); err != nil {
		if !errs.IsTransport(err) {
			err = &errs.TransportError{Op: "send", Err: err}
		}
		return nil, err
	}
	return s.tickets.AppendMessage(ctx, t.UserID, text, model.MessageTypeText, true)
}
