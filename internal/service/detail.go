package service

import (
	"context"

	"github.com/psds-microservice/supportbot/internal/model"
)

// LoadTicketDetail assembles a ticket with its media and the owner's recent conversation.
func LoadTicketDetail(ctx context.Context, s TicketServicer, id uint64) (*model.TicketDetail, error) {
	t, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	media, err := s.ListMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	conv, err := s.ListConversation(ctx, t.UserID, DefaultConversationLimit)
	if err != nil {
		return nil, err
	}
	return &model.TicketDetail{Ticket: t, Media: media, Conversation: conv}, nil
}
