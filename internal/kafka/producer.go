package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/psds-microservice/supportbot/internal/model"
	"github.com/segmentio/kafka-go"
)

const (
	EventTicketCreated = "ticket.created"
	EventTicketUpdated = "ticket.updated"
)

// TicketEventProducer публикует события жизненного цикла тикета; в тестах подменяется фейком.
type TicketEventProducer interface {
	ProduceTicketEvent(ctx context.Context, event string, t *model.Ticket)
	Enabled() bool
}

// Producer пишет события тикетов в топик Kafka (best effort: ошибки только логируются).
type Producer struct {
	writer *kafka.Writer
	topic  string
}

// NewProducer returns a producer; with no brokers or topic every call is a no-op.
func NewProducer(brokers []string, topic string) *Producer {
	if len(brokers) == 0 || topic == "" {
		return &Producer{}
	}
	return &Producer{
		topic: topic,
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

// Enabled reports whether events are actually sent.
func (p *Producer) Enabled() bool {
	return p.writer != nil
}

type ticketEvent struct {
	Event      string     `json:"event"`
	TicketID   uint64     `json:"ticket_id"`
	UserID     int64      `json:"user_id"`
	TicketType string     `json:"ticket_type"`
	Status     string     `json:"status"`
	CreatedAt  time.Time  `json:"created_at"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
}

func encodeEvent(event string, t *model.Ticket) ([]byte, error) {
	return json.Marshal(ticketEvent{
		Event:      event,
		TicketID:   t.ID,
		UserID:     t.UserID,
		TicketType: string(t.TicketType),
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt,
		ResolvedAt: t.ResolvedAt,
	})
}

func (p *Producer) ProduceTicketEvent(ctx context.Context, event string, t *model.Ticket) {
	if p.writer == nil || t == nil {
		return
	}
	body, err := encodeEvent(event, t)
	if err != nil {
		slog.Error("kafka: marshal ticket event", "error", err)
		return
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Value: body}); err != nil {
		slog.Warn("kafka: write ticket event", "error", err, "ticket_id", t.ID)
	}
}

func (p *Producer) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
