// Package bot runs the dialogue: it feeds inbound events through the
// conversation state machine and executes the resulting effects.
package bot

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/psds-microservice/supportbot/internal/conversation"
	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/logger"
	"github.com/psds-microservice/supportbot/internal/metrics"
	"github.com/psds-microservice/supportbot/internal/model"
	"github.com/psds-microservice/supportbot/internal/service"
)

// Messenger sends a reply with a keyboard to a chat.
type Messenger interface {
	SendMenu(ctx context.Context, chatID int64, text string, kb conversation.Keyboard) error
}

// MediaStorer downloads and records an attachment.
type MediaStorer interface {
	Store(ctx context.Context, userID int64, ticketID uint64, a conversation.Attachment) (*model.MediaAttachment, error)
}

var errNoTicket = errors.New("bot: effect refers to a ticket that was not created")

type Driver struct {
	tickets  service.TicketServicer
	sessions conversation.SessionStore
	media    MediaStorer
	out      Messenger
	metrics  *metrics.Metrics
	log      *logger.Logger
}

func NewDriver(tickets service.TicketServicer, sessions conversation.SessionStore, media MediaStorer, out Messenger, m *metrics.Metrics, log *logger.Logger) *Driver {
	return &Driver{tickets: tickets, sessions: sessions, media: media, out: out, metrics: m, log: log}
}

// Handle processes one inbound event. Failures are scoped to the event:
// they are logged, reported to the user and never escape.
func (d *Driver) Handle(ctx context.Context, ev conversation.Event, chatID int64) {
	log := d.log.With("user_id", ev.UserID)
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling update", "panic", r, "stack", string(debug.Stack()))
			d.failed("panic")
			d.send(ctx, log, chatID, conversation.TextFailed, nil)
		}
	}()

	if err := d.tickets.UpsertUser(ctx, ev.UserID, ev.FirstName, ev.Username); err != nil {
		log.LogError(err, "upsert user")
		d.failed("upsert_user")
		d.send(ctx, log, chatID, conversation.TextFailed, nil)
		return
	}
	prev, err := d.sessions.Load(ctx, ev.UserID)
	if err != nil {
		log.LogError(err, "load session")
		d.failed("load_session")
		d.send(ctx, log, chatID, conversation.TextFailed, nil)
		return
	}
	d.metrics.Updates.WithLabelValues(string(prev.State)).Inc()

	next, effects := conversation.Transition(prev, ev)
	r := &run{d: d, ctx: ctx, log: log, userID: ev.UserID, chatID: chatID}
	if err := r.execute(effects); err != nil {
		log.LogError(err, "update failed", "state", prev.State, "effect", r.failedEffect)
		d.failed(r.failedEffect)
		if errors.Is(err, errs.ErrTicketNotOpen) {
			// The report no longer accepts attachments.
			d.send(ctx, log, chatID, conversation.TextReportClosed, conversation.MainMenuKeyboard)
			d.save(ctx, log, ev.UserID, conversation.Session{State: conversation.StateMainMenu})
			return
		}
		text := conversation.TextFailed
		if r.failedEffect == "store_media" {
			text = conversation.TextMediaFailed
		}
		d.send(ctx, log, chatID, text, nil)

		// Keep the state, but remember a report ticket that already exists
		// so a retry attaches to it.
		if r.stashed != 0 {
			prev.TicketID = r.stashed
			d.save(ctx, log, ev.UserID, prev)
		}
		return
	}

	if r.stashed != 0 {
		next.TicketID = r.stashed
	}
	d.save(ctx, log, ev.UserID, next)
	if next.State != prev.State {
		log.Debug("state changed", "from", prev.State, "to", next.State, "ticket_id", next.TicketID)
	}
}

func (d *Driver) save(ctx context.Context, log *logger.Logger, userID int64, s conversation.Session) {
	if err := d.sessions.Save(ctx, userID, s); err != nil {
		log.LogError(err, "save session")
		d.failed("save_session")
	}
}

func (d *Driver) send(ctx context.Context, log *logger.Logger, chatID int64, text string, kb conversation.Keyboard) {
	err := d.out.SendMenu(ctx, chatID, text, kb)
	d.metrics.SendResult(err)
	if err != nil {
		log.LogError(err, "send reply")
	}
}

func (d *Driver) failed(effect string) {
	d.metrics.Failures.WithLabelValues(effect).Inc()
}

// run carries the state of one effect batch.
type run struct {
	d      *Driver
	ctx    context.Context
	log    *logger.Logger
	userID int64
	chatID int64

	created      uint64
	stashed      uint64
	failedEffect string
}

func (r *run) execute(effects []conversation.Effect) error {
	for _, e := range effects {
		if err := r.apply(e); err != nil {
			return err
		}
	}
	return nil
}

func (r *run) ticketID(id uint64) (uint64, error) {
	if id != 0 {
		return id, nil
	}
	if r.created == 0 {
		return 0, errNoTicket
	}
	return r.created, nil
}

func (r *run) apply(e conversation.Effect) error {
	tickets := r.d.tickets
	switch e := e.(type) {
	case conversation.Reply:
		text := e.Text
		if e.Format {
			id, err := r.ticketID(e.TicketID)
			if err != nil {
				r.failedEffect = "reply"
				return err
			}
			text = fmt.Sprintf(e.Text, id)
		}
		// A lost reply does not undo what was stored.
		r.d.send(r.ctx, r.log, r.chatID, text, e.Keyboard)
		return nil

	case conversation.SaveMessage:
		if _, err := tickets.AppendMessage(r.ctx, r.userID, e.Text, e.Type, false); err != nil {
			r.failedEffect = "save_message"
			return err
		}

	case conversation.CreateTicket:
		var (
			t   *model.Ticket
			err error
		)
		if e.Message != nil {
			t, err = tickets.CreateTicketWithMessage(r.ctx, r.userID, e.Description, e.Category,
				service.NewMessage{Text: e.Message.Text, Type: e.Message.Type})
		} else {
			t, err = tickets.CreateTicket(r.ctx, r.userID, e.Description, e.Category)
		}
		if err != nil {
			r.failedEffect = "create_ticket"
			return err
		}
		r.created = t.ID
		if e.Stash {
			r.stashed = t.ID
		}
		r.log.Info("ticket created", "ticket_id", t.ID, "category", t.TicketType)

	case conversation.UpdateDescription:
		id, err := r.ticketID(e.TicketID)
		if err == nil {
			err = tickets.UpdateTicketDescription(r.ctx, id, e.Text)
		}
		if err != nil {
			r.failedEffect = "update_description"
			return err
		}

	case conversation.StoreMedia:
		id, err := r.ticketID(e.TicketID)
		if err != nil {
			r.failedEffect = "store_media"
			return err
		}
		m, err := r.d.media.Store(r.ctx, r.userID, id, e.File)
		if err != nil {
			r.failedEffect = "store_media"
			return err
		}
		r.d.metrics.MediaStored.Inc()
		r.log.Info("media stored", "ticket_id", id, "media_id", m.ID, "type", m.FileType)

	default:
		r.failedEffect = "unknown"
		return fmt.Errorf("bot: unknown effect %T", e)
	}
	return nil
}
