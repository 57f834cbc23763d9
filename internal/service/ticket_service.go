package service

import (
	"context"
	"errors"
	"time"

	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/kafka"
	"github.com/psds-microservice/supportbot/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultConversationLimit = 50

// TicketServicer is the ticket store consumed by the bot and the dashboard.
type TicketServicer interface {
	UpsertUser(ctx context.Context, userID int64, name, handle string) error
	GetUser(ctx context.Context, userID int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.UserSummary, error)

	AppendMessage(ctx context.Context, userID int64, text string, typ model.MessageType, fromAdmin bool) (*model.Message, error)
	ListConversation(ctx context.Context, userID int64, limit int) ([]model.Message, error)

	CreateTicket(ctx context.Context, userID int64, description string, category model.TicketCategory) (*model.Ticket, error)
	CreateTicketWithMessage(ctx context.Context, userID int64, description string, category model.TicketCategory, msg NewMessage) (*model.Ticket, error)
	UpdateTicketStatus(ctx context.Context, id uint64, status model.TicketStatus, notes *string) (*model.Ticket, error)
	UpdateTicketDescription(ctx context.Context, id uint64, text string) error
	GetTicket(ctx context.Context, id uint64) (*model.Ticket, error)
	ListTickets(ctx context.Context, status model.TicketStatus) ([]model.Ticket, error)

	RecordMedia(ctx context.Context, m *model.MediaAttachment) error
	GetMedia(ctx context.Context, id uint64) (*model.MediaAttachment, error)
	FindMedia(ctx context.Context, ticketID uint64, fileID string) (*model.MediaAttachment, error)
	ListMedia(ctx context.Context, ticketID uint64) ([]model.MediaAttachment, error)

	SystemStats(ctx context.Context) (*model.SystemStats, error)
}

// NewMessage is a user line logged together with a ticket mutation.
type NewMessage struct {
	Text string
	Type model.MessageType
}

type TicketService struct {
	db     *gorm.DB
	now    func() time.Time
	events kafka.TicketEventProducer
}

type Option func(*TicketService)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *TicketService) { s.now = now }
}

// WithEvents publishes ticket.created/ticket.updated after each committed change.
// A disabled producer is ignored.
func WithEvents(p kafka.TicketEventProducer) Option {
	return func(s *TicketService) {
		if p != nil && p.Enabled() {
			s.events = p
		}
	}
}

func NewTicketService(db *gorm.DB, opts ...Option) *TicketService {
	s := &TicketService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *TicketService) utcNow() time.Time {
	return s.now().UTC()
}

// publish отправляет событие асинхронно: оно должно уйти, даже если запрос отменён.
// Без настроенного продюсера горутина не запускается.
func (s *TicketService) publish(event string, t *model.Ticket) {
	if s.events == nil || t == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.events.ProduceTicketEvent(ctx, event, t)
	}()
}

func requireUser(tx *gorm.DB, userID int64) error {
	var n int64
	if err := tx.Model(&model.User{}).Where("user_id = ?", userID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

func loadTicket(tx *gorm.DB, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := tx.First(&t, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

func (s *TicketService) withUser(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&model.Ticket{}).
		Select("tickets.*, users.username, users.first_name").
		Joins("LEFT JOIN users ON users.user_id = tickets.user_id")
}

func (s *TicketService) CreateTicket(ctx context.Context, userID int64, description string, category model.TicketCategory) (*model.Ticket, error) {
	return s.createTicket(ctx, userID, description, category, nil)
}

// CreateTicketWithMessage creates the ticket and logs the user's line in one transaction.
func (s *TicketService) CreateTicketWithMessage(ctx context.Context, userID int64, description string, category model.TicketCategory, msg NewMessage) (*model.Ticket, error) {
	return s.createTicket(ctx, userID, description, category, &msg)
}

func (s *TicketService) createTicket(ctx context.Context, userID int64, description string, category model.TicketCategory, msg *NewMessage) (*model.Ticket, error) {
	now := s.utcNow()
	t := &model.Ticket{
		UserID:      userID,
		Description: description,
		TicketType:  category,
		Status:      model.TicketStatusOpen,
		CreatedAt:   now,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		if msg != nil {
			m := &model.Message{UserID: userID, MessageText: msg.Text, MessageType: msg.Type, Timestamp: now}
			if err := tx.Create(m).Error; err != nil {
				return err
			}
		}
		return tx.Create(t).Error
	})
	if err != nil {
		return nil, err
	}
	s.publish(kafka.EventTicketCreated, t)
	return t, nil
}

// UpdateTicketStatus sets status and notes; resolved_at is set exactly when status is resolved.
func (s *TicketService) UpdateTicketStatus(ctx context.Context, id uint64, status model.TicketStatus, notes *string) (*model.Ticket, error) {
	if !status.Valid() {
		return nil, errs.ErrInvalidStatus
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadTicket(tx, id); err != nil {
			return err
		}
		changes := map[string]interface{}{
			"status":      status,
			"admin_notes": notes,
			"resolved_at": nil,
		}
		if status == model.TicketStatusResolved {
			changes["resolved_at"] = s.utcNow()
		}
		return tx.Model(&model.Ticket{}).Where("id = ?", id).Updates(changes).Error
	})
	if err != nil {
		return nil, err
	}
	t, err := s.GetTicket(ctx, id)
	if err != nil {
		return nil, err
	}
	s.publish(kafka.EventTicketUpdated, t)
	return t, nil
}

// UpdateTicketDescription replaces an empty description or appends text on a new line.
func (s *TicketService) UpdateTicketDescription(ctx context.Context, id uint64, text string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := loadTicket(tx, id)
		if err != nil {
			return err
		}
		desc := text
		if t.Description != "" {
			desc = t.Description + "\n" + text
		}
		return tx.Model(&model.Ticket{}).Where("id = ?", id).Update("description", desc).Error
	})
}

func (s *TicketService) GetTicket(ctx context.Context, id uint64) (*model.Ticket, error) {
	var t model.Ticket
	if err := s.withUser(ctx).Where("tickets.id = ?", id).Take(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrTicketNotFound
		}
		return nil, err
	}
	return &t, nil
}

// ListTickets returns tickets newest first; an empty status means no filter.
func (s *TicketService) ListTickets(ctx context.Context, status model.TicketStatus) ([]model.Ticket, error) {
	tx := s.withUser(ctx)
	if status != "" {
		tx = tx.Where("tickets.status = ?", status)
	}
	items := []model.Ticket{}
	if err := tx.Order("tickets.created_at DESC, tickets.id DESC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

// RecordMedia links a stored file to an open ticket.
func (s *TicketService) RecordMedia(ctx context.Context, m *model.MediaAttachment) error {
	if m.UploadedAt.IsZero() {
		m.UploadedAt = s.utcNow()
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := loadTicket(tx, m.TicketID)
		if err != nil {
			return err
		}
		if t.Status != model.TicketStatusOpen {
			return errs.ErrTicketNotOpen
		}
		return tx.Create(m).Error
	})
}

func (s *TicketService) GetMedia(ctx context.Context, id uint64) (*model.MediaAttachment, error) {
	var m model.MediaAttachment
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMediaNotFound
		}
		return nil, err
	}
	return &m, nil
}

// FindMedia возвращает вложение тикета по file_id платформы или errs.ErrMediaNotFound.
func (s *TicketService) FindMedia(ctx context.Context, ticketID uint64, fileID string) (*model.MediaAttachment, error) {
	var m model.MediaAttachment
	err := s.db.WithContext(ctx).
		Where("ticket_id = ? AND file_id = ?", ticketID, fileID).
		Order("id ASC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMediaNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *TicketService) ListMedia(ctx context.Context, ticketID uint64) ([]model.MediaAttachment, error) {
	items := []model.MediaAttachment{}
	err := s.db.WithContext(ctx).
		Where("ticket_id = ?", ticketID).
		Order("uploaded_at ASC, id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// SystemStats aggregates dashboard counters; activity is measured over the trailing 24h.
func (s *TicketService) SystemStats(ctx context.Context) (*model.SystemStats, error) {
	db := s.db.WithContext(ctx)
	st := &model.SystemStats{}
	counts := []struct {
		dst   *int64
		query *gorm.DB
	}{
		{&st.UserCount, db.Model(&model.User{})},
		{&st.OpenCount, db.Model(&model.Ticket{}).Where("status = ?", model.TicketStatusOpen)},
		{&st.InProgressCount, db.Model(&model.Ticket{}).Where("status = ?", model.TicketStatusInProgress)},
		{&st.ResolvedCount, db.Model(&model.Ticket{}).Where("status = ?", model.TicketStatusResolved)},
		{&st.MessageCount, db.Model(&model.Message{})},
		{&st.MediaCount, db.Model(&model.MediaAttachment{})},
		{&st.ActiveLast24h, db.Model(&model.User{}).Where("last_activity >= ?", s.utcNow().Add(-24*time.Hour))},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}
	recent := []model.Ticket{}
	if err := s.withUser(ctx).Order("tickets.created_at DESC, tickets.id DESC").Limit(10).Find(&recent).Error; err != nil {
		return nil, err
	}
	st.RecentTickets = recent
	return st, nil
}

// upsertAssignments keep the newest non-empty name and handle.
var upsertAssignments = map[string]interface{}{
	"first_name": gorm.Expr("COALESCE(NULLIF(excluded.first_name, ''), users.first_name)"),
	"username":   gorm.Expr("COALESCE(NULLIF(excluded.username, ''), users.username)"),
}

// UpsertUser registers the user on first contact and refreshes last activity on every call.
func (s *TicketService) UpsertUser(ctx context.Context, userID int64, name, handle string) error {
	now := s.utcNow()
	u := &model.User{
		UserID:           userID,
		Username:         handle,
		FirstName:        name,
		RegistrationDate: now,
		LastActivity:     now,
	}
	assignments := map[string]interface{}{"last_activity": now}
	for k, v := range upsertAssignments {
		assignments[k] = v
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(assignments),
	}).Create(u).Error
}

func (s *TicketService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	var u model.User
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// ListUsers returns users by recent activity with message and ticket counts.
func (s *TicketService) ListUsers(ctx context.Context) ([]model.UserSummary, error) {
	items := []model.UserSummary{}
	err := s.db.WithContext(ctx).Raw(`
		SELECT users.*,
			(SELECT COUNT(*) FROM messages WHERE messages.user_id = users.user_id) AS message_count,
			(SELECT COUNT(*) FROM tickets WHERE tickets.user_id = users.user_id) AS ticket_count
		FROM users
		ORDER BY users.last_activity DESC, users.user_id ASC`).Scan(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// AppendMessage logs one line; the user must already exist.
func (s *TicketService) AppendMessage(ctx context.Context, userID int64, text string, typ model.MessageType, fromAdmin bool) (*model.Message, error) {
	if typ == "" {
		typ = model.MessageTypeText
	}
	m := &model.Message{
		UserID:      userID,
		MessageText: text,
		MessageType: typ,
		Timestamp:   s.utcNow(),
		IsFromAdmin: fromAdmin,
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireUser(tx, userID); err != nil {
			return err
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListConversation returns at most limit of the user's latest messages in chronological order.
func (s *TicketService) ListConversation(ctx context.Context, userID int64, limit int) ([]model.Message, error) {
	if limit <= 0 {
		limit = DefaultConversationLimit
	}
	items := []model.Message{}
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order(`"timestamp" DESC, id DESC`).
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
	return items, nil
}
