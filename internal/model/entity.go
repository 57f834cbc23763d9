package model

import "time"

type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusResolved   TicketStatus = "resolved"
)

// Valid reports whether s belongs to the closed status set.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusResolved:
		return true
	}
	return false
}

type TicketCategory string

const (
	CategoryManagerRequest  TicketCategory = "manager_request"
	CategoryViolationReport TicketCategory = "violation_report"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeSystem   MessageType = "system"
	MessageTypePhoto    MessageType = "photo"
	MessageTypeVideo    MessageType = "video"
	MessageTypeDocument MessageType = "document"
)

// User is a chat-platform user; UserID is assigned by the platform.
type User struct {
	UserID           int64     `gorm:"column:user_id;primaryKey;autoIncrement:false" json:"user_id"`
	Username         string    `gorm:"column:username" json:"username,omitempty"`
	FirstName        string    `gorm:"column:first_name" json:"first_name"`
	RegistrationDate time.Time `gorm:"column:registration_date" json:"registration_date"`
	LastActivity     time.Time `gorm:"column:last_activity" json:"last_activity"`
}

func (User) TableName() string { return "users" }

type Message struct {
	ID          uint64      `gorm:"primaryKey" json:"id"`
	UserID      int64       `gorm:"column:user_id;index;not null" json:"user_id"`
	MessageText string      `gorm:"column:message_text" json:"message_text"`
	MessageType MessageType `gorm:"column:message_type" json:"message_type"`
	Timestamp   time.Time   `gorm:"column:timestamp" json:"timestamp"`
	IsFromAdmin bool        `gorm:"column:is_from_admin" json:"is_from_admin"`
}

func (Message) TableName() string { return "messages" }

type Ticket struct {
	ID          uint64         `gorm:"primaryKey" json:"id"`
	UserID      int64          `gorm:"column:user_id;index;not null" json:"user_id"`
	Description string         `gorm:"column:description" json:"description"`
	TicketType  TicketCategory `gorm:"column:ticket_type" json:"ticket_type"`
	Status      TicketStatus   `gorm:"column:status" json:"status"`
	CreatedAt   time.Time      `gorm:"column:created_at" json:"created_at"`
	ResolvedAt  *time.Time     `gorm:"column:resolved_at" json:"resolved_at"`
	AdminNotes  *string        `gorm:"column:admin_notes" json:"admin_notes"`

	// Joined from users; read-only.
	Username  string `gorm:"column:username;->" json:"username,omitempty"`
	FirstName string `gorm:"column:first_name;->" json:"first_name,omitempty"`
}

func (Ticket) TableName() string { return "tickets" }

type MediaAttachment struct {
	ID         uint64      `gorm:"primaryKey" json:"id"`
	UserID     int64       `gorm:"column:user_id;not null" json:"user_id"`
	TicketID   uint64      `gorm:"column:ticket_id;index;not null" json:"ticket_id"`
	FileID     string      `gorm:"column:file_id" json:"file_id"`
	FileType   MessageType `gorm:"column:file_type" json:"file_type"`
	FilePath   string      `gorm:"column:file_path" json:"-"`
	Caption    string      `gorm:"column:caption" json:"caption,omitempty"`
	UploadedAt time.Time   `gorm:"column:uploaded_at" json:"uploaded_at"`
}

func (MediaAttachment) TableName() string { return "media_files" }

// UserSummary is a user row with per-user activity counts.
type UserSummary struct {
	User
	MessageCount int64 `gorm:"column:message_count" json:"message_count"`
	TicketCount  int64 `gorm:"column:ticket_count" json:"ticket_count"`
}

type SystemStats struct {
	UserCount       int64    `json:"user_count"`
	OpenCount       int64    `json:"open_count"`
	InProgressCount int64    `json:"in_progress_count"`
	ResolvedCount   int64    `json:"resolved_count"`
	MessageCount    int64    `json:"message_count"`
	MediaCount      int64    `json:"media_count"`
	ActiveLast24h   int64    `json:"active_last_24h"`
	RecentTickets   []Ticket `json:"recent_tickets"`
}

// TicketDetail is a ticket with its media and the owner's conversation.
type TicketDetail struct {
	Ticket       *Ticket           `json:"ticket"`
	Media        []MediaAttachment `json:"media"`
	Conversation []Message         `json:"conversation"`
}
