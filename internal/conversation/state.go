package conversation

import "github.com/psds-microservice/supportbot/internal/model"

type State string

const (
	StateMainMenu             State = "main_menu"
	StateManagerDialog        State = "manager_dialog"
	StateReportIssue          State = "report_issue"
	StateWaitingMediaDecision State = "waiting_media_decision"
)

// Session is the per-user dialogue state. TicketID is the violation report
// being assembled; zero means none.
type Session struct {
	State    State  `json:"state"`
	TicketID uint64 `json:"ticket_id,omitempty"`
}

// Normalize maps an unknown or empty state to MainMenu.
func (s Session) Normalize() Session {
	switch s.State {
	case StateMainMenu, StateManagerDialog, StateReportIssue, StateWaitingMediaDecision:
		return s
	}
	return Session{State: StateMainMenu}
}

// Attachment is a file received from the chat platform.
type Attachment struct {
	FileID   string
	Type     model.MessageType
	FileName string
	MimeType string
	Caption  string
}

// Event is one inbound update reduced to what the dialogue needs.
type Event struct {
	UserID    int64
	FirstName string
	Username  string
	Command   string
	Text      string
	File      *Attachment
}

// Effect is a side-effect request executed by the driver, in order.
type Effect interface {
	effect()
}

// Reply sends Text with Keyboard. When Format is set, Text holds one %d verb
// filled with the resolved ticket id.
type Reply struct {
	Text     string
	Keyboard Keyboard
	Format   bool
	TicketID uint64
}

// SaveMessage appends a user-authored line to the conversation log.
type SaveMessage struct {
	Text string
	Type model.MessageType
}

// CreateTicket opens a ticket. Message, when set, is stored in the same
// transaction. Stash puts the new id into the session.
type CreateTicket struct {
	Category    model.TicketCategory
	Description string
	Message     *SaveMessage
	Stash       bool
}

// UpdateDescription replaces an empty description or appends a line.
type UpdateDescription struct {
	TicketID uint64
	Text     string
}

// StoreMedia downloads and records an attachment for a ticket.
type StoreMedia struct {
	TicketID uint64
	File     Attachment
}

func (Reply) effect()             {}
func (SaveMessage) effect()       {}
func (CreateTicket) effect()      {}
func (UpdateDescription) effect() {}
func (StoreMedia) effect()        {}

// A zero TicketID on Reply, UpdateDescription or StoreMedia refers to the
// ticket created by an earlier CreateTicket in the same batch.
