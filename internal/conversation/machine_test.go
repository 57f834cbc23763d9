package conversation

import (
	"testing"

	"github.com/psds-microservice/supportbot/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func text(s string) Event { return Event{UserID: 1, FirstName: "Ivan", Text: s} }

func lastReply(t *testing.T, effects []Effect) Reply {
	t.Helper()
	require.NotEmpty(t, effects)
	r, ok := effects[len(effects)-1].(Reply)
	require.True(t, ok, "last effect must be a reply, got %T", effects[len(effects)-1])
	return r
}

func TestStartResetsSession(t *testing.T) {
	next, effects := Transition(Session{State: StateReportIssue, TicketID: 9}, Event{Command: CommandStart, FirstName: "Ivan"})
	assert.Equal(t, Session{State: StateMainMenu}, next)
	r := lastReply(t, effects)
	assert.Contains(t, r.Text, "Ivan")
	assert.Equal(t, MainMenuKeyboard, r.Keyboard)
}

func TestUnknownStateFallsBackToMainMenu(t *testing.T) {
	next, _ := Transition(Session{State: "gone"}, text(BtnOrgInfo))
	assert.Equal(t, StateMainMenu, next.State)
}

func TestMainMenuReportCreatesAndStashesTicket(t *testing.T) {
	next, effects := Transition(Session{State: StateMainMenu}, text(BtnReportIssue))
	assert.Equal(t, StateReportIssue, next.State)
	require.Len(t, effects, 2)

	ct, ok := effects[0].(CreateTicket)
	require.True(t, ok)
	assert.Equal(t, model.CategoryViolationReport, ct.Category)
	assert.True(t, ct.Stash)
	assert.Empty(t, ct.Description)
	require.NotNil(t, ct.Message)
	assert.Equal(t, BtnReportIssue, ct.Message.Text)

	r := lastReply(t, effects)
	assert.True(t, r.Format)
	assert.Zero(t, r.TicketID, "refers to the ticket created in this batch")
}

func TestMainMenuInfoStaysWithoutTicket(t *testing.T) {
	for _, btn := range []string{BtnOrgInfo, BtnSchedule, BtnSalary, BtnBackToMenu, "hello"} {
		next, effects := Transition(Session{State: StateMainMenu}, text(btn))
		assert.Equal(t, StateMainMenu, next.State, btn)
		for _, e := range effects {
			_, isCreate := e.(CreateTicket)
			assert.False(t, isCreate, btn)
		}
	}
	_, effects := Transition(Session{}, text(BtnSchedule))
	assert.Equal(t, textSchedule, lastReply(t, effects).Text)
}

func TestMainMenuContactManager(t *testing.T) {
	next, effects := Transition(Session{State: StateMainMenu}, text(BtnContactManager))
	assert.Equal(t, Session{State: StateManagerDialog}, next)
	assert.Equal(t, CancelKeyboard, lastReply(t, effects).Keyboard)
}

func TestManagerDialogCreatesTicket(t *testing.T) {
	next, effects := Transition(Session{State: StateManagerDialog}, text("printer is broken"))
	assert.Equal(t, Session{State: StateMainMenu}, next)

	ct, ok := effects[0].(CreateTicket)
	require.True(t, ok)
	assert.Equal(t, model.CategoryManagerRequest, ct.Category)
	assert.Equal(t, "printer is broken", ct.Description)
	assert.False(t, ct.Stash)
	assert.Equal(t, "printer is broken", ct.Message.Text)

	r := lastReply(t, effects)
	assert.True(t, r.Format)
	assert.Contains(t, r.Text, "%d")
}

func TestManagerDialogBack(t *testing.T) {
	for _, btn := range []string{BtnCancel, BtnBackToMenu} {
		next, effects := Transition(Session{State: StateManagerDialog}, text(btn))
		assert.Equal(t, Session{State: StateMainMenu}, next)
		for _, e := range effects {
			_, isCreate := e.(CreateTicket)
			assert.False(t, isCreate)
		}
	}
}

func TestFileOutsideReportIsRejected(t *testing.T) {
	file := &Attachment{FileID: "abc", Type: model.MessageTypePhoto}
	for _, st := range []State{StateMainMenu, StateManagerDialog} {
		s := Session{State: st}
		next, effects := Transition(s, Event{File: file})
		assert.Equal(t, s, next)
		for _, e := range effects {
			_, isStore := e.(StoreMedia)
			assert.False(t, isStore)
		}
	}
}

func TestReportIssueFileStaysInReport(t *testing.T) {
	s := Session{State: StateReportIssue, TicketID: 7}
	file := Attachment{FileID: "abc", Type: model.MessageTypePhoto, Caption: "broken door"}
	next, effects := Transition(s, Event{File: &file})
	assert.Equal(t, s, next)

	require.Len(t, effects, 3)
	sm, ok := effects[0].(StoreMedia)
	require.True(t, ok)
	assert.Equal(t, uint64(7), sm.TicketID)
	assert.Equal(t, file, sm.File)
	assert.Equal(t, SaveMessage{Text: "broken door", Type: model.MessageTypePhoto}, effects[1])
	r := lastReply(t, effects)
	assert.Equal(t, AttachMoreKeyboard, r.Keyboard)
	assert.Equal(t, uint64(7), r.TicketID)
}

func TestReportIssueWithoutTicketCreatesOne(t *testing.T) {
	file := Attachment{FileID: "abc", Type: model.MessageTypeVideo}
	next, effects := Transition(Session{State: StateReportIssue}, Event{File: &file})
	assert.Equal(t, StateReportIssue, next.State)
	ct, ok := effects[0].(CreateTicket)
	require.True(t, ok)
	assert.True(t, ct.Stash)
	assert.Zero(t, effects[1].(StoreMedia).TicketID)

	next, effects = Transition(Session{State: StateReportIssue}, text("smoke in hall"))
	assert.Equal(t, StateWaitingMediaDecision, next.State)
	ct = effects[0].(CreateTicket)
	assert.Equal(t, "smoke in hall", ct.Description)
	assert.True(t, ct.Stash)
}

func TestReportIssueTextUpdatesDescription(t *testing.T) {
	next, effects := Transition(Session{State: StateReportIssue, TicketID: 3}, text("smoke in hall"))
	assert.Equal(t, Session{State: StateWaitingMediaDecision, TicketID: 3}, next)
	require.Len(t, effects, 3)
	assert.Equal(t, SaveMessage{Text: "smoke in hall", Type: model.MessageTypeText}, effects[0])
	assert.Equal(t, UpdateDescription{TicketID: 3, Text: "smoke in hall"}, effects[1])
	assert.Equal(t, MediaDecisionKeyboard, lastReply(t, effects).Keyboard)
}

func TestReportIssueControls(t *testing.T) {
	s := Session{State: StateReportIssue, TicketID: 3}

	next, _ := Transition(s, text(BtnCancel))
	assert.Equal(t, Session{State: StateMainMenu}, next)

	next, effects := Transition(s, text(BtnFinishNoMedia))
	assert.Equal(t, Session{State: StateMainMenu}, next)
	assert.Equal(t, uint64(3), lastReply(t, effects).TicketID)

	next, effects = Transition(s, text(BtnAttachMore))
	assert.Equal(t, s, next)
	assert.Equal(t, FinishOnlyKeyboard, lastReply(t, effects).Keyboard)
}

func TestWaitingMediaDecision(t *testing.T) {
	s := Session{State: StateWaitingMediaDecision, TicketID: 5}

	next, _ := Transition(s, text(BtnAttachYes))
	assert.Equal(t, Session{State: StateReportIssue, TicketID: 5}, next)

	next, effects := Transition(s, text("what?"))
	assert.Equal(t, s, next)
	assert.Equal(t, MediaDecisionKeyboard, lastReply(t, effects).Keyboard)

	file := Attachment{FileID: "f", Type: model.MessageTypeDocument}
	next, effects = Transition(s, Event{File: &file})
	assert.Equal(t, Session{State: StateReportIssue, TicketID: 5}, next)
	assert.IsType(t, StoreMedia{}, effects[0])
}

func TestWaitingMediaDecisionFinishLeavesTicketAlone(t *testing.T) {
	for _, btn := range []string{BtnAttachNo, BtnFinishReport} {
		next, effects := Transition(Session{State: StateWaitingMediaDecision, TicketID: 5}, text(btn))
		assert.Equal(t, Session{State: StateMainMenu}, next)
		for _, e := range effects {
			switch e.(type) {
			case CreateTicket, UpdateDescription, StoreMedia:
				t.Fatalf("finish must not touch the ticket, got %T", e)
			}
		}
	}
}

func TestUnknownCommandReprompts(t *testing.T) {
	s := Session{State: StateManagerDialog}
	next, effects := Transition(s, Event{Command: "help", Text: "/help"})
	assert.Equal(t, s, next)
	require.Len(t, effects, 1)
	assert.Equal(t, CancelKeyboard, lastReply(t, effects).Keyboard)
}

func TestEmptyTextReprompts(t *testing.T) {
	s := Session{State: StateReportIssue, TicketID: 2}
	next, effects := Transition(s, text("  "))
	assert.Equal(t, s, next)
	assert.Len(t, effects, 1)
}
