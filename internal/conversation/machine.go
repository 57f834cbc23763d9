package conversation

import (
	"fmt"
	"strings"

	"github.com/psds-microservice/supportbot/internal/model"
)

// Transition computes the next session and the effects for one event.
// It performs no I/O.
func Transition(s Session, ev Event) (Session, []Effect) {
	s = s.Normalize()

	switch ev.Command {
	case CommandStart:
		name := ev.FirstName
		if name == "" {
			name = "пользователь"
		}
		return Session{State: StateMainMenu}, []Effect{
			Reply{Text: fmt.Sprintf(textWelcome, name), Keyboard: MainMenuKeyboard},
		}
	case CommandCancel:
		return Session{State: StateMainMenu}, []Effect{
			Reply{Text: textAborted, Keyboard: MainMenuKeyboard},
		}
	case "":
	default:
		return s, []Effect{repromptFor(s)}
	}
	if ev.File == nil && strings.TrimSpace(ev.Text) == "" {
		return s, []Effect{repromptFor(s)}
	}

	switch s.State {
	case StateManagerDialog:
		return managerDialog(s, ev)
	case StateReportIssue:
		return reportIssue(s, ev)
	case StateWaitingMediaDecision:
		return waitingMediaDecision(s, ev)
	default:
		return mainMenu(s, ev)
	}
}

func mainMenu(s Session, ev Event) (Session, []Effect) {
	if ev.File != nil {
		return s, []Effect{
			fileMessage(ev.File),
			Reply{Text: textFileOutsideReport, Keyboard: MainMenuKeyboard},
		}
	}
	text := ev.Text
	logged := SaveMessage{Text: text, Type: model.MessageTypeText}

	switch text {
	case BtnContactManager:
		return Session{State: StateManagerDialog}, []Effect{
			logged,
			Reply{Text: textManagerPrompt, Keyboard: CancelKeyboard},
		}
	case BtnReportIssue:
		return Session{State: StateReportIssue}, []Effect{
			CreateTicket{Category: model.CategoryViolationReport, Message: &logged, Stash: true},
			Reply{Text: textReportPrompt, Keyboard: CancelKeyboard, Format: true},
		}
	}
	if info, ok := infoReplies[text]; ok {
		return s, []Effect{logged, Reply{Text: info, Keyboard: MainMenuKeyboard}}
	}
	return s, []Effect{logged, Reply{Text: textChoose, Keyboard: MainMenuKeyboard}}
}

func managerDialog(s Session, ev Event) (Session, []Effect) {
	if ev.File != nil {
		return s, []Effect{Reply{Text: textManagerNeedsText, Keyboard: CancelKeyboard}}
	}
	if isBack(ev.Text) {
		return Session{State: StateMainMenu}, []Effect{
			SaveMessage{Text: ev.Text, Type: model.MessageTypeText},
			Reply{Text: textManagerCancel, Keyboard: MainMenuKeyboard},
		}
	}
	return Session{State: StateMainMenu}, []Effect{
		CreateTicket{
			Category:    model.CategoryManagerRequest,
			Description: ev.Text,
			Message:     &SaveMessage{Text: ev.Text, Type: model.MessageTypeText},
		},
		Reply{Text: textManagerCreated, Keyboard: MainMenuKeyboard, Format: true},
	}
}

func reportIssue(s Session, ev Event) (Session, []Effect) {
	if ev.File != nil {
		return storeFile(s, *ev.File)
	}

	text := ev.Text
	logged := SaveMessage{Text: text, Type: model.MessageTypeText}
	switch {
	case isBack(text):
		return Session{State: StateMainMenu}, []Effect{
			logged,
			Reply{Text: textReportCancel, Keyboard: MainMenuKeyboard},
		}
	case isFinish(text):
		return finishReport(s, logged)
	case text == BtnAttachMore:
		return s, []Effect{logged, Reply{Text: textAttachPrompt, Keyboard: FinishOnlyKeyboard}}
	}

	next := Session{State: StateWaitingMediaDecision, TicketID: s.TicketID}
	if s.TicketID == 0 {
		return next, []Effect{
			CreateTicket{Category: model.CategoryViolationReport, Description: text, Message: &logged, Stash: true},
			Reply{Text: textReportSaved, Keyboard: MediaDecisionKeyboard, Format: true},
		}
	}
	return next, []Effect{
		logged,
		UpdateDescription{TicketID: s.TicketID, Text: text},
		Reply{Text: textReportSaved, Keyboard: MediaDecisionKeyboard, Format: true, TicketID: s.TicketID},
	}
}

func waitingMediaDecision(s Session, ev Event) (Session, []Effect) {
	if ev.File != nil {
		return storeFile(s, *ev.File)
	}

	text := ev.Text
	logged := SaveMessage{Text: text, Type: model.MessageTypeText}
	switch {
	case text == BtnAttachYes || text == BtnAttachMore:
		return Session{State: StateReportIssue, TicketID: s.TicketID}, []Effect{
			logged,
			Reply{Text: textAttachPrompt, Keyboard: FinishOnlyKeyboard},
		}
	case isFinish(text):
		return finishReport(s, logged)
	case isBack(text):
		return Session{State: StateMainMenu}, []Effect{
			logged,
			Reply{Text: textReportCancel, Keyboard: MainMenuKeyboard},
		}
	}
	return s, []Effect{Reply{Text: textDecisionReprompt, Keyboard: MediaDecisionKeyboard}}
}

// storeFile records the file against the stashed ticket, creating one when
// the session has none, and leaves the session in ReportIssue.
func storeFile(s Session, f Attachment) (Session, []Effect) {
	var effects []Effect
	if s.TicketID == 0 {
		effects = append(effects, CreateTicket{Category: model.CategoryViolationReport, Stash: true})
	}
	effects = append(effects,
		StoreMedia{TicketID: s.TicketID, File: f},
		fileMessage(&f),
		Reply{Text: textMediaStored, Keyboard: AttachMoreKeyboard, Format: true, TicketID: s.TicketID},
	)
	return Session{State: StateReportIssue, TicketID: s.TicketID}, effects
}

func finishReport(s Session, logged SaveMessage) (Session, []Effect) {
	effects := []Effect{logged}
	if s.TicketID != 0 {
		effects = append(effects, Reply{Text: textReportFinished, Keyboard: MainMenuKeyboard, Format: true, TicketID: s.TicketID})
	} else {
		effects = append(effects, Reply{Text: textChoose, Keyboard: MainMenuKeyboard})
	}
	return Session{State: StateMainMenu}, effects
}

func fileMessage(f *Attachment) SaveMessage {
	return SaveMessage{Text: f.Caption, Type: f.Type}
}

func repromptFor(s Session) Reply {
	switch s.State {
	case StateManagerDialog:
		return Reply{Text: textManagerNeedsText, Keyboard: CancelKeyboard}
	case StateReportIssue:
		return Reply{Text: textAttachPrompt, Keyboard: CancelKeyboard}
	case StateWaitingMediaDecision:
		return Reply{Text: textDecisionReprompt, Keyboard: MediaDecisionKeyboard}
	}
	return Reply{Text: textChoose, Keyboard: MainMenuKeyboard}
}
