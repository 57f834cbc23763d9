package bot

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psds-microservice/supportbot/internal/conversation"
	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/logger"
	"github.com/psds-microservice/supportbot/internal/media"
	"github.com/psds-microservice/supportbot/internal/metrics"
	"github.com/psds-microservice/supportbot/internal/model"
	"github.com/psds-microservice/supportbot/internal/service"
	"github.com/psds-microservice/supportbot/internal/testutil"
)

const userID = 42

type outbox struct {
	mu    sync.Mutex
	texts []string
}

func (o *outbox) SendMenu(_ context.Context, _ int64, text string, _ conversation.Keyboard) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.texts = append(o.texts, text)
	return nil
}

func (o *outbox) last() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.texts) == 0 {
		return ""
	}
	return o.texts[len(o.texts)-1]
}

type fetcher struct{ err error }

func (f *fetcher) Fetch(context.Context, string) (io.ReadCloser, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(bytes.NewReader([]byte("img"))), "photos/file_1.jpg", nil
}

type harness struct {
	svc      *service.TicketService
	sessions *conversation.MemoryStore
	out      *outbox
	fetch    *fetcher
	driver   *Driver
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, func(s *service.TicketService) service.TicketServicer { return s })
}

// newHarnessWith lets a test wrap the store the driver talks to.
func newHarnessWith(t *testing.T, wrap func(*service.TicketService) service.TicketServicer) *harness {
	t.Helper()
	h := &harness{
		svc:      service.NewTicketService(testutil.NewDB(t)),
		sessions: conversation.NewMemoryStore(),
		out:      &outbox{},
		fetch:    &fetcher{},
	}
	intake := media.NewIntake(t.TempDir(), h.fetch, h.svc)
	h.driver = NewDriver(wrap(h.svc), h.sessions, intake, h.out, metrics.New(), logger.Discard())
	return h
}

var errStoreDown = errors.New("database is locked")

// brokenWrites fails the selected ticket mutations and passes everything
// else through.
type brokenWrites struct {
	service.TicketServicer
	create, describe bool
}

func (b brokenWrites) CreateTicketWithMessage(ctx context.Context, userID int64, description string, category model.TicketCategory, msg service.NewMessage) (*model.Ticket, error) {
	if b.create {
		return nil, errStoreDown
	}
	return b.TicketServicer.CreateTicketWithMessage(ctx, userID, description, category, msg)
}

func (b brokenWrites) UpdateTicketDescription(ctx context.Context, id uint64, text string) error {
	if b.describe {
		return errStoreDown
	}
	return b.TicketServicer.UpdateTicketDescription(ctx, id, text)
}

func (h *harness) text(s string) {
	h.driver.Handle(context.Background(), conversation.Event{UserID: userID, FirstName: "Ivan", Text: s}, userID)
}

func (h *harness) file(fileID string) {
	h.driver.Handle(context.Background(), conversation.Event{
		UserID:    userID,
		FirstName: "Ivan",
		File:      &conversation.Attachment{FileID: fileID, Type: model.MessageTypePhoto},
	}, userID)
}

func (h *harness) session(t *testing.T) conversation.Session {
	s, err := h.sessions.Load(context.Background(), userID)
	require.NoError(t, err)
	return s
}

func TestReportViolationCreatesTicket(t *testing.T) {
	h := newHarness(t)
	h.text(conversation.BtnReportIssue)

	s := h.session(t)
	assert.Equal(t, conversation.StateReportIssue, s.State)
	require.NotZero(t, s.TicketID)

	tk, err := h.svc.GetTicket(context.Background(), s.TicketID)
	require.NoError(t, err)
	assert.Equal(t, model.CategoryViolationReport, tk.TicketType)
	assert.Equal(t, model.TicketStatusOpen, tk.Status)
	assert.Equal(t, "Ivan", tk.FirstName)
	assert.Contains(t, h.out.last(), "#")
}

func TestAttachmentInReportIssue(t *testing.T) {
	h := newHarness(t)
	h.text(conversation.BtnReportIssue)
	ticketID := h.session(t).TicketID

	h.file("abc")

	assert.Equal(t, conversation.Session{State: conversation.StateReportIssue, TicketID: ticketID}, h.session(t))
	items, err := h.svc.ListMedia(context.Background(), ticketID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, model.MessageTypePhoto, items[0].FileType)
	assert.Equal(t, "abc", items[0].FileID)
}

func TestFinishClearsSessionAndKeepsTicket(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.text(conversation.BtnReportIssue)
	h.text("broken fence")
	s := h.session(t)
	require.Equal(t, conversation.StateWaitingMediaDecision, s.State)
	before, err := h.svc.GetTicket(ctx, s.TicketID)
	require.NoError(t, err)
	assert.Equal(t, "broken fence", before.Description)

	h.text(conversation.BtnAttachNo)

	assert.Equal(t, conversation.Session{State: conversation.StateMainMenu}, h.session(t))
	after, err := h.svc.GetTicket(ctx, s.TicketID)
	require.NoError(t, err)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Description, after.Description)
	assert.Nil(t, after.ResolvedAt)
}

func TestMediaFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.text(conversation.BtnReportIssue)
	before := h.session(t)

	h.fetch.err = &errs.TransportError{Op: "download", Err: errors.New("timeout")}
	h.file("abc")

	assert.Equal(t, before, h.session(t))
	assert.Equal(t, conversation.TextMediaFailed, h.out.last())
	items, err := h.svc.ListMedia(context.Background(), before.TicketID)
	require.NoError(t, err)
	assert.Empty(t, items)

	h.fetch.err = nil
	h.file("abc")
	items, err = h.svc.ListMedia(context.Background(), before.TicketID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestManagerRequestRecordsConversation(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.text(conversation.BtnContactManager)
	h.text("need a new badge")

	assert.Equal(t, conversation.StateMainMenu, h.session(t).State)
	tickets, err := h.svc.ListTickets(ctx, "")
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, model.CategoryManagerRequest, tickets[0].TicketType)
	assert.Equal(t, "need a new badge", tickets[0].Description)

	conv, err := h.svc.ListConversation(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, conversation.BtnContactManager, conv[0].MessageText)
	assert.False(t, conv[1].IsFromAdmin)
	assert.Contains(t, h.out.last(), "принято")
}

func TestInfoSelectionCreatesNoTicket(t *testing.T) {
	h := newHarness(t)
	h.text(conversation.BtnSchedule)

	tickets, err := h.svc.ListTickets(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, tickets)
	assert.Contains(t, h.out.last(), "График")
}

type panicStore struct{ conversation.SessionStore }

func (panicStore) Load(context.Context, int64) (conversation.Session, error) {
	panic("boom")
}

func TestHandleRecoversFromPanic(t *testing.T) {
	h := newHarness(t)
	d := NewDriver(h.svc, panicStore{}, nil, h.out, metrics.New(), logger.Discard())

	assert.NotPanics(t, func() {
		d.Handle(context.Background(), conversation.Event{UserID: userID, Text: "hi"}, userID)
	})
	assert.Equal(t, conversation.TextFailed, h.out.last())
}

func TestStoreFailureInManagerDialogKeepsState(t *testing.T) {
	h := newHarnessWith(t, func(s *service.TicketService) service.TicketServicer {
		return brokenWrites{TicketServicer: s, create: true}
	})
	h.text(conversation.BtnContactManager)
	before := h.session(t)
	require.Equal(t, conversation.StateManagerDialog, before.State)

	h.text("need a new badge")

	assert.Equal(t, before, h.session(t))
	assert.Equal(t, conversation.TextFailed, h.out.last())
	tickets, err := h.svc.ListTickets(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestStoreFailureInReportIssueKeepsState(t *testing.T) {
	h := newHarnessWith(t, func(s *service.TicketService) service.TicketServicer {
		return brokenWrites{TicketServicer: s, describe: true}
	})
	h.text(conversation.BtnReportIssue)
	before := h.session(t)
	require.Equal(t, conversation.StateReportIssue, before.State)
	require.NotZero(t, before.TicketID)

	h.text("broken fence")

	assert.Equal(t, before, h.session(t))
	assert.Equal(t, conversation.TextFailed, h.out.last())
	tk, err := h.svc.GetTicket(context.Background(), before.TicketID)
	require.NoError(t, err)
	assert.Empty(t, tk.Description)
}

func TestAttachmentToClosedReportResetsSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.text(conversation.BtnReportIssue)
	ticketID := h.session(t).TicketID
	_, err := h.svc.UpdateTicketStatus(ctx, ticketID, model.TicketStatusInProgress, nil)
	require.NoError(t, err)

	h.file("abc")

	assert.Equal(t, conversation.Session{State: conversation.StateMainMenu}, h.session(t))
	assert.Equal(t, conversation.TextReportClosed, h.out.last())
	items, err := h.svc.ListMedia(ctx, ticketID)
	require.NoError(t, err)
	assert.Empty(t, items)
}
