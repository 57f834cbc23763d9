package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/supportbot/internal/apperr"
	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/model"
	"github.com/psds-microservice/supportbot/internal/service"
)

// Replier delivers a staff message to the owner of a ticket.
type Replier interface {
	SendToTicketOwner(ctx context.Context, ticketID uint64, text string) (*model.Message, error)
}

type TicketHandler struct {
	svc     service.TicketServicer
	replies Replier
}

func NewTicketHandler(svc service.TicketServicer, replies Replier) *TicketHandler {
	return &TicketHandler{svc: svc, replies: replies}
}

func (h *TicketHandler) List(c *gin.Context) {
	status, err := parseStatusFilter(c.Query("status"))
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	items, err := h.svc.ListTickets(c.Request.Context(), status)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tickets": items,
		"total":   len(items),
	})
}

func (h *TicketHandler) Get(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	d, err := service.LoadTicketDetail(c.Request.Context(), h.svc, id)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

type updateTicketRequest struct {
	Status     string  `json:"status" form:"status"`
	AdminNotes *string `json:"admin_notes" form:"admin_notes"`
}

func (h *TicketHandler) Update(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req updateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.BadRequest("INVALID_BODY", "invalid body"))
		return
	}
	if req.Status == "" {
		apperr.Abort(c, apperr.BadRequest("STATUS_REQUIRED", "status is required"))
		return
	}
	t, err := h.svc.UpdateTicketStatus(c.Request.Context(), id, model.TicketStatus(req.Status), req.AdminNotes)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// SendMessage отправляет сообщение сотрудника в чат автора тикета.
func (h *TicketHandler) SendMessage(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Abort(c, apperr.BadRequest("INVALID_BODY", "invalid body"))
		return
	}
	m, err := h.replies.SendToTicketOwner(c.Request.Context(), id, req.Message)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Conversation возвращает переписку автора тикета.
func (h *TicketHandler) Conversation(c *gin.Context) {
	id, ok := ticketID(c)
	if !ok {
		return
	}
	limit := service.DefaultConversationLimit
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	t, err := h.svc.GetTicket(c.Request.Context(), id)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	msgs, err := h.svc.ListConversation(c.Request.Context(), t.UserID, limit)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"user_id":  t.UserID,
		"messages": msgs,
	})
}

func (h *TicketHandler) Stats(c *gin.Context) {
	st, err := h.svc.SystemStats(c.Request.Context())
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *TicketHandler) Users(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": len(users),
	})
}

func ticketID(c *gin.Context) (uint64, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		apperr.Abort(c, apperr.BadRequest("INVALID_ID", "invalid id"))
		return 0, false
	}
	return id, true
}

func parseID(v string) (uint64, error) {
	id, err := strconv.ParseUint(v, 10, 64)
	if err == nil && id == 0 {
		err = errors.New("id must be positive")
	}
	return id, err
}

// parseStatusFilter maps "" and "all" to no filter.
func parseStatusFilter(v string) (model.TicketStatus, error) {
	v = strings.TrimSpace(v)
	if v == "" || v == "all" {
		return "", nil
	}
	s := model.TicketStatus(v)
	if !s.Valid() {
		return "", errs.ErrInvalidStatus
	}
	return s, nil
}
