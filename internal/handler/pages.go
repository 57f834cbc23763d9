package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/supportbot/internal/apperr"
	"github.com/psds-microservice/supportbot/internal/auth"
	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/logger"
	"github.com/psds-microservice/supportbot/internal/model"
	"github.com/psds-microservice/supportbot/internal/service"
)

// PageHandler renders the server-side dashboard.
type PageHandler struct {
	svc     service.TicketServicer
	replies Replier
	log     *logger.Logger
}

func NewPageHandler(svc service.TicketServicer, replies Replier, log *logger.Logger) *PageHandler {
	return &PageHandler{svc: svc, replies: replies, log: log}
}

var flashes = map[string]string{
	"status": "Статус обновлен",
	"sent":   "Сообщение отправлено",
}

func (h *PageHandler) page(c *gin.Context, name, title string, data gin.H) {
	data["Title"] = title
	data["Staff"] = auth.Staff(c)
	if f, ok := flashes[c.Query("ok")]; ok {
		data["Flash"] = f
	}
	if e := c.Query("err"); e != "" && data["Error"] == nil {
		data["Error"] = e
	}
	c.HTML(http.StatusOK, name, data)
}

func (h *PageHandler) fail(c *gin.Context, err error) {
	appErr := apperr.FromError(err)
	_ = c.Error(err)
	c.String(appErr.StatusCode, appErr.Message)
}

func (h *PageHandler) Dashboard(c *gin.Context) {
	ctx := c.Request.Context()
	st, err := h.svc.SystemStats(ctx)
	if err != nil {
		h.fail(c, err)
		return
	}
	open, err := h.svc.ListTickets(ctx, model.TicketStatusOpen)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, "dashboard.html", "Главная", gin.H{"Stats": st, "Open": open})
}

func (h *PageHandler) Tickets(c *gin.Context) {
	status, err := parseStatusFilter(c.Query("status"))
	if err != nil {
		h.fail(c, err)
		return
	}
	items, err := h.svc.ListTickets(c.Request.Context(), status)
	if err != nil {
		h.fail(c, err)
		return
	}
	current := string(status)
	if current == "" {
		current = "all"
	}
	h.page(c, "tickets.html", "Обращения", gin.H{"Tickets": items, "Status": current})
}

func (h *PageHandler) Ticket(c *gin.Context) {
	id, ok := pageTicketID(c)
	if !ok {
		return
	}
	d, err := service.LoadTicketDetail(c.Request.Context(), h.svc, id)
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, "ticket.html", fmt.Sprintf("Обращение #%d", id), gin.H{"Detail": d})
}

func (h *PageHandler) UpdateStatus(c *gin.Context) {
	id, ok := pageTicketID(c)
	if !ok {
		return
	}
	var notes *string
	if v, ok := c.GetPostForm("admin_notes"); ok && strings.TrimSpace(v) != "" {
		notes = &v
	}
	_, err := h.svc.UpdateTicketStatus(c.Request.Context(), id, model.TicketStatus(c.PostForm("status")), notes)
	switch {
	case err == nil:
		logger.FromGin(c, h.log).Info("ticket status updated", "ticket_id", id, "status", c.PostForm("status"), "staff", auth.Staff(c))
		h.back(c, id, "ok", "status")
	case errors.Is(err, errs.ErrInvalidStatus):
		h.back(c, id, "err", err.Error())
	default:
		h.fail(c, err)
	}
}

func (h *PageHandler) Reply(c *gin.Context) {
	id, ok := pageTicketID(c)
	if !ok {
		return
	}
	_, err := h.replies.SendToTicketOwner(c.Request.Context(), id, c.PostForm("message"))
	switch {
	case err == nil:
		h.back(c, id, "ok", "sent")
	case errors.Is(err, errs.ErrTicketNotFound):
		h.fail(c, err)
	default:
		logger.FromGin(c, h.log).LogError(err, "staff reply failed", "ticket_id", id)
		h.back(c, id, "err", "Не удалось отправить сообщение: "+err.Error())
	}
}

func (h *PageHandler) Users(c *gin.Context) {
	users, err := h.svc.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.page(c, "users.html", "Пользователи", gin.H{"Users": users})
}

func (h *PageHandler) back(c *gin.Context, id uint64, key, value string) {
	c.Redirect(http.StatusSeeOther, fmt.Sprintf("/tickets/%d?%s=%s", id, key, url.QueryEscape(value)))
}

func pageTicketID(c *gin.Context) (uint64, bool) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		c.String(http.StatusBadRequest, "invalid id")
		c.Abort()
		return 0, false
	}
	return id, true
}
