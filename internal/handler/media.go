package handler

import (
	"errors"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/psds-microservice/supportbot/internal/apperr"
	"github.com/psds-microservice/supportbot/internal/errs"
	"github.com/psds-microservice/supportbot/internal/media"
	"github.com/psds-microservice/supportbot/internal/service"
)

// MediaHandler serves stored attachments to signed-in staff.
type MediaHandler struct {
	svc  service.TicketServicer
	root string
}

func NewMediaHandler(svc service.TicketServicer, root string) *MediaHandler {
	return &MediaHandler{svc: svc, root: root}
}

func (h *MediaHandler) Get(c *gin.Context) {
	id, err := parseID(c.Param("id"))
	if err != nil {
		apperr.Abort(c, apperr.BadRequest("INVALID_ID", "invalid id"))
		return
	}
	m, err := h.svc.GetMedia(c.Request.Context(), id)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	path, err := media.Resolve(h.root, m.FilePath)
	if err != nil {
		apperr.Abort(c, err)
		return
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			apperr.Abort(c, errs.ErrMediaNotFound)
			return
		}
		apperr.Abort(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=3600")
	c.File(path)
}
