package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/supportbot/internal/errs"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func New(statusCode int, code, message string) *AppError {
	return &AppError{StatusCode: statusCode, Code: code, Message: message}
}

func BadRequest(code, message string) *AppError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *AppError {
	return New(http.StatusUnauthorized, "UNAUTHORIZED", message)
}

func NotFound(code, message string) *AppError {
	return New(http.StatusNotFound, code, message)
}

func TooManyRequests(message string) *AppError {
	return New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", message)
}

// FromError maps domain errors onto HTTP errors; unknown errors become 500.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, errs.ErrTicketNotFound):
		return NotFound("TICKET_NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrUserNotFound):
		return NotFound("USER_NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrMediaNotFound):
		return NotFound("MEDIA_NOT_FOUND", err.Error())
	case errors.Is(err, errs.ErrInvalidStatus):
		return BadRequest("INVALID_STATUS", err.Error())
	case errors.Is(err, errs.ErrTicketNotOpen):
		return New(http.StatusConflict, "TICKET_NOT_OPEN", err.Error())
	case errors.Is(err, errs.ErrEmptyMessage):
		return BadRequest("EMPTY_MESSAGE", err.Error())
	case errors.Is(err, errs.ErrTransportUnavailable):
		return New(http.StatusServiceUnavailable, "TRANSPORT_UNAVAILABLE", err.Error())
	case errs.IsTransport(err):
		return New(http.StatusBadGateway, "TRANSPORT_FAILED", err.Error())
	}
	return New(http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}

// Abort writes err as the JSON error body and stops the handler chain.
func Abort(c *gin.Context, err error) {
	appErr := FromError(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.StatusCode, gin.H{
		"error": gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
		},
	})
}
