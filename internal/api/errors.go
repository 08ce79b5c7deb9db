package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"bustogether/internal/session"
	"bustogether/pkg/interfaces"
	"bustogether/pkg/types"
)

var errInvalidBody = errors.New("invalid request body")

var validationErrors = []error{
	types.ErrInvalidRouteID,
	types.ErrInvalidRouteName,
	types.ErrInvalidDays,
	types.ErrInvalidClock,
	types.ErrWindowOrder,
	types.ErrInvalidChatName,
	types.ErrMissingScheduleID,
	errInvalidBody,
}

func errorBody(message string) gin.H {
	return gin.H{"error": message}
}

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrRouteNotFound),
		errors.Is(err, interfaces.ErrScheduleNotFound),
		errors.Is(err, session.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, interfaces.ErrRouteExists):
		return http.StatusConflict
	}
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	return http.StatusInternalServerError
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, errorBody("internal error"))
		return
	}
	c.JSON(status, errorBody(err.Error()))
}
