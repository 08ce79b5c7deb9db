package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// chatStatus answers the landing page behind a route's QR code
func (s *Server) chatStatus(c *gin.Context) {
	route, err := s.repo.GetRoute(c.Request.Context(), c.Param("routeId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, s.store.Status(route))
}
