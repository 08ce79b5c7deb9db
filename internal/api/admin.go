package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"bustogether/internal/session"
	"bustogether/pkg/types"
)

type routeRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type scheduleRequest struct {
	RouteID  string `json:"routeId"`
	Days     []int  `json:"daysOfWeek"`
	Start    string `json:"startTime"`
	End      string `json:"endTime"`
	ChatName string `json:"chatName"`
	IsActive *bool  `json:"isActive"`
}

func (r *scheduleRequest) schedule() *types.Schedule {
	active := true
	if r.IsActive != nil {
		active = *r.IsActive
	}
	return &types.Schedule{
		RouteID:  r.RouteID,
		Days:     r.Days,
		Start:    r.Start,
		End:      r.End,
		ChatName: r.ChatName,
		Active:   active,
	}
}

type routeWithSchedules struct {
	*types.Route
	Schedules []*types.Schedule `json:"schedules"`
	Chat      types.ChatStatus  `json:"chat"`
}

func bind(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

// Sessions

func (s *Server) listSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": s.store.List()})
}

func (s *Server) getSession(c *gin.Context) {
	detail, err := s.store.Detail(c.Param("routeId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// closeSession force-closes a live session; members are told and disconnected
func (s *Server) closeSession(c *gin.Context) {
	routeID := c.Param("routeId")
	if !s.closer.ForceClose(routeID) {
		s.fail(c, session.ErrSessionNotFound)
		return
	}
	s.logger.Info("session force-closed by operator", "route_id", routeID)
	c.JSON(http.StatusOK, gin.H{"closed": true, "routeId": routeID})
}

// Routes

func (s *Server) listRoutes(c *gin.Context) {
	routes, err := s.repo.ListRoutes(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	if routes == nil {
		routes = []*types.Route{}
	}
	c.JSON(http.StatusOK, gin.H{"routes": routes})
}

func (s *Server) createRoute(c *gin.Context) {
	var req routeRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	route := &types.Route{ID: req.ID, Name: req.Name}
	if err := s.repo.CreateRoute(c.Request.Context(), route); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, route)
}

func (s *Server) getRoute(c *gin.Context) {
	ctx := c.Request.Context()
	route, err := s.repo.GetRoute(ctx, c.Param("routeId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	schedules, err := s.repo.GetSchedulesForRoute(ctx, route.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, routeWithSchedules{Route: route, Schedules: schedules, Chat: s.store.Status(route)})
}

func (s *Server) updateRoute(c *gin.Context) {
	var req routeRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}

	route := &types.Route{ID: c.Param("routeId"), Name: req.Name}
	if err := s.repo.UpdateRoute(c.Request.Context(), route); err != nil {
		s.fail(c, err)
		return
	}
	updated, err := s.repo.GetRoute(c.Request.Context(), route.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

// deleteRoute removes the route with its schedules and ends its live chat
func (s *Server) deleteRoute(c *gin.Context) {
	routeID := c.Param("routeId")
	if err := s.repo.DeleteRoute(c.Request.Context(), routeID); err != nil {
		s.fail(c, err)
		return
	}
	closed := s.closer.ForceClose(routeID)
	s.logger.Info("route deleted", "route_id", routeID, "session_closed", closed)
	c.JSON(http.StatusOK, gin.H{"deleted": true, "sessionClosed": closed})
}

// Schedules

func (s *Server) listRouteSchedules(c *gin.Context) {
	ctx := c.Request.Context()
	routeID := c.Param("routeId")
	if _, err := s.repo.GetRoute(ctx, routeID); err != nil {
		s.fail(c, err)
		return
	}
	schedules, err := s.repo.GetSchedulesForRoute(ctx, routeID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (s *Server) listSchedules(c *gin.Context) {
	schedules, err := s.repo.GetAllSchedules(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedules": schedules})
}

func (s *Server) createSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	req.RouteID = c.Param("routeId")

	schedule := req.schedule()
	if err := s.repo.CreateSchedule(c.Request.Context(), schedule); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, schedule)
}

func (s *Server) getSchedule(c *gin.Context) {
	schedule, err := s.repo.GetSchedule(c.Request.Context(), c.Param("scheduleId"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

// updateSchedule replaces a schedule. A live session keeps the end time it
// opened with; the next tick evaluates the new window.
func (s *Server) updateSchedule(c *gin.Context) {
	ctx := c.Request.Context()
	existing, err := s.repo.GetSchedule(ctx, c.Param("scheduleId"))
	if err != nil {
		s.fail(c, err)
		return
	}

	var req scheduleRequest
	if err := bind(c, &req); err != nil {
		s.fail(c, err)
		return
	}
	if req.RouteID == "" {
		req.RouteID = existing.RouteID
	}

	schedule := req.schedule()
	schedule.ID = existing.ID
	schedule.CreatedAt = existing.CreatedAt
	if err := s.repo.UpdateSchedule(ctx, schedule); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, schedule)
}

func (s *Server) deleteSchedule(c *gin.Context) {
	if err := s.repo.DeleteSchedule(c.Request.Context(), c.Param("scheduleId")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
