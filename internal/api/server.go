package api

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"bustogether/internal/observability"
	"bustogether/internal/session"
	"bustogether/pkg/interfaces"
)

// SessionCloser ends a live session on operator request
type SessionCloser interface {
	ForceClose(routeID string) bool
}

// ConnectionCounter reports live transport connections for the health endpoint
type ConnectionCounter interface {
	Count() int
}

// Dependencies are the components the HTTP surface reads from and acts on
type Dependencies struct {
	Repository  interfaces.RouteRepository
	Store       *session.Store
	Closer      SessionCloser
	Connections ConnectionCounter
	AdminToken  string
}

// Server is the HTTP surface: landing-page status, admin views and record management
// ARCHITECTURAL DISCOVERY: HTTP API layer serves as pure interface between external clients
// and internal components; no chat logic lives here
type Server struct {
	repo        interfaces.RouteRepository
	store       *session.Store
	closer      SessionCloser
	connections ConnectionCounter
	adminToken  string

	engine *gin.Engine
	logger *slog.Logger
}

// NewServer builds the gin engine and registers every route
func NewServer(deps Dependencies) *Server {
	s := &Server{
		repo:        deps.Repository,
		store:       deps.Store,
		closer:      deps.Closer,
		connections: deps.Connections,
		adminToken:  deps.AdminToken,
		engine:      gin.New(),
		logger:      observability.WithComponent("api"),
	}

	s.engine.Use(gin.Recovery(), s.requestLogger(), corsMiddleware())
	s.setupRoutes()
	return s
}

// ARCHITECTURAL DISCOVERY: Route setup follows REST conventions; admin routes share one
// group so the token check cannot be forgotten on a new endpoint
func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.healthCheck)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	chat := s.engine.Group("/api/chat")
	chat.GET("/status/:routeId", s.chatStatus)

	admin := s.engine.Group("/api/admin", s.adminAuth())
	admin.GET("/sessions", s.listSessions)
	admin.GET("/sessions/:routeId", s.getSession)
	admin.DELETE("/sessions/:routeId", s.closeSession)
	admin.POST("/sessions/:routeId/close", s.closeSession)

	admin.GET("/routes", s.listRoutes)
	admin.POST("/routes", s.createRoute)
	admin.GET("/routes/:routeId", s.getRoute)
	admin.PUT("/routes/:routeId", s.updateRoute)
	admin.DELETE("/routes/:routeId", s.deleteRoute)
	admin.GET("/routes/:routeId/schedules", s.listRouteSchedules)
	admin.POST("/routes/:routeId/schedules", s.createSchedule)

	admin.GET("/schedules", s.listSchedules)
	admin.GET("/schedules/:scheduleId", s.getSchedule)
	admin.PUT("/schedules/:scheduleId", s.updateSchedule)
	admin.DELETE("/schedules/:scheduleId", s.deleteSchedule)
}

// Mount attaches a plain handler for GET requests, used for the WebSocket endpoint
func (s *Server) Mount(path string, handler http.HandlerFunc) {
	s.engine.GET(path, gin.WrapF(handler))
}

// FUNCTIONAL DISCOVERY: Implement http.Handler interface for integration with standard HTTP server
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) healthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	response := gin.H{
		"status":      "healthy",
		"database":    "ok",
		"sessions":    s.store.Count(),
		"connections": 0,
		"timestamp":   time.Now().UTC(),
	}
	if s.connections != nil {
		response["connections"] = s.connections.Count()
	}

	if err := s.repo.HealthCheck(ctx); err != nil {
		s.logger.Error("health check failed", "error", err)
		response["status"] = "unhealthy"
		response["database"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// adminAuth accepts "Authorization: Bearer <token>" or "X-Admin-Token: <token>".
// With no token configured the admin surface is open.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminToken == "" {
			c.Next()
			return
		}

		presented := c.GetHeader("X-Admin-Token")
		if auth := c.GetHeader("Authorization"); presented == "" && strings.HasPrefix(auth, "Bearer ") {
			presented = strings.TrimPrefix(auth, "Bearer ")
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorBody("unauthorized"))
			return
		}
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// corsMiddleware lets the landing page poll chat status from another origin
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Admin-Token")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
