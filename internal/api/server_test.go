package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"bustogether/internal/clock"
	"bustogether/internal/database"
	"bustogether/internal/scheduler"
	"bustogether/internal/session"
	dbconfig "bustogether/pkg/database"
	"bustogether/pkg/interfaces/mocks"
	"bustogether/pkg/types"
)

type ServerSuite struct {
	suite.Suite

	repo      *database.Manager
	clock     *clock.Fake
	store     *session.Store
	transport *mocks.RecordingBroadcaster
	scheduler *scheduler.Scheduler
	server    *Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

type connCount int

func (c connCount) Count() int { return int(c) }

func (s *ServerSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *ServerSuite) SetupTest() {
	config := dbconfig.DefaultConfig()
	config.DatabasePath = filepath.Join(s.T().TempDir(), "api.db")
	repo, err := database.NewManager(config)
	s.Require().NoError(err)
	s.repo = repo

	// Monday 2024-01-01 08:15 UTC
	s.clock = clock.NewFake(time.Date(2024, 1, 1, 8, 15, 0, 0, time.UTC))
	s.store = session.NewStore(s.clock, time.UTC)
	s.transport = mocks.NewRecordingBroadcaster()
	s.scheduler = scheduler.New(repo, s.store, s.transport, s.clock, scheduler.Config{Interval: time.Minute, Location: time.UTC})
	s.server = NewServer(Dependencies{
		Repository:  repo,
		Store:       s.store,
		Closer:      s.scheduler,
		Connections: connCount(3),
		AdminToken:  "secret",
	})
}

func (s *ServerSuite) TearDownTest() {
	_ = s.repo.Close()
}

func (s *ServerSuite) do(method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("Authorization", "Bearer secret")
	}
	rec := httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	return rec
}

func (s *ServerSuite) decode(rec *httptest.ResponseRecorder, dst interface{}) {
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

// openLine5 stores route line-5 with a Monday 08:00-09:00 window and opens its session
func (s *ServerSuite) openLine5() {
	ctx := context.Background()
	route := &types.Route{ID: "line-5", Name: "Line 5"}
	s.Require().NoError(s.repo.CreateRoute(ctx, route))
	sched := &types.Schedule{RouteID: "line-5", Days: []int{1}, Start: "08:00", End: "09:00", ChatName: "Morning ride", Active: true}
	s.Require().NoError(s.repo.CreateSchedule(ctx, sched))
	report := s.scheduler.Tick(ctx)
	s.Require().Equal(1, report.Opened)
}

func (s *ServerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil, false)
	s.Equal(http.StatusOK, rec.Code)

	var body map[string]interface{}
	s.decode(rec, &body)
	s.Equal("healthy", body["status"])
	s.EqualValues(3, body["connections"])
	s.EqualValues(0, body["sessions"])
}

func (s *ServerSuite) TestHealth_DatabaseDown() {
	s.Require().NoError(s.repo.Close())
	rec := s.do(http.MethodGet, "/health", nil, false)
	s.Equal(http.StatusServiceUnavailable, rec.Code)
}

func (s *ServerSuite) TestMetricsExposed() {
	rec := s.do(http.MethodGet, "/metrics", nil, false)
	s.Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), "bustogether_active_sessions")
}

func (s *ServerSuite) TestChatStatus() {
	rec := s.do(http.MethodGet, "/api/chat/status/ghost", nil, false)
	s.Equal(http.StatusNotFound, rec.Code)

	s.Require().NoError(s.repo.CreateRoute(context.Background(), &types.Route{ID: "line-9", Name: "Line 9"}))
	rec = s.do(http.MethodGet, "/api/chat/status/line-9", nil, false)
	s.Equal(http.StatusOK, rec.Code)
	var idle types.ChatStatus
	s.decode(rec, &idle)
	s.False(idle.IsActive)
	s.Equal("Line 9", idle.RouteName)
	s.Nil(idle.EndsAt)

	s.openLine5()
	rec = s.do(http.MethodGet, "/api/chat/status/line-5", nil, false)
	var live types.ChatStatus
	s.decode(rec, &live)
	s.True(live.IsActive)
	s.Equal("Morning ride", live.ChatName)
	s.NotEmpty(live.SessionID)
	s.Require().NotNil(live.EndsAt)
	s.True(live.EndsAt.Equal(time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)))
}

func (s *ServerSuite) TestAdminRequiresToken() {
	rec := s.do(http.MethodGet, "/api/admin/sessions", nil, false)
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/sessions", nil)
	req.Header.Set("X-Admin-Token", "secret")
	rec = httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	s.Equal(http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/admin/sessions", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	s.server.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *ServerSuite) TestSessionsListDetailAndForceClose() {
	s.openLine5()
	_, err := s.store.AddParticipant("line-5", "c1", "ann")
	s.Require().NoError(err)
	_, err = s.store.AddMessage("line-5", "c1", "hello")
	s.Require().NoError(err)
	s.transport.Subscribe("line-5", "c1")

	rec := s.do(http.MethodGet, "/api/admin/sessions", nil, true)
	s.Equal(http.StatusOK, rec.Code)
	var list struct {
		Sessions []types.SessionSummary `json:"sessions"`
	}
	s.decode(rec, &list)
	s.Require().Len(list.Sessions, 1)
	s.Equal(45, list.Sessions[0].MinutesRemaining)
	s.Equal(1, list.Sessions[0].ParticipantCount)
	s.Equal(1, list.Sessions[0].MessageCount)

	rec = s.do(http.MethodGet, "/api/admin/sessions/line-5", nil, true)
	s.Equal(http.StatusOK, rec.Code)
	var detail types.SessionDetail
	s.decode(rec, &detail)
	s.Require().Len(detail.Messages, 1)
	s.Equal("hello", detail.Messages[0].Text)

	rec = s.do(http.MethodDelete, "/api/admin/sessions/line-5", nil, true)
	s.Equal(http.StatusOK, rec.Code)
	s.False(s.store.Exists("line-5"))
	s.Contains(s.transport.Evicted(), "line-5")
	s.Len(s.transport.EventsFor("c1", types.EventChatClosed), 1)

	rec = s.do(http.MethodDelete, "/api/admin/sessions/line-5", nil, true)
	s.Equal(http.StatusNotFound, rec.Code)
	rec = s.do(http.MethodGet, "/api/admin/sessions/line-5", nil, true)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestRouteCRUD() {
	rec := s.do(http.MethodPost, "/api/admin/routes", routeRequest{ID: "line-5", Name: "Line 5"}, true)
	s.Equal(http.StatusCreated, rec.Code)

	rec = s.do(http.MethodPost, "/api/admin/routes", routeRequest{ID: "line-5", Name: "again"}, true)
	s.Equal(http.StatusConflict, rec.Code)

	rec = s.do(http.MethodPost, "/api/admin/routes", routeRequest{ID: "no spaces", Name: "x"}, true)
	s.Equal(http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/routes", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer secret")
	raw := httptest.NewRecorder()
	s.server.ServeHTTP(raw, req)
	s.Equal(http.StatusBadRequest, raw.Code)

	rec = s.do(http.MethodPut, "/api/admin/routes/line-5", routeRequest{Name: "Express 5"}, true)
	s.Equal(http.StatusOK, rec.Code)
	var updated types.Route
	s.decode(rec, &updated)
	s.Equal("Express 5", updated.Name)

	rec = s.do(http.MethodGet, "/api/admin/routes", nil, true)
	var list struct {
		Routes []types.Route `json:"routes"`
	}
	s.decode(rec, &list)
	s.Len(list.Routes, 1)

	rec = s.do(http.MethodGet, "/api/admin/routes/ghost", nil, true)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestDeleteRouteClosesLiveSession() {
	s.openLine5()

	rec := s.do(http.MethodDelete, "/api/admin/routes/line-5", nil, true)
	s.Equal(http.StatusOK, rec.Code)
	var body map[string]interface{}
	s.decode(rec, &body)
	s.Equal(true, body["sessionClosed"])
	s.False(s.store.Exists("line-5"))

	schedules, err := s.repo.GetAllSchedules(context.Background())
	s.Require().NoError(err)
	s.Empty(schedules)

	rec = s.do(http.MethodDelete, "/api/admin/routes/line-5", nil, true)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *ServerSuite) TestScheduleCRUD() {
	s.Require().NoError(s.repo.CreateRoute(context.Background(), &types.Route{ID: "line-5", Name: "Line 5"}))

	req := scheduleRequest{Days: []int{1, 3}, Start: "17:00", End: "18:30", ChatName: "Evening"}
	rec := s.do(http.MethodPost, "/api/admin/routes/line-5/schedules", req, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	var created types.Schedule
	s.decode(rec, &created)
	s.NotEmpty(created.ID)
	s.True(created.Active)
	s.Equal("line-5", created.RouteID)

	wraps := scheduleRequest{Days: []int{5}, Start: "23:00", End: "01:00", ChatName: "Night"}
	rec = s.do(http.MethodPost, "/api/admin/routes/line-5/schedules", wraps, true)
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPost, "/api/admin/routes/ghost/schedules", req, true)
	s.Equal(http.StatusNotFound, rec.Code)

	inactive := false
	req.IsActive = &inactive
	rec = s.do(http.MethodPut, "/api/admin/schedules/"+created.ID, req, true)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/admin/schedules/"+created.ID, nil, true)
	var fetched types.Schedule
	s.decode(rec, &fetched)
	s.False(fetched.Active)
	s.Equal([]int{1, 3}, fetched.Days)

	rec = s.do(http.MethodGet, "/api/admin/routes/line-5/schedules", nil, true)
	var forRoute struct {
		Schedules []types.Schedule `json:"schedules"`
	}
	s.decode(rec, &forRoute)
	s.Len(forRoute.Schedules, 1)

	rec = s.do(http.MethodGet, "/api/admin/schedules", nil, true)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodDelete, "/api/admin/schedules/"+created.ID, nil, true)
	s.Equal(http.StatusOK, rec.Code)
	rec = s.do(http.MethodGet, "/api/admin/schedules/"+created.ID, nil, true)
	s.Equal(http.StatusNotFound, rec.Code)
}

func TestAdminOpenWithoutToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := session.NewStore(clock.NewFake(time.Now()), time.UTC)
	server := NewServer(Dependencies{Store: store})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/sessions", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusFor(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, statusFor(types.ErrWindowOrder))
	require.Equal(t, http.StatusNotFound, statusFor(session.ErrSessionNotFound))
	require.Equal(t, http.StatusInternalServerError, statusFor(assert.AnError))
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)
	server := NewServer(Dependencies{Store: session.NewStore(clock.NewFake(time.Now()), time.UTC)})

	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/chat/status/line-5", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
