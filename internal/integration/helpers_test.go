package integration

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"bustogether/internal/app"
	"bustogether/internal/clock"
	"bustogether/internal/config"
	"bustogether/internal/observability"
	"bustogether/pkg/types"
)

// monday is Monday 2024-01-01 in UTC
func monday(hour, minute int) time.Time {
	return time.Date(2024, 1, 1, hour, minute, 0, 0, time.UTC)
}

type env struct {
	app   *app.Application
	clock *clock.Fake
	base  string
}

// startApp boots the full stack on a free port with route line-5 open
// on Mondays 08:00-09:00 and the clock at 08:15
func startApp(t *testing.T) *env {
	t.Helper()
	observability.SetOutput(io.Discard)

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "integration.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	cfg.Scheduler.Timezone = "UTC"
	cfg.Scheduler.Interval = time.Hour
	cfg.Admin.Token = "admin-secret"

	fake := clock.NewFake(monday(8, 15))
	application, err := app.NewApplication(cfg, app.WithClock(fake))
	require.NoError(t, err)

	ctx := context.Background()
	repo := application.Repository()
	require.NoError(t, repo.CreateRoute(ctx, &types.Route{ID: "line-5", Name: "Line 5"}))
	require.NoError(t, repo.CreateSchedule(ctx, &types.Schedule{
		RouteID: "line-5", Days: []int{1}, Start: "08:00", End: "09:00", ChatName: "Morning ride", Active: true,
	}))

	require.NoError(t, application.Start(ctx))
	t.Cleanup(func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = application.Stop(stopCtx)
	})
	require.True(t, application.Store().Exists("line-5"), "initial tick should open the session")

	return &env{app: application, clock: fake, base: application.Addr()}
}

type client struct {
	t    *testing.T
	conn *websocket.Conn
}

func (e *env) dial(t *testing.T) *client {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial("ws://"+e.base+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{t: t, conn: conn}
}

func (e *env) admin(t *testing.T, method, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, "http://"+e.base+path, nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer admin-secret")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func (c *client) send(req types.Inbound) {
	c.t.Helper()
	require.NoError(c.t, c.conn.WriteJSON(req))
}

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// next reads events until one of the wanted type arrives
func (c *client) next(eventType string) json.RawMessage {
	c.t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		require.NoError(c.t, c.conn.SetReadDeadline(deadline))
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %s", eventType)

		var ev received
		require.NoError(c.t, json.Unmarshal(data, &ev))
		if ev.Type == eventType {
			return ev.Data
		}
	}
}

func (c *client) notice() string {
	c.t.Helper()
	var payload types.NoticePayload
	require.NoError(c.t, json.Unmarshal(c.next(types.EventErrorNotice), &payload))
	return payload.Message
}

func (c *client) join(username string) types.JoinedPayload {
	c.t.Helper()
	c.send(types.Inbound{Type: types.RequestJoin, RouteID: "line-5", Username: username})
	var payload types.JoinedPayload
	require.NoError(c.t, json.Unmarshal(c.next(types.EventJoined), &payload))
	return payload
}

func (c *client) say(text string) {
	c.t.Helper()
	c.send(types.Inbound{Type: types.RequestSendMessage, Text: text})
}

func (c *client) message() types.MessageView {
	c.t.Helper()
	var view types.MessageView
	require.NoError(c.t, json.Unmarshal(c.next(types.EventNewMessage), &view))
	return view
}

// closed drains remaining frames and expects the server's normal close
func (c *client) closed() {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			require.True(c.t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "expected server close, got %v", err)
			return
		}
	}
}
