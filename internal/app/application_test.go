package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bustogether/internal/config"
	"bustogether/internal/observability"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	observability.SetOutput(io.Discard)

	cfg := config.DefaultConfig()
	cfg.Database.Path = filepath.Join(t.TempDir(), "app.db")
	cfg.HTTP.Host = "127.0.0.1"
	cfg.HTTP.Port = 0
	return cfg
}

func TestNewApplication_InvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Timezone = "Mars/Olympus"

	_, err := NewApplication(cfg)
	assert.Error(t, err)
}

func TestApplication_StartServeStop(t *testing.T) {
	application, err := NewApplication(testConfig(t))
	require.NoError(t, err)

	require.NoError(t, application.Start(context.Background()))
	assert.NotEqual(t, "127.0.0.1:0", application.Addr())

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + application.Addr() + "/health")
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])

	resp, err = client.Get("http://" + application.Addr() + "/api/chat/status/nowhere")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, application.Stop(ctx))
	// Stopping twice is harmless
	require.NoError(t, application.Stop(ctx))

	_, err = client.Get("http://" + application.Addr() + "/health")
	assert.Error(t, err)
}

func TestApplication_StopClosesOpenSockets(t *testing.T) {
	application, err := NewApplication(testConfig(t))
	require.NoError(t, err)
	require.NoError(t, application.Start(context.Background()))

	ws, _, err := gorilla.DefaultDialer.Dial("ws://"+application.Addr()+"/ws", nil)
	require.NoError(t, err)
	defer func() { _ = ws.Close() }()

	require.Eventually(t, func() bool {
		return application.Connections().Count() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, application.Stop(ctx))

	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = ws.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNormalClosure), "expected normal closure, got %v", err)

	assert.Eventually(t, func() bool {
		return application.Connections().Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDatabaseConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database.Timeout = 42 * time.Second

	dbConfig := DatabaseConfig(cfg)
	assert.Equal(t, cfg.Database.Path, dbConfig.DatabasePath)
	assert.Equal(t, 42*time.Second, dbConfig.ConnMaxIdleTime)
	assert.NoError(t, dbConfig.Validate())
}
