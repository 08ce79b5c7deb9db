package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dbconfig "bustogether/pkg/database"
	"bustogether/pkg/interfaces"
	"bustogether/pkg/types"
)

func setupTestDB(t *testing.T) *Manager {
	t.Helper()

	config := &dbconfig.Config{
		DatabasePath:    filepath.Join(t.TempDir(), "test.db"),
		MaxConnections:  4,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: time.Minute,
	}

	manager, err := NewManager(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })
	return manager
}

func seedRoute(t *testing.T, m *Manager, id string) *types.Route {
	t.Helper()
	route := &types.Route{ID: id, Name: "Line " + id}
	require.NoError(t, m.CreateRoute(context.Background(), route))
	return route
}

func weekdaySchedule(routeID, start, end string) *types.Schedule {
	return &types.Schedule{
		RouteID:  routeID,
		Days:     []int{1, 2, 3, 4, 5},
		Start:    start,
		End:      end,
		ChatName: "Morning commute",
		Active:   true,
	}
}

func TestNewManager_RejectsInvalidConfig(t *testing.T) {
	_, err := NewManager(&dbconfig.Config{})
	assert.Error(t, err)
}

func TestNewManager_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	config := dbconfig.DefaultConfig()
	config.DatabasePath = path

	first, err := NewManager(config)
	require.NoError(t, err)
	seedRoute(t, first, "line-5")
	require.NoError(t, first.Close())

	second, err := NewManager(config)
	require.NoError(t, err)
	defer second.Close()

	route, err := second.GetRoute(context.Background(), "line-5")
	require.NoError(t, err)
	assert.Equal(t, "Line line-5", route.Name)
}

func TestRoutes_CRUD(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()

	seedRoute(t, m, "line-5")
	seedRoute(t, m, "line-12")

	err := m.CreateRoute(ctx, &types.Route{ID: "line-5", Name: "dup"})
	assert.ErrorIs(t, err, interfaces.ErrRouteExists)

	err = m.CreateRoute(ctx, &types.Route{ID: "bad id!", Name: "x"})
	assert.ErrorIs(t, err, types.ErrInvalidRouteID)

	routes, err := m.ListRoutes(ctx)
	require.NoError(t, err)
	require.Len(t, routes, 2)
	assert.Equal(t, "line-12", routes[0].ID)
	assert.False(t, routes[0].CreatedAt.IsZero())

	require.NoError(t, m.UpdateRoute(ctx, &types.Route{ID: "line-5", Name: "Express 5"}))
	route, err := m.GetRoute(ctx, "line-5")
	require.NoError(t, err)
	assert.Equal(t, "Express 5", route.Name)

	assert.ErrorIs(t, m.UpdateRoute(ctx, &types.Route{ID: "ghost", Name: "x"}), interfaces.ErrRouteNotFound)

	require.NoError(t, m.DeleteRoute(ctx, "line-5"))
	_, err = m.GetRoute(ctx, "line-5")
	assert.ErrorIs(t, err, interfaces.ErrRouteNotFound)
	assert.ErrorIs(t, m.DeleteRoute(ctx, "line-5"), interfaces.ErrRouteNotFound)
}

func TestSchedules_CRUD(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	seedRoute(t, m, "line-5")

	schedule := weekdaySchedule("line-5", "07:30", "09:00")
	require.NoError(t, m.CreateSchedule(ctx, schedule))
	require.NotEmpty(t, schedule.ID)

	got, err := m.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3, 4, 5}, got.Days)
	assert.Equal(t, "07:30", got.Start)
	assert.Equal(t, "09:00", got.End)
	assert.True(t, got.Active)

	got.Active = false
	got.Days = []int{0, 6}
	require.NoError(t, m.UpdateSchedule(ctx, got))

	updated, err := m.GetSchedule(ctx, schedule.ID)
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.Equal(t, []int{0, 6}, updated.Days)

	require.NoError(t, m.DeleteSchedule(ctx, schedule.ID))
	_, err = m.GetSchedule(ctx, schedule.ID)
	assert.ErrorIs(t, err, interfaces.ErrScheduleNotFound)
	assert.ErrorIs(t, m.DeleteSchedule(ctx, schedule.ID), interfaces.ErrScheduleNotFound)
}

func TestSchedules_ValidationAndUnknownRoute(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	seedRoute(t, m, "line-5")

	assert.ErrorIs(t, m.CreateSchedule(ctx, weekdaySchedule("line-5", "23:00", "01:00")), types.ErrWindowOrder)
	assert.ErrorIs(t, m.CreateSchedule(ctx, weekdaySchedule("line-5", "7:3", "09:00")), types.ErrInvalidClock)
	assert.ErrorIs(t, m.CreateSchedule(ctx, weekdaySchedule("ghost", "07:00", "09:00")), interfaces.ErrRouteNotFound)

	missing := weekdaySchedule("line-5", "07:00", "09:00")
	assert.ErrorIs(t, m.UpdateSchedule(ctx, missing), types.ErrMissingScheduleID)
	missing.ID = "nope"
	assert.ErrorIs(t, m.UpdateSchedule(ctx, missing), interfaces.ErrScheduleNotFound)
}

func TestSchedules_Listing(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	seedRoute(t, m, "line-5")
	seedRoute(t, m, "line-12")

	require.NoError(t, m.CreateSchedule(ctx, weekdaySchedule("line-5", "17:00", "18:00")))
	require.NoError(t, m.CreateSchedule(ctx, weekdaySchedule("line-5", "07:00", "08:00")))
	require.NoError(t, m.CreateSchedule(ctx, weekdaySchedule("line-12", "12:00", "13:00")))

	forRoute, err := m.GetSchedulesForRoute(ctx, "line-5")
	require.NoError(t, err)
	require.Len(t, forRoute, 2)
	assert.Equal(t, "07:00", forRoute[0].Start)

	all, err := m.GetAllSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "line-12", all[0].RouteID)

	none, err := m.GetSchedulesForRoute(ctx, "ghost")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeleteRoute_CascadesSchedules(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	seedRoute(t, m, "line-5")
	require.NoError(t, m.CreateSchedule(ctx, weekdaySchedule("line-5", "07:00", "08:00")))

	require.NoError(t, m.DeleteRoute(ctx, "line-5"))

	all, err := m.GetAllSchedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestConcurrentWrites(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()
	seedRoute(t, m, "line-5")

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- m.CreateSchedule(ctx, weekdaySchedule("line-5", "07:00", "08:00"))
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	all, err := m.GetAllSchedules(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 20)
}

func TestHealthCheckAndClose(t *testing.T) {
	m := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, m.HealthCheck(ctx))
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.ErrorIs(t, m.CreateRoute(ctx, &types.Route{ID: "late", Name: "late"}), ErrManagerClosed)
	assert.Error(t, m.HealthCheck(ctx))
}
