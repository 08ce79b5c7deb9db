package interfaces

import (
	"context"

	"bustogether/pkg/types"
)

//go:generate mockgen -package=mocks -destination=mocks/mock_directory.go bustogether/pkg/interfaces Directory

// Directory is the read-only view of routes and schedules the chat core consumes.
// ARCHITECTURAL DISCOVERY: The scheduler only reads records; it never owns them,
// so it depends on this narrow interface instead of the full repository
type Directory interface {
	// GetRoute returns ErrRouteNotFound when the route does not exist
	GetRoute(ctx context.Context, routeID string) (*types.Route, error)

	GetSchedulesForRoute(ctx context.Context, routeID string) ([]*types.Schedule, error)

	GetAllSchedules(ctx context.Context) ([]*types.Schedule, error)
}

// RouteRepository is the full record-management surface used by the admin API and CLI.
type RouteRepository interface {
	Directory

	CreateRoute(ctx context.Context, route *types.Route) error
	ListRoutes(ctx context.Context) ([]*types.Route, error)
	UpdateRoute(ctx context.Context, route *types.Route) error
	DeleteRoute(ctx context.Context, routeID string) error

	CreateSchedule(ctx context.Context, schedule *types.Schedule) error
	GetSchedule(ctx context.Context, scheduleID string) (*types.Schedule, error)
	UpdateSchedule(ctx context.Context, schedule *types.Schedule) error
	DeleteSchedule(ctx context.Context, scheduleID string) error

	HealthCheck(ctx context.Context) error
	Close() error
}
