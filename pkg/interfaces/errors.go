package interfaces

import "errors"

// Common interface errors used across components
var (
	ErrRouteNotFound    = errors.New("route not found")
	ErrScheduleNotFound = errors.New("schedule not found")
	ErrRouteExists      = errors.New("route already exists")
)
