package types

import "errors"

// ARCHITECTURAL DISCOVERY: Specific error types enable proper error handling
// and user-friendly error messages throughout the system
var (
	ErrInvalidRouteID    = errors.New("route ID must be 1-50 characters, alphanumeric + underscore/hyphen only")
	ErrInvalidRouteName  = errors.New("route name must be 1-100 characters")
	ErrInvalidDays       = errors.New("schedule needs at least one weekday in 0-6")
	ErrInvalidClock      = errors.New("time of day must be HH:MM")
	ErrWindowOrder       = errors.New("schedule start must be before end on the same day")
	ErrInvalidChatName   = errors.New("chat name must be 1-100 characters")
	ErrMissingScheduleID = errors.New("schedule ID is required")
)
