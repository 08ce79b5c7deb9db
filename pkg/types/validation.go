package types

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// FUNCTIONAL DISCOVERY: Regex compiled once at package initialization
// for better performance in high-frequency validation scenarios
var (
	routeIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
	clockRegex   = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)
)

// Validate ensures the route meets all requirements
func (r *Route) Validate() error {
	if !IsValidRouteID(r.ID) {
		return ErrInvalidRouteID
	}
	n := utf8.RuneCountInString(strings.TrimSpace(r.Name))
	if n < 1 || n > 100 {
		return ErrInvalidRouteName
	}
	return nil
}

// Validate ensures the schedule describes a usable same-day window.
// ARCHITECTURAL DISCOVERY: Window evaluation assumes start < end within one
// civil day, so wrap-around windows are refused here rather than guessed at
func (s *Schedule) Validate() error {
	if !IsValidRouteID(s.RouteID) {
		return ErrInvalidRouteID
	}
	if len(s.Days) == 0 {
		return ErrInvalidDays
	}
	for _, d := range s.Days {
		if d < 0 || d > 6 {
			return ErrInvalidDays
		}
	}
	start, err := ParseClock(s.Start)
	if err != nil {
		return err
	}
	end, err := ParseClock(s.End)
	if err != nil {
		return err
	}
	if start >= end {
		return ErrWindowOrder
	}
	n := utf8.RuneCountInString(strings.TrimSpace(s.ChatName))
	if n < 1 || n > 100 {
		return ErrInvalidChatName
	}
	return nil
}

// IsValidRouteID checks if a route ID meets format requirements
// FUNCTIONAL DISCOVERY: Route IDs appear in QR landing URLs, so they are kept URL-safe
func IsValidRouteID(routeID string) bool {
	if len(routeID) < 1 || len(routeID) > 50 {
		return false
	}
	return routeIDRegex.MatchString(routeID)
}

// ParseClock converts "HH:MM" into minutes since midnight.
func ParseClock(hhmm string) (int, error) {
	m := clockRegex.FindStringSubmatch(strings.TrimSpace(hhmm))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, hhmm)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}
