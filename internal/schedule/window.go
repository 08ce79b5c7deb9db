// Package schedule decides whether a recurring weekly window is open.
package schedule

import (
	"fmt"
	"time"

	"bustogether/pkg/types"
)

// ShouldBeOpen reports whether now falls inside the schedule's window on a
// matching weekday, evaluated in loc. The window is half-open: it includes the
// start minute and excludes the end minute.
func ShouldBeOpen(s *types.Schedule, now time.Time, loc *time.Location) (bool, error) {
	start, end, err := bounds(s)
	if err != nil {
		return false, err
	}

	local := now.In(loc)
	if !s.HasDay(local.Weekday()) {
		return false, nil
	}

	minutes := local.Hour()*60 + local.Minute()
	return start <= minutes && minutes < end, nil
}

// EndsAt applies the schedule's end time-of-day to now's civil date in loc.
func EndsAt(s *types.Schedule, now time.Time, loc *time.Location) (time.Time, error) {
	_, end, err := bounds(s)
	if err != nil {
		return time.Time{}, err
	}

	local := now.In(loc)
	y, m, d := local.Date()
	return time.Date(y, m, d, end/60, end%60, 0, 0, loc), nil
}

func bounds(s *types.Schedule) (int, int, error) {
	start, err := types.ParseClock(s.Start)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule %s start: %w", s.ID, err)
	}
	end, err := types.ParseClock(s.End)
	if err != nil {
		return 0, 0, fmt.Errorf("schedule %s end: %w", s.ID, err)
	}
	if start >= end {
		return 0, 0, fmt.Errorf("schedule %s: %w", s.ID, types.ErrWindowOrder)
	}
	return start, end, nil
}
