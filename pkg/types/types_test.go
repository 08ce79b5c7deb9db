package types

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSchedule() Schedule {
	return Schedule{
		ID:       "sched-1",
		RouteID:  "line_42",
		Days:     []int{0, 1, 2, 3, 4},
		Start:    "07:30",
		End:      "08:45",
		ChatName: "Morning ride",
		Active:   true,
	}
}

func TestRoute_Validate(t *testing.T) {
	tests := []struct {
		name    string
		route   Route
		wantErr error
	}{
		{"valid", Route{ID: "line-42", Name: "Line 42"}, nil},
		{"hebrew name", Route{ID: "42", Name: "קו 42"}, nil},
		{"empty id", Route{ID: "", Name: "x"}, ErrInvalidRouteID},
		{"id with slash", Route{ID: "a/b", Name: "x"}, ErrInvalidRouteID},
		{"id too long", Route{ID: strings.Repeat("a", 51), Name: "x"}, ErrInvalidRouteID},
		{"blank name", Route{ID: "a", Name: "   "}, ErrInvalidRouteName},
		{"name too long", Route{ID: "a", Name: strings.Repeat("n", 101)}, ErrInvalidRouteName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.route.Validate(), tt.wantErr)
		})
	}
}

func TestSchedule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Schedule)
		wantErr error
	}{
		{"valid", func(s *Schedule) {}, nil},
		{"no days", func(s *Schedule) { s.Days = nil }, ErrInvalidDays},
		{"day out of range", func(s *Schedule) { s.Days = []int{7} }, ErrInvalidDays},
		{"negative day", func(s *Schedule) { s.Days = []int{-1} }, ErrInvalidDays},
		{"bad start", func(s *Schedule) { s.Start = "7h30" }, ErrInvalidClock},
		{"bad end", func(s *Schedule) { s.End = "24:00" }, ErrInvalidClock},
		{"start equals end", func(s *Schedule) { s.End = s.Start }, ErrWindowOrder},
		{"crosses midnight", func(s *Schedule) { s.Start = "23:00"; s.End = "01:00" }, ErrWindowOrder},
		{"empty chat name", func(s *Schedule) { s.ChatName = "" }, ErrInvalidChatName},
		{"bad route", func(s *Schedule) { s.RouteID = "" }, ErrInvalidRouteID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := validSchedule()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v, want %v", err, tt.wantErr)
		})
	}
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"08:00", 480, false},
		{"8:05", 485, false},
		{"23:59", 1439, false},
		{" 09:15 ", 555, false},
		{"24:00", 0, true},
		{"12:60", 0, true},
		{"noon", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidClock)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSchedule_HasDay(t *testing.T) {
	s := validSchedule()
	assert.True(t, s.HasDay(time.Sunday))
	assert.True(t, s.HasDay(time.Thursday))
	assert.False(t, s.HasDay(time.Friday))
	assert.False(t, s.HasDay(time.Saturday))
}

func TestMessageView_HidesConnectionIdentity(t *testing.T) {
	msg := &Message{
		ID:          "m1",
		ConnID:      "conn-secret",
		Username:    "dana",
		Text:        "hello",
		Timestamp:   time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC),
		ReportCount: 2,
		Reported:    true,
	}

	data, err := json.Marshal(NewMessageEvent(msg))
	require.NoError(t, err)

	assert.NotContains(t, string(data), "conn-secret")
	assert.NotContains(t, string(data), "reportCount")
	assert.Contains(t, string(data), `"type":"newMessage"`)
	assert.Contains(t, string(data), `"text":"hello"`)
}
