package types

import (
	"time"
)

// Route is a physical bus line that owns recurring schedules and a chat topic.
// Routes are owned by the record store; the chat core refers to them by ID only.
type Route struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// Schedule is a recurring weekly window during which a route's chat is open.
// FUNCTIONAL DISCOVERY: Start and End are civil "HH:MM" strings evaluated in the
// deployment timezone. Windows that wrap past midnight are rejected on write.
type Schedule struct {
	ID        string    `json:"id" db:"id"`
	RouteID   string    `json:"routeId" db:"route_id"`
	Days      []int     `json:"daysOfWeek" db:"days"` // 0 = Sunday ... 6 = Saturday
	Start     string    `json:"startTime" db:"start_time"`
	End       string    `json:"endTime" db:"end_time"`
	ChatName  string    `json:"chatName" db:"chat_name"`
	Active    bool      `json:"isActive" db:"is_active"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}

// HasDay reports whether the schedule runs on the given weekday.
func (s *Schedule) HasDay(day time.Weekday) bool {
	for _, d := range s.Days {
		if d == int(day) {
			return true
		}
	}
	return false
}

// Participant is a connection currently joined to a session.
type Participant struct {
	ConnID   string    `json:"-"`
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// Message is a chat line recorded in a live session.
type Message struct {
	ID          string    `json:"id"`
	ConnID      string    `json:"-"`
	Username    string    `json:"username"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	ReportCount int       `json:"reportCount"`
	Reported    bool      `json:"reported"`
}

// SessionSummary is the admin listing view of a live session.
type SessionSummary struct {
	SessionID        string    `json:"sessionId"`
	RouteID          string    `json:"routeId"`
	RouteName        string    `json:"routeName"`
	ChatName         string    `json:"chatName"`
	StartedAt        time.Time `json:"startedAt"`
	EndsAt           time.Time `json:"endsAt"`
	MinutesRemaining int       `json:"minutesRemaining"`
	ParticipantCount int       `json:"participantCount"`
	MessageCount     int       `json:"messageCount"`
	ReportCount      int       `json:"reportCount"`
}

// SessionDetail is a full point-in-time copy of a live session.
// ARCHITECTURAL DISCOVERY: Snapshots are deep copies so callers never hold
// references into store-owned state after the store lock is released
type SessionDetail struct {
	SessionSummary
	Participants []Participant `json:"participants"`
	Messages     []Message     `json:"messages"`
	BannedCount  int           `json:"bannedCount"`
}

// ChatStatus answers the landing-page question "is this route's chat open?".
type ChatStatus struct {
	IsActive  bool       `json:"isActive"`
	RouteID   string     `json:"routeId"`
	RouteName string     `json:"routeName"`
	ChatName  string     `json:"chatName,omitempty"`
	SessionID string     `json:"sessionId,omitempty"`
	EndsAt    *time.Time `json:"endsAt,omitempty"`
}
