package session

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"bustogether/internal/clock"
	"bustogether/internal/metrics"
	"bustogether/internal/observability"
	"bustogether/internal/schedule"
	"bustogether/pkg/types"
)

// Store owns every live chat session, keyed by route ID.
// ARCHITECTURAL DISCOVERY: Operations are short in-memory map mutations with no I/O,
// so one mutex across all routes serializes them without measurable contention
type Store struct {
	mu       sync.Mutex
	sessions map[string]*live  // routeID -> session
	memberOf map[string]string // connID -> routeID

	clock  clock.Clock
	loc    *time.Location
	newID  func() string
	logger *slog.Logger
}

type live struct {
	id         string
	routeID    string
	routeName  string
	chatName   string
	scheduleID string
	startedAt  time.Time
	endsAt     time.Time

	participants map[string]*member
	joinSeq      uint64
	messages     []*types.Message
	banned       map[string]struct{}
	reports      map[string]map[string]struct{} // messageID -> reporter connIDs
	violations   map[string]int
}

type member struct {
	types.Participant
	seq uint64
}

// NewStore creates an empty store. loc is the civil timezone schedule end times are applied in.
func NewStore(clk clock.Clock, loc *time.Location) *Store {
	return &Store{
		sessions: make(map[string]*live),
		memberOf: make(map[string]string),
		clock:    clk,
		loc:      loc,
		newID:    uuid.NewString,
		logger:   observability.WithComponent("session"),
	}
}

// Open starts a session for the route. If one is already open it is left untouched
// and returned together with ErrSessionExists.
// FUNCTIONAL DISCOVERY: Route and chat names are copied now; later schedule edits
// never rename a live session and its end time is fixed at creation
func (s *Store) Open(route *types.Route, sched *types.Schedule) (*types.SessionSummary, error) {
	now := s.clock.Now()
	endsAt, err := schedule.EndsAt(sched, now, s.loc)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[route.ID]; ok {
		summary := existing.summary(now)
		return &summary, ErrSessionExists
	}

	sess := &live{
		id:           s.newID(),
		routeID:      route.ID,
		routeName:    route.Name,
		chatName:     sched.ChatName,
		scheduleID:   sched.ID,
		startedAt:    now,
		endsAt:       endsAt,
		participants: make(map[string]*member),
		banned:       make(map[string]struct{}),
		reports:      make(map[string]map[string]struct{}),
		violations:   make(map[string]int),
	}
	s.sessions[route.ID] = sess
	metrics.ActiveSessions.Set(float64(len(s.sessions)))

	s.logger.Info("session opened",
		"route_id", route.ID,
		"session_id", sess.id,
		"chat_name", sess.chatName,
		"ends_at", endsAt)

	summary := sess.summary(now)
	return &summary, nil
}

// Close discards every trace of the route's session. Returns false if none was open.
func (s *Store) Close(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return false
	}

	for connID := range sess.participants {
		delete(s.memberOf, connID)
	}
	sess.clear()
	delete(s.sessions, routeID)
	metrics.ActiveSessions.Set(float64(len(s.sessions)))

	s.logger.Info("session closed", "route_id", routeID, "session_id", sess.id)
	return true
}

func (l *live) clear() {
	clear(l.participants)
	clear(l.banned)
	clear(l.reports)
	clear(l.violations)
	for i := range l.messages {
		l.messages[i] = nil
	}
	l.messages = nil
}

// Exists reports whether the route has a live session
func (s *Store) Exists(routeID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[routeID]
	return ok
}

// Count returns the number of live sessions
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// AddParticipant joins a connection to the route's session.
func (s *Store) AddParticipant(routeID, connID, username string) (*types.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if _, banned := sess.banned[connID]; banned {
		return nil, ErrBanned
	}
	if current, joined := s.memberOf[connID]; joined {
		return nil, fmt.Errorf("%w: route %s", ErrAlreadyJoined, current)
	}

	sess.joinSeq++
	m := &member{
		Participant: types.Participant{ConnID: connID, Username: username, JoinedAt: s.clock.Now()},
		seq:         sess.joinSeq,
	}
	sess.participants[connID] = m
	s.memberOf[connID] = routeID

	p := m.Participant
	return &p, nil
}

// RemoveParticipant drops a connection from the session's roster. Message history is kept.
func (s *Store) RemoveParticipant(routeID, connID string) (*types.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return nil, false
	}
	m, ok := sess.participants[connID]
	if !ok {
		return nil, false
	}
	delete(sess.participants, connID)
	delete(s.memberOf, connID)

	p := m.Participant
	return &p, true
}

// Participant looks up a current participant
func (s *Store) Participant(routeID, connID string) (*types.Participant, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return nil, false
	}
	m, ok := sess.participants[connID]
	if !ok {
		return nil, false
	}
	p := m.Participant
	return &p, true
}

// AddMessage records a message from a current participant.
func (s *Store) AddMessage(routeID, connID, text string) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	m, ok := sess.participants[connID]
	if !ok {
		return nil, ErrNotParticipant
	}

	msg := &types.Message{
		ID:        s.newID(),
		ConnID:    connID,
		Username:  m.Username,
		Text:      text,
		Timestamp: s.clock.Now(),
	}
	sess.messages = append(sess.messages, msg)

	out := *msg
	return &out, nil
}

// ReportMessage adds the reporter to the message's report set. A repeated report
// from the same connection leaves the count unchanged.
func (s *Store) ReportMessage(routeID, messageID, reporterConnID string) (*types.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	// Banned connections are evicted from participants, so this covers both
	if _, ok := sess.participants[reporterConnID]; !ok {
		return nil, ErrNotParticipant
	}
	msg := sess.message(messageID)
	if msg == nil {
		return nil, ErrMessageNotFound
	}

	reporters, ok := sess.reports[messageID]
	if !ok {
		reporters = make(map[string]struct{})
		sess.reports[messageID] = reporters
	}
	reporters[reporterConnID] = struct{}{}
	msg.ReportCount = len(reporters)
	msg.Reported = msg.ReportCount > 0

	out := *msg
	return &out, nil
}

// DeleteMessage removes a message and its report set
func (s *Store) DeleteMessage(routeID, messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return false
	}
	for i, m := range sess.messages {
		if m.ID == messageID {
			sess.messages = append(sess.messages[:i], sess.messages[i+1:]...)
			delete(sess.reports, messageID)
			return true
		}
	}
	return false
}

// BanUser bars the connection from this session instance and evicts it from the roster.
func (s *Store) BanUser(routeID, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return false
	}
	sess.banned[connID] = struct{}{}
	if _, joined := sess.participants[connID]; joined {
		delete(sess.participants, connID)
		delete(s.memberOf, connID)
	}
	return true
}

// IsBanned reports whether connID is in the route session's ban set
func (s *Store) IsBanned(routeID, connID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return false
	}
	_, banned := sess.banned[connID]
	return banned
}

// RecordViolation increments and returns the connection's violation count.
// Returns 0 when the route has no session.
func (s *Store) RecordViolation(routeID, connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return 0
	}
	sess.violations[connID]++
	return sess.violations[connID]
}

// Violations returns the connection's current violation count
func (s *Store) Violations(routeID, connID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return 0
	}
	return sess.violations[connID]
}

// ShouldClose reports whether the session's end time has been reached
func (s *Store) ShouldClose(routeID string) bool {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return false
	}
	return !now.Before(sess.endsAt)
}

// List returns summaries of all live sessions, oldest first
func (s *Store) List() []types.SessionSummary {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]types.SessionSummary, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, sess.summary(now))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].RouteID < out[j].RouteID
		}
		return out[i].StartedAt.Before(out[j].StartedAt)
	})
	return out
}

// Detail returns a deep copy of the route's session
func (s *Store) Detail(routeID string) (*types.SessionDetail, error) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[routeID]
	if !ok {
		return nil, ErrSessionNotFound
	}

	detail := &types.SessionDetail{
		SessionSummary: sess.summary(now),
		Participants:   sess.roster(),
		Messages:       make([]types.Message, 0, len(sess.messages)),
		BannedCount:    len(sess.banned),
	}
	for _, m := range sess.messages {
		detail.Messages = append(detail.Messages, *m)
	}
	return detail, nil
}

// Status answers whether the route's chat is open right now
func (s *Store) Status(route *types.Route) types.ChatStatus {
	status := types.ChatStatus{RouteID: route.ID, RouteName: route.Name}

	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[route.ID]; ok {
		endsAt := sess.endsAt
		status.IsActive = true
		status.ChatName = sess.chatName
		status.SessionID = sess.id
		status.EndsAt = &endsAt
	}
	return status
}

func (l *live) message(id string) *types.Message {
	for _, m := range l.messages {
		if m.ID == id {
			return m
		}
	}
	return nil
}

// roster returns participants in join order
func (l *live) roster() []types.Participant {
	members := make([]*member, 0, len(l.participants))
	for _, m := range l.participants {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool { return members[i].seq < members[j].seq })

	out := make([]types.Participant, len(members))
	for i, m := range members {
		out[i] = m.Participant
	}
	return out
}

func (l *live) summary(now time.Time) types.SessionSummary {
	reports := 0
	for _, reporters := range l.reports {
		reports += len(reporters)
	}

	remaining := int(l.endsAt.Sub(now) / time.Minute)
	if remaining < 0 {
		remaining = 0
	}

	return types.SessionSummary{
		SessionID:        l.id,
		RouteID:          l.routeID,
		RouteName:        l.routeName,
		ChatName:         l.chatName,
		StartedAt:        l.startedAt,
		EndsAt:           l.endsAt,
		MinutesRemaining: remaining,
		ParticipantCount: len(l.participants),
		MessageCount:     len(l.messages),
		ReportCount:      reports,
	}
}
