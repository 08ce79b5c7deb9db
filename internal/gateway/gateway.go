// Package gateway is the per-connection chat protocol handler.
package gateway

import (
	"errors"
	"log/slog"
	"sync"

	"bustogether/internal/metrics"
	"bustogether/internal/moderation"
	"bustogether/internal/observability"
	"bustogether/internal/session"
	"bustogether/pkg/interfaces"
	"bustogether/pkg/types"
)

// KickReason is sent in the kicked event
const KickReason = "removed from the chat after repeated violations"

// Config holds the gateway's policy limits
type Config struct {
	UsernameMinLength     int
	UsernameMaxLength     int
	KickThreshold         int
	ReportDeleteThreshold int
}

// Gateway validates client requests against the session store and moderation
// pipeline and emits the resulting events.
// ARCHITECTURAL DISCOVERY: Each connection is either disconnected or joined to exactly
// one route; every inbound request maps to one store operation plus outbound events,
// and failures are answered on the offending connection only
type Gateway struct {
	store     *session.Store
	transport interfaces.Broadcaster
	pipeline  *moderation.Pipeline
	limits    *RateLimiter
	config    Config

	mu     sync.Mutex
	joined map[string]string // connID -> routeID

	logger *slog.Logger
}

// New creates a gateway
func New(store *session.Store, transport interfaces.Broadcaster, pipeline *moderation.Pipeline, limits *RateLimiter, config Config) *Gateway {
	return &Gateway{
		store:     store,
		transport: transport,
		pipeline:  pipeline,
		limits:    limits,
		config:    config,
		joined:    make(map[string]string),
		logger:    observability.WithComponent("gateway"),
	}
}

// Handle dispatches one inbound request. Errors have already been reported to
// the connection when it returns.
func (g *Gateway) Handle(connID string, req *types.Inbound) error {
	var err error
	switch req.Type {
	case types.RequestJoin:
		err = g.Join(connID, req.RouteID, req.Username)
	case types.RequestSendMessage:
		err = g.Send(connID, req.Text)
	case types.RequestReportMessage:
		err = g.Report(connID, req.MessageID)
	case types.RequestLeave:
		g.Leave(connID)
	default:
		err = g.reject(connID, ErrInvalidRequest)
	}
	if err != nil {
		g.logger.Debug("request rejected", "conn_id", connID, "type", req.Type, "error", err)
	}
	return err
}

// Join adds the connection to a route's live session.
func (g *Gateway) Join(connID, routeID, rawUsername string) error {
	if !g.limits.AllowJoin(connID) {
		return g.reject(connID, ErrRateLimited)
	}

	username := g.pipeline.SanitizeUsername(rawUsername)
	if !moderation.IsValidUsername(username, g.config.UsernameMinLength, g.config.UsernameMaxLength) {
		return g.reject(connID, ErrInvalidUsername)
	}

	if !g.store.Exists(routeID) {
		return g.reject(connID, ErrNoActiveChat)
	}

	// Joining again moves the connection rather than duplicating it
	g.Leave(connID)

	if _, err := g.store.AddParticipant(routeID, connID, username); err != nil {
		if errors.Is(err, session.ErrBanned) {
			g.logger.Info("banned connection tried to rejoin", "conn_id", connID, "route_id", routeID)
		}
		return g.reject(connID, ErrCannotJoin)
	}

	g.transport.Subscribe(routeID, connID)
	g.setRoute(connID, routeID)

	// A close that removed the session before this snapshot may already have
	// evicted the room, so the subscription only stands if the roster still
	// holds this connection
	detail, err := g.store.Detail(routeID)
	if err != nil || !hasParticipant(detail, connID) {
		g.transport.Unsubscribe(routeID, connID)
		g.clearRoute(connID)
		return g.reject(connID, ErrNoActiveChat)
	}

	payload := types.JoinedPayload{
		SessionID:    detail.SessionID,
		ChatName:     detail.ChatName,
		Participants: make([]types.ParticipantView, 0, len(detail.Participants)),
		Messages:     make([]types.MessageView, 0, len(detail.Messages)),
	}
	for _, p := range detail.Participants {
		payload.Participants = append(payload.Participants, types.ParticipantView{Username: p.Username, JoinedAt: p.JoinedAt})
	}
	for i := range detail.Messages {
		payload.Messages = append(payload.Messages, types.ViewOf(&detail.Messages[i]))
	}

	g.send(connID, &types.Event{Type: types.EventJoined, Data: payload})
	g.transport.Broadcast(routeID, &types.Event{Type: types.EventUserJoined, Data: types.UserPayload{Username: username}}, connID)

	g.logger.Debug("participant joined", "conn_id", connID, "route_id", routeID, "username", username)
	return nil
}

// Send moderates and records a chat message.
func (g *Gateway) Send(connID, text string) error {
	routeID, ok := g.routeOf(connID)
	if !ok {
		return g.reject(connID, ErrNotConnected)
	}

	if !g.limits.AllowMessage(connID) {
		return g.reject(connID, ErrRateLimited)
	}

	verdict := g.pipeline.Classify(text)
	if !verdict.Accepted {
		err := g.reject(connID, &PolicyError{Reason: verdict.Reason, Severity: verdict.Severity})
		if verdict.Severity == moderation.Soft {
			if count := g.store.RecordViolation(routeID, connID); count >= g.config.KickThreshold {
				g.kick(connID, routeID)
			}
		}
		return err
	}

	msg, err := g.store.AddMessage(routeID, connID, text)
	if err != nil {
		// The session ended or was replaced underneath this connection
		g.clearRoute(connID)
		g.transport.Unsubscribe(routeID, connID)
		if errors.Is(err, session.ErrSessionNotFound) {
			return g.reject(connID, ErrNoActiveChat)
		}
		return g.reject(connID, ErrNotConnected)
	}

	metrics.MessagesAccepted.Inc()
	g.transport.Broadcast(routeID, types.NewMessageEvent(msg), "")
	return nil
}

// kick bans the connection from the session and drops it from the room.
func (g *Gateway) kick(connID, routeID string) {
	username := ""
	if p, ok := g.store.Participant(routeID, connID); ok {
		username = p.Username
	}

	g.store.BanUser(routeID, connID)
	g.send(connID, &types.Event{Type: types.EventKicked, Data: types.ReasonPayload{Reason: KickReason}})
	g.transport.Unsubscribe(routeID, connID)
	g.transport.Disconnect(connID)
	g.clearRoute(connID)
	g.transport.Broadcast(routeID, &types.Event{Type: types.EventUserLeft, Data: types.UserPayload{Username: username}}, connID)

	metrics.Kicks.Inc()
	g.logger.Info("connection kicked", "conn_id", connID, "route_id", routeID)
}

// Report counts a report against a message and deletes it at the threshold.
func (g *Gateway) Report(connID, messageID string) error {
	routeID, ok := g.routeOf(connID)
	if !ok {
		return g.reject(connID, ErrNotConnected)
	}

	if !g.limits.AllowReport(connID) {
		return g.reject(connID, ErrRateLimited)
	}

	msg, err := g.store.ReportMessage(routeID, messageID, connID)
	switch {
	case errors.Is(err, session.ErrMessageNotFound):
		return g.reject(connID, ErrMessageNotFound)
	case errors.Is(err, session.ErrNotParticipant):
		g.clearRoute(connID)
		g.transport.Unsubscribe(routeID, connID)
		return g.reject(connID, ErrNotConnected)
	case err != nil:
		g.clearRoute(connID)
		return g.reject(connID, ErrNoActiveChat)
	}

	if msg.ReportCount >= g.config.ReportDeleteThreshold && g.store.DeleteMessage(routeID, messageID) {
		g.transport.Broadcast(routeID, &types.Event{Type: types.EventMessageDeleted, Data: types.MessageRefPayload{MessageID: messageID}}, "")
		metrics.AutoDeletes.Inc()
		g.logger.Info("message auto-deleted", "route_id", routeID, "message_id", messageID, "reports", msg.ReportCount)
	}

	g.send(connID, &types.Event{Type: types.EventReportAcknowledged, Data: types.MessageRefPayload{MessageID: messageID}})
	return nil
}

// Leave removes the connection from its session, if any. Safe to call repeatedly.
func (g *Gateway) Leave(connID string) {
	routeID, ok := g.routeOf(connID)
	if !ok {
		return
	}
	g.clearRoute(connID)

	p, removed := g.store.RemoveParticipant(routeID, connID)
	g.transport.Unsubscribe(routeID, connID)
	if removed {
		g.transport.Broadcast(routeID, &types.Event{Type: types.EventUserLeft, Data: types.UserPayload{Username: p.Username}}, connID)
	}
}

// Disconnected is the transport-level drop: leave, then forget the connection.
func (g *Gateway) Disconnected(connID string) {
	g.Leave(connID)
	g.limits.Forget(connID)
}

// RouteOf reports the route a connection is joined to
func (g *Gateway) RouteOf(connID string) (string, bool) {
	return g.routeOf(connID)
}

func (g *Gateway) routeOf(connID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	routeID, ok := g.joined[connID]
	return routeID, ok
}

func (g *Gateway) setRoute(connID, routeID string) {
	g.mu.Lock()
	g.joined[connID] = routeID
	g.mu.Unlock()
}

func (g *Gateway) clearRoute(connID string) {
	g.mu.Lock()
	delete(g.joined, connID)
	g.mu.Unlock()
}

func hasParticipant(detail *types.SessionDetail, connID string) bool {
	for _, p := range detail.Participants {
		if p.ConnID == connID {
			return true
		}
	}
	return false
}

func (g *Gateway) send(connID string, event *types.Event) {
	if err := g.transport.SendTo(connID, event); err != nil {
		g.logger.Debug("delivery failed", "conn_id", connID, "event", event.Type, "error", err)
	}
}

// reject answers the connection with an errorNotice and returns err
func (g *Gateway) reject(connID string, err error) error {
	metrics.Rejections.WithLabelValues(err.Error()).Inc()
	g.send(connID, types.NewErrorNotice(err.Error()))
	return err
}
