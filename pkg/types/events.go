package types

import "time"

// Inbound request types sent by chat clients.
const (
	RequestJoin          = "join"
	RequestSendMessage   = "sendMessage"
	RequestReportMessage = "reportMessage"
	RequestLeave         = "leave"
)

// Outbound event types delivered to chat clients.
// ARCHITECTURAL DISCOVERY: Event names are the wire contract with the browser
// client and must stay stable across releases
const (
	EventJoined             = "joined"
	EventUserJoined         = "userJoined"
	EventUserLeft           = "userLeft"
	EventNewMessage         = "newMessage"
	EventMessageDeleted     = "messageDeleted"
	EventChatClosed         = "chatClosed"
	EventKicked             = "kicked"
	EventErrorNotice        = "errorNotice"
	EventReportAcknowledged = "reportAcknowledged"
)

// Inbound is a single client request read off the wire.
type Inbound struct {
	Type      string `json:"type"`
	RouteID   string `json:"routeId,omitempty"`
	Username  string `json:"username,omitempty"`
	Text      string `json:"text,omitempty"`
	MessageID string `json:"messageId,omitempty"`
}

// Event is the outbound envelope.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// JoinedPayload is sent only to the joining connection.
type JoinedPayload struct {
	SessionID    string           `json:"sessionId"`
	ChatName     string           `json:"chatName"`
	Participants []ParticipantView `json:"participants"`
	Messages     []MessageView     `json:"messages"`
}

// ParticipantView is the public roster entry (no connection identifiers).
type ParticipantView struct {
	Username string    `json:"username"`
	JoinedAt time.Time `json:"joinedAt"`
}

// MessageView is the public message shape used in history and newMessage.
type MessageView struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type UserPayload struct {
	Username string `json:"username"`
}

type MessageRefPayload struct {
	MessageID string `json:"messageId"`
}

type ReasonPayload struct {
	Reason string `json:"reason"`
}

type NoticePayload struct {
	Message string `json:"message"`
}

// NewErrorNotice builds an errorNotice event.
func NewErrorNotice(message string) *Event {
	return &Event{Type: EventErrorNotice, Data: NoticePayload{Message: message}}
}

// NewMessageEvent builds a newMessage event from a recorded message.
func NewMessageEvent(m *Message) *Event {
	return &Event{Type: EventNewMessage, Data: ViewOf(m)}
}

// ViewOf strips connection identifiers and moderation counters from a message.
func ViewOf(m *Message) MessageView {
	return MessageView{ID: m.ID, Username: m.Username, Text: m.Text, Timestamp: m.Timestamp}
}
