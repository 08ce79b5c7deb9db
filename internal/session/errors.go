package session

import "errors"

// Session store error types
var (
	ErrSessionNotFound = errors.New("no active session for route")
	ErrSessionExists   = errors.New("session already open for route")
	ErrBanned          = errors.New("connection is banned from this session")
	ErrAlreadyJoined   = errors.New("connection already joined a session")
	ErrNotParticipant  = errors.New("connection is not a participant")
	ErrMessageNotFound = errors.New("message not found")
)
