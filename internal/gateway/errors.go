package gateway

import (
	"errors"

	"bustogether/internal/moderation"
)

// Gateway errors. The error text is what the client receives in errorNotice.
var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrNoActiveChat    = errors.New("no active chat")
	ErrCannotJoin      = errors.New("cannot join")
	ErrNotConnected    = errors.New("not connected")
	ErrRateLimited     = errors.New("please wait")
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidRequest  = errors.New("invalid request")
)

// PolicyError is a moderation rejection. Soft rejections count toward ejection.
type PolicyError struct {
	Reason   string
	Severity moderation.Severity
}

func (e *PolicyError) Error() string {
	return e.Reason
}
