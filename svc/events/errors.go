package events

import "errors"

var (
	ErrEmptyPayload = errors.New("event has no payload")
	ErrUnknownKind  = errors.New("unknown event kind")
	ErrBusClosed    = errors.New("event bus is closed")
)
