package domain

import (
	"errors"
	"fmt"
)

// ErrRoomClosed is returned by a room that emptied and retired while an
// operation was queued for it. Callers look the room up again.
var ErrRoomClosed = errors.New("room closed")

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// CapacityError reports a join attempt against a full room.
type CapacityError struct {
	Room    RoomID
	Current int
	Max     int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("room %s is full (%d/%d)", e.Room, e.Current, e.Max)
}

// RoutingError reports an identifier that could not be resolved.
type RoutingError struct {
	Target string
	Reason string
}

func (e *RoutingError) Error() string {
	if e.Target == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Target)
}
