package domain

import (
	"errors"
	"fmt"

	"room-match-backend/internal/models"
)

// Sentinel errors for the terminal failure classes. Conflicts carry the
// observed status and get their own type below.
var (
	// ErrRoomNotFound is returned when the target room no longer exists.
	ErrRoomNotFound = errors.New("room not found")

	// ErrPermissionDenied is returned when the caller is not the room creator.
	ErrPermissionDenied = errors.New("permission denied: only the room creator can manage this room")

	// ErrAlreadyExists is returned by repositories on a uniqueness violation.
	// Callers performing idempotent creation treat it as success.
	ErrAlreadyExists = errors.New("record already exists")

	// ErrRoomNotJoinable is returned when a room's status does not admit
	// the caller as a new participant.
	ErrRoomNotJoinable = errors.New("room is not joinable in its current status")

	// ErrRoomFull is returned when a bounded room is at capacity.
	ErrRoomFull = errors.New("room is full")
)

// ValidationError reports malformed input, rejected before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// IllegalTransitionError reports a status change not reachable from the
// current state per the room transition table.
type IllegalTransitionError struct {
	From models.RoomStatus
	To   models.RoomStatus
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition: %s -> %s", e.From, e.To)
}

// ConflictError reports that the persisted room status no longer matches
// the caller's expectation. This is an expected outcome under concurrency,
// not an alert-worthy failure; callers should resynchronize silently.
type ConflictError struct {
	Expected models.RoomStatus
	Actual   models.RoomStatus
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("state mismatch: expected %s but found %s", e.Expected, e.Actual)
}

// IsConflict reports whether err is a state-mismatch conflict.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
