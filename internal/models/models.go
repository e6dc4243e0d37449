package models

import "time"

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

const (
	StatusWaiting  RoomStatus = "waiting"
	StatusReady    RoomStatus = "ready"
	StatusPlaying  RoomStatus = "playing"
	StatusFinished RoomStatus = "finished"
)

// IsValid reports whether s is one of the known lifecycle states.
func (s RoomStatus) IsValid() bool {
	switch s {
	case StatusWaiting, StatusReady, StatusPlaying, StatusFinished:
		return true
	}
	return false
}

// User represents an anonymous user in the system
type User struct {
	ID        string    `json:"id"`
	Token     string    `json:"token"`
	PushToken *string   `json:"push_token,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Room represents a shared multi-party session
type Room struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Category        string     `json:"category"`
	CreatedBy       string     `json:"created_by"`
	Status          RoomStatus `json:"status"`
	MaxParticipants *int       `json:"max_participants,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Participant represents a user's membership in a room
type Participant struct {
	RoomID   string    `json:"room_id"`
	UserID   string    `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
}

// Swipe represents one user's vote on another. At most one swipe exists
// per ordered (user, target) pair; re-swiping overwrites the vote.
type Swipe struct {
	UserID    string    `json:"user_id"`
	TargetID  string    `json:"target_id"`
	Vote      bool      `json:"vote"`
	CreatedAt time.Time `json:"created_at"`
}

// Match represents a mutual match between two users. UserA is always the
// lexicographically smaller id so (A,B) and (B,A) collide on one record.
type Match struct {
	ID        string    `json:"id"`
	UserA     string    `json:"user_a"`
	UserB     string    `json:"user_b"`
	RoomID    *string   `json:"room_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizePair orders two user ids so both directions of a pair converge
// on the same match identity.
func NormalizePair(a, b string) (string, string) {
	if a > b {
		return b, a
	}
	return a, b
}
