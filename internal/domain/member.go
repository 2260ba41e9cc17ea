// Package domain contains entity without logic, just meta-data
package domain

import "errors"

const MaxUsernameLen = 36

var (
	ErrUsernameEmpty   = errors.New("username empty")
	ErrUsernameTooLong = errors.New("username too long")
)

type (
	// RoomID names a collaboration session. Opaque, stable for the room's lifetime.
	RoomID string

	// SocketID is the transport-assigned identifier of one connected client.
	// Unique within a room at any instant; changes on reconnect.
	SocketID string
)

// Member is one room participant as it appears in the roster.
// Username is display-only and not guaranteed unique; keying is by SocketID.
type Member struct {
	SocketID SocketID `json:"socketId"`
	Username string   `json:"username"`
}

// ValidateUsername keeps display names bounded before they enter a roster.
func ValidateUsername(name string) error {
	if len(name) == 0 {
		return ErrUsernameEmpty
	}
	if len(name) > MaxUsernameLen {
		return ErrUsernameTooLong
	}
	return nil
}
