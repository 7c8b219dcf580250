package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrCapacity        = errors.New("room capacity reached")
	ErrRoomNotFound    = errors.New("room not found")
	ErrNotCreator      = errors.New("requester is not the room creator")
	ErrDuplicateOrigin = errors.New("origin already connected to the room")
	ErrNotInRoom       = errors.New("session not in the room")

	ErrCooldown       = errors.New("too many messages")
	ErrMessageTooLong = errors.New("message too long")
)

type ThrottleKind string

const (
	ThrottleCooldown ThrottleKind = "cooldown"
	ThrottleLength   ThrottleKind = "msg_length_limit"
)

// ThrottleError rejects a single send. The connection stays usable; Cooldown
// tells the client how long to hold further attempts. MaxLength is the limit
// that was exceeded, set for ThrottleLength only.
type ThrottleError struct {
	Kind      ThrottleKind
	Cooldown  time.Duration
	MaxLength int
}

func (e *ThrottleError) Error() string {
	return fmt.Sprintf("%s: retry in %s", e.Kind, e.Cooldown)
}

func (e *ThrottleError) Is(target error) bool {
	switch target {
	case ErrCooldown:
		return e.Kind == ThrottleCooldown
	case ErrMessageTooLong:
		return e.Kind == ThrottleLength
	}
	return false
}
