package ws

import (
	"encoding/json"
	"time"
)

// Inbound event types.
const (
	TypeCreateRoom  = "createRoom"
	TypeJoinRoom    = "joinRoom"
	TypeDeleteRoom  = "deleteRoom"
	TypeChatMessage = "chat message"
)

// Outbound event types.
const (
	TypeRoomCreated      = "roomCreated"
	TypeRoomJoined       = "roomJoined"
	TypePreviousMessages = "previousMessages"
	TypeUsersOnline      = "usersOnline"
	TypeRoomDeleted      = "roomDeleted"
	TypeMessage          = "message"
	TypeError            = "error"
)

// Error kinds carried in ErrorPayload.Type.
const (
	ErrorTypeSystem = "system"
)

type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type CreateRoomPayload struct {
	CreatorID string `json:"creatorId" validate:"required,max=128"`
}

type JoinRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
	UserID string `json:"userId" validate:"max=128"`
}

type DeleteRoomPayload struct {
	RoomID string `json:"roomId" validate:"required,max=64"`
	UserID string `json:"userId" validate:"required,max=128"`
}

type ChatPayload struct {
	Text string `json:"text"`
	User string `json:"user" validate:"max=64"`
}

type RoomJoinedPayload struct {
	RoomID      string `json:"roomId"`
	IsCreator   bool   `json:"isCreator"`
	MemberCount int    `json:"memberCount"`
}

type RoomDeletedPayload struct {
	Message string `json:"message"`
}

type ChatMessagePayload struct {
	Text      string    `json:"text"`
	User      string    `json:"user"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Message    string `json:"message"`
	Type       string `json:"type"`
	CooldownMs int64  `json:"cooldownMs,omitempty"`
}
