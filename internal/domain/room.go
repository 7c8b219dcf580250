package domain

import "time"

type Room struct {
	ID           string
	CreatorID    string
	CreatedAt    time.Time
	LastActivity time.Time
	Members      map[string]struct{} // session ids
}

func NewRoom(id, creatorID string, now time.Time) *Room {
	return &Room{
		ID:           id,
		CreatorID:    creatorID,
		CreatedAt:    now,
		LastActivity: now,
		Members:      make(map[string]struct{}),
	}
}

func (r *Room) Info() RoomInfo {
	return RoomInfo{
		ID:           r.ID,
		MemberCount:  len(r.Members),
		CreatedAt:    r.CreatedAt,
		LastActivity: r.LastActivity,
	}
}

// RoomSnapshot is what a joining session learns about the room. History is
// the log as of the join, so it holds exactly the messages published before
// the session started receiving broadcasts.
type RoomSnapshot struct {
	RoomID      string
	IsCreator   bool
	MemberCount int
	History     []Message
}

type RoomInfo struct {
	ID           string    `json:"id"`
	MemberCount  int       `json:"memberCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
}

type RegistryStats struct {
	ActiveRooms int `json:"activeRooms"`
	MaxRooms    int `json:"maxRooms"`
	Members     int `json:"members"`
}
