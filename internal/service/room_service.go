package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	"github.com/google/uuid"
)

const registryKey = "rooms"

func roomKey(id string) string { return "room:" + id }

type RoomOptions struct {
	MaxRooms   int
	Inactivity time.Duration
}

// RoomService is the room registry. Every read-modify-write of a room runs
// under that room's store lock, so a join can never observe a room that a
// delete or sweep has started removing.
type RoomService struct {
	store   *store.Store
	rooms   *store.Table[*domain.Room]
	chat    *ChatService
	members *MemberService
	sweeper *Sweeper
	clock   clock.Clock
	opts    RoomOptions
	newID   func() string
}

func NewRoomService(st *store.Store, clk clock.Clock, chat *ChatService, members *MemberService, opts RoomOptions) *RoomService {
	s := &RoomService{
		store:   st,
		rooms:   store.NewTable[*domain.Room](),
		chat:    chat,
		members: members,
		clock:   clk,
		opts:    opts,
		newID:   uuid.NewString,
	}
	s.sweeper = NewSweeper(clk, opts.Inactivity, s.expire)
	return s
}

// CreateRoom registers an empty room owned by creatorID.
func (s *RoomService) CreateRoom(ctx context.Context, creatorID string) (string, error) {
	unlock := s.store.Lock(registryKey)
	defer unlock()

	if s.rooms.Len() >= s.opts.MaxRooms {
		return "", fmt.Errorf("create room: %w", domain.ErrCapacity)
	}

	id := s.newID()
	s.rooms.Set(id, domain.NewRoom(id, creatorID, s.clock.Now()))
	// nobody is in it yet: treat it like any other room that went empty
	s.sweeper.Schedule(id)

	slog.DebugContext(ctx, "room created", "room", id, "active", s.rooms.Len())
	return id, nil
}

// JoinRoom adds sessionID to the room on behalf of origin. onJoined, when
// set, runs before the room lock is released: no publish, leave or delete
// can interleave between the history read and whatever onJoined registers.
// Hooks must not call back into the RoomService.
func (s *RoomService) JoinRoom(ctx context.Context, roomID, sessionID, origin, claimedUserID string, onJoined func(domain.RoomSnapshot)) (domain.RoomSnapshot, error) {
	unlock := s.store.Lock(roomKey(roomID))
	defer unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomSnapshot{}, fmt.Errorf("join room %s: %w", roomID, domain.ErrRoomNotFound)
	}
	if err := s.members.Claim(origin, roomID); err != nil {
		return domain.RoomSnapshot{}, fmt.Errorf("join room %s: %w", roomID, err)
	}

	room.Members[sessionID] = struct{}{}
	room.LastActivity = s.clock.Now()
	s.sweeper.Cancel(roomID)

	snap := domain.RoomSnapshot{
		RoomID:      roomID,
		IsCreator:   room.CreatorID == claimedUserID,
		MemberCount: len(room.Members),
		History:     s.History(ctx, roomID),
	}
	if onJoined != nil {
		onJoined(snap)
	}

	slog.DebugContext(ctx, "room joined", "room", roomID, "session", sessionID, "members", len(room.Members))
	return snap, nil
}

// LeaveRoom removes sessionID and returns the remaining member count. Leaving
// a room the session is not in is a no-op. onLeft runs under the room lock.
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, sessionID, origin string, onLeft func(remaining int)) (int, error) {
	unlock := s.store.Lock(roomKey(roomID))
	defer unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return 0, fmt.Errorf("leave room %s: %w", roomID, domain.ErrRoomNotFound)
	}

	if _, in := room.Members[sessionID]; in {
		delete(room.Members, sessionID)
		s.members.Release(origin, roomID)
	}
	room.LastActivity = s.clock.Now()

	if len(room.Members) == 0 {
		s.sweeper.Schedule(roomID)
	}
	if onLeft != nil {
		onLeft(len(room.Members))
	}

	slog.DebugContext(ctx, "room left", "room", roomID, "session", sessionID, "members", len(room.Members))
	return len(room.Members), nil
}

// DeleteRoom removes the room, its log and its origin claims. Only the
// creator may do this. onDeleted runs under the room lock after removal, so
// a concurrent join either completes before it or fails with ErrRoomNotFound.
func (s *RoomService) DeleteRoom(ctx context.Context, roomID, requesterUserID string, onDeleted func()) error {
	unlock := s.store.Lock(roomKey(roomID))
	defer unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return fmt.Errorf("delete room %s: %w", roomID, domain.ErrRoomNotFound)
	}
	if room.CreatorID != requesterUserID {
		return fmt.Errorf("delete room %s: %w", roomID, domain.ErrNotCreator)
	}

	s.remove(roomID)
	if onDeleted != nil {
		onDeleted()
	}
	slog.InfoContext(ctx, "room deleted", "room", roomID)
	return nil
}

// Publish appends a message to the room log if sessionID is still a member
// and hands it to deliver under the room lock. Delivery order therefore
// matches log order, and a joiner sees each message either in its snapshot
// history or live, never both.
func (s *RoomService) Publish(ctx context.Context, roomID, sessionID, sender, body string, deliver func(domain.Message)) (domain.Message, error) {
	unlock := s.store.Lock(roomKey(roomID))
	defer unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.Message{}, fmt.Errorf("publish to %s: %w", roomID, domain.ErrRoomNotFound)
	}
	if _, in := room.Members[sessionID]; !in {
		return domain.Message{}, fmt.Errorf("publish to %s: %w", roomID, domain.ErrNotInRoom)
	}

	msg := s.chat.Append(ctx, roomID, sender, body)
	room.LastActivity = msg.Timestamp
	if deliver != nil {
		deliver(msg)
	}
	return msg, nil
}

// History is the room log in append order.
func (s *RoomService) History(ctx context.Context, roomID string) []domain.Message {
	return s.chat.History(ctx, roomID)
}

func (s *RoomService) GetRoom(_ context.Context, roomID string) (domain.RoomInfo, error) {
	unlock := s.store.Lock(roomKey(roomID))
	defer unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return domain.RoomInfo{}, domain.ErrRoomNotFound
	}
	return room.Info(), nil
}

func (s *RoomService) IsMember(roomID, sessionID string) bool {
	unlock := s.store.Lock(roomKey(roomID))
	defer unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok {
		return false
	}
	_, in := room.Members[sessionID]
	return in
}

func (s *RoomService) Stats() domain.RegistryStats {
	stats := domain.RegistryStats{MaxRooms: s.opts.MaxRooms}
	for _, id := range s.rooms.Keys() {
		if info, err := s.GetRoom(context.Background(), id); err == nil {
			stats.ActiveRooms++
			stats.Members += info.MemberCount
		}
	}
	return stats
}

// Close disarms pending inactivity checks.
func (s *RoomService) Close() {
	s.sweeper.Stop()
}

// expire is the inactivity callback. It re-validates under the room lock:
// the room must still exist, be empty and have been idle for the threshold.
func (s *RoomService) expire(roomID string) {
	unlock := s.store.Lock(roomKey(roomID))
	defer unlock()

	room, ok := s.rooms.Get(roomID)
	if !ok || len(room.Members) > 0 {
		return
	}
	if idle := s.clock.Since(room.LastActivity); idle < s.opts.Inactivity {
		return
	}

	s.remove(roomID)
	slog.Info("room inactive, deleted", "room", roomID)
}

// remove must be called with the room lock held.
func (s *RoomService) remove(roomID string) {
	s.rooms.Delete(roomID)
	s.chat.Drop(roomID)
	s.members.ReleaseRoom(roomID)
	s.sweeper.Cancel(roomID)
}
