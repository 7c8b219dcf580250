package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/cwrk-planet/chat-service/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

// RoomSvc is the room registry as the session sees it. The hook arguments run
// while the registry holds the room's lock, which is what keeps Hub membership
// and the message log in step.
type RoomSvc interface {
	CreateRoom(ctx context.Context, creatorID string) (string, error)
	JoinRoom(ctx context.Context, roomID, sessionID, origin, claimedUserID string, onJoined func(domain.RoomSnapshot)) (domain.RoomSnapshot, error)
	LeaveRoom(ctx context.Context, roomID, sessionID, origin string, onLeft func(remaining int)) (int, error)
	DeleteRoom(ctx context.Context, roomID, requesterUserID string, onDeleted func()) error
	Publish(ctx context.Context, roomID, sessionID, sender, body string, deliver func(domain.Message)) (domain.Message, error)
	IsMember(roomID, sessionID string) bool
}

type Limiter interface {
	Check(connID, body string) error
	Forget(connID string)
}

type State int

const (
	StateConnected State = iota
	StateInRoom
	StateDisconnected
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateInRoom:
		return "in_room"
	case StateDisconnected:
		return "disconnected"
	default:
		return "unknown"
	}
}

const (
	msgCapacity       = "There are currently too many rooms active. Please try again later."
	msgInvalidRoom    = "Invalid Room ID"
	msgDuplicate      = "You are already connected to this room from another window."
	msgDeleteInvalid  = "Couldn't delete the room. Invalid Room ID"
	msgNotCreator     = "Only the room creator can delete this room."
	msgNotInRoom      = "You are not in a room."
	msgRoomDeleted    = "The room has been deleted."
	msgCooldown       = "Too many messages. Please wait a moment before sending more."
	msgTooLong        = "Message is too long. Maximum length is %d characters."
	msgInvalidPayload = "Invalid payload"
	msgUnknownEvent   = "Unknown event"
	msgInternal       = "Something went wrong. Please try again."
)

// Session is one client connection's view of the chat: at most one room at a
// time. Handle is called from the connection's read goroutine only; evict may
// be called from any goroutine.
type Session struct {
	conn     Conn
	origin   string
	hub      *Hub
	rooms    RoomSvc
	limiter  Limiter
	validate *validator.Validate
	log      *slog.Logger

	mu     sync.Mutex
	state  State
	roomID string
}

func NewSession(conn Conn, origin string, hub *Hub, rooms RoomSvc, limiter Limiter, v *validator.Validate) *Session {
	return &Session{
		conn:     conn,
		origin:   origin,
		hub:      hub,
		rooms:    rooms,
		limiter:  limiter,
		validate: v,
		log:      slog.With("session", conn.ID(), "origin", origin),
		state:    StateConnected,
	}
}

func (s *Session) ID() string { return s.conn.ID() }

func (s *Session) Send(msg Message) error { return s.conn.Send(msg) }

func (s *Session) State() (State, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.roomID
}

func (s *Session) enter(roomID string) {
	s.mu.Lock()
	s.state, s.roomID = StateInRoom, roomID
	s.mu.Unlock()
}

// evict drops the session back to Connected if it is still in roomID.
func (s *Session) evict(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInRoom && s.roomID == roomID {
		s.state, s.roomID = StateConnected, ""
	}
}

// Handle decodes one inbound frame and runs it to completion.
func (s *Session) Handle(ctx context.Context, data []byte) {
	if st, _ := s.State(); st == StateDisconnected {
		return
	}

	var in inbound
	if err := json.Unmarshal(data, &in); err != nil {
		s.fail(msgInvalidPayload)
		return
	}

	switch in.Type {
	case TypeCreateRoom:
		var p CreateRoomPayload
		if s.decode(in.Payload, &p) {
			s.createRoom(ctx, p)
		}
	case TypeJoinRoom:
		var p JoinRoomPayload
		if s.decode(in.Payload, &p) {
			s.joinRoom(ctx, p)
		}
	case TypeDeleteRoom:
		var p DeleteRoomPayload
		if s.decode(in.Payload, &p) {
			s.deleteRoom(ctx, p)
		}
	case TypeChatMessage:
		var p ChatPayload
		if s.decode(in.Payload, &p) {
			s.chat(ctx, p)
		}
	default:
		s.log.Debug("ws unknown event", "type", in.Type)
		s.fail(msgUnknownEvent + ": " + in.Type)
	}
}

// Close is the disconnect path. It always leaves the current room.
func (s *Session) Close(ctx context.Context) {
	s.leave(ctx)

	s.mu.Lock()
	s.state = StateDisconnected
	s.mu.Unlock()

	s.limiter.Forget(s.ID())
	s.log.Debug("ws session closed")
}

func (s *Session) createRoom(ctx context.Context, p CreateRoomPayload) {
	roomID, err := s.rooms.CreateRoom(ctx, p.CreatorID)
	if err != nil {
		if errors.Is(err, domain.ErrCapacity) {
			s.log.Warn("room limit reached", "creator", p.CreatorID)
			s.fail(msgCapacity)
			return
		}
		s.log.Error("create room failed", "err", err)
		s.fail(msgInternal)
		return
	}

	s.log.Info("room created", "room", roomID, "creator", p.CreatorID)
	_ = s.Send(Message{Type: TypeRoomCreated, Payload: roomID})

	s.leave(ctx)
	_, err = s.rooms.JoinRoom(ctx, roomID, s.ID(), s.origin, p.CreatorID, func(snap domain.RoomSnapshot) {
		s.attach(roomID, snap.MemberCount)
	})
	if err != nil {
		s.log.Warn("creator auto-join failed", "room", roomID, "err", err)
	}
}

func (s *Session) joinRoom(ctx context.Context, p JoinRoomPayload) {
	s.leave(ctx)

	snap, err := s.rooms.JoinRoom(ctx, p.RoomID, s.ID(), s.origin, p.UserID, func(snap domain.RoomSnapshot) {
		_ = s.Send(Message{Type: TypeRoomJoined, Payload: RoomJoinedPayload{
			RoomID:      snap.RoomID,
			IsCreator:   snap.IsCreator,
			MemberCount: snap.MemberCount,
		}})
		_ = s.Send(Message{Type: TypePreviousMessages, Payload: toChatPayloads(snap.History)})
		s.attach(snap.RoomID, snap.MemberCount)
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRoomNotFound):
		s.fail(msgInvalidRoom)
		return
	case errors.Is(err, domain.ErrDuplicateOrigin):
		s.log.Info("duplicate origin rejected", "room", p.RoomID)
		s.fail(msgDuplicate)
		return
	default:
		s.log.Error("join room failed", "room", p.RoomID, "err", err)
		s.fail(msgInternal)
		return
	}

	s.log.Info("connected to room", "room", p.RoomID, "members", snap.MemberCount)
}

func (s *Session) deleteRoom(ctx context.Context, p DeleteRoomPayload) {
	var conns []Conn
	notice := Message{Type: TypeRoomDeleted, Payload: RoomDeletedPayload{Message: msgRoomDeleted}}
	err := s.rooms.DeleteRoom(ctx, p.RoomID, p.UserID, func() {
		conns = s.hub.Detach(p.RoomID)
		send(conns, notice)
		for _, c := range conns {
			if m, ok := c.(*Session); ok {
				m.evict(p.RoomID)
			}
		}
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRoomNotFound):
		s.fail(msgDeleteInvalid)
		return
	case errors.Is(err, domain.ErrNotCreator):
		s.fail(msgNotCreator)
		return
	default:
		s.log.Error("delete room failed", "room", p.RoomID, "err", err)
		s.fail(msgInternal)
		return
	}

	if !lo.ContainsBy(conns, func(c Conn) bool { return c.ID() == s.ID() }) {
		_ = s.Send(notice)
	}
	s.log.Info("room deleted by creator", "room", p.RoomID, "detached", len(conns))
}

func (s *Session) chat(ctx context.Context, p ChatPayload) {
	st, roomID := s.State()
	if st != StateInRoom {
		s.fail(msgNotInRoom)
		return
	}
	if strings.TrimSpace(p.Text) == "" {
		return
	}
	if !s.rooms.IsMember(roomID, s.ID()) {
		// the room went away under us; do not spend a rate slot on it
		s.drop(roomID)
		return
	}

	if err := s.limiter.Check(s.ID(), p.Text); err != nil {
		var te *domain.ThrottleError
		if errors.As(err, &te) {
			s.throttled(te)
			return
		}
		s.log.Error("rate check failed", "err", err)
		s.fail(msgInternal)
		return
	}

	_, err := s.rooms.Publish(ctx, roomID, s.ID(), p.User, p.Text, func(msg domain.Message) {
		s.hub.Broadcast(roomID, Message{Type: TypeMessage, Payload: toChatPayload(msg)})
	})
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrRoomNotFound), errors.Is(err, domain.ErrNotInRoom):
		s.drop(roomID)
	default:
		s.log.Error("publish failed", "room", roomID, "err", err)
		s.fail(msgInternal)
	}
}

// drop forgets a room the registry no longer has this session in.
func (s *Session) drop(roomID string) {
	s.hub.Remove(roomID, s)
	s.evict(roomID)
	s.fail(msgNotInRoom)
}

func (s *Session) throttled(te *domain.ThrottleError) {
	text := msgCooldown
	if te.Kind == domain.ThrottleLength {
		text = fmt.Sprintf(msgTooLong, te.MaxLength)
	}
	s.log.Debug("message throttled", "kind", te.Kind, "cooldown", te.Cooldown)
	_ = s.Send(Message{Type: TypeError, Payload: ErrorPayload{
		Message:    text,
		Type:       string(te.Kind),
		CooldownMs: te.Cooldown.Milliseconds(),
	}})
}

// attach runs inside a join hook, under the room lock.
func (s *Session) attach(roomID string, members int) {
	s.enter(roomID)
	s.hub.Add(roomID, s)
	s.hub.Broadcast(roomID, Message{Type: TypeUsersOnline, Payload: members})
}

// leave takes the session out of its current room, if any, and tells the
// remaining members.
func (s *Session) leave(ctx context.Context) {
	st, roomID := s.State()
	if st != StateInRoom {
		return
	}

	left, err := s.rooms.LeaveRoom(ctx, roomID, s.ID(), s.origin, func(remaining int) {
		s.evict(roomID)
		s.hub.Remove(roomID, s)
		s.hub.Broadcast(roomID, Message{Type: TypeUsersOnline, Payload: remaining})
	})
	if err != nil {
		s.evict(roomID)
		s.hub.Remove(roomID, s)
		s.log.Debug("leave room skipped", "room", roomID, "err", err)
		return
	}
	s.log.Info("disconnected from room", "room", roomID, "members", left, "listeners", s.hub.Count(roomID))
}

func (s *Session) decode(raw json.RawMessage, dst any) bool {
	if len(raw) == 0 || json.Unmarshal(raw, dst) != nil {
		s.fail(msgInvalidPayload)
		return false
	}
	if err := s.validate.Struct(dst); err != nil {
		s.log.Debug("ws payload rejected", "err", err)
		s.fail(msgInvalidPayload)
		return false
	}
	return true
}

func (s *Session) fail(text string) {
	_ = s.Send(Message{Type: TypeError, Payload: ErrorPayload{Message: text, Type: ErrorTypeSystem}})
}

func toChatPayload(m domain.Message) ChatMessagePayload {
	return ChatMessagePayload{Text: m.Text, User: m.User, Timestamp: m.Timestamp}
}

func toChatPayloads(ms []domain.Message) []ChatMessagePayload {
	return lo.Map(ms, func(m domain.Message, _ int) ChatMessagePayload { return toChatPayload(m) })
}
