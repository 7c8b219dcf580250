package service

import (
	"context"

	"github.com/benbjohnson/clock"
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"
)

// ChatService is the per-room message log. Logs grow without a cap; rooms are
// bounded by the registry ceiling and the inactivity sweep instead.
type ChatService struct {
	logs  *store.Table[[]domain.Message]
	clock clock.Clock
}

func NewChatService(clk clock.Clock) *ChatService {
	return &ChatService{
		logs:  store.NewTable[[]domain.Message](),
		clock: clk,
	}
}

// Append stamps the message with the receipt time and stores it. Callers that
// need the room to still exist hold the room lock (see RoomService.Publish).
func (s *ChatService) Append(_ context.Context, roomID, sender, body string) domain.Message {
	msg := domain.Message{
		User:      sender,
		Text:      body,
		Timestamp: s.clock.Now().UTC(),
	}
	s.logs.Update(roomID, func(old []domain.Message, _ bool) ([]domain.Message, bool) {
		return append(old, msg), true
	})
	return msg
}

// History returns a copy of the room log in append order.
func (s *ChatService) History(_ context.Context, roomID string) []domain.Message {
	msgs, _ := s.logs.Get(roomID)
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *ChatService) Drop(roomID string) {
	s.logs.Delete(roomID)
}

func (s *ChatService) Rooms() int {
	return s.logs.Len()
}
