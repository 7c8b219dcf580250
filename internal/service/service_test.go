package service

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cwrk-planet/chat-service/internal/store"
)

const (
	testMaxRooms   = 35
	testInactivity = time.Hour
)

type fixture struct {
	clock   *clock.Mock
	store   *store.Store
	chat    *ChatService
	members *MemberService
	rooms   *RoomService
}

func newFixture() *fixture {
	clk := clock.NewMock()
	clk.Set(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	st := store.New()
	chat := NewChatService(clk)
	members := NewMemberService()
	rooms := NewRoomService(st, clk, chat, members, RoomOptions{
		MaxRooms:   testMaxRooms,
		Inactivity: testInactivity,
	})
	return &fixture{clock: clk, store: st, chat: chat, members: members, rooms: rooms}
}

var bg = context.Background()
