package service

import (
	"github.com/cwrk-planet/chat-service/internal/domain"
	"github.com/cwrk-planet/chat-service/internal/store"

	"github.com/samber/lo"
)

// MemberService guards rooms against one network origin holding several
// simultaneous connections in the same room.
type MemberService struct {
	claims *store.Table[map[string]struct{}] // origin -> room ids
}

func NewMemberService() *MemberService {
	return &MemberService{claims: store.NewTable[map[string]struct{}]()}
}

func (s *MemberService) Occupies(origin, roomID string) bool {
	rooms, ok := s.claims.Get(origin)
	if !ok {
		return false
	}
	_, ok = rooms[roomID]
	return ok
}

// Claim records origin as present in roomID. Sets are copied on write so
// readers never see a map that is being mutated.
func (s *MemberService) Claim(origin, roomID string) error {
	var err error
	s.claims.Update(origin, func(old map[string]struct{}, ok bool) (map[string]struct{}, bool) {
		if _, taken := old[roomID]; taken {
			err = domain.ErrDuplicateOrigin
			return old, ok
		}
		return lo.Assign(old, map[string]struct{}{roomID: {}}), true
	})
	return err
}

func (s *MemberService) Release(origin, roomID string) {
	s.claims.Update(origin, func(old map[string]struct{}, ok bool) (map[string]struct{}, bool) {
		if !ok {
			return nil, false
		}
		next := lo.OmitByKeys(old, []string{roomID})
		return next, len(next) > 0
	})
}

// ReleaseRoom drops every claim that references roomID and returns how many
// origins were affected.
func (s *MemberService) ReleaseRoom(roomID string) int {
	released := 0
	for _, origin := range s.claims.Keys() {
		if s.Occupies(origin, roomID) {
			s.Release(origin, roomID)
			released++
		}
	}
	return released
}
