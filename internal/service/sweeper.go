package service

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Sweeper keeps at most one pending inactivity check per room. Each callback
// is bound to the room id it was armed for.
type Sweeper struct {
	clock clock.Clock
	after time.Duration
	fire  func(roomID string)

	mu     sync.Mutex
	timers map[string]*clock.Timer
}

func NewSweeper(clk clock.Clock, after time.Duration, fire func(roomID string)) *Sweeper {
	return &Sweeper{
		clock:  clk,
		after:  after,
		fire:   fire,
		timers: make(map[string]*clock.Timer),
	}
}

// Schedule (re)arms the check for roomID.
func (s *Sweeper) Schedule(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[roomID]; ok {
		t.Stop()
	}

	var t *clock.Timer
	t = s.clock.AfterFunc(s.after, func() {
		s.mu.Lock()
		current := s.timers[roomID] == t
		if current {
			delete(s.timers, roomID)
		}
		s.mu.Unlock()

		if current {
			s.fire(roomID)
		}
	})
	s.timers[roomID] = t
}

func (s *Sweeper) Cancel(roomID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.timers[roomID]; ok {
		t.Stop()
		delete(s.timers, roomID)
	}
}

func (s *Sweeper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop disarms every pending check.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
