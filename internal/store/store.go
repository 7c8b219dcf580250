// Package store is the process-wide in-memory state of the chat service.
//
// Tables are safe for single operations; callers that read, modify and write
// back related entries hold the key's lock from Lock for the whole sequence.
package store

import "sync"

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Store hands out per-key mutual exclusion.
type Store struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

func New() *Store {
	return &Store{locks: make(map[string]*keyLock)}
}

// Lock blocks until key is free and returns the matching unlock. Entries are
// reference counted and dropped once nobody holds or waits on them.
func (s *Store) Lock(key string) (unlock func()) {
	s.mu.Lock()
	kl, ok := s.locks[key]
	if !ok {
		kl = &keyLock{}
		s.locks[key] = kl
	}
	kl.refs++
	s.mu.Unlock()

	kl.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kl.mu.Unlock()

			s.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(s.locks, key)
			}
			s.mu.Unlock()
		})
	}
}

// held reports how many keys currently have holders or waiters.
func (s *Store) held() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.locks)
}
