package state

import "sync"

// Store holds the previous and current snapshots of the poll loop.
//
// The poll cycle is the only writer. The mutex exists so cycles running on
// separate goroutines never observe a half-committed pair.
type Store struct {
	mu       sync.RWMutex
	previous Snapshot
	current  Snapshot
}

func NewStore() *Store {
	return &Store{}
}

// Previous returns the snapshot committed by the last successful cycle.
func (s *Store) Previous() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous
}

// Current returns the most recently fetched snapshot.
func (s *Store) Current() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// IsInitial reports whether no cycle has committed yet.
func (s *Store) IsInitial() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.previous.IsEmpty()
}

func (s *Store) SetCurrent(snap Snapshot) {
	s.mu.Lock()
	s.current = snap
	s.mu.Unlock()
}

// Commit promotes the current snapshot to previous.
func (s *Store) Commit() {
	s.mu.Lock()
	s.previous = s.current
	s.mu.Unlock()
}
