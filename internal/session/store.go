// Package session keeps at most one in-progress open-position flow per user.
package session

import "liquidityPilot/internal/kv"

// Store holds the active flow state of each user.
type Store struct {
	m *kv.Map[State]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{m: kv.New[State](kv.DefaultShards)}
}

// Get returns the active state, or nil when the user has none.
func (s *Store) Get(userID int64) State {
	st, ok := s.m.Get(userID)
	if !ok {
		return nil
	}
	return st
}

// Put replaces any existing state for the user.
func (s *Store) Put(userID int64, st State) {
	if st == nil {
		s.m.Delete(userID)
		return
	}
	s.m.Put(userID, st)
}

// Clear drops the user's flow.
func (s *Store) Clear(userID int64) {
	s.m.Delete(userID)
}

// Len reports how many users have a flow in progress.
func (s *Store) Len() int {
	return s.m.Len()
}
