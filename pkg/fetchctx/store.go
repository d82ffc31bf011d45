package fetchctx

import (
	"maps"
	"sync"
)

// State is the data jobs of one context share. Jobs of a parallel stage run
// on separate goroutines, so every access goes through the lock.
type State struct {
	mu        sync.RWMutex
	userAgent string
	data      map[string]any
}

func NewState(userAgent string) *State {
	return &State{userAgent: userAgent, data: make(map[string]any)}
}

func (s *State) UserAgent() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userAgent
}

func (s *State) SetUserAgent(ua string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAgent = ua
}

func (s *State) Get(key string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *State) Set(key string, v any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		s.data = make(map[string]any)
	}
	s.data[key] = v
}

// Snapshot returns a shallow copy of the stored data.
func (s *State) Snapshot() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.data)
}

// MemoryStore is an in-process Store holding a single State.
type MemoryStore struct {
	state *State
}

func NewMemoryStore(userAgent string) *MemoryStore {
	return &MemoryStore{state: NewState(userAgent)}
}

func (m *MemoryStore) State() *State {
	return m.state
}
