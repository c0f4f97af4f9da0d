package memory

import (
	"context"
	"sync"
	"time"

	"selfiebooth/internal/core/domain"
	"selfiebooth/internal/core/ports"
)

type sessionEntry struct {
	value     []byte
	expiresAt time.Time
}

func (e sessionEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// MemorySessionStore is the per-client key/value store of a single instance.
type MemorySessionStore struct {
	clients map[string]map[string]sessionEntry
	mu      sync.Mutex
	now     func() time.Time
}

func NewMemorySessionStore() ports.SessionStore {
	return &MemorySessionStore{
		clients: make(map[string]map[string]sessionEntry),
		now:     time.Now,
	}
}

func (s *MemorySessionStore) Get(ctx context.Context, clientID, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.clients[clientID][key]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	if entry.expired(s.now()) {
		s.deleteLocked(clientID, key)
		return nil, domain.ErrSessionNotFound
	}
	return append([]byte(nil), entry.value...), nil
}

// Set stores value; ttl <= 0 keeps it until deleted.
func (s *MemorySessionStore) Set(ctx context.Context, clientID, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry := sessionEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = s.now().Add(ttl)
	}
	if s.clients[clientID] == nil {
		s.clients[clientID] = make(map[string]sessionEntry)
	}
	s.clients[clientID][key] = entry
	return nil
}

func (s *MemorySessionStore) Delete(ctx context.Context, clientID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(clientID, key)
	return nil
}

func (s *MemorySessionStore) deleteLocked(clientID, key string) {
	keys := s.clients[clientID]
	delete(keys, key)
	if len(keys) == 0 {
		delete(s.clients, clientID)
	}
}
