package session

import (
	"context"
	"errors"
	"sync"
)

var ErrNoSession = errors.New("no session")

// Store persists per session key/value pairs. Values are opaque JSON blobs
// and are always overwritten whole.
type Store interface {
	// Load returns every value of a session, the state read on boot.
	Load(ctx context.Context, sid string) (map[string][]byte, error)
	Get(ctx context.Context, sid, key string) ([]byte, bool, error)
	Set(ctx context.Context, sid, key string, value []byte) error
	Delete(ctx context.Context, sid, key string) error
	Clear(ctx context.Context, sid string) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string][]byte)}
}

func (s *MemoryStore) Load(_ context.Context, sid string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]byte, len(s.data[sid]))
	for k, v := range s.data[sid] {
		out[k] = append([]byte(nil), v...)
	}
	return out, nil
}

func (s *MemoryStore) Get(_ context.Context, sid, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[sid][key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (s *MemoryStore) Set(_ context.Context, sid, key string, value []byte) error {
	if sid == "" {
		return ErrNoSession
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[sid] == nil {
		s.data[sid] = make(map[string][]byte)
	}
	s.data[sid][key] = append([]byte(nil), value...)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, sid, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[sid], key)
	return nil
}

func (s *MemoryStore) Clear(_ context.Context, sid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, sid)
	return nil
}
