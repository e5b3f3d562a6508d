package conversation

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	msgs    []Message
	expires time.Time
}

// MemoryStore is a process-local Store with the same expiry semantics as RedisStore.
type MemoryStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	convs map[string]*memEntry
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{ttl: ttl, now: time.Now, convs: make(map[string]*memEntry)}
}

func (s *MemoryStore) NewID() string { return newID() }

func (s *MemoryStore) Append(ctx context.Context, id string, msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(id)
	if e == nil {
		e = &memEntry{}
		s.convs[id] = e
	}
	e.msgs = append(e.msgs, msg)
	e.expires = s.now().Add(s.ttl)
	return nil
}

func (s *MemoryStore) Read(ctx context.Context, id string) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(id)
	if e == nil {
		return []Message{}, nil
	}
	out := make([]Message, len(e.msgs))
	copy(out, e.msgs)
	return out, nil
}

func (s *MemoryStore) Clear(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.convs, id)
	return nil
}

// live returns the entry for id, dropping it if expired. Callers hold s.mu.
func (s *MemoryStore) live(id string) *memEntry {
	e, ok := s.convs[id]
	if !ok {
		return nil
	}
	if !s.now().Before(e.expires) {
		delete(s.convs, id)
		return nil
	}
	return e
}
