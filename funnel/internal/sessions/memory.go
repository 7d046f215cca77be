package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/techview-systems/leadpixel-stack/funnel/internal/models"
)

type memoryEntry struct {
	session models.Session
	expires time.Time
}

// Memory is an in-process Store for single-instance deployments and tests.
type Memory struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	locks    map[string]time.Time
	ttl      time.Duration
	now      func() time.Time
}

// NewMemory returns an empty Memory store. A non-positive ttl uses DefaultTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		sessions: make(map[string]memoryEntry),
		locks:    make(map[string]time.Time),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *Memory) Get(ctx context.Context, id string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if m.now().After(e.expires) {
		delete(m.sessions, id)
		return nil, ErrNotFound
	}
	s := e.session
	return &s, nil
}

func (m *Memory) Save(ctx context.Context, s *models.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = memoryEntry{session: *s, expires: m.now().Add(m.ttl)}
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *Memory) Lock(ctx context.Context, id string, ttl time.Duration) (Unlock, error) {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if until, held := m.locks[id]; held && now.Before(until) {
		return nil, ErrBusy
	}
	until := now.Add(ttl)
	m.locks[id] = until

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if m.locks[id].Equal(until) {
				delete(m.locks, id)
			}
		})
	}, nil
}
