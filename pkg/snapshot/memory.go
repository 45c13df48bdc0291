package snapshot

import (
	"context"
	"sync"
	"time"

	"github.com/storedesk/notifykit/pkg/notification"
)

// Memory is a process-local Store.
type Memory struct {
	mu    sync.RWMutex
	items map[string]Snapshot
	now   func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]Snapshot),
		now:   time.Now,
	}
}

func (m *Memory) Load(_ context.Context, key string) (Snapshot, bool, error) {
	if err := validateKey(key); err != nil {
		return Snapshot{}, false, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.items[key]
	if !ok {
		return Snapshot{}, false, nil
	}
	s.Notifications = clone(s.Notifications)
	return s, true, nil
}

func (m *Memory) Save(_ context.Context, key string, list []notification.Notification) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = Snapshot{SavedAt: m.now(), Notifications: clone(list)}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}
