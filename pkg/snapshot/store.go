package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/storedesk/notifykit/pkg/notification"
)

// Store persists the last known notification list of a console so it can be
// shown while the stream is offline.
type Store interface {
	// Load returns the saved snapshot. ok is false when nothing is stored.
	Load(ctx context.Context, key string) (snap Snapshot, ok bool, err error)
	Save(ctx context.Context, key string, list []notification.Notification) error
	Delete(ctx context.Context, key string) error
}

// Snapshot is a saved notification list.
type Snapshot struct {
	SavedAt       time.Time                   `json:"savedAt"`
	Notifications []notification.Notification `json:"notifications"`
}

// Age reports how old the snapshot is at now.
func (s Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.SavedAt)
}

func encode(s Snapshot) ([]byte, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	return b, nil
}

func decode(b []byte) (Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return Snapshot{}, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if s.Notifications == nil {
		s.Notifications = []notification.Notification{}
	}
	return s, nil
}

func validateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	return nil
}

func clone(list []notification.Notification) []notification.Notification {
	if list == nil {
		return []notification.Notification{}
	}
	return slices.Clone(list)
}
