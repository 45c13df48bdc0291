package notifystore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/storedesk/notifykit/pkg/notification"
	"github.com/storedesk/notifykit/pkg/notifystore"
	"github.com/storedesk/notifykit/pkg/snapshot"
)

type mockSnapshots struct {
	mock.Mock
}

func (m *mockSnapshots) Load(ctx context.Context, key string) (snapshot.Snapshot, bool, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(snapshot.Snapshot), args.Bool(1), args.Error(2)
}

func (m *mockSnapshots) Save(ctx context.Context, key string, list []notification.Notification) error {
	return m.Called(ctx, key, list).Error(0)
}

func (m *mockSnapshots) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func TestStore_SnapshotFailuresAreBestEffort(t *testing.T) {
	unavailable := errors.New("redis: connection refused")
	snaps := &mockSnapshots{}
	snaps.On("Load", mock.Anything, "u-1").Return(snapshot.Snapshot{}, false, unavailable).Once()
	snaps.On("Save", mock.Anything, "u-1", mock.Anything).Return(unavailable)
	snaps.On("Delete", mock.Anything, "u-1").Return(unavailable).Once()

	s, _ := newStore(t, notifystore.WithSnapshot(snaps, "u-1"))
	src := newFakeSource()

	s.Start(context.Background(), src, viewer)
	assert.Empty(t, s.Notifications())

	assert.True(t, s.AddNotification(n("a", notification.SeverityCritical)))
	assert.Len(t, s.Notifications(), 1)

	s.ClearNotifications()
	assert.Empty(t, s.Notifications())

	snaps.AssertExpectations(t)
	snaps.AssertNumberOfCalls(t, "Save", 1)
}

func TestStore_PreloadSkippedWhenPopulated(t *testing.T) {
	snaps := &mockSnapshots{}
	snaps.On("Load", mock.Anything, "u-1").Return(snapshot.Snapshot{
		Notifications: []notification.Notification{n("cached", notification.SeverityHigh)},
	}, true, nil).Once()
	snaps.On("Save", mock.Anything, "u-1", mock.Anything).Return(nil)

	s, _ := newStore(t, notifystore.WithSnapshot(snaps, "u-1"))
	s.SetInitialNotifications([]notification.Notification{n("live", notification.SeverityWarning)})

	s.Start(context.Background(), newFakeSource(), viewer)

	assert.Equal(t, []notification.ID{"live"}, ids(s.Notifications()))
	snaps.AssertExpectations(t)
}
