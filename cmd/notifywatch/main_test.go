package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/storedesk/notifykit/pkg/realtime"
)

type streamFlag bool

func (f streamFlag) IsConnected() bool { return bool(f) }

func TestStreamReady(t *testing.T) {
	assert.NoError(t, streamReady(streamFlag(true))(context.Background()))

	err := streamReady(streamFlag(false))(context.Background())
	assert.ErrorIs(t, err, realtime.ErrNotConnected)
	assert.NotErrorIs(t, err, realtime.ErrClosed)
}

func TestStreamReady_DisconnectedClient(t *testing.T) {
	c := realtime.New(nil)
	defer c.Close()

	assert.Equal(t, realtime.StateDisconnected, c.State())
	assert.ErrorIs(t, streamReady(c)(context.Background()), realtime.ErrNotConnected)
}
