package testutils

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTestSlogHandler(t *testing.T) {
	logger, h := NewTestLogger()

	logger.With("component", "runner").Info("task completed", "task_id", "abc")
	logger.Warn("other")

	found := h.Find("task completed")
	require.Len(t, found, 1)
	assert.Equal(t, "INFO", found[0]["level"])
	assert.Equal(t, "runner", found[0]["component"])
	assert.Equal(t, "abc", found[0]["task_id"])
	assert.Len(t, h.Entries(), 2)

	h.Clear()
	assert.Empty(t, h.Entries())
}

func TestRedisEnv(t *testing.T) {
	env := NewRedisEnv(t, nil)
	ctx := context.Background()

	require.NoError(t, env.Backend.Set(ctx, "k", "v", 0))
	assert.True(t, env.Server.DB(BackendDB).Exists("k"))
	assert.False(t, env.Server.DB(BrokerDB).Exists("k"))

	_, err := env.Broker.RPush(ctx, "queue:default", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, 2, env.QueueLen(t, "default"))
	assert.Zero(t, env.QueueLen(t, "priority"))
}
