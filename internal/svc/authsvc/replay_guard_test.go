package authsvc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-authsvc/internal/svc/authsvc"
)

func TestReplayGuard(t *testing.T) {
	t.Parallel()

	guard, err := authsvc.NewReplayGuard(2)
	require.NoError(t, err)

	assert.False(t, guard.Seen("u1", 100))
	assert.True(t, guard.Consume("u1", 100))
	assert.True(t, guard.Seen("u1", 100))
	assert.False(t, guard.Consume("u1", 100))
	assert.True(t, guard.Consume("u1", 101))
	assert.True(t, guard.Consume("u2", 100))

	// cache holds two entries, (u1, 100) was evicted
	assert.True(t, guard.Consume("u1", 100))

	_, err = authsvc.NewReplayGuard(0)
	require.Error(t, err)
}
