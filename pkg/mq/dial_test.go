package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDialWithRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	v, err := DialWithRetry(context.Background(), 10*time.Second, zap.NewNop(), func() (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("connection refused")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.Equal(t, 3, calls)
}

func TestDialWithRetry_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := DialWithRetry(ctx, time.Minute, zap.NewNop(), func() (int, error) {
		return 0, errors.New("connection refused")
	})
	assert.Error(t, err)
}
