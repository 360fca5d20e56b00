package repos

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct{ mock.Mock }

func (f *fakeRedis) SetNX(ctx context.Context, key string, _ any, expiration time.Duration) *redis.BoolCmd {
	args := f.Called(ctx, key, expiration)

	return redis.NewBoolResult(args.Bool(0), args.Error(1))
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	args := f.Called(ctx, keys)

	return redis.NewIntResult(int64(args.Int(0)), args.Error(1))
}

func TestDedupRepository_MarkSeen(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		stored       bool
		redisErr     error
		expectedSeen bool
		expectError  bool
	}{
		{name: "first delivery", stored: true, expectedSeen: false},
		{name: "redelivery", stored: false, expectedSeen: true},
		{name: "redis failure", redisErr: errors.New("i/o timeout"), expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := &fakeRedis{}
			client.On("SetNX", mock.Anything, "icqueue:seen:msg-1", time.Hour).Return(tt.stored, tt.redisErr).Once()

			seen, err := NewDedupRepository(client, time.Hour).MarkSeen(t.Context(), "msg-1")

			if tt.expectError {
				require.ErrorIs(t, err, tt.redisErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedSeen, seen)
			}

			client.AssertExpectations(t)
		})
	}
}

func TestDedupRepository_Forget(t *testing.T) {
	t.Parallel()

	client := &fakeRedis{}
	client.On("Del", mock.Anything, []string{"icqueue:seen:msg-1"}).Return(1, nil).Once()
	client.On("Del", mock.Anything, []string{"icqueue:seen:msg-2"}).Return(0, errors.New("closed")).Once()

	repo := NewDedupRepository(client, time.Hour)

	require.NoError(t, repo.Forget(t.Context(), "msg-1"))
	require.ErrorContains(t, repo.Forget(t.Context(), "msg-2"), "closed")

	client.AssertExpectations(t)
}
