package redis

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/require"
)

func TestFinalizeLock_Acquire(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	lock := NewRedisFinalizeLock(client, 30*time.Second)

	mock.ExpectSetNX("finalize:lst_1:lock", 1, 30*time.Second).SetVal(true)

	ok, err := lock.Acquire(context.Background(), "lst_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeLock_AcquireHeldElsewhere(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	lock := NewRedisFinalizeLock(client, 30*time.Second)

	mock.ExpectSetNX("finalize:lst_1:lock", 1, 30*time.Second).SetVal(false)

	ok, err := lock.Acquire(context.Background(), "lst_1")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeLock_Release(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	lock := NewRedisFinalizeLock(client, 30*time.Second)

	mock.ExpectDel("finalize:lst_1:lock").SetVal(1)

	require.NoError(t, lock.Release(context.Background(), "lst_1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFinalizeLock_DefaultTTL(t *testing.T) {
	t.Parallel()

	client, mock := redismock.NewClientMock()
	lock := NewRedisFinalizeLock(client, 0)

	mock.ExpectSetNX("finalize:lst_1:lock", 1, 30*time.Second).SetVal(true)

	ok, err := lock.Acquire(context.Background(), "lst_1")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
