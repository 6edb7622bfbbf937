package redis

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFaviconCacheHitMissAndForget(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	cache := NewFaviconCache(db)
	ctx := context.Background()

	mock.ExpectGet("linkvault:favicon:example.com").RedisNil()
	mock.ExpectSet("linkvault:favicon:example.com", "https://example.com/favicon.ico", time.Hour).SetVal("OK")
	mock.ExpectGet("linkvault:favicon:example.com").SetVal("https://example.com/favicon.ico")
	mock.ExpectDel("linkvault:favicon:example.com").SetVal(1)

	_, ok, err := cache.Get(ctx, "Example.com")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "example.com", "https://example.com/favicon.ico", time.Hour))

	got, ok, err := cache.Get(ctx, "example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "https://example.com/favicon.ico", got)

	require.NoError(t, cache.Forget(ctx, "example.com"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFaviconCacheDefaultTTLAndErrors(t *testing.T) {
	t.Parallel()

	db, mock := redismock.NewClientMock()
	cache := NewFaviconCache(db)
	ctx := context.Background()

	mock.ExpectSet("linkvault:favicon:a.example", "u", DefaultTTL).SetVal("OK")
	mock.ExpectGet("linkvault:favicon:b.example").SetErr(errors.New("READONLY"))

	require.NoError(t, cache.Set(ctx, "a.example", "u", 0))
	_, _, err := cache.Get(ctx, "b.example")
	require.ErrorContains(t, err, "READONLY")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestConnectGivesUp(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = Connect(context.Background(), ConnectOptions{
		Addr:           addr,
		ConnectTimeout: 300 * time.Millisecond,
		RetryInterval:  50 * time.Millisecond,
		PingTimeout:    100 * time.Millisecond,
	}, nil)
	require.Error(t, err)

	_, err = Connect(context.Background(), ConnectOptions{}, nil)
	require.Error(t, err)
}
