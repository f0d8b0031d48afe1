package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fastygo/weeklytasks/internal/config"
)

func TestNewClient_Disabled(t *testing.T) {
	client, err := NewClient(context.Background(), config.RedisConfig{Enabled: false, URL: "redis://localhost:6379"})
	assert.ErrorIs(t, err, ErrDisabled)
	assert.Nil(t, client)
}

func TestNewClient_PingsServer(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.RequireAuth("secret")

	client, err := NewClient(context.Background(), config.RedisConfig{
		Enabled:        true,
		URL:            "redis://" + mr.Addr(),
		Password:       "secret",
		DB:             2,
		ConnectTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	assert.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())
	mr.Select(2)
	assert.True(t, mr.Exists("k"))
}

func TestNewClient_Failures(t *testing.T) {
	_, err := NewClient(context.Background(), config.RedisConfig{Enabled: true, URL: "not a url"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	started := time.Now()
	_, err = NewClient(context.Background(), config.RedisConfig{
		Enabled:        true,
		URL:            "redis://" + addr,
		ConnectTimeout: 200 * time.Millisecond,
	})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), addr)
	assert.Less(t, time.Since(started), 5*time.Second)
}
