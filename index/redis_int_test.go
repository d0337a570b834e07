//go:build integration

package index

import (
	"os"
	"testing"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/stretchr/testify/require"
)

func redisSettings() *st.DSRedis {
	cfg := st.Index.Redis
	if endpoint := os.Getenv("DS_INDEX__REDIS__ENDPOINT"); len(endpoint) == 0 {
		cfg.Endpoint = "localhost:6379"
	}
	return &cfg
}

func TestRedisIndex(t *testing.T) {
	idx, err := NewRedisIndex(ctx, redisSettings(), "int-test")
	require.Nil(t, err)

	// clear previous run
	_, err = idx.Purge(ctx)
	require.Nil(t, err)

	// should be same tests as memory index as they should function identically
	path, ok, err := idx.Get(ctx, []byte{0xde, 0xad})
	require.Nil(t, err)
	require.False(t, ok)
	require.Equal(t, "", path)

	err = idx.Put(ctx, []byte{0xde, 0xad}, "/data/first")
	require.Nil(t, err)

	path, ok, err = idx.Get(ctx, []byte{0xde, 0xad})
	require.Nil(t, err)
	require.True(t, ok)
	require.Equal(t, "/data/first", path)

	err = idx.Put(ctx, []byte{0xde, 0xad}, "/data/second")
	require.Nil(t, err)
	path, _, err = idx.Get(ctx, []byte{0xde, 0xad})
	require.Nil(t, err)
	require.Equal(t, "/data/first", path)

	ttl, err := idx.Redis.TTL(ctx, idx.key([]byte{0xde, 0xad})).Result()
	require.Nil(t, err)
	require.Greater(t, ttl.Seconds(), 0.0)

	// a different run never sees these keys
	other, err := NewRedisIndex(ctx, redisSettings(), "int-test-other")
	require.Nil(t, err)
	_, ok, err = other.Get(ctx, []byte{0xde, 0xad})
	require.Nil(t, err)
	require.False(t, ok)
	require.Nil(t, other.Close())

	require.Nil(t, idx.Put(ctx, []byte{0xbe, 0xef}, "/data/third"))
	deleted, err := idx.Purge(ctx)
	require.Nil(t, err)
	require.Equal(t, int64(2), deleted)
	require.Nil(t, idx.Close())
}
