package index

import (
	"context"
	"errors"
	"fmt"
	"testing"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestMemoryIndex(t *testing.T) {
	idx, err := NewMemoryIndex(ctx, 4*1048576)
	require.Nil(t, err)
	defer idx.Close()

	// should be same tests as redis index as they should function identically
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

	// first writer wins
	err = idx.Put(ctx, []byte{0xde, 0xad}, "/data/second")
	require.Nil(t, err)
	path, _, err = idx.Get(ctx, []byte{0xde, 0xad})
	require.Nil(t, err)
	require.Equal(t, "/data/first", path)

	for i := 0; i < 100; i++ {
		require.Nil(t, idx.Put(ctx, []byte(fmt.Sprintf("digest-%d", i)), fmt.Sprintf("/data/%d", i)))
	}
	require.Equal(t, 101, idx.Len())
}

func TestMemoryIndexTooSmall(t *testing.T) {
	idx, err := NewMemoryIndex(ctx, 1024)
	require.Nil(t, idx)
	require.True(t, errors.Is(err, st.ErrConfiguration))
}

func TestNewBackends(t *testing.T) {
	cfg := st.DSIndex{Backend: "none"}
	idx, err := New(ctx, &cfg, "run")
	require.Nil(t, err)
	require.Nil(t, idx)

	cfg = st.DSIndex{Backend: "memory", MemorySizeBytes: 2 * 1048576}
	idx, err = New(ctx, &cfg, "run")
	require.Nil(t, err)
	require.IsType(t, &MemoryIndex{}, idx)
	require.Nil(t, idx.Close())

	cfg = st.DSIndex{Backend: "redis"}
	_, err = New(ctx, &cfg, "run")
	require.True(t, errors.Is(err, st.ErrConfiguration))

	cfg = st.DSIndex{Backend: "etcd"}
	_, err = New(ctx, &cfg, "run")
	require.True(t, errors.Is(err, st.ErrConfiguration))
}
