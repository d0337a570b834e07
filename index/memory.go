package index

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
	"github.com/allegro/bigcache/v3"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/metrics"
	bigcache_store "github.com/eko/gocache/store/bigcache/v4"
	"github.com/prometheus/client_golang/prometheus"
)

const minMemoryBytes = 1048576

// entries must outlive any realistic scan, bigcache evicts on age as well as size
const memoryLifeWindow = 7 * 24 * time.Hour

// MemoryIndex is bounded by a hard byte cap. Once full, the oldest digests are evicted
// and later hits on them come back as misses.
type MemoryIndex struct {
	client  *bigcache.BigCache
	manager cache.CacheInterface[[]byte]
}

func NewMemoryIndex(ctx context.Context, sizeBytes uint64) (*MemoryIndex, error) {
	if sizeBytes < minMemoryBytes {
		return nil, fmt.Errorf("%w: index memory size must be at least 1Mi, got %d", st.ErrConfiguration, sizeBytes)
	}
	c := bigcache.DefaultConfig(memoryLifeWindow)
	c.HardMaxCacheSize = int(sizeBytes / 1048576) // in MB
	c.Verbose = false
	c.Shards = 64
	// values are paths, keep the initial allocation small and let shards grow to the cap
	c.MaxEntrySize = 256
	c.MaxEntriesInWindow = 64 * 1024
	// no background expiry sweeps
	c.CleanWindow = 0
	client, err := bigcache.New(ctx, c)
	if err != nil {
		return nil, err
	}
	cacheClient := bigcache_store.NewBigcache(client)
	stores := []cache.SetterCacheInterface[[]byte]{cache.New[[]byte](cacheClient)}
	customRegistry := prometheus.NewRegistry()
	promMetrics := metrics.NewPrometheus("dupescan", metrics.WithRegisterer(customRegistry))
	manager := cache.NewMetric(promMetrics, cache.NewChain(stores...))
	st.Logger.Debug().Uint64("bytes", sizeBytes).Msg("memory digest index allocated")
	return &MemoryIndex{client: client, manager: manager}, nil
}

func (idx *MemoryIndex) Get(ctx context.Context, digest []byte) (string, bool, error) {
	val, err := idx.manager.Get(ctx, hex.EncodeToString(digest))
	if err != nil {
		// cache miss
		if strings.Contains(err.Error(), "not found") {
			return "", false, nil
		}
		return "", false, err
	}
	if val == nil {
		return "", false, nil
	}
	return string(val), true, nil
}

func (idx *MemoryIndex) Put(ctx context.Context, digest []byte, path string) error {
	k := hex.EncodeToString(digest)
	if _, ok, err := idx.Get(ctx, digest); err != nil || ok {
		return err
	}
	return idx.manager.Set(ctx, k, []byte(path))
}

// Len is the number of digests currently held.
func (idx *MemoryIndex) Len() int {
	return idx.client.Len()
}

func (idx *MemoryIndex) Close() error {
	return idx.client.Close()
}
