/*
Package index remembers which path first produced each digest so bloom filter hits can be confirmed exactly.
*/
package index

import (
	"context"
	"fmt"
	"strings"
	"time"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"
)

const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendNone   = "none"
)

// A DigestIndex maps a digest to the first path seen with it. This is intended so the detector can run without
// connecting to redis.
type DigestIndex interface {
	// Get returns ok=false on a miss, which is not an error.
	Get(ctx context.Context, digest []byte) (path string, ok bool, err error)
	// Put keeps the first path stored for a digest.
	Put(ctx context.Context, digest []byte, path string) error
	Close() error
}

// New builds the configured backend. The none backend returns a nil index.
func New(ctx context.Context, cfg *st.DSIndex, runID string) (DigestIndex, error) {
	switch strings.ToLower(cfg.Backend) {
	case BackendMemory, "":
		idx, err := NewMemoryIndex(ctx, uint64(cfg.MemorySizeBytes))
		if err != nil {
			return nil, err
		}
		return idx, nil
	case BackendRedis:
		idx, err := NewRedisIndex(ctx, &cfg.Redis, runID)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case BackendNone:
		return nil, nil
	}
	return nil, fmt.Errorf("%w: unknown index backend '%s'", st.ErrConfiguration, cfg.Backend)
}

// NewRunID returns an identifier separating the keys of concurrent runs sharing one backend.
func NewRunID() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}
