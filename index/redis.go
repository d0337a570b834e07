package index

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	st "github.com/AustralianCyberSecurityCentre/azul-dupescan.git/settings"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "dupescan"

// Keys are scoped to one run and expire, so a redis deployment can be shared between scans.
type RedisIndex struct {
	Redis   *redis.Client
	runID   string
	ttl     time.Duration
	retries int
	backoff time.Duration
}

func NewRedisIndex(ctx context.Context, cfg *st.DSRedis, runID string) (*RedisIndex, error) {
	if len(cfg.Endpoint) == 0 {
		return nil, fmt.Errorf("%w: no endpoint for redis", st.ErrConfiguration)
	}
	if len(runID) == 0 {
		return nil, fmt.Errorf("%w: redis index needs a run id", st.ErrConfiguration)
	}
	timeout := time.Second * time.Duration(cfg.ConnectionTimeoutSeconds)
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Endpoint,
		Username:     cfg.Username,
		Password:     cfg.Password,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		DB:           cfg.DB,
	})
	idx := &RedisIndex{
		Redis:   rdb,
		runID:   runID,
		ttl:     time.Second * time.Duration(cfg.TTLSeconds),
		retries: max(cfg.MaxRetries, 1),
		backoff: timeout,
	}
	if _, err := retry(ctx, idx, func() (string, error) { return rdb.Ping(ctx).Result() }); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis at %s is unreachable: %w", cfg.Endpoint, err)
	}
	st.Logger.Info().Str("endpoint", cfg.Endpoint).Str("run", runID).Msg("using redis digest index")
	return idx, nil
}

// misses are answered immediately, everything else is retried with a fixed backoff
func retry[T any](ctx context.Context, idx *RedisIndex, genericCall func() (T, error)) (T, error) {
	var val T
	var err error
	for i := 0; i < idx.retries; i++ {
		val, err = genericCall()
		if err == nil || errors.Is(err, redis.Nil) {
			return val, err
		}
		if i == idx.retries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return val, ctx.Err()
		case <-time.After(idx.backoff):
		}
	}
	return val, err
}

func (idx *RedisIndex) key(digest []byte) string {
	return fmt.Sprintf("%s:%s:%s", keyPrefix, idx.runID, hex.EncodeToString(digest))
}

func (idx *RedisIndex) Get(ctx context.Context, digest []byte) (string, bool, error) {
	val, err := retry(ctx, idx, func() (string, error) { return idx.Redis.Get(ctx, idx.key(digest)).Result() })
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (idx *RedisIndex) Put(ctx context.Context, digest []byte, path string) error {
	_, err := retry(ctx, idx, func() (bool, error) { return idx.Redis.SetNX(ctx, idx.key(digest), path, idx.ttl).Result() })
	return err
}

// Purge deletes every key written by this run and returns how many were removed.
func (idx *RedisIndex) Purge(ctx context.Context) (int64, error) {
	match := fmt.Sprintf("%s:%s:*", keyPrefix, idx.runID)
	var cursor uint64
	var deleted int64
	for {
		keys, next, err := idx.Redis.Scan(ctx, cursor, match, 1000).Result()
		if err != nil {
			return deleted, err
		}
		if len(keys) > 0 {
			n, err := retry(ctx, idx, func() (int64, error) { return idx.Redis.Del(ctx, keys...).Result() })
			if err != nil {
				return deleted, err
			}
			deleted += n
		}
		if next == 0 {
			return deleted, nil
		}
		cursor = next
	}
}

// Close drops this run's keys and disconnects.
func (idx *RedisIndex) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), idx.backoff*time.Duration(idx.retries)+time.Second)
	defer cancel()
	_, err := idx.Purge(ctx)
	return errors.Join(err, idx.Redis.Close())
}
