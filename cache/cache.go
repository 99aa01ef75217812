// Package cache stores computed schedules keyed by a hash of their inputs.
// Runs are pure, so identical requests can be answered from the cache.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Cache is a byte-value store with expiry. Implementations: Redis, Memory.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Key hashes the canonical JSON of payload under a namespace, e.g.
// "schedule:3f9a1c0de4b2a871". Struct payloads encode fields in declaration
// order and maps with sorted keys, so equal inputs give equal keys.
func Key(namespace string, payload any) (string, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("cache key: %w", err)
	}
	return namespace + ":" + strconv.FormatUint(xxhash.Sum64(b), 16), nil
}

// Remember returns the cached value for key or computes, stores and returns
// it. The bool reports a cache hit. Cache failures never fail the call; they
// are reported through onErr when it is non-nil.
func Remember[T any](ctx context.Context, c Cache, key string, ttl time.Duration, onErr func(error), compute func() (T, error)) (T, bool, error) {
	report := func(err error) {
		if onErr != nil {
			onErr(err)
		}
	}

	if c != nil {
		raw, ok, err := c.Get(ctx, key)
		if err != nil {
			report(err)
		} else if ok {
			var v T
			decodeErr := json.Unmarshal(raw, &v)
			if decodeErr == nil {
				return v, true, nil
			}
			report(fmt.Errorf("decode cached %s: %w", key, decodeErr))
		}
	}

	v, err := compute()
	if err != nil {
		return v, false, err
	}

	if c != nil {
		raw, err := json.Marshal(v)
		if err != nil {
			report(fmt.Errorf("encode %s: %w", key, err))
		} else if err := c.Set(ctx, key, raw, ttl); err != nil {
			report(err)
		}
	}
	return v, false, nil
}
