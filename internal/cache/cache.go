// Package cache holds server-side read views that the change notification
// bridge invalidates.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// View keys.
const (
	KeyActiveOrders = "view:orders:active"
	KeyTables       = "view:tables"
)

// Store is a byte-oriented key/value cache with per-entry TTL.
//
// Every key carries a generation that Delete advances. A reader that
// captured the generation before loading can store its result with
// SetIfGeneration, which refuses the write once the key was invalidated.
type Store interface {
	// Get returns ok=false on a miss.
	Get(ctx context.Context, key string) (val []byte, ok bool, err error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Delete removes keys and advances their generations.
	Delete(ctx context.Context, keys ...string) error
	// Generation is 0 for a key that was never deleted.
	Generation(ctx context.Context, key string) (int64, error)
	// SetIfGeneration stores val only while key is still at gen.
	SetIfGeneration(ctx context.Context, key string, gen int64, val []byte, ttl time.Duration) (bool, error)
}

// Remember returns the cached value under key, or calls load and caches its
// result for ttl. A result loaded across an invalidation is returned but not
// cached. Cache failures degrade to a direct load.
func Remember[T any](ctx context.Context, s Store, log *zap.Logger, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	if raw, ok, err := s.Get(ctx, key); err != nil {
		log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return v, nil
		}
		log.Warn("cache entry unreadable, reloading", zap.String("key", key))
	}

	gen, genErr := s.Generation(ctx, key)
	if genErr != nil {
		log.Warn("cache generation failed", zap.String("key", key), zap.Error(genErr))
	}

	v, err := load(ctx)
	if err != nil || genErr != nil {
		return v, err
	}

	raw, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("marshal %s: %w", key, err)
	}
	stored, err := s.SetIfGeneration(ctx, key, gen, raw, ttl)
	if err != nil {
		log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	} else if !stored {
		log.Debug("view invalidated during load, not cached", zap.String("key", key))
	}
	return v, nil
}
