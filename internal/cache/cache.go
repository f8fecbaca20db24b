/*
Copyright 2025 Vendahub Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/cache/v9"
	"github.com/vendahub/tesouro/config"
	redis_db "github.com/vendahub/tesouro/internal/redis-db"
)

// Cache is the small surface the engine needs: set with a TTL, get into
// a target, delete. Balance snapshots and financial stats go through it.
type Cache interface {
	// Set stores a value under key for ttl.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get loads the value under key into data, which must be a pointer.
	// A miss is not an error; data is simply left untouched.
	Get(ctx context.Context, key string, data interface{}) error

	// Delete drops the value under key.
	Delete(ctx context.Context, key string) error
}

// Local front sizing. Hot keys stay in-process for a minute before the
// next read goes back to Redis.
const (
	localEntries = 128000
	localTTL     = time.Minute
)

// RedisCache backs the Cache interface with Redis plus a local TinyLFU
// front so hot snapshot reads never leave the process.
type RedisCache struct {
	cache *cache.Cache
}

// NewCache connects to the configured Redis DNS.
func NewCache() (Cache, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	return connect("redis://" + cfg.Redis.Dns)
}

func connect(address string) (*RedisCache, error) {
	client, err := redis_db.NewRedisClient([]string{address}, false)
	if err != nil {
		return nil, err
	}

	return &RedisCache{
		cache: cache.New(&cache.Options{
			Redis:      client.Client(),
			LocalCache: cache.NewTinyLFU(localEntries, localTTL),
		}),
	}, nil
}

// Set adds an entry with the given TTL.
func (r *RedisCache) Set(ctx context.Context, key string, data interface{}, ttl time.Duration) error {
	return r.cache.Set(&cache.Item{
		Ctx:   ctx,
		Key:   key,
		Value: data,
		TTL:   ttl,
	})
}

// Get retrieves an entry into data. Cache misses return nil.
func (r *RedisCache) Get(ctx context.Context, key string, data interface{}) error {
	if err := r.cache.Get(ctx, key, data); err != nil && !errors.Is(err, cache.ErrCacheMiss) {
		return err
	}
	return nil
}

// Delete removes the entry under key.
func (r *RedisCache) Delete(ctx context.Context, key string) error {
	return r.cache.Delete(ctx, key)
}
