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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/vendahub/tesouro/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statsSnapshot struct {
	TenantID       string
	PendingAmount  float64
	SettledAmount  float64
	WithdrawnCount int
}

func newTestCache(t *testing.T) Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})
	c, err := NewCache()
	require.NoError(t, err)
	return c
}

func TestSetAndGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	stored := statsSnapshot{
		TenantID:       "tenant_main",
		PendingAmount:  1250.50,
		SettledAmount:  98000,
		WithdrawnCount: 42,
	}
	require.NoError(t, c.Set(ctx, "stats:tenant_main", stored, 10*time.Minute))

	var loaded statsSnapshot
	require.NoError(t, c.Get(ctx, "stats:tenant_main", &loaded))
	assert.Equal(t, stored, loaded)
}

func TestSetZeroTTL(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	// Zero TTL stores without expiry rather than failing.
	assert.NoError(t, c.Set(ctx, "balance:bln_01", "9450.00", 0))
}

func TestGetMissLeavesTargetUntouched(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	loaded := statsSnapshot{TenantID: "stale"}
	require.NoError(t, c.Get(ctx, "stats:tenant_absent", &loaded))
	assert.Equal(t, "stale", loaded.TenantID)
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	c := newTestCache(t)

	require.NoError(t, c.Set(ctx, "withdrawal:wdl_01", "processing", 10*time.Minute))
	require.NoError(t, c.Delete(ctx, "withdrawal:wdl_01"))

	var status string
	require.NoError(t, c.Get(ctx, "withdrawal:wdl_01", &status))
	assert.Empty(t, status)

	// Deleting an absent key is not an error.
	assert.NoError(t, c.Delete(ctx, "withdrawal:wdl_absent"))
}
