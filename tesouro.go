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

package tesouro

import (
	"context"
	"embed"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/database"
	"github.com/vendahub/tesouro/internal/cache"
	"github.com/vendahub/tesouro/internal/hooks"
	"github.com/vendahub/tesouro/internal/notification"
	redis_db "github.com/vendahub/tesouro/internal/redis-db"
	"github.com/vendahub/tesouro/internal/search"
)

// Tesouro is the financial integrity engine. It owns the withdrawal
// pipeline, the merchant ledger, the risk scorer and the rate gate, and
// everything the HTTP layer and the workers do goes through it.
type Tesouro struct {
	queue      *Queue
	search     *search.TypesenseClient
	redis      redis.UniversalClient
	cache      cache.Cache
	datasource database.IDataSource
	scorer     *RiskScorer
	gate       *RateLimitGate
	settlement *SettlementClient

	// Hooks is exported so the API layer and the workers can manage
	// and replay hook deliveries directly.
	Hooks hooks.HookManager
}

//go:embed sql/*.sql
var SQLFiles embed.FS

// NewTesouro initializes the engine with the provided datasource. It
// fetches the configuration and wires up Redis, the task queue, the
// search client, the risk scorer, the rate gate and the settlement
// provider client.
func NewTesouro(db database.IDataSource) (*Tesouro, error) {
	configuration, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	redisClient, err := redis_db.NewRedisClient([]string{fmt.Sprintf("redis://%s", configuration.Redis.Dns)}, configuration.Redis.SkipTLSVerify)
	if err != nil {
		return nil, err
	}
	newCache, err := cache.NewCache()
	if err != nil {
		return nil, err
	}
	newQueue := NewQueue(configuration)
	newSearch := search.NewTypesenseClient(configuration.TypeSenseKey, []string{configuration.TypeSense.Dns})

	newTesouro := &Tesouro{
		queue:      newQueue,
		search:     newSearch,
		redis:      redisClient.Client(),
		cache:      newCache,
		datasource: db,
		scorer:     NewRiskScorer(db, PassiveGeoClassifier{}, HeuristicDeviceClassifier{}),
		gate:       NewRateLimitGate(redisClient.Client()),
		settlement: NewSettlementClient(configuration),
		Hooks:      hooks.NewHookManager(redisClient.Client(), newQueue.Client, configuration.Queue.HookQueue),
	}

	// System events raised deep inside internal packages ride the same
	// outbound webhook pipeline as domain events.
	notification.RegisterWebhookSender(func(event string, payload interface{}) error {
		return SendWebhook(NewWebhook{Event: event, Payload: payload})
	})
	return newTesouro, nil
}

// UseGeoClassifier swaps in a geo classifier, replacing the passive
// default. Call before serving traffic.
func (l *Tesouro) UseGeoClassifier(classifier GeoClassifier) {
	l.scorer.geo = classifier
}

// UseDeviceClassifier swaps in a device classifier.
func (l *Tesouro) UseDeviceClassifier(classifier DeviceClassifier) {
	l.scorer.device = classifier
}

// GetDataSource exposes the datasource for services composed outside the
// engine, like the search reindexer.
func (l *Tesouro) GetDataSource() database.IDataSource {
	return l.datasource
}

// GetSearchClient exposes the Typesense client.
func (l *Tesouro) GetSearchClient() *search.TypesenseClient {
	return l.search
}

// HealthCheck pings the database and Redis. It returns per-component
// results and whether everything answered.
func (l *Tesouro) HealthCheck(ctx context.Context) (map[string]string, bool) {
	healthy := true
	components := map[string]string{"database": "ok", "redis": "ok"}

	if err := l.datasource.Ping(ctx); err != nil {
		components["database"] = err.Error()
		healthy = false
	}
	if err := l.redis.Ping(ctx).Err(); err != nil {
		components["redis"] = err.Error()
		healthy = false
	}

	return components, healthy
}
