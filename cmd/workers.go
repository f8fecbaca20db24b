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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.elastic.co/apm/module/apmlogrus/v2"
	"go.opentelemetry.io/otel"

	"github.com/vendahub/tesouro"
	"github.com/vendahub/tesouro/api/middleware"
	"github.com/vendahub/tesouro/config"
	pg_listener "github.com/vendahub/tesouro/internal/pg-listener"
	redis_db "github.com/vendahub/tesouro/internal/redis-db"
	"github.com/vendahub/tesouro/internal/search"
	storagemonitor "github.com/vendahub/tesouro/internal/storage-monitor"

	"github.com/hibiken/asynq"
	"github.com/hibiken/asynqmon"
)

// indexTask is the payload of an indexing task: the target collection
// and the document to upsert into it.
type indexTask struct {
	Collection string                 `json:"collection"`
	Payload    map[string]interface{} `json:"payload"`
}

// taskRoute binds one asynq queue to its handler with a relative
// priority weight.
type taskRoute struct {
	queue    string
	priority int
	handler  asynq.HandlerFunc
}

func init() {
	logrus.AddHook(&apmlogrus.Hook{})
}

// taskRoutes enumerates every queue this worker consumes. Webhook
// delivery carries extra weight so customer notifications are not
// starved by a submission backlog. The partitioned submission queues
// all share one handler; partitioning only exists to serialize
// submissions per tenant.
func taskRoutes(b *tesouroInstance, cfg *config.Configuration) []taskRoute {
	routes := []taskRoute{
		{queue: cfg.Queue.WebhookQueue, priority: 3, handler: tesouro.ProcessWebhook},
		{queue: cfg.Queue.IndexQueue, priority: 1, handler: b.indexDocument},
		{queue: cfg.Queue.FeeSweepQueue, priority: 1, handler: b.processFeeSweep},
		{queue: cfg.Queue.StaleCheckQueue, priority: 1, handler: b.processStaleCheck},
		{queue: cfg.Queue.HookQueue, priority: 1, handler: b.processHookRetry},
	}
	for i := 1; i <= cfg.Queue.NumberOfQueues; i++ {
		routes = append(routes, taskRoute{
			queue:    fmt.Sprintf("%s_%d", cfg.Queue.WithdrawalQueue, i),
			priority: 1,
			handler:  b.processSubmission,
		})
	}
	return routes
}

// processSubmission hands a queued withdrawal to the settlement
// provider. Terminal outcomes (provider rejection, submission timeout)
// are settled inside the engine; only transport-level errors come back
// here and push the task into a retry.
func (b *tesouroInstance) processSubmission(ctx context.Context, t *asynq.Task) error {
	ctx, span := otel.Tracer("tesouro.withdrawals.worker").Start(ctx, "Process Submission From Redis Queue")
	defer span.End()

	var task tesouro.SubmissionTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		logrus.Errorf("submission payload unreadable: %v", err)
		return err
	}

	if err := b.tesouro.SubmitWithdrawal(ctx, task.WithdrawalID); err != nil {
		logrus.Infof("Withdrawal %s pushed back for retry due to error: %v", task.WithdrawalID, err)
		return err
	}

	log.Println(" [*] Withdrawal Submitted", task.WithdrawalID)
	return nil
}

// indexDocument upserts one document into its TypeSense collection.
func (b *tesouroInstance) indexDocument(ctx context.Context, t *asynq.Task) error {
	var task indexTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		logrus.Errorf("index payload unreadable: %v", err)
		return err
	}

	idx := search.NewTypesenseClient(b.cnf.TypeSenseKey, []string{b.cnf.TypeSense.Dns})
	if err := idx.EnsureCollectionsExist(ctx); err != nil {
		return fmt.Errorf("ensuring collections before indexing: %w", err)
	}
	if err := idx.HandleNotification(ctx, task.Collection, task.Payload); err != nil {
		return fmt.Errorf("indexing into %s: %w", task.Collection, err)
	}

	log.Println(" [*] Data indexed", task.Collection)
	return nil
}

// processFeeSweep debits every tenant's accrued processing fees.
func (b *tesouroInstance) processFeeSweep(ctx context.Context, _ *asynq.Task) error {
	return b.tesouro.SweepProcessingFees(ctx)
}

// processHookRetry replays a failed hook delivery from the queue.
func (b *tesouroInstance) processHookRetry(ctx context.Context, t *asynq.Task) error {
	return b.tesouro.Hooks.ProcessHookTask(ctx, t)
}

// processStaleCheck fails processing withdrawals whose settlement
// confirmation never arrived within the configured window.
func (b *tesouroInstance) processStaleCheck(ctx context.Context, _ *asynq.Task) error {
	stale, err := b.tesouro.CheckStaleWithdrawals(ctx)
	if err != nil {
		return err
	}
	if len(stale) > 0 {
		logrus.Infof("Timed out %d stale withdrawals", len(stale))
	}
	return nil
}

// workerRedisOpt translates the configured Redis DNS into asynq
// connection options.
func workerRedisOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	opts, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, fmt.Errorf("error parsing Redis URL: %v", err)
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// buildWorkerServer derives the queue weights and the handler mux from
// the route table, so a queue can never end up consumed without a
// handler or vice versa.
func buildWorkerServer(redisOpt asynq.RedisClientOpt, routes []taskRoute) (*asynq.Server, *asynq.ServeMux) {
	queues := make(map[string]int, len(routes))
	mux := asynq.NewServeMux()
	for _, route := range routes {
		queues[route.queue] = route.priority
		mux.HandleFunc(route.queue, route.handler)
	}

	srv := asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: 1,
		Queues:      queues,
	})
	return srv, mux
}

// initializeScheduler registers the periodic tasks: the stale
// withdrawal check every five minutes and the nightly processing-fee
// sweep. Both run through the same queues the workers consume, so a
// single worker deployment handles them.
func initializeScheduler(conf *config.Configuration, redisOpt asynq.RedisClientOpt) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(redisOpt, &asynq.SchedulerOpts{})

	if _, err := scheduler.Register("@every 5m",
		asynq.NewTask(conf.Queue.StaleCheckQueue, nil),
		asynq.Queue(conf.Queue.StaleCheckQueue)); err != nil {
		return nil, fmt.Errorf("error registering stale check: %v", err)
	}

	if _, err := scheduler.Register("0 3 * * *",
		asynq.NewTask(conf.Queue.FeeSweepQueue, nil),
		asynq.Queue(conf.Queue.FeeSweepQueue)); err != nil {
		return nil, fmt.Errorf("error registering fee sweep: %v", err)
	}

	return scheduler, nil
}

// startMonitoringServer serves asynqmon for queue inspection. The
// dashboard exposes payout payloads, so it sits behind the instance
// secret key.
func startMonitoringServer(conf *config.Configuration, redisOpt asynq.RedisClientOpt) {
	h := asynqmon.New(asynqmon.Options{
		RootPath:     "/monitoring",
		RedisConnOpt: redisOpt,
	})
	monitoring := gin.New()
	monitoring.Use(gin.Recovery(), middleware.SecretKeyAuthMiddleware())
	monitoring.Any("/monitoring/*any", gin.WrapH(h))

	go func() {
		monitoringAddr := fmt.Sprintf(":%s", conf.Queue.MonitoringPort)
		log.Printf("Asynqmon server listening on %s/monitoring", monitoringAddr)
		if err := http.ListenAndServe(monitoringAddr, monitoring); err != nil {
			log.Fatalf("could not start asynqmon server: %v", err)
		}
	}()
}

// runWorkers wires the queue consumers, the periodic scheduler, the
// recovery loop and the change-data-capture listener, then blocks on
// the asynq server.
func runWorkers(ctx context.Context, b *tesouroInstance) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	phClient, shutdown, err := initializeObservability(ctx, conf)
	if err != nil {
		return err
	}
	if shutdown != nil {
		defer func() {
			if err := shutdown(ctx); err != nil {
				log.Printf("Error during shutdown: %v", err)
			}
		}()
	}
	if phClient != nil {
		defer phClient.Close()
	}

	redisOpt, err := workerRedisOpt(conf)
	if err != nil {
		return err
	}

	srv, mux := buildWorkerServer(redisOpt, taskRoutes(b, conf))

	scheduler, err := initializeScheduler(conf, redisOpt)
	if err != nil {
		return err
	}
	go func() {
		if err := scheduler.Run(); err != nil {
			log.Fatalf("could not run scheduler: %v", err)
		}
	}()

	// Re-enqueue pending withdrawals whose submission task went
	// missing. Funds stay reserved while a withdrawal is stuck, so
	// this loop is what guarantees they eventually move.
	recovery := tesouro.NewPendingSubmissionRecovery(b.tesouro)
	recovery.Start(ctx)
	defer recovery.Stop()

	// Stream row changes from the notify triggers straight into the
	// search index. Without Typesense configured there is nothing to
	// index into.
	if conf.TypeSense.Dns != "" {
		dbListener := pg_listener.NewDBListener(pg_listener.ListenerConfig{
			PgConnStr: conf.DataSource.Dns,
		}, search.NewTypesenseClient(conf.TypeSenseKey, []string{conf.TypeSense.Dns}))
		go func() {
			if err := dbListener.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("Postgres listener stopped: %v", err)
			}
		}()
	}

	// Watch the backup volume so a filling disk surfaces before
	// pg_dump starts failing.
	monitor := storagemonitor.NewMonitor(conf.BackupDir, 0, 0)
	storagemonitor.StartLogSubscriber(monitor)
	storagemonitor.StartAlertSubscriber(monitor)
	go monitor.Start(ctx)

	startMonitoringServer(conf, redisOpt)

	return srv.Run(mux)
}

// workerCommands defines the "workers" command to start worker
// processes.
func workerCommands(b *tesouroInstance) *cobra.Command {
	return &cobra.Command{
		Use:   "workers",
		Short: "start tesouro workers",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runWorkers(context.Background(), b); err != nil {
				log.Fatalf("could not run workers: %v", err)
			}
		},
	}
}
