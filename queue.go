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
	"encoding/json"
	"fmt"
	"hash/fnv"
	"log"

	"github.com/hibiken/asynq"

	"github.com/vendahub/tesouro/config"
	redis_db "github.com/vendahub/tesouro/internal/redis-db"
	"github.com/vendahub/tesouro/model"
)

// Queue wraps the asynq client used to hand work to the workers.
type Queue struct {
	Client    *asynq.Client
	Inspector *asynq.Inspector
}

// SubmissionTask is the payload of one settlement submission task.
type SubmissionTask struct {
	WithdrawalID string `json:"withdrawal_id"`
	TenantID     string `json:"tenant_id"`
}

// queueRedisOpt translates the configured Redis DNS into asynq
// connection options, honoring TLS settings for managed caches.
func queueRedisOpt(conf *config.Configuration) (asynq.RedisClientOpt, error) {
	opts, err := redis_db.ParseRedisURL(conf.Redis.Dns, conf.Redis.SkipTLSVerify)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// NewQueue initializes a Queue from the configured Redis instance.
func NewQueue(conf *config.Configuration) *Queue {
	queueOptions, err := queueRedisOpt(conf)
	if err != nil {
		log.Fatalf("Error parsing Redis URL: %v", err)
	}

	return &Queue{
		Client:    asynq.NewClient(queueOptions),
		Inspector: asynq.NewInspector(queueOptions),
	}
}

// EnqueueSubmission queues the settlement submission for a freshly
// accepted withdrawal. The task id is the withdrawal id, so a double
// enqueue collapses into one task.
func (q *Queue) EnqueueSubmission(ctx context.Context, withdrawal *model.Withdrawal) error {
	ctx, span := tracer.Start(ctx, "Adding withdrawal to submission queue")
	defer span.End()

	payload, err := json.Marshal(SubmissionTask{
		WithdrawalID: withdrawal.WithdrawalID,
		TenantID:     withdrawal.TenantID,
	})
	if err != nil {
		return err
	}
	task, err := q.submissionTask(withdrawal, payload)
	if err != nil {
		return err
	}
	if _, err := q.Client.EnqueueContext(ctx, task, asynq.MaxRetry(5)); err != nil {
		return err
	}
	log.Printf(" [*] Successfully enqueued withdrawal submission: %+v", withdrawal.WithdrawalID)
	return nil
}

// submissionTask routes a withdrawal onto one of the numbered partition
// queues by hashing its tenant id. Every submission of a tenant lands
// in the same partition and is processed serially there, so two
// payouts for one tenant never race the settlement provider.
func (q *Queue) submissionTask(withdrawal *model.Withdrawal, payload []byte) (*asynq.Task, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return nil, err
	}
	queueIndex := hashTenantID(withdrawal.TenantID) % cnf.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cnf.Queue.WithdrawalQueue, queueIndex+1)

	return asynq.NewTask(queueName, payload,
		asynq.TaskID(withdrawal.WithdrawalID), asynq.Queue(queueName)), nil
}

// hashTenantID returns a consistent hash for a tenant id.
func hashTenantID(tenantID string) int {
	hasher := fnv.New32a()
	_, _ = hasher.Write([]byte(tenantID))
	return int(hasher.Sum32())
}

// queueIndexData enqueues a document for search indexing. Indexing is
// skipped entirely when no search backend is configured.
func (q *Queue) queueIndexData(id string, collection string, data interface{}) error {
	cfg, err := config.Fetch()
	if err != nil {
		return err
	}

	if cfg.TypeSense.Dns == "" {
		return nil
	}

	payload, err := json.Marshal(map[string]interface{}{
		"collection": collection,
		"payload":    data,
	})
	if err != nil {
		return err
	}

	task := asynq.NewTask(cfg.Queue.IndexQueue, payload, asynq.Queue(cfg.Queue.IndexQueue))
	if _, err := q.Client.Enqueue(task); err != nil {
		return err
	}
	log.Printf(" [*] Successfully enqueued index data: %+v", id)
	return nil
}

// HasQueuedSubmission reports whether a submission task for the
// withdrawal still exists in its partition queue, in any state.
func (q *Queue) HasQueuedSubmission(withdrawalID, tenantID string) (bool, error) {
	cfg, err := config.Fetch()
	if err != nil {
		return false, err
	}

	queueIndex := hashTenantID(tenantID) % cfg.Queue.NumberOfQueues
	queueName := fmt.Sprintf("%s_%d", cfg.Queue.WithdrawalQueue, queueIndex+1)
	task, err := q.Inspector.GetTaskInfo(queueName, withdrawalID)
	if err != nil {
		return false, nil
	}
	return task != nil, nil
}
