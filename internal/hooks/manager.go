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

package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/model"
)

// Hook configurations live in one Redis hash keyed by hook ID, with a
// set per hook type so ListHooks never scans the registry.
const (
	registryKey       = "hooks:registry"
	preHookSetKey     = "hooks:pre"
	postHookSetKey    = "hooks:post"
	defaultHookSetKey = "hooks:"
)

var hookTypeSets = map[HookType]string{
	PreSubmission:  preHookSetKey,
	PostSettlement: postHookSetKey,
}

func typeKey(hookType HookType) string {
	if key, ok := hookTypeSets[hookType]; ok {
		return key
	}
	return defaultHookSetKey
}

type redisHookManager struct {
	client     redis.UniversalClient
	tasks      *asynq.Client
	retryQueue string
}

// NewHookManager returns a Redis-backed hook manager. Failed deliveries
// of hooks with a retry budget are re-attempted through retryQueue.
func NewHookManager(redisClient redis.UniversalClient, taskClient *asynq.Client, retryQueue string) HookManager {
	return &redisHookManager{
		client:     redisClient,
		tasks:      taskClient,
		retryQueue: retryQueue,
	}
}

// store writes the hook's JSON form into the registry hash.
func (m *redisHookManager) store(ctx context.Context, hook *Hook) error {
	data, err := json.Marshal(hook)
	if err != nil {
		return fmt.Errorf("failed to marshal hook: %w", err)
	}
	if err := m.client.HSet(ctx, registryKey, hook.ID, data).Err(); err != nil {
		return fmt.Errorf("failed to store hook: %w", err)
	}
	return nil
}

// RegisterHook stores a new hook and adds it to its type set.
func (m *redisHookManager) RegisterHook(ctx context.Context, hook *Hook) error {
	if err := validateHook(hook); err != nil {
		return err
	}

	if hook.ID == "" {
		hook.ID = model.GenerateUUIDWithSuffix("hook")
	}
	hook.CreatedAt = time.Now()

	if err := m.store(ctx, hook); err != nil {
		return err
	}
	if err := m.client.SAdd(ctx, typeKey(hook.Type), hook.ID).Err(); err != nil {
		return fmt.Errorf("failed to add hook to type set: %w", err)
	}
	return nil
}

// UpdateHook replaces a hook's configuration, preserving its identity
// and execution history.
func (m *redisHookManager) UpdateHook(ctx context.Context, hookID string, hook *Hook) error {
	existing, err := m.GetHook(ctx, hookID)
	if err != nil {
		return fmt.Errorf("hook not found: %s", hookID)
	}

	if err := validateHook(hook); err != nil {
		return err
	}

	hook.ID = existing.ID
	hook.CreatedAt = existing.CreatedAt
	hook.LastRun = existing.LastRun
	hook.LastSuccess = existing.LastSuccess

	if existing.Type != hook.Type {
		if err := m.client.SMove(ctx, typeKey(existing.Type), typeKey(hook.Type), hookID).Err(); err != nil {
			return err
		}
	}

	return m.store(ctx, hook)
}

// DeleteHook removes a hook and its type set membership.
func (m *redisHookManager) DeleteHook(ctx context.Context, hookID string) error {
	hook, err := m.GetHook(ctx, hookID)
	if err != nil {
		return err
	}

	pipe := m.client.Pipeline()
	pipe.HDel(ctx, registryKey, hookID)
	pipe.SRem(ctx, typeKey(hook.Type), hookID)
	_, err = pipe.Exec(ctx)
	return err
}

// GetHook retrieves a hook by ID.
func (m *redisHookManager) GetHook(ctx context.Context, hookID string) (*Hook, error) {
	data, err := m.client.HGet(ctx, registryKey, hookID).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, fmt.Errorf("hook not found: %s", hookID)
		}
		return nil, err
	}

	var hook Hook
	if err := json.Unmarshal(data, &hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal hook: %w", err)
	}
	return &hook, nil
}

// ListHooks retrieves all hooks of a type in one registry read. Set
// members without a registry row are skipped.
func (m *redisHookManager) ListHooks(ctx context.Context, hookType HookType) ([]*Hook, error) {
	ids, err := m.client.SMembers(ctx, typeKey(hookType)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*Hook{}, nil
	}

	rows, err := m.client.HMGet(ctx, registryKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	hooks := make([]*Hook, 0, len(rows))
	for _, row := range rows {
		raw, ok := row.(string)
		if !ok {
			continue
		}
		var hook Hook
		if err := json.Unmarshal([]byte(raw), &hook); err != nil {
			continue
		}
		hooks = append(hooks, &hook)
	}
	return hooks, nil
}

// ExecutePreHooks runs every active pre-submission hook against the
// withdrawal about to be handed to the settlement provider.
func (m *redisHookManager) ExecutePreHooks(ctx context.Context, withdrawalID string, data interface{}) error {
	hooks, err := m.ListHooks(ctx, PreSubmission)
	if err != nil {
		return err
	}
	return m.executeHooks(hooks, PreSubmission, withdrawalID, data)
}

// ExecutePostHooks runs every active post-settlement hook once a
// withdrawal reached a terminal state.
func (m *redisHookManager) ExecutePostHooks(ctx context.Context, withdrawalID string, data interface{}) error {
	hooks, err := m.ListHooks(ctx, PostSettlement)
	if err != nil {
		return err
	}
	return m.executeHooks(hooks, PostSettlement, withdrawalID, data)
}

// executeHooks makes the first delivery attempt for each active hook in
// its own goroutine. A failed attempt on a hook with a retry budget is
// handed to the task queue; hooks without one only get the single shot.
func (m *redisHookManager) executeHooks(hooks []*Hook, hookType HookType, withdrawalID string, data interface{}) error {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal hook data: %w", err)
	}

	payload := HookPayload{
		WithdrawalID: withdrawalID,
		HookType:     hookType,
		Timestamp:    time.Now(),
		Data:         dataBytes,
	}

	for _, hook := range hooks {
		if !hook.Active {
			continue
		}

		go func(h *Hook) {
			hookCtx, cancel := context.WithTimeout(context.Background(), time.Duration(h.Timeout)*time.Second)
			defer cancel()

			err := m.executeHook(hookCtx, h, payload)
			if err == nil {
				return
			}
			if h.RetryCount > 0 {
				if enqueueErr := m.enqueueRetry(h, payload); enqueueErr == nil {
					return
				}
			}
			notification.NotifyError(fmt.Errorf("hook %s (%s) delivery failed: %w", h.ID, h.Type, err))
		}(hook)
	}

	return nil
}

// enqueueRetry queues the remaining delivery attempts for a hook. The
// task carries the hook snapshot taken at execution time, so a later
// reconfiguration does not rewrite in-flight deliveries.
func (m *redisHookManager) enqueueRetry(hook *Hook, payload HookPayload) error {
	if m.tasks == nil {
		return fmt.Errorf("no task client configured for hook retries")
	}

	taskPayload, err := json.Marshal(HookTaskPayload{Hook: hook, Payload: payload})
	if err != nil {
		return err
	}

	task := asynq.NewTask(m.retryQueue, taskPayload)
	_, err = m.tasks.Enqueue(task, asynq.Queue(m.retryQueue), asynq.MaxRetry(hook.RetryCount))
	return err
}

// validateHook fills the timeout and retry defaults and rejects hooks
// without a URL or with an unknown type.
func validateHook(hook *Hook) error {
	if hook.URL == "" {
		return fmt.Errorf("hook URL is required")
	}
	if _, ok := hookTypeSets[hook.Type]; !ok {
		return fmt.Errorf("invalid hook type: %s", hook.Type)
	}
	if hook.Timeout <= 0 {
		hook.Timeout = 30
	}
	if hook.RetryCount < 0 {
		hook.RetryCount = 3
	}
	return nil
}
