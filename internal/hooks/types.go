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

// Package hooks lets operators register HTTP callbacks around the
// settlement hand-off: pre-submission hooks fire when a withdrawal is
// about to be handed to the settlement provider, post-settlement hooks
// fire once it reaches a terminal state. Hook configurations live in
// Redis; failed deliveries retry through the task queue.
package hooks

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

type HookType string

const (
	PreSubmission  HookType = "PRE_SUBMISSION"
	PostSettlement HookType = "POST_SETTLEMENT"
)

// Hook is one registered callback endpoint.
type Hook struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Type        HookType  `json:"type"`
	Active      bool      `json:"active"`
	Timeout     int       `json:"timeout"`      // Seconds per delivery attempt
	RetryCount  int       `json:"retry_count"`  // Queued retries after the first failed attempt
	CreatedAt   time.Time `json:"created_at"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess bool      `json:"last_success"`
}

// HookPayload is the body POSTed to the hook endpoint.
type HookPayload struct {
	WithdrawalID string          `json:"withdrawal_id"`
	HookType     HookType        `json:"hook_type"`
	Timestamp    time.Time       `json:"timestamp"`
	Data         json.RawMessage `json:"data,omitempty"`
}

// HookResponse is the shape an endpoint may answer with. A parseable
// response with success=false marks the delivery failed even on HTTP 2xx.
type HookResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// HookManager registers, lists and executes hooks.
type HookManager interface {
	RegisterHook(ctx context.Context, hook *Hook) error
	UpdateHook(ctx context.Context, hookID string, hook *Hook) error
	DeleteHook(ctx context.Context, hookID string) error
	GetHook(ctx context.Context, hookID string) (*Hook, error)
	ListHooks(ctx context.Context, hookType HookType) ([]*Hook, error)
	ExecutePreHooks(ctx context.Context, withdrawalID string, data interface{}) error
	ExecutePostHooks(ctx context.Context, withdrawalID string, data interface{}) error
	ProcessHookTask(ctx context.Context, task *asynq.Task) error
}

// HookTaskPayload is the queued form of one hook delivery retry.
type HookTaskPayload struct {
	Hook    *Hook       `json:"hook"`
	Payload HookPayload `json:"payload"`
}
