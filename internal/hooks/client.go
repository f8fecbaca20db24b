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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// executeHook makes one delivery attempt: POST the payload, interpret
// the answer, record the outcome on the hook. Retries are the queue's
// job, never this function's.
func (m *redisHookManager) executeHook(ctx context.Context, hook *Hook, payload HookPayload) error {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling hook payload: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"hook_id":       hook.ID,
		"hook_name":     hook.Name,
		"hook_url":      hook.URL,
		"hook_type":     hook.Type,
		"withdrawal_id": payload.WithdrawalID,
	}).Info("Delivering hook")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hook.URL, bytes.NewBuffer(payloadBytes))
	if err != nil {
		return fmt.Errorf("creating hook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Hook-ID", hook.ID)
	req.Header.Set("X-Hook-Type", string(hook.Type))

	client := &http.Client{Timeout: time.Duration(hook.Timeout) * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		m.recordOutcome(hook, false)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("delivering hook: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close hook response body")
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		m.recordOutcome(hook, false)
		return fmt.Errorf("reading hook response: %w", err)
	}

	if err := interpretResponse(resp.StatusCode, body); err != nil {
		m.recordOutcome(hook, false)
		return err
	}

	logrus.WithFields(logrus.Fields{
		"hook_id":     hook.ID,
		"hook_type":   hook.Type,
		"status_code": resp.StatusCode,
	}).Info("Hook delivered")
	m.recordOutcome(hook, true)
	return nil
}

// interpretResponse decides whether a delivery counted. Any 2xx is a
// success unless the body parses as a HookResponse that says otherwise;
// endpoints answering plain text or nothing at all are fine.
func interpretResponse(statusCode int, body []byte) error {
	if statusCode < 200 || statusCode >= 300 {
		return fmt.Errorf("hook returned status %d: %s", statusCode, string(body))
	}

	if len(body) == 0 || !json.Valid(body) {
		return nil
	}

	var hookResp HookResponse
	if err := json.Unmarshal(body, &hookResp); err != nil {
		// Valid JSON of an unexpected shape, e.g. a bare array. The
		// status code already said yes.
		return nil
	}
	// A zero-value HookResponse also lands here when the endpoint
	// answered an unrelated JSON object. Only treat it as a failure
	// when the endpoint explicitly spoke our protocol.
	if !hookResp.Success && hookResp.Message != "" {
		return fmt.Errorf("hook reported failure: %s", hookResp.Message)
	}
	return nil
}

// recordOutcome stamps the hook's last run and persists it. Delivery
// outcomes must never fail a delivery, so errors are only logged.
func (m *redisHookManager) recordOutcome(hook *Hook, success bool) {
	hook.LastRun = time.Now()
	hook.LastSuccess = success

	data, err := json.Marshal(hook)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal hook outcome")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.client.HSet(ctx, registryKey, hook.ID, data).Err(); err != nil {
		logrus.WithFields(logrus.Fields{
			"hook_id": hook.ID,
			"success": success,
		}).WithError(err).Error("Failed to persist hook outcome")
	}
}
