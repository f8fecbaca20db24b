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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func newTestManager(t *testing.T) (HookManager, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewHookManager(client, nil, "new:hook"), mr
}

func TestRegisterAndGetHook(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	hook := &Hook{
		Name:   "fraud screen",
		URL:    "http://screening.test/payouts",
		Type:   PreSubmission,
		Active: true,
	}
	assert.NoError(t, manager.RegisterHook(ctx, hook))
	assert.True(t, strings.HasPrefix(hook.ID, "hook_"))
	assert.Equal(t, 30, hook.Timeout, "timeout defaults when unset")

	fetched, err := manager.GetHook(ctx, hook.ID)
	assert.NoError(t, err)
	assert.Equal(t, "fraud screen", fetched.Name)
	assert.Equal(t, PreSubmission, fetched.Type)
	assert.True(t, fetched.Active)
}

func TestRegisterHookValidation(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	err := manager.RegisterHook(ctx, &Hook{Type: PreSubmission})
	assert.EqualError(t, err, "hook URL is required")

	err = manager.RegisterHook(ctx, &Hook{URL: "http://x.test", Type: "ON_COMMIT"})
	assert.EqualError(t, err, "invalid hook type: ON_COMMIT")
}

func TestListHooksByType(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	for _, hook := range []*Hook{
		{Name: "pre 1", URL: "http://a.test", Type: PreSubmission},
		{Name: "pre 2", URL: "http://b.test", Type: PreSubmission},
		{Name: "post 1", URL: "http://c.test", Type: PostSettlement},
	} {
		assert.NoError(t, manager.RegisterHook(ctx, hook))
	}

	pre, err := manager.ListHooks(ctx, PreSubmission)
	assert.NoError(t, err)
	assert.Len(t, pre, 2)

	post, err := manager.ListHooks(ctx, PostSettlement)
	assert.NoError(t, err)
	assert.Len(t, post, 1)
	assert.Equal(t, "post 1", post[0].Name)
}

func TestUpdateHookPreservesIdentity(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	hook := &Hook{Name: "notifier", URL: "http://old.test", Type: PreSubmission}
	assert.NoError(t, manager.RegisterHook(ctx, hook))

	updated := &Hook{Name: "notifier", URL: "http://new.test", Type: PostSettlement}
	assert.NoError(t, manager.UpdateHook(ctx, hook.ID, updated))
	assert.Equal(t, hook.ID, updated.ID)
	assert.Equal(t, hook.CreatedAt.Unix(), updated.CreatedAt.Unix())

	// The type change must move the hook between type sets.
	pre, err := manager.ListHooks(ctx, PreSubmission)
	assert.NoError(t, err)
	assert.Empty(t, pre)

	post, err := manager.ListHooks(ctx, PostSettlement)
	assert.NoError(t, err)
	assert.Len(t, post, 1)
	assert.Equal(t, "http://new.test", post[0].URL)
}

func TestDeleteHook(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	hook := &Hook{Name: "doomed", URL: "http://d.test", Type: PostSettlement}
	assert.NoError(t, manager.RegisterHook(ctx, hook))
	assert.NoError(t, manager.DeleteHook(ctx, hook.ID))

	_, err := manager.GetHook(ctx, hook.ID)
	assert.Error(t, err)

	post, err := manager.ListHooks(ctx, PostSettlement)
	assert.NoError(t, err)
	assert.Empty(t, post)
}

func TestExecutePreHooksDelivers(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	received := make(chan HookPayload, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, string(PreSubmission), r.Header.Get("X-Hook-Type"))
		var payload HookPayload
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		received <- payload
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	hook := &Hook{Name: "screen", URL: server.URL, Type: PreSubmission, Active: true, Timeout: 5}
	assert.NoError(t, manager.RegisterHook(ctx, hook))

	assert.NoError(t, manager.ExecutePreHooks(ctx, "wdl_1", map[string]interface{}{"amount": "50"}))

	select {
	case payload := <-received:
		assert.Equal(t, "wdl_1", payload.WithdrawalID)
		assert.Equal(t, PreSubmission, payload.HookType)
	case <-time.After(2 * time.Second):
		t.Fatal("hook endpoint was never called")
	}

	// Delivery outcome lands on the stored hook shortly after.
	assert.Eventually(t, func() bool {
		stored, err := manager.GetHook(ctx, hook.ID)
		return err == nil && stored.LastSuccess && !stored.LastRun.IsZero()
	}, 2*time.Second, 20*time.Millisecond)
}

func TestExecuteHooksSkipsInactive(t *testing.T) {
	manager, _ := newTestManager(t)
	ctx := context.Background()

	called := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called <- struct{}{}
	}))
	defer server.Close()

	hook := &Hook{Name: "paused", URL: server.URL, Type: PostSettlement, Active: false}
	assert.NoError(t, manager.RegisterHook(ctx, hook))
	assert.NoError(t, manager.ExecutePostHooks(ctx, "wdl_1", nil))

	select {
	case <-called:
		t.Fatal("inactive hook must not fire")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestProcessHookTask(t *testing.T) {
	manager, _ := newTestManager(t)

	received := make(chan struct{}, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received <- struct{}{}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	payload, err := json.Marshal(HookTaskPayload{
		Hook:    &Hook{ID: "hook_1", URL: server.URL, Type: PostSettlement, Timeout: 5},
		Payload: HookPayload{WithdrawalID: "wdl_1", HookType: PostSettlement, Timestamp: time.Now()},
	})
	assert.NoError(t, err)

	err = manager.ProcessHookTask(context.Background(), asynq.NewTask("new:hook", payload))
	assert.NoError(t, err)
	assert.Len(t, received, 1)
}

func TestProcessHookTaskSurfacesFailure(t *testing.T) {
	manager, _ := newTestManager(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	payload, err := json.Marshal(HookTaskPayload{
		Hook:    &Hook{ID: "hook_1", URL: server.URL, Type: PostSettlement, Timeout: 5},
		Payload: HookPayload{WithdrawalID: "wdl_1", HookType: PostSettlement, Timestamp: time.Now()},
	})
	assert.NoError(t, err)

	err = manager.ProcessHookTask(context.Background(), asynq.NewTask("new:hook", payload))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestInterpretResponse(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    bool
	}{
		{"2xx with empty body", 200, "", false},
		{"2xx with plain text", 200, "ok", false},
		{"2xx with unrelated JSON", 200, `{"received":true}`, false},
		{"2xx with protocol success", 200, `{"success":true,"message":"done"}`, false},
		{"2xx with protocol failure", 200, `{"success":false,"message":"screening declined"}`, true},
		{"client error", 404, "not found", true},
		{"server error", 503, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := interpretResponse(tt.statusCode, []byte(tt.body))
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
