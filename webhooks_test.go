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
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/model"
)

func TestSendWebhook(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	mockConfig := &config.Configuration{
		Redis: config.RedisConfig{
			Dns: mr.Addr(),
		},
	}
	mockConfig.Notification.Webhook.Url = "http://localhost:5001/webhook"
	config.MockConfig(mockConfig)

	testData := NewWebhook{
		Event:   "withdrawal.completed",
		Payload: testWithdrawal("tnt_1"),
	}

	err = SendWebhook(testData)
	assert.NoError(t, err)

	// Verify that the task was enqueued
	tasks := mr.Keys()
	assert.NotEmpty(t, tasks)
}

func TestSendWebhookSkippedWithoutEndpoint(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("an error '%s' occurred when starting miniredis", err)
	}
	defer mr.Close()

	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
	})

	err = SendWebhook(NewWebhook{Event: "withdrawal.failed", Payload: testWithdrawal("tnt_1")})
	assert.NoError(t, err)
	assert.Empty(t, mr.Keys())
}

func TestProcessWebhook(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	mockConfig := &config.Configuration{}
	mockConfig.Notification.Webhook.Url = "http://notify.test/hook"
	mockConfig.Notification.Webhook.Headers = map[string]string{"X-Tesouro-Event": "1"}
	config.MockConfig(mockConfig)

	var received NewWebhook
	httpmock.RegisterResponder("POST", "http://notify.test/hook",
		func(req *http.Request) (*http.Response, error) {
			assert.Equal(t, "1", req.Header.Get("X-Tesouro-Event"))
			if err := json.NewDecoder(req.Body).Decode(&received); err != nil {
				return nil, err
			}
			return httpmock.NewJsonResponse(200, map[string]interface{}{"received": true})
		})

	payload, err := json.Marshal(NewWebhook{
		Event:   "withdrawal.processing",
		Payload: map[string]interface{}{"withdrawal_id": "wdl_1"},
	})
	assert.NoError(t, err)

	task := asynq.NewTask("new:webhook", payload)
	err = ProcessWebhook(context.Background(), task)
	assert.NoError(t, err)
	assert.Equal(t, "withdrawal.processing", received.Event)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessWebhookSignsPayload(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	mockConfig := &config.Configuration{
		Server: config.ServerConfig{SecretKey: "whsec_test"},
	}
	mockConfig.Notification.Webhook.Url = "http://notify.test/hook"
	config.MockConfig(mockConfig)

	httpmock.RegisterResponder("POST", "http://notify.test/hook",
		func(req *http.Request) (*http.Response, error) {
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			mac := hmac.New(sha256.New, []byte("whsec_test"))
			mac.Write(body)
			assert.Equal(t, hex.EncodeToString(mac.Sum(nil)), req.Header.Get(WebhookSignatureHeader))
			return httpmock.NewJsonResponse(200, map[string]interface{}{"received": true})
		})

	payload, err := json.Marshal(NewWebhook{Event: "withdrawal.completed"})
	assert.NoError(t, err)

	err = ProcessWebhook(context.Background(), asynq.NewTask("new:webhook", payload))
	assert.NoError(t, err)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestProcessWebhookSkippedWithoutEndpoint(t *testing.T) {
	httpmock.Activate()
	defer httpmock.DeactivateAndReset()

	config.MockConfig(&config.Configuration{})

	payload, err := json.Marshal(NewWebhook{Event: "withdrawal.completed"})
	assert.NoError(t, err)

	err = ProcessWebhook(context.Background(), asynq.NewTask("new:webhook", payload))
	assert.NoError(t, err)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}

func TestGetEventFromStatus(t *testing.T) {
	cases := map[string]string{
		model.StatusPending:    "withdrawal.pending",
		model.StatusProcessing: "withdrawal.processing",
		model.StatusCompleted:  "withdrawal.completed",
		model.StatusFailed:     "withdrawal.failed",
		"reversed":             "withdrawal.unknown",
	}
	for status, event := range cases {
		assert.Equal(t, event, getEventFromStatus(status))
	}
}
