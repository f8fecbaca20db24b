/*
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
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/notification"
	"github.com/vendahub/tesouro/internal/request"
	"github.com/vendahub/tesouro/model"
)

// WebhookSignatureHeader carries the hex HMAC-SHA256 of the outbound
// payload, signed with the instance secret key so merchants can verify
// notifications the same way this service verifies the provider's.
const WebhookSignatureHeader = "X-Tesouro-Signature"

// NewWebhook is one outbound notification: an event name and the
// payload that goes with it.
type NewWebhook struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"data"`
}

// statusEvents maps withdrawal statuses to their webhook event names.
var statusEvents = map[string]string{
	model.StatusPending:    "withdrawal.pending",
	model.StatusProcessing: "withdrawal.processing",
	model.StatusCompleted:  "withdrawal.completed",
	model.StatusFailed:     "withdrawal.failed",
}

func getEventFromStatus(status string) string {
	if event, ok := statusEvents[status]; ok {
		return event
	}
	return "withdrawal.unknown"
}

// processHTTP delivers one webhook notification to the configured
// endpoint. Non-2xx responses are logged and dropped; transport errors
// surface so the queue retries them.
func processHTTP(data NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		log.Println("Webhook config unavailable:", err)
		return err
	}

	body, err := json.Marshal(data)
	if err != nil {
		log.Println("Webhook payload marshaling failed:", err)
		return err
	}

	req, err := http.NewRequest(http.MethodPost, conf.Notification.Webhook.Url, bytes.NewReader(body))
	if err != nil {
		log.Println("Webhook request creation failed:", err)
		return err
	}
	for key, value := range conf.Notification.Webhook.Headers {
		req.Header.Set(key, value)
	}
	if conf.Server.SecretKey != "" {
		mac := hmac.New(sha256.New, []byte(conf.Server.SecretKey))
		mac.Write(body)
		req.Header.Set(WebhookSignatureHeader, hex.EncodeToString(mac.Sum(nil)))
	}

	var response map[string]interface{}
	resp, err := request.Call(req, &response)
	if resp != nil && (resp.StatusCode < 200 || resp.StatusCode >= 300) {
		log.Printf("Webhook delivery failed with status code: %d\n", resp.StatusCode)
		return nil
	}
	if err != nil {
		log.Println("Error sending webhook:", err)
		return err
	}

	log.Println("Webhook notification sent successfully:", response)
	return nil
}

// SendWebhook enqueues a webhook notification task. The worker retries
// delivery up to five times; nothing is enqueued when no endpoint is
// configured.
func SendWebhook(newWebhook NewWebhook) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	queueOptions, err := queueRedisOpt(conf)
	if err != nil {
		return err
	}
	client := asynq.NewClient(queueOptions)
	defer func() {
		if err := client.Close(); err != nil {
			logrus.Error(err)
		}
	}()

	payload, err := json.Marshal(newWebhook)
	if err != nil {
		log.Println(err)
		return err
	}

	task := asynq.NewTask(conf.Queue.WebhookQueue, payload,
		asynq.Queue(conf.Queue.WebhookQueue), asynq.MaxRetry(5))
	if info, err := client.Enqueue(task); err != nil {
		log.Println(err, info)
		return err
	}
	return nil
}

// ProcessWebhook delivers one queued webhook notification. When the
// final retry fails too, an operator is told which event was lost.
func ProcessWebhook(ctx context.Context, task *asynq.Task) error {
	conf, err := config.Fetch()
	if err != nil {
		return err
	}

	if conf.Notification.Webhook.Url == "" {
		return nil
	}

	var payload NewWebhook
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		log.Printf("Error unmarshaling task payload: %v", err)
		return err
	}

	log.Printf("Processing webhook: %+v\n", payload.Event)
	if err := processHTTP(payload); err != nil {
		retried, _ := asynq.GetRetryCount(ctx)
		maxRetry, _ := asynq.GetMaxRetry(ctx)
		if retried >= maxRetry {
			notification.NotifyError(fmt.Errorf("webhook %s dropped after %d attempts: %w", payload.Event, retried+1, err))
		}
		return err
	}
	return nil
}
