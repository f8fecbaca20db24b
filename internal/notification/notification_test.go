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

package notification

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vendahub/tesouro/config"
)

func TestRegisterWebhookSenderReplacesPrevious(t *testing.T) {
	webhookSender = nil

	var called string
	RegisterWebhookSender(func(event string, payload interface{}) error {
		called = "first"
		return nil
	})
	RegisterWebhookSender(func(event string, payload interface{}) error {
		called = "second"
		return nil
	})

	require.NotNil(t, webhookSender)
	assert.NoError(t, webhookSender("settlement.failed", nil))
	assert.Equal(t, "second", called)
}

func TestWebhookSenderErrorsSurface(t *testing.T) {
	webhookSender = nil

	wantErr := errors.New("queue unavailable")
	RegisterWebhookSender(func(event string, payload interface{}) error {
		return wantErr
	})

	err := webhookSender("withdrawal.stale", map[string]string{"withdrawalId": "wdl_1"})
	assert.Equal(t, wantErr, err)
}

func TestNotifyErrorFansOutToWebhookSender(t *testing.T) {
	// No Slack URL configured, so only the registered sender fires.
	config.MockConfig(&config.Configuration{})
	webhookSender = nil

	type delivery struct {
		event   string
		payload interface{}
	}
	got := make(chan delivery, 1)
	RegisterWebhookSender(func(event string, payload interface{}) error {
		got <- delivery{event: event, payload: payload}
		return nil
	})

	NotifyError(errors.New("settlement provider unreachable"))

	select {
	case d := <-got:
		assert.Equal(t, "system.error", d.event)
		fields, ok := d.payload.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "settlement provider unreachable", fields["error"])
		assert.NotZero(t, fields["time"])
	case <-time.After(2 * time.Second):
		t.Fatal("webhook sender was never invoked")
	}
}

func TestSlackErrorMessageShape(t *testing.T) {
	msg := slackErrorMessage(errors.New("payout wdl_9 timed out"))

	raw, err := json.Marshal(msg)
	require.NoError(t, err)

	body := string(raw)
	assert.True(t, strings.Contains(body, `"type":"header"`))
	assert.True(t, strings.Contains(body, "payout wdl_9 timed out"))

	blocks := msg["blocks"]
	require.Len(t, blocks, 3)
	assert.Equal(t, "plain_text", blocks[0].Text.Type)
	assert.Equal(t, "mrkdwn", blocks[1].Fields[0].Type)
}
