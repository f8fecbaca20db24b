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
	"log"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/vendahub/tesouro/config"
	"github.com/vendahub/tesouro/internal/request"
)

// WebhookSender forwards an event into the outbound webhook pipeline.
// The root package registers its queue-backed dispatcher here at
// startup, which keeps this package free of an import cycle.
type WebhookSender func(event string, payload interface{}) error

var webhookSender WebhookSender

// RegisterWebhookSender installs the sender used for system events.
// Registering again replaces the previous sender.
func RegisterWebhookSender(sender WebhookSender) {
	webhookSender = sender
}

// slackText and slackBlock model the subset of Slack's Block Kit the
// error message uses.
type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

type slackBlock struct {
	Type   string      `json:"type"`
	Text   *slackText  `json:"text,omitempty"`
	Fields []slackText `json:"fields,omitempty"`
}

func slackErrorMessage(err error) map[string][]slackBlock {
	return map[string][]slackBlock{
		"blocks": {
			{
				Type: "header",
				Text: &slackText{Type: "plain_text", Text: "Error From Tesouro 🐞", Emoji: true},
			},
			{
				Type:   "section",
				Fields: []slackText{{Type: "mrkdwn", Text: "*Error:*\n" + err.Error()}},
			},
			{
				Type:   "section",
				Fields: []slackText{{Type: "mrkdwn", Text: "*Time:*\n" + time.Now().Format(time.RFC822)}},
			},
		},
	}
}

// SlackNotification posts an error to the configured Slack webhook.
// Settlement failures, exhausted webhook deliveries and stale
// withdrawals all land here so an operator sees them.
func SlackNotification(err error) {
	conf, cfgErr := config.Fetch()
	if cfgErr != nil {
		log.Println(cfgErr)
		return
	}

	payload, jsonErr := request.ToJsonReq(slackErrorMessage(err))
	if jsonErr != nil {
		log.Println(jsonErr)
		return
	}

	req, reqErr := http.NewRequest("POST", conf.Notification.Slack.WebhookUrl, payload)
	if reqErr != nil {
		log.Println(reqErr)
		return
	}

	var response map[string]interface{}
	if _, callErr := request.Call(req, &response); callErr != nil {
		log.Println(callErr)
	}
}

// NotifyError logs a system error and fans it out to Slack and the
// tenant webhook pipeline when either is configured. It never blocks
// the caller.
func NotifyError(systemError error) {
	go func() {
		logrus.Error(systemError)

		conf, err := config.Fetch()
		if err != nil {
			log.Println(err)
			return
		}

		if conf.Notification.Slack.WebhookUrl != "" {
			SlackNotification(systemError)
		}

		if webhookSender != nil {
			payload := map[string]interface{}{
				"error": systemError.Error(),
				"time":  time.Now().UTC(),
			}
			if err := webhookSender("system.error", payload); err != nil {
				log.Println(err)
			}
		}
	}()
}
