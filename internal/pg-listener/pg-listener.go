// Package pg_listener streams row changes out of Postgres and into the
// search index. A trigger on the indexed tables emits pg_notify with the
// table name and the changed row; the listener decodes each notification
// and hands it to the handler.
package pg_listener

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// channelName is the pg_notify channel the triggers publish on.
const channelName = "tesouro_data_change"

// NotificationHandler consumes a decoded row change. The search client
// implements this.
type NotificationHandler interface {
	HandleNotification(ctx context.Context, table string, data map[string]interface{}) error
}

type ListenerConfig struct {
	PgConnStr            string
	MinReconnectInterval time.Duration
	MaxReconnectInterval time.Duration
}

type DBListener struct {
	config  ListenerConfig
	handler NotificationHandler
}

// NotificationPayload is the JSON shape the notify trigger emits.
type NotificationPayload struct {
	Table string                 `json:"table"`
	Data  map[string]interface{} `json:"data"`
}

func NewDBListener(config ListenerConfig, handler NotificationHandler) *DBListener {
	if config.MinReconnectInterval <= 0 {
		config.MinReconnectInterval = 10 * time.Second
	}
	if config.MaxReconnectInterval <= 0 {
		config.MaxReconnectInterval = time.Minute
	}
	return &DBListener{
		config:  config,
		handler: handler,
	}
}

// Start listens for notifications until ctx is cancelled. Connection
// drops are handled by the pq listener itself; it re-listens on the
// channel after reconnecting.
func (d *DBListener) Start(ctx context.Context) error {
	listener := pq.NewListener(d.config.PgConnStr, d.config.MinReconnectInterval, d.config.MaxReconnectInterval, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			logrus.WithError(err).Error("Postgres listener connection event")
		}
	})
	defer func() {
		if err := listener.Close(); err != nil {
			logrus.WithError(err).Error("Failed to close Postgres listener")
		}
	}()

	if err := listener.Listen(channelName); err != nil {
		return fmt.Errorf("failed to listen on channel %s: %w", channelName, err)
	}

	logrus.WithField("channel", channelName).Info("Listening for Postgres notifications")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notification := <-listener.Notify:
			// Nil notifications signal a reconnect.
			if notification == nil {
				continue
			}
			d.handleNotification(ctx, notification)
		case <-time.After(90 * time.Second):
			go func() {
				if err := listener.Ping(); err != nil {
					logrus.WithError(err).Error("Postgres listener ping failed")
				}
			}()
		}
	}
}

func (d *DBListener) handleNotification(ctx context.Context, notification *pq.Notification) {
	var payload NotificationPayload
	if err := json.Unmarshal([]byte(notification.Extra), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal notification payload")
		return
	}

	// The surrogate key and null columns never reach the index; document
	// identity comes from the table's own ID field.
	delete(payload.Data, "id")
	for key, value := range payload.Data {
		if value == nil {
			delete(payload.Data, key)
		}
	}

	if err := d.handler.HandleNotification(ctx, payload.Table, payload.Data); err != nil {
		logrus.WithFields(logrus.Fields{
			"table": payload.Table,
		}).WithError(err).Error("Failed to handle notification")
	}
}
