// Package storagemonitor watches the volume that receives database
// dumps. When usage crosses the threshold it broadcasts an event so
// operators hear about a filling disk before pg_dump does.
package storagemonitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/sirupsen/logrus"

	"github.com/vendahub/tesouro/internal/notification"
)

// StorageLimitEvent represents the data sent when the storage limit is hit.
type StorageLimitEvent struct {
	Path        string
	UsedPercent float64
	Message     string
}

// EventBroker handles the subscription and broadcasting of storage limit events.
type EventBroker struct {
	subscribers []chan StorageLimitEvent
	mu          sync.Mutex
}

// NewEventBroker initializes a new EventBroker.
func NewEventBroker() *EventBroker {
	return &EventBroker{}
}

// Subscribe adds a new subscriber to the broker.
func (b *EventBroker) Subscribe() chan StorageLimitEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan StorageLimitEvent, 1)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Broadcast sends the event to all subscribers. Sends never block; a
// subscriber that has not drained its previous event misses this one.
func (b *EventBroker) Broadcast(event StorageLimitEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, subscriber := range b.subscribers {
		select {
		case subscriber <- event:
		default:
			logrus.Warn("Storage event subscriber channel is full, event not sent")
		}
	}
}

// Monitor periodically samples disk usage of one path.
type Monitor struct {
	broker    *EventBroker
	path      string
	threshold float64
	interval  time.Duration
}

// NewMonitor returns a monitor for path. A zero threshold defaults to
// 80 percent, a zero interval to five minutes.
func NewMonitor(path string, threshold float64, interval time.Duration) *Monitor {
	if path == "" {
		path = "/"
	}
	if threshold <= 0 {
		threshold = 80.0
	}
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Monitor{
		broker:    NewEventBroker(),
		path:      path,
		threshold: threshold,
		interval:  interval,
	}
}

// Subscribe adds a new subscriber for limit events.
func (m *Monitor) Subscribe() chan StorageLimitEvent {
	return m.broker.Subscribe()
}

// Start samples disk usage until ctx is cancelled. The first sample
// runs immediately.
func (m *Monitor) Start(ctx context.Context) {
	m.checkDiskUsage(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkDiskUsage(ctx)
		}
	}
}

// checkDiskUsage samples the path and broadcasts an event when usage
// exceeds the threshold.
func (m *Monitor) checkDiskUsage(ctx context.Context) {
	usage, err := disk.UsageWithContext(ctx, m.path)
	if err != nil {
		logrus.WithField("path", m.path).WithError(err).Error("Failed to read disk usage")
		return
	}

	logrus.WithFields(logrus.Fields{
		"path":         m.path,
		"used_percent": fmt.Sprintf("%.2f", usage.UsedPercent),
	}).Debug("Sampled disk usage")

	if usage.UsedPercent > m.threshold {
		m.broker.Broadcast(StorageLimitEvent{
			Path:        m.path,
			UsedPercent: usage.UsedPercent,
			Message:     fmt.Sprintf("disk usage on %s is at %.2f%%, threshold %.2f%%", m.path, usage.UsedPercent, m.threshold),
		})
	}
}

// StartLogSubscriber logs every limit event.
func StartLogSubscriber(m *Monitor) {
	logSub := m.Subscribe()
	go func() {
		for event := range logSub {
			logrus.WithFields(logrus.Fields{
				"path":         event.Path,
				"used_percent": fmt.Sprintf("%.2f", event.UsedPercent),
			}).Warn(event.Message)
		}
	}()
}

// StartAlertSubscriber raises each limit event through the operator
// notification channel.
func StartAlertSubscriber(m *Monitor) {
	alertSub := m.Subscribe()
	go func() {
		for event := range alertSub {
			notification.NotifyError(fmt.Errorf("backup volume alert: %s", event.Message))
		}
	}()
}
