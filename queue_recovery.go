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
	"errors"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// PendingSubmissionRecovery re-enqueues withdrawals that were accepted
// but whose submission task never ran: the enqueue failed after the
// reservation committed, or Redis lost the task. Funds stay reserved
// the whole time, so recovery only restarts the payout, it never moves
// money.
type PendingSubmissionRecovery struct {
	tesouro        *Tesouro
	batchSize      int
	pollInterval   time.Duration
	stuckThreshold time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
	running        bool
	mu             sync.Mutex
}

func NewPendingSubmissionRecovery(tesouro *Tesouro) *PendingSubmissionRecovery {
	return &PendingSubmissionRecovery{
		tesouro:        tesouro,
		batchSize:      500,
		pollInterval:   30 * time.Second,
		stuckThreshold: 5 * time.Minute,
		stopCh:         make(chan struct{}),
	}
}

func (p *PendingSubmissionRecovery) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run(ctx)
	}()

	logrus.Info("Pending submission recovery started")
}

func (p *PendingSubmissionRecovery) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopCh)
	p.mu.Unlock()

	p.wg.Wait()
	logrus.Info("Pending submission recovery stopped")
}

func (p *PendingSubmissionRecovery) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *PendingSubmissionRecovery) run(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logrus.Info("Pending submission recovery context cancelled")
			return
		case <-p.stopCh:
			logrus.Info("Pending submission recovery stop signal received")
			return
		case <-ticker.C:
			p.recoverWithThreshold(ctx, p.stuckThreshold)
		}
	}
}

// RecoverPendingSubmissions triggers an immediate recovery pass using
// the provided threshold. Exposed for the manual trigger endpoint.
func (l *Tesouro) RecoverPendingSubmissions(ctx context.Context, threshold time.Duration) (int, error) {
	if threshold < time.Minute {
		threshold = time.Minute
	}

	processor := NewPendingSubmissionRecovery(l)
	return processor.recoverWithThreshold(ctx, threshold), nil
}

func (p *PendingSubmissionRecovery) recoverWithThreshold(ctx context.Context, threshold time.Duration) int {
	stuck, err := p.tesouro.datasource.GetStuckPendingWithdrawals(ctx, time.Now().Add(-threshold), p.batchSize)
	if err != nil {
		logrus.Errorf("failed to list stuck pending withdrawals: %v", err)
		return 0
	}
	if len(stuck) == 0 {
		return 0
	}

	recovered := 0
	for _, withdrawal := range stuck {
		err := p.tesouro.queue.EnqueueSubmission(ctx, withdrawal)
		switch {
		case err == nil:
			logrus.Infof("re-enqueued submission for stuck withdrawal %s", withdrawal.WithdrawalID)
			recovered++
		case errors.Is(err, asynq.ErrTaskIDConflict):
			// The task is still in the queue, just slow. Leave it.
		default:
			logrus.Errorf("failed to re-enqueue withdrawal %s: %v", withdrawal.WithdrawalID, err)
		}
	}
	if recovered > 0 {
		logrus.Infof("recovered %d stuck pending withdrawals (threshold=%v)", recovered, threshold)
	}
	return recovered
}
