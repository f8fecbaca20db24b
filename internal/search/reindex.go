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

package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wacul/ptr"

	"github.com/vendahub/tesouro/database"
)

// ReindexProgress tracks the progress of a reindex operation.
type ReindexProgress struct {
	Status           string     `json:"status"` // "in_progress", "completed", "failed"
	Phase            string     `json:"phase"`  // "drop_collections", "indexing_withdrawals", etc.
	TotalRecords     int64      `json:"total_records"`
	ProcessedRecords int64      `json:"processed_records"`
	Errors           []string   `json:"errors,omitempty"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

// ReindexConfig holds configuration for reindexing.
type ReindexConfig struct {
	BatchSize int
}

// ReindexService rebuilds every search collection from the database.
type ReindexService struct {
	client     *TypesenseClient
	datasource database.IDataSource
	config     ReindexConfig
	progress   *ReindexProgress
	mu         sync.RWMutex
}

// NewReindexService creates a new ReindexService instance.
func NewReindexService(client *TypesenseClient, datasource database.IDataSource, config ReindexConfig) *ReindexService {
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	return &ReindexService{
		client:     client,
		datasource: datasource,
		config:     config,
		progress: &ReindexProgress{
			Status: "pending",
		},
	}
}

// GetProgress returns a snapshot of the current progress.
func (r *ReindexService) GetProgress() ReindexProgress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *r.progress
}

func (r *ReindexService) progressSnapshot() *ReindexProgress {
	snapshot := r.GetProgress()
	return &snapshot
}

func (r *ReindexService) updateProgress(phase string, processed int64, total int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.Phase = phase
	r.progress.ProcessedRecords = processed
	r.progress.TotalRecords = total
}

func (r *ReindexService) addError(err string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.Errors = append(r.progress.Errors, err)
}

// indexRecord is one row headed for the index, tagged with the id used
// in error reports.
type indexRecord struct {
	id    string
	value interface{}
}

// indexSource describes one rebuild phase: where rows come from, which
// collection they land in, and how failures are labeled.
type indexSource struct {
	phase      string
	collection string
	label      string
	fetch      func(ctx context.Context, limit, offset int) ([]indexRecord, error)
}

// sources lists the rebuild phases in order. Withdrawals first so the
// busiest collection comes back earliest.
func (r *ReindexService) sources() []indexSource {
	return []indexSource{
		{
			phase:      "indexing_withdrawals",
			collection: CollectionWithdrawals,
			label:      "withdrawal",
			fetch: func(ctx context.Context, limit, offset int) ([]indexRecord, error) {
				withdrawals, err := r.datasource.GetAllWithdrawals(ctx, limit, offset)
				if err != nil {
					return nil, err
				}
				records := make([]indexRecord, len(withdrawals))
				for i, withdrawal := range withdrawals {
					records[i] = indexRecord{id: withdrawal.WithdrawalID, value: withdrawal}
				}
				return records, nil
			},
		},
		{
			phase:      "indexing_ledger_entries",
			collection: CollectionLedgerEntries,
			label:      "ledger entry",
			fetch: func(_ context.Context, limit, offset int) ([]indexRecord, error) {
				entries, err := r.datasource.GetAllLedgerEntries(limit, offset)
				if err != nil {
					return nil, err
				}
				records := make([]indexRecord, len(entries))
				for i, entry := range entries {
					records[i] = indexRecord{id: entry.EntryID, value: entry}
				}
				return records, nil
			},
		},
		{
			phase:      "indexing_merchant_balances",
			collection: CollectionMerchantBalances,
			label:      "merchant balance",
			fetch: func(ctx context.Context, limit, offset int) ([]indexRecord, error) {
				balances, err := r.datasource.GetAllMerchantBalances(ctx, limit, offset)
				if err != nil {
					return nil, err
				}
				records := make([]indexRecord, len(balances))
				for i, balance := range balances {
					records[i] = indexRecord{id: balance.BalanceID, value: balance}
				}
				return records, nil
			},
		},
		{
			phase:      "indexing_security_audits",
			collection: CollectionSecurityAudits,
			label:      "security audit",
			fetch: func(_ context.Context, limit, offset int) ([]indexRecord, error) {
				audits, err := r.datasource.GetAllSecurityAudits(limit, offset)
				if err != nil {
					return nil, err
				}
				records := make([]indexRecord, len(audits))
				for i, audit := range audits {
					records[i] = indexRecord{id: audit.AuditID, value: audit}
				}
				return records, nil
			},
		},
	}
}

// StartReindex drops all collections, recreates them, and refills them
// one source at a time.
func (r *ReindexService) StartReindex(ctx context.Context) (*ReindexProgress, error) {
	r.mu.Lock()
	r.progress = &ReindexProgress{
		Status:    "in_progress",
		Phase:     "starting",
		StartedAt: time.Now(),
	}
	r.mu.Unlock()

	logrus.Info("Starting reindex operation")

	if err := r.dropCollections(ctx); err != nil {
		return r.fail(err, "drop_collections")
	}

	if err := r.createCollections(ctx); err != nil {
		return r.fail(err, "create_collections")
	}

	for _, src := range r.sources() {
		if err := r.indexCollection(ctx, src); err != nil {
			return r.fail(err, src.phase)
		}
	}

	r.mu.Lock()
	r.progress.Status = "completed"
	r.progress.Phase = "done"
	r.progress.CompletedAt = ptr.Time(time.Now())
	r.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"total_records":     r.progress.TotalRecords,
		"processed_records": r.progress.ProcessedRecords,
		"duration":          time.Since(r.progress.StartedAt).String(),
	}).Info("Reindex operation completed")

	return r.progressSnapshot(), nil
}

func (r *ReindexService) fail(err error, phase string) (*ReindexProgress, error) {
	r.mu.Lock()
	r.progress.Status = "failed"
	r.progress.Phase = phase
	r.progress.CompletedAt = ptr.Time(time.Now())
	r.progress.Errors = append(r.progress.Errors, err.Error())
	r.mu.Unlock()

	logrus.WithError(err).WithField("phase", phase).Error("Reindex operation failed")
	return r.progressSnapshot(), err
}

func (r *ReindexService) dropCollections(ctx context.Context) error {
	r.updateProgress("drop_collections", 0, 0)
	logrus.Info("Dropping all collections")

	if err := r.client.DropAllCollections(ctx); err != nil {
		return err
	}

	logrus.Info("All collections dropped successfully")
	return nil
}

func (r *ReindexService) createCollections(ctx context.Context) error {
	r.updateProgress("create_collections", 0, 0)
	logrus.Info("Creating collections")

	if err := r.client.EnsureCollectionsExist(ctx); err != nil {
		return err
	}

	logrus.Info("All collections created successfully")
	return nil
}

// indexCollection streams one source into its collection in batches.
// Individual record failures are recorded and skipped; only fetch
// errors abort the rebuild.
func (r *ReindexService) indexCollection(ctx context.Context, src indexSource) error {
	base := r.GetProgress().ProcessedRecords
	r.updateProgress(src.phase, base, base)
	logrus.WithField("collection", src.collection).Info("Indexing collection")

	var offset int
	var indexed int64
	batches := 0

	for {
		records, err := src.fetch(ctx, r.config.BatchSize, offset)
		if err != nil {
			return err
		}

		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			data, err := toMap(rec.value)
			if err != nil {
				r.addError(src.label + " " + rec.id + ": " + err.Error())
				continue
			}

			if err := r.client.HandleNotification(ctx, src.collection, data); err != nil {
				r.addError(src.label + " " + rec.id + ": " + err.Error())
				continue
			}
			indexed++
		}

		r.updateProgress(src.phase, base+indexed, base+indexed)

		batches++
		if batches%100 == 0 {
			logrus.WithFields(logrus.Fields{
				"collection": src.collection,
				"batch":      batches,
				"indexed":    indexed,
			}).Info("Indexing progress")
		}

		offset += len(records)
	}

	logrus.WithFields(logrus.Fields{
		"collection": src.collection,
		"total":      indexed,
	}).Info("Collection indexing completed")
	return nil
}

// DropCollection deletes a collection, treating absence as success.
func (t *TypesenseClient) DropCollection(ctx context.Context, collectionName string) error {
	_, err := t.Client.Collection(collectionName).Delete(ctx)
	if err != nil && !strings.Contains(err.Error(), "not found") && !strings.Contains(err.Error(), "Not Found") {
		return err
	}
	return nil
}

// DropAllCollections drops every known collection.
func (t *TypesenseClient) DropAllCollections(ctx context.Context) error {
	collections := []string{
		CollectionWithdrawals,
		CollectionLedgerEntries,
		CollectionMerchantBalances,
		CollectionSecurityAudits,
	}

	for _, c := range collections {
		logrus.WithField("collection", c).Debug("Dropping collection")
		if err := t.DropCollection(ctx, c); err != nil {
			return err
		}
	}

	return nil
}
