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

package database

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vendahub/tesouro/internal/filter"
	"github.com/vendahub/tesouro/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	withdrawal // Interface for withdrawal-related operations
	ledger     // Interface for ledger-entry operations
	balance    // Interface for merchant balance operations
	sale       // Interface for settled-sale operations
	audit      // Interface for security-audit operations
	apiKey     // Interface for API-key operations

	Ping(ctx context.Context) error // Verifies the database connection is alive
}

// withdrawal defines methods for handling withdrawals.
type withdrawal interface {
	RecordWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, entry *model.LedgerEntry) (*model.Withdrawal, error)          // Accepts a withdrawal: reserves funds, writes the debit entry and the row in one transaction
	GetWithdrawal(ctx context.Context, id string) (*model.Withdrawal, error)                                                          // Retrieves a withdrawal by ID
	GetWithdrawalByProviderTransactionID(ctx context.Context, providerTransactionID string) (*model.Withdrawal, error)                // Retrieves a withdrawal by the provider's transaction ID
	MarkWithdrawalProcessing(ctx context.Context, id, providerTransactionID string) error                                             // Moves pending -> processing once the provider accepted the payout
	CompleteWithdrawal(ctx context.Context, withdrawal *model.Withdrawal) error                                                       // Moves processing -> completed and clears the reservation
	FailWithdrawal(ctx context.Context, withdrawal *model.Withdrawal, reason, message string, reversal *model.LedgerEntry) error      // Moves the withdrawal to failed, releases funds and writes the reversal credit
	UpdateWithdrawalMetadata(ctx context.Context, id string, metadata map[string]interface{}) error                                   // Replaces a withdrawal's stored metadata
	GetWithdrawals(ctx context.Context, filter model.WithdrawalFilter) ([]*model.Withdrawal, error)                                   // Retrieves withdrawals matching a filter
	GetWithdrawalsFiltered(ctx context.Context, tenantID string, filters *filter.QueryFilterSet, opts *filter.QueryOptions, limit, offset int) ([]*model.Withdrawal, *int64, error) // Retrieves withdrawals matching an advanced filter set
	GetAllWithdrawals(ctx context.Context, limit, offset int) ([]*model.Withdrawal, error)                                            // Retrieves withdrawals in a paginated manner
	GetStaleProcessingWithdrawals(ctx context.Context, olderThan time.Time) ([]*model.Withdrawal, error)                              // Retrieves withdrawals stuck in processing
	GetStuckPendingWithdrawals(ctx context.Context, olderThan time.Time, limit int) ([]*model.Withdrawal, error)                      // Retrieves withdrawals still pending since before a point in time
	SumWithdrawalsSince(ctx context.Context, tenantID string, since time.Time) (decimal.Decimal, error)                               // Sums non-failed withdrawal amounts created since a point in time
}

// ledger defines methods for handling ledger entries.
type ledger interface {
	RecordLedgerEntry(ctx context.Context, entry *model.LedgerEntry) (*model.LedgerEntry, error)   // Appends an entry under the balance lock and moves the available balance by the signed amount
	GetLedgerEntries(ctx context.Context, filter model.LedgerFilter) ([]*model.LedgerEntry, error) // Retrieves entries matching a filter, ordered by seq
	GetAllLedgerEntries(limit, offset int) ([]*model.LedgerEntry, error)                           // Retrieves entries in a paginated manner
	GetLastProcessingFeeTime(ctx context.Context, tenantID string) (time.Time, error)              // Returns when the tenant was last swept, zero if never
}

// balance defines methods for handling merchant balances.
type balance interface {
	CreateMerchantBalance(ctx context.Context, balance *model.MerchantBalance) (*model.MerchantBalance, error) // Creates a merchant balance
	GetMerchantBalance(ctx context.Context, tenantID string) (*model.MerchantBalance, error)                   // Retrieves a merchant balance by tenant
	GetAllMerchantBalances(ctx context.Context, limit, offset int) ([]*model.MerchantBalance, error)           // Retrieves balances in a paginated manner
	GetActiveTenants(ctx context.Context) ([]string, error)                                                    // Lists tenants that hold a balance
}

// sale defines methods for handling settled sales.
type sale interface {
	RecordSaleSettlement(ctx context.Context, sale *model.SettledSale, entry *model.LedgerEntry) error   // Records a settlement: sale row, credit entry and balance credit in one transaction
	SaleExistsByReference(ctx context.Context, tenantID, reference string) (bool, error)                 // Checks if a settlement with this reference was already recorded
	GetSalesTotals(ctx context.Context, tenantID string) (decimal.Decimal, decimal.Decimal, error)       // Returns gross and net settled totals for a tenant
	SumSettledSalesBetween(ctx context.Context, tenantID string, from, to time.Time) (decimal.Decimal, error) // Sums sale totals settled inside a window
}

// audit defines methods for handling security audit entries.
type audit interface {
	RecordSecurityAudit(ctx context.Context, entry *model.SecurityAuditEntry) error                               // Records a security audit entry
	GetSecurityAudits(ctx context.Context, filter model.SecurityAuditFilter) ([]*model.SecurityAuditEntry, error) // Retrieves audit entries matching a filter
	GetAllSecurityAudits(limit, offset int) ([]*model.SecurityAuditEntry, error)                                  // Retrieves audit entries in a paginated manner
}

// apiKey defines methods for handling API keys.
type apiKey interface {
	CreateAPIKey(ctx context.Context, name, tenantID string, scopes []string, expiresAt time.Time) (*model.APIKey, error) // Issues a scoped key for a tenant
	GetAPIKey(ctx context.Context, key string) (*model.APIKey, error)                                                     // Looks up a key by its key string
	RevokeAPIKey(ctx context.Context, id, tenantID string) error                                                          // Revokes a tenant's key
	UpdateLastUsed(ctx context.Context, id string) error                                                                  // Stamps a key's last use
	ListAPIKeys(ctx context.Context, tenantID string) ([]*model.APIKey, error)                                            // Lists a tenant's keys
}
