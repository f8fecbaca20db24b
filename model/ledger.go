package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// Ledger entry types. The ledger is append-only: corrections are new
// entries, historical entries are never edited.
const (
	EntryTypeCredit = "credit"
	EntryTypeDebit  = "debit"
)

// Ledger entry sources.
const (
	EntrySourceSaleSettlement     = "sale_settlement"
	EntrySourceWithdrawalDebit    = "withdrawal_debit"
	EntrySourceWithdrawalReversal = "withdrawal_reversal"
	EntrySourceProcessingFee      = "processing_fee"
	EntrySourceAdjustment         = "adjustment"
	EntrySourceOpeningBalance     = "opening_balance"
)

// LedgerEntry is one immutable line in a tenant's ledger. Seq is a
// per-tenant monotonic sequence assigned under the balance row lock;
// RunningBalance is the fold of all entries up to and including this one.
type LedgerEntry struct {
	ID             int64                  `json:"-"`
	EntryID        string                 `json:"entry_id"`
	TenantID       string                 `json:"tenant_id"`
	Seq            int64                  `json:"seq"`
	EntryType      string                 `json:"entry_type"`
	Source         string                 `json:"source"`
	ReferenceID    string                 `json:"reference_id,omitempty"`
	Amount         decimal.Decimal        `json:"amount"`
	RunningBalance decimal.Decimal        `json:"running_balance"`
	Currency       string                 `json:"currency"`
	Description    string                 `json:"description,omitempty"`
	CreatedAt      time.Time              `json:"created_at"`
	MetaData       map[string]interface{} `json:"meta_data,omitempty"`
}

type LedgerFilter struct {
	TenantID  string    `json:"tenant_id"`
	EntryType string    `json:"entry_type"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	Limit     int       `json:"limit"`
	Offset    int       `json:"offset"`
}

// LedgerSummary aggregates a listed entry window. It is always produced
// by SummarizeEntries over the exact entries returned, never by a
// separate query, so listing and summary cannot diverge.
type LedgerSummary struct {
	TotalCredits decimal.Decimal `json:"total_credits"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	NetBalance   decimal.Decimal `json:"net_balance"`
	Count        int             `json:"count"`
}

// NewLedgerEntry builds an entry without a seq or running balance; both
// are assigned by the datasource inside the insert transaction.
func NewLedgerEntry(tenantID, entryType, source, referenceID, currency string, amount decimal.Decimal, description string) *LedgerEntry {
	return &LedgerEntry{
		EntryID:     GenerateUUIDWithSuffix("lde"),
		TenantID:    tenantID,
		EntryType:   entryType,
		Source:      source,
		ReferenceID: referenceID,
		Amount:      amount,
		Currency:    currency,
		Description: description,
		CreatedAt:   time.Now(),
	}
}

// SignedAmount returns the entry amount with its direction applied:
// positive for credits, negative for debits.
func (entry *LedgerEntry) SignedAmount() decimal.Decimal {
	if entry.EntryType == EntryTypeDebit {
		return entry.Amount.Neg()
	}
	return entry.Amount
}

// FoldRunningBalance replays entries in order from an opening balance
// and returns the closing balance. An empty sequence folds to the
// opening balance unchanged.
func FoldRunningBalance(opening decimal.Decimal, entries []*LedgerEntry) decimal.Decimal {
	balance := opening
	for _, entry := range entries {
		balance = balance.Add(entry.SignedAmount())
	}
	return balance
}

// SummarizeEntries folds exactly the given entries into a summary.
func SummarizeEntries(entries []*LedgerEntry) LedgerSummary {
	summary := LedgerSummary{
		TotalCredits: decimal.Zero,
		TotalDebits:  decimal.Zero,
		NetBalance:   decimal.Zero,
		Count:        len(entries),
	}
	for _, entry := range entries {
		if entry.EntryType == EntryTypeDebit {
			summary.TotalDebits = summary.TotalDebits.Add(entry.Amount)
		} else {
			summary.TotalCredits = summary.TotalCredits.Add(entry.Amount)
		}
	}
	summary.NetBalance = summary.TotalCredits.Sub(summary.TotalDebits)
	return summary
}

func (entry *LedgerEntry) ToJSON() ([]byte, error) {
	return json.Marshal(entry)
}
