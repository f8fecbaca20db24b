package model

import (
	"time"

	"github.com/shopspring/decimal"

	tesouro "github.com/vendahub/tesouro"
	"github.com/vendahub/tesouro/model"
)

// LedgerEntryResponse is the wire shape of one ledger line.
type LedgerEntryResponse struct {
	EntryID        string          `json:"entryId"`
	TenantID       string          `json:"tenantId"`
	Seq            int64           `json:"seq"`
	EntryType      string          `json:"entryType"`
	Source         string          `json:"source"`
	ReferenceID    string          `json:"referenceId,omitempty"`
	Amount         decimal.Decimal `json:"amount"`
	RunningBalance decimal.Decimal `json:"runningBalance"`
	Currency       string          `json:"currency"`
	Description    string          `json:"description,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// LedgerSummaryResponse aggregates the entries of a listing.
type LedgerSummaryResponse struct {
	TotalCredits decimal.Decimal `json:"totalCredits"`
	TotalDebits  decimal.Decimal `json:"totalDebits"`
	NetBalance   decimal.Decimal `json:"netBalance"`
	Count        int             `json:"count"`
}

// LedgerResponse is the body of GET /ledger: the listed window plus the
// summary folded from exactly those entries.
type LedgerResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
	Summary LedgerSummaryResponse `json:"summary"`
}

// LedgerIntegrityResponse is the body of the ledger verification
// endpoint.
type LedgerIntegrityResponse struct {
	TenantID      string          `json:"tenantId"`
	Entries       int             `json:"entries"`
	FoldedBalance decimal.Decimal `json:"foldedBalance"`
	StoredBalance decimal.Decimal `json:"storedBalance"`
	Consistent    bool            `json:"consistent"`
	SeqGaps       []int64         `json:"seqGaps,omitempty"`
	RunningDrift  []string        `json:"runningDrift,omitempty"`
	CheckedAt     time.Time       `json:"checkedAt"`
}

// ToLedgerResponse converts a ledger window and its summary.
func ToLedgerResponse(entries []*model.LedgerEntry, summary model.LedgerSummary) LedgerResponse {
	wireEntries := make([]LedgerEntryResponse, 0, len(entries))
	for _, entry := range entries {
		wireEntries = append(wireEntries, LedgerEntryResponse{
			EntryID:        entry.EntryID,
			TenantID:       entry.TenantID,
			Seq:            entry.Seq,
			EntryType:      entry.EntryType,
			Source:         entry.Source,
			ReferenceID:    entry.ReferenceID,
			Amount:         entry.Amount,
			RunningBalance: entry.RunningBalance,
			Currency:       entry.Currency,
			Description:    entry.Description,
			CreatedAt:      entry.CreatedAt,
		})
	}
	return LedgerResponse{
		Entries: wireEntries,
		Summary: LedgerSummaryResponse{
			TotalCredits: summary.TotalCredits,
			TotalDebits:  summary.TotalDebits,
			NetBalance:   summary.NetBalance,
			Count:        summary.Count,
		},
	}
}

// ToLedgerIntegrityResponse converts a verification report.
func ToLedgerIntegrityResponse(report *tesouro.LedgerIntegrityReport) LedgerIntegrityResponse {
	return LedgerIntegrityResponse{
		TenantID:      report.TenantID,
		Entries:       report.Entries,
		FoldedBalance: report.FoldedBalance,
		StoredBalance: report.StoredBalance,
		Consistent:    report.Consistent,
		SeqGaps:       report.SeqGaps,
		RunningDrift:  report.RunningDrift,
		CheckedAt:     report.CheckedAt,
	}
}
