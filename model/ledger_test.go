package model

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func entryOf(entryType string, amount float64) *LedgerEntry {
	return NewLedgerEntry("tenant_1", entryType, EntrySourceSaleSettlement, "", "BRL",
		decimal.NewFromFloat(amount), "")
}

func TestFoldRunningBalance_EmptySequence(t *testing.T) {
	opening := decimal.NewFromFloat(123.45)
	assert.True(t, FoldRunningBalance(opening, nil).Equal(opening))
	assert.True(t, FoldRunningBalance(opening, []*LedgerEntry{}).Equal(opening))
}

func TestFoldRunningBalance_CreditsAndDebits(t *testing.T) {
	opening := decimal.NewFromFloat(100.00)
	entries := []*LedgerEntry{
		entryOf(EntryTypeCredit, 95.00),
		entryOf(EntryTypeDebit, 50.00),
		entryOf(EntryTypeCredit, 190.00),
		entryOf(EntryTypeDebit, 2.50),
	}

	closing := FoldRunningBalance(opening, entries)
	assert.True(t, closing.Equal(decimal.NewFromFloat(332.50)),
		"expected 332.50, got %s", closing)
}

func TestSummarizeEntries_EqualsFold(t *testing.T) {
	entries := []*LedgerEntry{
		entryOf(EntryTypeCredit, 95.00),
		entryOf(EntryTypeDebit, 50.00),
		entryOf(EntryTypeCredit, 190.00),
		entryOf(EntryTypeDebit, 2.50),
	}

	summary := SummarizeEntries(entries)

	assert.Equal(t, 4, summary.Count)
	assert.True(t, summary.TotalCredits.Equal(decimal.NewFromFloat(285.00)))
	assert.True(t, summary.TotalDebits.Equal(decimal.NewFromFloat(52.50)))

	// The summary's net must equal folding the same entries from zero.
	fold := FoldRunningBalance(decimal.Zero, entries)
	assert.True(t, summary.NetBalance.Equal(fold),
		"summary net %s diverged from fold %s", summary.NetBalance, fold)
}

func TestSummarizeEntries_Empty(t *testing.T) {
	summary := SummarizeEntries(nil)
	assert.Equal(t, 0, summary.Count)
	assert.True(t, summary.TotalCredits.IsZero())
	assert.True(t, summary.TotalDebits.IsZero())
	assert.True(t, summary.NetBalance.IsZero())
}

func TestLedgerEntry_SignedAmount(t *testing.T) {
	credit := entryOf(EntryTypeCredit, 10.00)
	debit := entryOf(EntryTypeDebit, 10.00)

	assert.True(t, credit.SignedAmount().Equal(decimal.NewFromFloat(10.00)))
	assert.True(t, debit.SignedAmount().Equal(decimal.NewFromFloat(-10.00)))
}

func TestNewLedgerEntry_Defaults(t *testing.T) {
	entry := NewLedgerEntry("tenant_1", EntryTypeCredit, EntrySourceSaleSettlement,
		"sal_abc", "BRL", decimal.NewFromFloat(95), "settled sale")

	assert.Contains(t, entry.EntryID, "lde_")
	assert.Equal(t, int64(0), entry.Seq, "seq is assigned by the datasource")
	assert.True(t, entry.RunningBalance.IsZero())
	assert.Equal(t, "sal_abc", entry.ReferenceID)
}
