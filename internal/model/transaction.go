package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxType is the direction of a ledger entry.
type TxType string

const (
	TxCredit TxType = "credit"
	TxDebit  TxType = "debit"
)

// TxSource names the business event behind a ledger entry.
type TxSource string

const (
	SourceLendingFee         TxSource = "lending-fee"
	SourcePlatformCommission TxSource = "platform-commission"
	SourceWithdrawal         TxSource = "withdrawal"
	SourceRefund             TxSource = "refund"
	SourcePenalty            TxSource = "penalty"
	SourceAdminAdjustment    TxSource = "admin-adjustment"
)

// WalletTransaction is an append-only ledger entry. BalanceAfter
// snapshots Wallet.Balance right after the entry was applied.
// Withdrawal request rows carry their state in Metadata; entries
// produced by actual fund movement leave Metadata null.
type WalletTransaction struct {
	ID            uint64          `gorm:"primaryKey"`
	UserID        uint64          `gorm:"not null;index"`
	Type          TxType          `gorm:"size:16;not null"`
	Source        TxSource        `gorm:"size:32;not null;index:idx_tx_reference,priority:2"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	ReferenceID   uint64          `gorm:"not null;index:idx_tx_reference,priority:1"`
	ReferenceKind RefKind         `gorm:"size:32;not null"`
	Description   string          `gorm:"size:255"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Metadata      *string         `gorm:"type:jsonb"`
	CreatedAt     time.Time       `gorm:"autoCreateTime"`
}

func (WalletTransaction) TableName() string { return "wallet_transaction" }

// Reference returns the entry's tagged pointer.
func (t *WalletTransaction) Reference() Reference {
	return Reference{ID: t.ReferenceID, Kind: t.ReferenceKind}
}

// SignedAmount is the entry's contribution to Wallet.Balance.
// Withdrawal debits never touch Balance, so they contribute zero.
func (t *WalletTransaction) SignedAmount() decimal.Decimal {
	switch {
	case t.Type == TxCredit:
		return t.Amount
	case t.Source == SourceWithdrawal:
		return decimal.Zero
	default:
		return t.Amount.Neg()
	}
}
