package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet is the per-user balance aggregate, created lazily on first
// credit or debit. Balance and PendingEarnings overlap on purpose:
// every credit raises both, a withdrawal debit consumes PendingEarnings
// only, any other debit consumes Balance only.
type Wallet struct {
	UserID          uint64          `gorm:"primaryKey;column:user_id"`
	Balance         decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	TotalEarnings   decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	PendingEarnings decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	WithdrawnAmount decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	Version         uint64          `gorm:"not null;default:0"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime"`
}

func (Wallet) TableName() string { return "wallet" }
