package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// LendingRecord holds the fee breakdown for one borrow transaction.
// One record per borrow request; IsPaid flips false→true exactly once.
// CommissionRate is snapshotted at settlement time and never updated,
// even if the platform default changes later.
type LendingRecord struct {
	ID              uint64          `gorm:"primaryKey"`
	BorrowRequestID uint64          `gorm:"not null;uniqueIndex"`
	Fee             decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	PlatformFee     decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	LenderEarnings  decimal.Decimal `gorm:"type:numeric(20,2);not null;default:'0'"`
	CommissionRate  decimal.Decimal `gorm:"type:numeric(6,4);not null;default:'0'"`
	OrderID         string          `gorm:"size:64;index"`
	IsPaid          bool            `gorm:"not null;default:false"`
	PaymentID       *string         `gorm:"size:64"`
	PaidAt          *time.Time
	CreatedAt       time.Time `gorm:"autoCreateTime"`
	UpdatedAt       time.Time `gorm:"autoUpdateTime"`
}

func (LendingRecord) TableName() string { return "lending_record" }
