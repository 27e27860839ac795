package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BorrowRequest mirrors the marketplace service's borrow transaction
// table. This service only reads it: fee amount and the two parties.
type BorrowRequest struct {
	ID         uint64          `gorm:"primaryKey"`
	BorrowerID uint64          `gorm:"not null"`
	LenderID   uint64          `gorm:"not null"`
	Fee        decimal.Decimal `gorm:"type:numeric(20,2);not null"`
	Status     string          `gorm:"size:32;not null"`
	CreatedAt  time.Time
}

func (BorrowRequest) TableName() string { return "borrow_request" }
