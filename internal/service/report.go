package service

import (
	"context"

	"github.com/shelfshare/payments/internal/model"
	"github.com/shelfshare/payments/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Summary is the platform-wide money view derived from the ledger.
type Summary struct {
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	LenderEarnings     decimal.Decimal `json:"lender_earnings"`
	TotalWithdrawals   decimal.Decimal `json:"total_withdrawals"`
	CommissionRate     decimal.Decimal `json:"commission_rate"`
}

// Reports aggregates the transaction log by source.
type Reports struct {
	repo           repo.RepositoryInterface
	commissionRate decimal.Decimal
	log            *zap.SugaredLogger
}

// NewReports returns Reports.
func NewReports(r repo.RepositoryInterface, commissionRate decimal.Decimal, logger *zap.SugaredLogger) *Reports {
	return &Reports{repo: r, commissionRate: commissionRate, log: logger}
}

// PlatformSummary totals commission, lender earnings and executed
// withdrawals across all users.
func (r *Reports) PlatformSummary(ctx context.Context) (*Summary, error) {
	commission, err := r.repo.SumBySource(ctx, model.TxCredit, model.SourcePlatformCommission)
	if err != nil {
		return nil, err
	}
	earnings, err := r.repo.SumBySource(ctx, model.TxCredit, model.SourceLendingFee)
	if err != nil {
		return nil, err
	}
	withdrawals, err := r.repo.SumBySource(ctx, model.TxDebit, model.SourceWithdrawal)
	if err != nil {
		return nil, err
	}
	return &Summary{
		PlatformCommission: commission,
		LenderEarnings:     earnings,
		TotalWithdrawals:   withdrawals,
		CommissionRate:     r.commissionRate,
	}, nil
}
