package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shelfshare/payments/internal/gateway"
	"github.com/shelfshare/payments/internal/model"
	"github.com/shelfshare/payments/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	// ErrNotAllowed means the actor is not the borrower on the transaction.
	ErrNotAllowed = errors.New("actor is not the borrower on this transaction")
	// ErrZeroFee means the borrow transaction carries no fee to settle.
	ErrZeroFee = errors.New("borrow transaction has no fee")
)

// BorrowStore supplies borrow transactions from the marketplace service.
type BorrowStore interface {
	GetBorrowRequest(ctx context.Context, id uint64) (*model.BorrowRequest, error)
}

// SettlementConfig is the commission policy plus gateway metadata.
type SettlementConfig struct {
	CommissionRate    decimal.Decimal
	PlatformAccountID uint64
	ReceiptPrefix     string
}

// Settlement converts confirmed gateway payments into wallet credits:
// verify the confirmation, pass the idempotency gate, split the fee,
// credit lender and platform, mark the lending record paid. All inside
// one DB transaction.
type Settlement struct {
	repo     repo.RepositoryInterface
	ledger   *Ledger
	gw       gateway.Client
	verifier *gateway.Verifier
	borrows  BorrowStore
	cfg      SettlementConfig
	log      *zap.SugaredLogger
}

// NewSettlement returns Settlement.
func NewSettlement(r repo.RepositoryInterface, l *Ledger, gw gateway.Client, v *gateway.Verifier, borrows BorrowStore, cfg SettlementConfig, logger *zap.SugaredLogger) *Settlement {
	return &Settlement{repo: r, ledger: l, gw: gw, verifier: v, borrows: borrows, cfg: cfg, log: logger}
}

// CreateOrder loads the borrow transaction, creates its lending record
// if absent and requests a gateway charge order for the fee in minor
// currency units. Only the borrower may call it.
func (s *Settlement) CreateOrder(ctx context.Context, actorID, borrowRequestID uint64) (*gateway.Order, error) {
	br, err := s.borrows.GetBorrowRequest(ctx, borrowRequestID)
	if err != nil {
		return nil, err
	}
	if br.BorrowerID != actorID {
		return nil, ErrNotAllowed
	}
	if br.Fee.LessThanOrEqual(decimal.Zero) {
		return nil, ErrZeroFee
	}

	rec, err := s.loadOrCreateRecord(ctx, br)
	if err != nil {
		return nil, err
	}
	if rec.IsPaid {
		return nil, model.ErrAlreadyProcessed
	}

	receipt := gateway.Receipt(s.cfg.ReceiptPrefix, borrowRequestID, time.Now())
	ord, err := s.gw.CreateOrder(ctx, receipt, br.Fee.Mul(decimal.NewFromInt(100)).IntPart())
	if err != nil {
		return nil, err
	}

	rec.OrderID = ord.ID
	if err := s.repo.SaveLendingRecord(ctx, s.repo.DB(ctx), rec); err != nil {
		return nil, err
	}
	s.log.Infow("gateway order created",
		"borrow_request", borrowRequestID, "order", ord.ID, "amount_minor", ord.Amount)
	return ord, nil
}

// VerifyPayment checks the gateway confirmation signature and, exactly
// once per lending record, applies the commission split to the ledger.
// Safe to retry: replays return the already-settled record unchanged.
func (s *Settlement) VerifyPayment(ctx context.Context, actorID uint64, orderID, paymentID, signature string, borrowRequestID uint64) (*model.LendingRecord, error) {
	br, err := s.borrows.GetBorrowRequest(ctx, borrowRequestID)
	if err != nil {
		return nil, err
	}
	if br.BorrowerID != actorID {
		return nil, ErrNotAllowed
	}
	if br.Fee.LessThanOrEqual(decimal.Zero) {
		return nil, ErrZeroFee
	}
	// signature check before any mutation
	if err := s.verifier.Verify(orderID, paymentID, signature); err != nil {
		return nil, err
	}

	var out *model.LendingRecord
	err = s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		rec, err := s.repo.GetLendingRecordForUpdate(ctx, tx, borrowRequestID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// gateway callback can arrive before the client flow created one
			rec = &model.LendingRecord{BorrowRequestID: borrowRequestID, Fee: br.Fee, OrderID: orderID}
			err = s.repo.CreateLendingRecord(ctx, tx, rec)
		}
		if err != nil {
			return err
		}
		out = rec

		// idempotency gate: record already settled, or a ledger entry
		// already exists for it
		if rec.IsPaid {
			return nil
		}
		exists, _, err := s.repo.TxExistsByReference(ctx, tx, rec.ID, model.SourceLendingFee)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		rate := s.cfg.CommissionRate
		platformFee := rec.Fee.Mul(rate).Round(2)
		lenderEarnings := rec.Fee.Sub(platformFee)

		ref := model.Reference{ID: rec.ID, Kind: model.RefLendingRecord}
		if _, err := s.ledger.CreditTx(ctx, tx, br.LenderID, lenderEarnings, model.SourceLendingFee, ref,
			fmt.Sprintf("lending fee for borrow request %d", borrowRequestID)); err != nil {
			return err
		}
		if _, err := s.ledger.CreditTx(ctx, tx, s.cfg.PlatformAccountID, platformFee, model.SourcePlatformCommission, ref,
			fmt.Sprintf("commission on borrow request %d", borrowRequestID)); err != nil {
			return err
		}

		now := time.Now()
		rec.CommissionRate = rate
		rec.PlatformFee = platformFee
		rec.LenderEarnings = lenderEarnings
		rec.IsPaid = true
		rec.PaymentID = &paymentID
		rec.PaidAt = &now
		if rec.OrderID == "" {
			rec.OrderID = orderID
		}
		if err := s.repo.SaveLendingRecord(ctx, tx, rec); err != nil {
			return err
		}

		payload, _ := json.Marshal(map[string]interface{}{
			"borrow_request_id": borrowRequestID,
			"lender_id":         br.LenderID,
			"fee":               rec.Fee,
			"platform_fee":      platformFee,
			"lender_earnings":   lenderEarnings,
			"payment_id":        paymentID,
		})
		evt := &model.OutboxEvent{
			Aggregate: "LendingRecord", AggregateID: rec.ID,
			EventType: model.EventFeeSettled, Payload: string(payload),
		}
		return s.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// loadOrCreateRecord fetches the lending record for a borrow request,
// creating it on first use.
func (s *Settlement) loadOrCreateRecord(ctx context.Context, br *model.BorrowRequest) (*model.LendingRecord, error) {
	var rec *model.LendingRecord
	err := s.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		rec, err = s.repo.GetLendingRecordForUpdate(ctx, tx, br.ID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			rec = &model.LendingRecord{BorrowRequestID: br.ID, Fee: br.Fee}
			return s.repo.CreateLendingRecord(ctx, tx, rec)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}
