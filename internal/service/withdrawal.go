package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shelfshare/payments/internal/model"
	"github.com/shelfshare/payments/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNotesRequired means a rejection was submitted without notes.
var ErrNotesRequired = errors.New("rejection notes required")

// Withdrawals runs the cash-out workflow: a user files a pending
// request against PendingEarnings, a single admin decision approves
// (debiting the wallet) or rejects it. Decisions are terminal.
type Withdrawals struct {
	repo   repo.RepositoryInterface
	ledger *Ledger
	log    *zap.SugaredLogger
}

// NewWithdrawals returns Withdrawals.
func NewWithdrawals(r repo.RepositoryInterface, l *Ledger, logger *zap.SugaredLogger) *Withdrawals {
	return &Withdrawals{repo: r, ledger: l, log: logger}
}

// Request files a pending withdrawal. It reserves intent only: the
// request row is appended to the ledger with the wallet untouched, and
// nothing is persisted when the amount exceeds PendingEarnings.
func (w *Withdrawals) Request(ctx context.Context, userID uint64, amt decimal.Decimal, dest model.PayoutDestination) (*model.WalletTransaction, error) {
	if amt.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if err := dest.Validate(); err != nil {
		return nil, err
	}
	var req *model.WalletTransaction
	err := w.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		wal, err := w.repo.GetWalletForUpdate(ctx, tx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repo.ErrInsufficientFunds
			}
			return err
		}
		if wal.PendingEarnings.LessThan(amt) {
			return repo.ErrInsufficientFunds
		}
		meta, err := model.WithdrawalMeta{Status: model.WithdrawalPending, Destination: dest}.Encode()
		if err != nil {
			return err
		}
		req = &model.WalletTransaction{
			UserID: userID, Type: model.TxDebit, Source: model.SourceWithdrawal, Amount: amt,
			ReferenceKind: model.RefWithdrawalRequest,
			Description:   "withdrawal request",
			BalanceAfter:  wal.Balance,
			Metadata:      meta,
		}
		if err := w.repo.CreateTransaction(ctx, tx, req); err != nil {
			return err
		}
		// the request references itself; the id exists only after insert
		ref := model.Reference{ID: req.ID, Kind: model.RefWithdrawalRequest}
		if err := w.repo.SetTransactionReference(ctx, tx, req.ID, ref); err != nil {
			return err
		}
		req.ReferenceID = req.ID

		payload, _ := json.Marshal(map[string]interface{}{
			"request_id": req.ID, "user_id": userID, "amount": amt,
		})
		evt := &model.OutboxEvent{
			Aggregate: "Withdrawal", AggregateID: req.ID,
			EventType: model.EventWithdrawalRequested, Payload: string(payload),
		}
		return w.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Approve debits the user's PendingEarnings and marks the request
// approved. The amount is re-validated at decision time; on
// insufficient funds the whole unit rolls back and the request stays
// pending, so the admin can retry later or reject.
func (w *Withdrawals) Approve(ctx context.Context, adminID, requestID uint64, notes string) (*model.WalletTransaction, error) {
	return w.decide(ctx, adminID, requestID, model.WithdrawalApproved, notes)
}

// Reject marks the request rejected with required notes. No ledger effect.
func (w *Withdrawals) Reject(ctx context.Context, adminID, requestID uint64, notes string) (*model.WalletTransaction, error) {
	if notes == "" {
		return nil, ErrNotesRequired
	}
	return w.decide(ctx, adminID, requestID, model.WithdrawalRejected, notes)
}

func (w *Withdrawals) decide(ctx context.Context, adminID, requestID uint64, target model.WithdrawalStatus, notes string) (*model.WalletTransaction, error) {
	var req *model.WalletTransaction
	err := w.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		req, err = w.repo.GetWithdrawalForUpdate(ctx, tx, requestID)
		if err != nil {
			return err
		}
		meta, err := model.DecodeWithdrawalMeta(req.Metadata)
		if err != nil {
			return err
		}
		if err := meta.Status.Transition(target); err != nil {
			return err
		}
		if target == model.WithdrawalApproved {
			ref := model.Reference{ID: req.ID, Kind: model.RefWithdrawalRequest}
			if _, err := w.ledger.DebitTx(ctx, tx, req.UserID, req.Amount, model.SourceWithdrawal, ref,
				fmt.Sprintf("payout for withdrawal request %d", req.ID)); err != nil {
				return err
			}
		}
		now := time.Now()
		meta.Status = target
		meta.DecidedBy = adminID
		meta.DecidedAt = &now
		meta.Notes = notes
		raw, err := meta.Encode()
		if err != nil {
			return err
		}
		if err := w.repo.UpdateTransactionMetadata(ctx, tx, req.ID, raw); err != nil {
			return err
		}
		req.Metadata = raw

		eventType := model.EventWithdrawalApproved
		if target == model.WithdrawalRejected {
			eventType = model.EventWithdrawalRejected
		}
		payload, _ := json.Marshal(map[string]interface{}{
			"request_id": req.ID, "user_id": req.UserID, "amount": req.Amount,
			"decided_by": adminID, "status": target,
		})
		evt := &model.OutboxEvent{
			Aggregate: "Withdrawal", AggregateID: req.ID,
			EventType: eventType, Payload: string(payload),
		}
		return w.repo.CreateOutboxEvent(ctx, tx, evt)
	})
	if err != nil {
		return nil, err
	}
	w.log.Infow("withdrawal decided", "request", requestID, "status", target, "admin", adminID)
	return req, nil
}

// Get loads a single withdrawal request with its decoded state.
func (w *Withdrawals) Get(ctx context.Context, requestID uint64) (*model.WalletTransaction, model.WithdrawalMeta, error) {
	req, err := w.repo.GetWithdrawal(ctx, requestID)
	if err != nil {
		return nil, model.WithdrawalMeta{}, err
	}
	meta, err := model.DecodeWithdrawalMeta(req.Metadata)
	return req, meta, err
}

// List pages withdrawal requests for the admin view.
func (w *Withdrawals) List(ctx context.Context, page, limit int) ([]model.WalletTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return w.repo.ListWithdrawals(ctx, page, limit)
}
