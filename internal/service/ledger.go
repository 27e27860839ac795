package service

import (
	"context"
	"errors"

	"github.com/shelfshare/payments/internal/model"
	"github.com/shelfshare/payments/internal/repo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrInvalidAmount means non-positive amount passed.
var ErrInvalidAmount = errors.New("amount must be positive")

// Entry is the result of one ledger mutation: the appended transaction
// and the wallet snapshot right after it.
type Entry struct {
	Transaction *model.WalletTransaction
	Wallet      *model.Wallet
}

// Ledger owns the atomic credit/debit primitives over the wallet
// aggregate plus the append-only transaction log. Every mutation is one
// DB transaction: load wallet, recompute pools, CAS-write the wallet,
// append the log entry.
type Ledger struct {
	repo repo.RepositoryInterface
	log  *zap.SugaredLogger
}

// NewLedger returns Ledger.
func NewLedger(r repo.RepositoryInterface, logger *zap.SugaredLogger) *Ledger {
	return &Ledger{repo: r, log: logger}
}

// Credit adds earned funds, creating the wallet if absent. Balance,
// TotalEarnings and PendingEarnings all rise by amount.
func (l *Ledger) Credit(ctx context.Context, userID uint64, amt decimal.Decimal, source model.TxSource, ref model.Reference, desc string) (*Entry, error) {
	var entry *Entry
	err := l.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = l.CreditTx(ctx, tx, userID, amt, source, ref, desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// CreditTx is Credit running inside an existing DB transaction, so
// callers such as settlement can combine several ledger writes into one
// atomic unit.
func (l *Ledger) CreditTx(ctx context.Context, tx *gorm.DB, userID uint64, amt decimal.Decimal, source model.TxSource, ref model.Reference, desc string) (*Entry, error) {
	if amt.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	w, err := l.walletForUpdate(ctx, tx, userID, true)
	if err != nil {
		return nil, err
	}
	oldVersion := w.Version
	w.Balance = w.Balance.Add(amt)
	w.TotalEarnings = w.TotalEarnings.Add(amt)
	w.PendingEarnings = w.PendingEarnings.Add(amt)
	if err := l.repo.UpdateWallet(ctx, tx, w, oldVersion); err != nil {
		return nil, err
	}
	t := &model.WalletTransaction{
		UserID: userID, Type: model.TxCredit, Source: source, Amount: amt,
		ReferenceID: ref.ID, ReferenceKind: ref.Kind,
		Description: desc, BalanceAfter: w.Balance,
	}
	if err := l.repo.CreateTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := l.repo.CacheWallet(ctx, w); err != nil {
		l.log.Warnf("cache wallet %d: %v", userID, err)
	}
	return &Entry{Transaction: t, Wallet: w}, nil
}

// Debit removes funds. Withdrawal debits consume PendingEarnings and
// raise WithdrawnAmount, leaving Balance untouched; every other source
// consumes Balance. Fails with repo.ErrInsufficientFunds and no side
// effects when the relevant pool is too small.
func (l *Ledger) Debit(ctx context.Context, userID uint64, amt decimal.Decimal, source model.TxSource, ref model.Reference, desc string) (*Entry, error) {
	var entry *Entry
	err := l.repo.DB(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		entry, err = l.DebitTx(ctx, tx, userID, amt, source, ref, desc)
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// DebitTx is Debit running inside an existing DB transaction.
func (l *Ledger) DebitTx(ctx context.Context, tx *gorm.DB, userID uint64, amt decimal.Decimal, source model.TxSource, ref model.Reference, desc string) (*Entry, error) {
	if amt.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	w, err := l.walletForUpdate(ctx, tx, userID, false)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repo.ErrInsufficientFunds
		}
		return nil, err
	}
	oldVersion := w.Version
	if source == model.SourceWithdrawal {
		if w.PendingEarnings.LessThan(amt) {
			return nil, repo.ErrInsufficientFunds
		}
		w.PendingEarnings = w.PendingEarnings.Sub(amt)
		w.WithdrawnAmount = w.WithdrawnAmount.Add(amt)
	} else {
		if w.Balance.LessThan(amt) {
			return nil, repo.ErrInsufficientFunds
		}
		w.Balance = w.Balance.Sub(amt)
	}
	if err := l.repo.UpdateWallet(ctx, tx, w, oldVersion); err != nil {
		return nil, err
	}
	t := &model.WalletTransaction{
		UserID: userID, Type: model.TxDebit, Source: source, Amount: amt,
		ReferenceID: ref.ID, ReferenceKind: ref.Kind,
		Description: desc, BalanceAfter: w.Balance,
	}
	if err := l.repo.CreateTransaction(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := l.repo.CacheWallet(ctx, w); err != nil {
		l.log.Warnf("cache wallet %d: %v", userID, err)
	}
	return &Entry{Transaction: t, Wallet: w}, nil
}

// walletForUpdate locks the wallet row, optionally creating it.
func (l *Ledger) walletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64, createIfAbsent bool) (*model.Wallet, error) {
	w, err := l.repo.GetWalletForUpdate(ctx, tx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) || !createIfAbsent {
		return nil, err
	}
	w = &model.Wallet{
		UserID:          userID,
		Balance:         decimal.Zero,
		TotalEarnings:   decimal.Zero,
		PendingEarnings: decimal.Zero,
		WithdrawnAmount: decimal.Zero,
	}
	if err := l.repo.CreateWallet(ctx, tx, w); err != nil {
		return nil, err
	}
	return w, nil
}

// GetWallet returns the wallet snapshot, cache first. A user with no
// wallet yet reads as all-zero.
func (l *Ledger) GetWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	if w, err := l.repo.GetCachedWallet(ctx, userID); err == nil {
		return w, nil
	}
	w, err := l.repo.GetWallet(ctx, l.repo.DB(ctx), userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &model.Wallet{
				UserID:          userID,
				Balance:         decimal.Zero,
				TotalEarnings:   decimal.Zero,
				PendingEarnings: decimal.Zero,
				WithdrawnAmount: decimal.Zero,
			}, nil
		}
		return nil, err
	}
	if err := l.repo.CacheWallet(ctx, w); err != nil {
		l.log.Warnf("cache wallet %d: %v", userID, err)
	}
	return w, nil
}

// History pages the user's ledger, newest first.
func (l *Ledger) History(ctx context.Context, userID uint64, page, limit int) ([]model.WalletTransaction, int64, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return l.repo.ListTransactions(ctx, userID, page, limit)
}
