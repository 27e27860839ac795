package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shelfshare/payments/internal/logger"
	"github.com/shelfshare/payments/internal/model"
	"github.com/shelfshare/payments/internal/repo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	repo   *repo.Repository
	ledger *Ledger
	db     *gorm.DB
	ctx    context.Context
}

func newTestEnv(t *testing.T) *testEnv {
	// per-test in-memory DB; cache=shared keeps all pool connections on one DB
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(
		&model.Wallet{}, &model.WalletTransaction{}, &model.LendingRecord{},
		&model.BorrowRequest{}, &model.OutboxEvent{}))

	// cache writes are best-effort; the mock rejecting them is harmless
	rdb, _ := redismock.NewClientMock()

	log, err := logger.NewLogger()
	assert.NoError(t, err)

	r := repo.NewRepository(db, rdb, &kafka.Writer{}, log)
	return &testEnv{
		repo:   r,
		ledger: NewLedger(r, log),
		db:     db,
		ctx:    context.Background(),
	}
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLedger_CreditCreatesWalletAndRaisesAllPools(t *testing.T) {
	env := newTestEnv(t)

	ref := model.Reference{ID: 1, Kind: model.RefLendingRecord}
	entry, err := env.ledger.Credit(env.ctx, 10, dec("80"), model.SourceLendingFee, ref, "lending fee")
	assert.NoError(t, err)

	assert.Equal(t, "80.00", entry.Wallet.Balance.StringFixed(2))
	assert.Equal(t, "80.00", entry.Wallet.TotalEarnings.StringFixed(2))
	assert.Equal(t, "80.00", entry.Wallet.PendingEarnings.StringFixed(2))
	assert.Equal(t, "0.00", entry.Wallet.WithdrawnAmount.StringFixed(2))
	assert.Equal(t, "80.00", entry.Transaction.BalanceAfter.StringFixed(2))
}

func TestLedger_DebitSemanticsByPool(t *testing.T) {
	env := newTestEnv(t)
	ref := model.Reference{ID: 1, Kind: model.RefAdminAction}

	_, err := env.ledger.Credit(env.ctx, 10, dec("100"), model.SourceLendingFee, ref, "seed")
	assert.NoError(t, err)

	// a penalty debit consumes Balance, leaving PendingEarnings alone
	entry, err := env.ledger.Debit(env.ctx, 10, dec("30"), model.SourcePenalty, ref, "late return")
	assert.NoError(t, err)
	assert.Equal(t, "70.00", entry.Wallet.Balance.StringFixed(2))
	assert.Equal(t, "100.00", entry.Wallet.PendingEarnings.StringFixed(2))

	// a withdrawal debit consumes PendingEarnings, leaving Balance alone
	entry, err = env.ledger.Debit(env.ctx, 10, dec("60"), model.SourceWithdrawal, ref, "payout")
	assert.NoError(t, err)
	assert.Equal(t, "70.00", entry.Wallet.Balance.StringFixed(2))
	assert.Equal(t, "40.00", entry.Wallet.PendingEarnings.StringFixed(2))
	assert.Equal(t, "60.00", entry.Wallet.WithdrawnAmount.StringFixed(2))
	// balance untouched, so the snapshot equals the running balance
	assert.Equal(t, "70.00", entry.Transaction.BalanceAfter.StringFixed(2))
}

func TestLedger_DebitInsufficientFundsLeavesWalletUntouched(t *testing.T) {
	env := newTestEnv(t)
	ref := model.Reference{ID: 1, Kind: model.RefAdminAction}

	_, err := env.ledger.Credit(env.ctx, 10, dec("50"), model.SourceLendingFee, ref, "seed")
	assert.NoError(t, err)

	_, err = env.ledger.Debit(env.ctx, 10, dec("80"), model.SourcePenalty, ref, "too big")
	assert.ErrorIs(t, err, repo.ErrInsufficientFunds)
	_, err = env.ledger.Debit(env.ctx, 10, dec("80"), model.SourceWithdrawal, ref, "too big")
	assert.ErrorIs(t, err, repo.ErrInsufficientFunds)

	// debiting a user with no wallet at all fails the same way
	_, err = env.ledger.Debit(env.ctx, 99, dec("1"), model.SourcePenalty, ref, "no wallet")
	assert.ErrorIs(t, err, repo.ErrInsufficientFunds)

	w, err := env.ledger.GetWallet(env.ctx, 10)
	assert.NoError(t, err)
	assert.Equal(t, "50.00", w.Balance.StringFixed(2))
	assert.Equal(t, "50.00", w.PendingEarnings.StringFixed(2))

	txs, total, err := env.ledger.History(env.ctx, 10, 1, 10)
	assert.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Len(t, txs, 1)
}

func TestLedger_InvalidAmountRejected(t *testing.T) {
	env := newTestEnv(t)
	ref := model.Reference{ID: 1, Kind: model.RefAdminAction}

	_, err := env.ledger.Credit(env.ctx, 10, dec("0"), model.SourceLendingFee, ref, "zero")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = env.ledger.Debit(env.ctx, 10, dec("-5"), model.SourcePenalty, ref, "negative")
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestLedger_BalanceAfterReplaysExactly(t *testing.T) {
	env := newTestEnv(t)
	ref := model.Reference{ID: 1, Kind: model.RefAdminAction}

	ops := []struct {
		credit bool
		amt    string
		source model.TxSource
	}{
		{true, "100", model.SourceLendingFee},
		{true, "25.50", model.SourceRefund},
		{false, "40", model.SourcePenalty},
		{false, "60", model.SourceWithdrawal},
		{true, "10", model.SourceAdminAdjustment},
	}
	for _, op := range ops {
		var err error
		if op.credit {
			_, err = env.ledger.Credit(env.ctx, 7, dec(op.amt), op.source, ref, "op")
		} else {
			_, err = env.ledger.Debit(env.ctx, 7, dec(op.amt), op.source, ref, "op")
		}
		assert.NoError(t, err)
	}

	txs, _, err := env.ledger.History(env.ctx, 7, 1, 50)
	assert.NoError(t, err)
	assert.Len(t, txs, len(ops))

	// history is newest first; replay oldest first
	running := decimal.Zero
	for i := len(txs) - 1; i >= 0; i-- {
		running = running.Add(txs[i].SignedAmount())
		assert.True(t, running.Equal(txs[i].BalanceAfter),
			"entry %d: running %s != balance_after %s", txs[i].ID, running, txs[i].BalanceAfter)
	}

	w, err := env.ledger.GetWallet(env.ctx, 7)
	assert.NoError(t, err)
	assert.True(t, running.Equal(w.Balance))
	assert.Equal(t, "95.50", w.Balance.StringFixed(2))   // 100+25.50-40+10, withdrawal ignored
	assert.Equal(t, "75.50", w.PendingEarnings.StringFixed(2)) // 135.50-60
	assert.Equal(t, "135.50", w.TotalEarnings.StringFixed(2))
	assert.Equal(t, "60.00", w.WithdrawnAmount.StringFixed(2))
}

func TestLedger_GetWalletUnknownUserReadsZero(t *testing.T) {
	env := newTestEnv(t)

	w, err := env.ledger.GetWallet(env.ctx, 404)
	assert.NoError(t, err)
	assert.True(t, w.Balance.IsZero())
	assert.True(t, w.PendingEarnings.IsZero())
}
