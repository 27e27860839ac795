package repo

import (
	"context"
	"fmt"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/shelfshare/payments/internal/logger"
	"github.com/shelfshare/payments/internal/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestRepo(t *testing.T) (*Repository, *gorm.DB) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	assert.NoError(t, err)
	assert.NoError(t, db.AutoMigrate(&model.Wallet{}, &model.WalletTransaction{}, &model.LendingRecord{}, &model.OutboxEvent{}))
	return NewRepository(db, nil, &kafka.Writer{}, must(logger.NewLogger())), db
}

func must(l *zap.SugaredLogger, err error) *zap.SugaredLogger {
	if err != nil {
		panic(err)
	}
	return l
}

func TestUpdateWallet_StaleVersionConflicts(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	w := &model.Wallet{UserID: 1, Balance: decimal.NewFromInt(100)}
	assert.NoError(t, repo.CreateWallet(ctx, db, w))

	// first writer wins
	w.Balance = decimal.NewFromInt(110)
	assert.NoError(t, repo.UpdateWallet(ctx, db, w, 0))

	// second writer still holds version 0 and must lose
	stale := &model.Wallet{UserID: 1, Balance: decimal.NewFromInt(90)}
	assert.ErrorIs(t, repo.UpdateWallet(ctx, db, stale, 0), ErrOptimisticLock)

	var final model.Wallet
	assert.NoError(t, db.First(&final, "user_id = ?", 1).Error)
	assert.Equal(t, "110.00", final.Balance.StringFixed(2))
	assert.Equal(t, uint64(1), final.Version)
}

func TestTxExistsByReference(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	entry := &model.WalletTransaction{
		UserID: 2, Type: model.TxCredit, Source: model.SourceLendingFee,
		Amount: decimal.NewFromInt(80), ReferenceID: 5, ReferenceKind: model.RefLendingRecord,
		BalanceAfter: decimal.NewFromInt(80),
	}
	assert.NoError(t, repo.CreateTransaction(ctx, db, entry))

	exists, found, err := repo.TxExistsByReference(ctx, db, 5, model.SourceLendingFee)
	assert.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, entry.ID, found.ID)

	exists, _, err = repo.TxExistsByReference(ctx, db, 5, model.SourcePlatformCommission)
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestSumBySource_SkipsRequestIntents(t *testing.T) {
	repo, db := newTestRepo(t)
	ctx := context.Background()

	meta := `{"status":"pending"}`
	rows := []model.WalletTransaction{
		{UserID: 1, Type: model.TxCredit, Source: model.SourceLendingFee, Amount: decimal.NewFromInt(80), ReferenceID: 1, ReferenceKind: model.RefLendingRecord, BalanceAfter: decimal.NewFromInt(80)},
		{UserID: 1, Type: model.TxCredit, Source: model.SourceLendingFee, Amount: decimal.NewFromInt(40), ReferenceID: 2, ReferenceKind: model.RefLendingRecord, BalanceAfter: decimal.NewFromInt(120)},
		// a pending request intent must not count as an executed withdrawal
		{UserID: 1, Type: model.TxDebit, Source: model.SourceWithdrawal, Amount: decimal.NewFromInt(50), ReferenceID: 3, ReferenceKind: model.RefWithdrawalRequest, BalanceAfter: decimal.NewFromInt(120), Metadata: &meta},
		{UserID: 1, Type: model.TxDebit, Source: model.SourceWithdrawal, Amount: decimal.NewFromInt(30), ReferenceID: 3, ReferenceKind: model.RefWithdrawalRequest, BalanceAfter: decimal.NewFromInt(120)},
	}
	for i := range rows {
		assert.NoError(t, repo.CreateTransaction(ctx, db, &rows[i]))
	}

	fees, err := repo.SumBySource(ctx, model.TxCredit, model.SourceLendingFee)
	assert.NoError(t, err)
	assert.Equal(t, "120.00", fees.StringFixed(2))

	withdrawn, err := repo.SumBySource(ctx, model.TxDebit, model.SourceWithdrawal)
	assert.NoError(t, err)
	assert.Equal(t, "30.00", withdrawn.StringFixed(2))
}
