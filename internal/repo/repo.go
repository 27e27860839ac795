package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/segmentio/kafka-go"
	"github.com/shelfshare/payments/internal/model"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrInsufficientFunds is returned when a debit exceeds the relevant pool.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrOptimisticLock is returned when the wallet version check fails.
var ErrOptimisticLock = errors.New("optimistic lock conflict")

// RepositoryInterface restricts Repo methods for unit-test mocks.
type RepositoryInterface interface {
	DB(ctx context.Context) *gorm.DB
	GetWallet(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error)
	CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error
	UpdateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet, oldVersion uint64) error
	CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error
	SetTransactionReference(ctx context.Context, tx *gorm.DB, id uint64, ref model.Reference) error
	UpdateTransactionMetadata(ctx context.Context, tx *gorm.DB, id uint64, meta *string) error
	TxExistsByReference(ctx context.Context, tx *gorm.DB, refID uint64, source model.TxSource) (bool, *model.WalletTransaction, error)
	GetWithdrawal(ctx context.Context, id uint64) (*model.WalletTransaction, error)
	GetWithdrawalForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.WalletTransaction, error)
	ListTransactions(ctx context.Context, userID uint64, page, limit int) ([]model.WalletTransaction, int64, error)
	ListWithdrawals(ctx context.Context, page, limit int) ([]model.WalletTransaction, int64, error)
	SumBySource(ctx context.Context, txType model.TxType, source model.TxSource) (decimal.Decimal, error)
	GetBorrowRequest(ctx context.Context, id uint64) (*model.BorrowRequest, error)
	GetLendingRecordForUpdate(ctx context.Context, tx *gorm.DB, borrowRequestID uint64) (*model.LendingRecord, error)
	CreateLendingRecord(ctx context.Context, tx *gorm.DB, rec *model.LendingRecord) error
	SaveLendingRecord(ctx context.Context, tx *gorm.DB, rec *model.LendingRecord) error
	CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error
	PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkOutboxProcessed(ctx context.Context, id uint64) error
	PublishEvent(ctx context.Context, evt model.OutboxEvent) error
	CacheWallet(ctx context.Context, w *model.Wallet) error
	GetCachedWallet(ctx context.Context, userID uint64) (*model.Wallet, error)
}

// Repository implements RepositoryInterface.
type Repository struct {
	db     *gorm.DB
	rdb    *redis.Client
	writer *kafka.Writer
	log    *zap.SugaredLogger
}

// NewRepository constructs repo.
func NewRepository(db *gorm.DB, rdb *redis.Client, w *kafka.Writer, logger *zap.SugaredLogger) *Repository {
	return &Repository{db: db, rdb: rdb, writer: w, log: logger}
}

// DB returns underlying *gorm.DB
func (r *Repository) DB(ctx context.Context) *gorm.DB { return r.db.WithContext(ctx) }

// GetWallet loads a wallet without locking.
func (r *Repository) GetWallet(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWalletForUpdate locks the wallet row.
func (r *Repository) GetWalletForUpdate(ctx context.Context, tx *gorm.DB, userID uint64) (*model.Wallet, error) {
	var w model.Wallet
	if err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).First(&w).Error; err != nil {
		return nil, err
	}
	return &w, nil
}

// CreateWallet inserts a fresh zero-balance wallet.
func (r *Repository) CreateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet) error {
	return tx.WithContext(ctx).Create(w).Error
}

// UpdateWallet writes all four pools with an optimistic version check.
func (r *Repository) UpdateWallet(ctx context.Context, tx *gorm.DB, w *model.Wallet, oldVersion uint64) error {
	res := tx.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("user_id = ? AND version = ?", w.UserID, oldVersion).
		Updates(map[string]interface{}{
			"balance":          w.Balance,
			"total_earnings":   w.TotalEarnings,
			"pending_earnings": w.PendingEarnings,
			"withdrawn_amount": w.WithdrawnAmount,
			"version":          oldVersion + 1,
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrOptimisticLock
	}
	w.Version = oldVersion + 1
	return nil
}

// CreateTransaction appends a ledger entry.
func (r *Repository) CreateTransaction(ctx context.Context, tx *gorm.DB, t *model.WalletTransaction) error {
	return tx.WithContext(ctx).Create(t).Error
}

// SetTransactionReference rewrites an entry's tagged reference.
// Withdrawal request rows reference themselves, which is only known
// after the insert assigned an id.
func (r *Repository) SetTransactionReference(ctx context.Context, tx *gorm.DB, id uint64, ref model.Reference) error {
	return tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"reference_id": ref.ID, "reference_kind": ref.Kind}).Error
}

// UpdateTransactionMetadata rewrites the metadata column of one entry.
func (r *Repository) UpdateTransactionMetadata(ctx context.Context, tx *gorm.DB, id uint64, meta *string) error {
	return tx.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("id = ?", id).
		Update("metadata", meta).Error
}

// TxExistsByReference checks for a prior entry keyed by (reference, source).
// This is the settlement idempotency gate.
func (r *Repository) TxExistsByReference(ctx context.Context, tx *gorm.DB, refID uint64, source model.TxSource) (bool, *model.WalletTransaction, error) {
	var t model.WalletTransaction
	err := tx.WithContext(ctx).
		Where("reference_id = ? AND source = ?", refID, source).
		First(&t).Error
	if err == nil {
		return true, &t, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil, nil
	}
	return false, nil, err
}

// GetWithdrawal reads a withdrawal request row without locking.
func (r *Repository) GetWithdrawal(ctx context.Context, id uint64) (*model.WalletTransaction, error) {
	var t model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("id = ? AND source = ? AND metadata IS NOT NULL", id, model.SourceWithdrawal).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetWithdrawalForUpdate locks a withdrawal request row. Only rows
// carrying withdrawal metadata qualify; ledger entries produced by the
// approval debit do not.
func (r *Repository) GetWithdrawalForUpdate(ctx context.Context, tx *gorm.DB, id uint64) (*model.WalletTransaction, error) {
	var t model.WalletTransaction
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND source = ? AND metadata IS NOT NULL", id, model.SourceWithdrawal).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTransactions pages one user's ledger, newest first.
func (r *Repository) ListTransactions(ctx context.Context, userID uint64, page, limit int) ([]model.WalletTransaction, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).
		Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("id desc").Offset((page - 1) * limit).Limit(limit).
		Find(&txs).Error
	return txs, total, err
}

// ListWithdrawals pages withdrawal request rows across all users.
func (r *Repository) ListWithdrawals(ctx context.Context, page, limit int) ([]model.WalletTransaction, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).
		Where("source = ? AND metadata IS NOT NULL", model.SourceWithdrawal).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var txs []model.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("source = ? AND metadata IS NOT NULL", model.SourceWithdrawal).
		Order("id desc").Offset((page - 1) * limit).Limit(limit).
		Find(&txs).Error
	return txs, total, err
}

// SumBySource totals ledger amounts for one (type, source) pair.
// Withdrawal request intents carry metadata and are excluded; only
// entries from actual fund movement count.
func (r *Repository) SumBySource(ctx context.Context, txType model.TxType, source model.TxSource) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.db.WithContext(ctx).
		Model(&model.WalletTransaction{}).
		Where("type = ? AND source = ? AND metadata IS NULL", txType, source).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	return sum, nil
}

// GetBorrowRequest reads the marketplace's borrow transaction.
func (r *Repository) GetBorrowRequest(ctx context.Context, id uint64) (*model.BorrowRequest, error) {
	var br model.BorrowRequest
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&br).Error; err != nil {
		return nil, err
	}
	return &br, nil
}

// GetLendingRecordForUpdate locks the record keyed by borrow request.
func (r *Repository) GetLendingRecordForUpdate(ctx context.Context, tx *gorm.DB, borrowRequestID uint64) (*model.LendingRecord, error) {
	var rec model.LendingRecord
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("borrow_request_id = ?", borrowRequestID).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateLendingRecord inserts record.
func (r *Repository) CreateLendingRecord(ctx context.Context, tx *gorm.DB, rec *model.LendingRecord) error {
	return tx.WithContext(ctx).Create(rec).Error
}

// SaveLendingRecord persists all record fields.
func (r *Repository) SaveLendingRecord(ctx context.Context, tx *gorm.DB, rec *model.LendingRecord) error {
	return tx.WithContext(ctx).Save(rec).Error
}

// CreateOutboxEvent writes event.
func (r *Repository) CreateOutboxEvent(ctx context.Context, tx *gorm.DB, evt *model.OutboxEvent) error {
	return tx.WithContext(ctx).Create(evt).Error
}

// PollOutbox pulls unprocessed events.
func (r *Repository) PollOutbox(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var evts []model.OutboxEvent
	err := r.db.WithContext(ctx).Where("processed=false").Order("created_at").Limit(limit).Find(&evts).Error
	return evts, err
}

// MarkOutboxProcessed sets processed flag.
func (r *Repository) MarkOutboxProcessed(ctx context.Context, id uint64) error {
	now := time.Now()
	return r.db.WithContext(ctx).Model(&model.OutboxEvent{}).Where("id=?", id).
		Updates(map[string]interface{}{"processed": true, "processed_at": &now}).Error
}

// PublishEvent sends to Kafka.
func (r *Repository) PublishEvent(ctx context.Context, evt model.OutboxEvent) error {
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("%d", evt.ID)),
		Value: []byte(evt.Payload),
		Time:  time.Now(),
	}
	return r.writer.WriteMessages(ctx, msg)
}

// CacheWallet writes the wallet snapshot to Redis, 5 minute TTL.
func (r *Repository) CacheWallet(ctx context.Context, w *model.Wallet) error {
	b, err := json.Marshal(w)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, fmt.Sprintf("wallet:%d", w.UserID), string(b), 5*time.Minute).Err()
}

// GetCachedWallet reads the wallet snapshot from Redis.
func (r *Repository) GetCachedWallet(ctx context.Context, userID uint64) (*model.Wallet, error) {
	str, err := r.rdb.Get(ctx, fmt.Sprintf("wallet:%d", userID)).Result()
	if err != nil {
		return nil, err
	}
	var w model.Wallet
	if err := json.Unmarshal([]byte(str), &w); err != nil {
		return nil, err
	}
	return &w, nil
}
