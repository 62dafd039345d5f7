package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"cardpay/internal/model"
)

// TransactionFilter narrows a transaction listing. Zero values mean "no filter".
type TransactionFilter struct {
	UserID    *uuid.UUID
	Status    model.TransactionStatus
	Query     string
	From      *time.Time // inclusive
	Until     *time.Time // exclusive
	AmountMin *decimal.Decimal
	AmountMax *decimal.Decimal
	Ordering  string
	Limit     int
	Offset    int
}

var orderings = map[string]string{
	"created_at":  "created_at ASC",
	"-created_at": "created_at DESC",
	"amount":      "amount ASC",
	"-amount":     "amount DESC",
}

// ValidOrdering reports whether o is an accepted ordering key.
func ValidOrdering(o string) bool {
	_, ok := orderings[o]
	return ok
}

// TransactionRepository defines ledger persistence operations.
type TransactionRepository interface {
	Create(ctx context.Context, txn *model.Transaction) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error)
	FindByReference(ctx context.Context, referenceID string) (*model.Transaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]model.Transaction, int64, error)
	// ScanRange returns created_at, status and amount of rows in [from, until).
	ScanRange(ctx context.Context, from, until *time.Time) ([]model.Transaction, error)
	// UpdateStatusIfPending moves a PENDING row to status and reports rows affected.
	UpdateStatusIfPending(ctx context.Context, referenceID string, status model.TransactionStatus, reason string) (int64, error)
}

type transactionRepository struct {
	db *gorm.DB
}

// NewTransactionRepository creates a new transaction repository.
func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db}
}

func (r *transactionRepository) Create(ctx context.Context, txn *model.Transaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *transactionRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Transaction, error) {
	var txn model.Transaction
	if err := r.db.WithContext(ctx).Preload("Card").Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) FindByReference(ctx context.Context, referenceID string) (*model.Transaction, error) {
	var txn model.Transaction
	if err := r.db.WithContext(ctx).Where("reference_id = ?", referenceID).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *transactionRepository) List(ctx context.Context, f TransactionFilter) ([]model.Transaction, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.Transaction{})
	if f.UserID != nil {
		q = q.Where("user_id = ?", *f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if s := strings.TrimSpace(f.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(merchant_name) LIKE ? OR LOWER(reference_id) LIKE ?", like, like)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.Until != nil {
		q = q.Where("created_at < ?", *f.Until)
	}
	if f.AmountMin != nil {
		q = q.Where("amount >= ?", *f.AmountMin)
	}
	if f.AmountMax != nil {
		q = q.Where("amount <= ?", *f.AmountMax)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order, ok := orderings[f.Ordering]
	if !ok {
		order = orderings["-created_at"]
	}
	q = q.Preload("Card").Order(order).Order("id")
	if f.Limit > 0 {
		q = q.Limit(f.Limit).Offset(f.Offset)
	}

	var txns []model.Transaction
	if err := q.Find(&txns).Error; err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

func (r *transactionRepository) ScanRange(ctx context.Context, from, until *time.Time) ([]model.Transaction, error) {
	q := r.db.WithContext(ctx).Model(&model.Transaction{}).Select("created_at", "status", "amount")
	if from != nil {
		q = q.Where("created_at >= ?", *from)
	}
	if until != nil {
		q = q.Where("created_at < ?", *until)
	}
	var rows []model.Transaction
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *transactionRepository) UpdateStatusIfPending(ctx context.Context, referenceID string, status model.TransactionStatus, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&model.Transaction{}).
		Where("reference_id = ? AND status = ?", referenceID, model.TransactionStatusPending).
		Updates(map[string]interface{}{
			"status":         status,
			"failure_reason": reason,
		})
	return res.RowsAffected, res.Error
}
