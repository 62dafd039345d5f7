package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"cardpay/internal/model"
)

// CardRepository defines card persistence operations.
type CardRepository interface {
	Create(ctx context.Context, card *model.Card) error
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*model.Card, error)
	FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Card, error)
	// ListAll returns every card with its owner eagerly loaded (one extra IN query).
	ListAll(ctx context.Context) ([]model.Card, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	// ClearDefault unsets is_default on every card of the user except keepID.
	ClearDefault(ctx context.Context, userID, keepID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
	// LockOwner takes a row lock on the owning user, serialising card-set mutations.
	LockOwner(ctx context.Context, userID uuid.UUID) error
	// Transaction methods
	WithTransaction(ctx context.Context, fn func(ctx context.Context, repo CardRepository) error) error
}

type cardRepository struct {
	db *gorm.DB
}

// NewCardRepository creates a new card repository.
func NewCardRepository(db *gorm.DB) CardRepository {
	return &cardRepository{db: db}
}

// Create creates a new card.
func (r *cardRepository) Create(ctx context.Context, card *model.Card) error {
	return r.db.WithContext(ctx).Create(card).Error
}

// FindByIDForUser finds a card by ID scoped to its owner.
func (r *cardRepository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*model.Card, error) {
	var card model.Card
	if err := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&card).Error; err != nil {
		return nil, err
	}
	return &card, nil
}

// FindByUserID finds all cards for a user, newest first.
func (r *cardRepository) FindByUserID(ctx context.Context, userID uuid.UUID) ([]model.Card, error) {
	var cards []model.Card
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// ListAll lists all cards across users.
func (r *cardRepository) ListAll(ctx context.Context) ([]model.Card, error) {
	var cards []model.Card
	if err := r.db.WithContext(ctx).Preload("User").Order("created_at DESC").Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// UpdateFields applies a partial update to a card.
func (r *cardRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&model.Card{}).Where("id = ?", id).Updates(fields).Error
}

// ClearDefault unsets the default flag on the user's other cards.
func (r *cardRepository) ClearDefault(ctx context.Context, userID, keepID uuid.UUID) error {
	return r.db.WithContext(ctx).Model(&model.Card{}).
		Where("user_id = ? AND is_default = ? AND id <> ?", userID, true, keepID).
		Update("is_default", false).Error
}

// Delete removes a card after detaching it from transactions that reference it.
func (r *cardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx := r.db.WithContext(ctx)
	if err := tx.Model(&model.Transaction{}).Where("card_id = ?", id).Update("card_id", nil).Error; err != nil {
		return err
	}
	res := tx.Where("id = ?", id).Delete(&model.Card{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// LockOwner locks the user row that owns the card set.
func (r *cardRepository) LockOwner(ctx context.Context, userID uuid.UUID) error {
	return NewUserRepository(r.db).LockByID(ctx, userID)
}

// WithTransaction executes a function within a database transaction.
func (r *cardRepository) WithTransaction(ctx context.Context, fn func(ctx context.Context, repo CardRepository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &cardRepository{db: tx}
		return fn(ctx, txRepo)
	})
}
