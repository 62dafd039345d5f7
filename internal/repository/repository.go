package repository

import (
	"context"

	"gorm.io/gorm"
)

// Repositories bundles every repository over one connection or transaction.
type Repositories struct {
	db           *gorm.DB
	Users        UserRepository
	Cards        CardRepository
	Transactions TransactionRepository
	AdminLogs    AdminLogRepository
}

// New wires all repositories to db.
func New(db *gorm.DB) *Repositories {
	return &Repositories{
		db:           db,
		Users:        NewUserRepository(db),
		Cards:        NewCardRepository(db),
		Transactions: NewTransactionRepository(db),
		AdminLogs:    NewAdminLogRepository(db),
	}
}

// Atomic runs fn with repositories bound to a single database transaction.
func (r *Repositories) Atomic(ctx context.Context, fn func(ctx context.Context, repos *Repositories) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, New(tx))
	})
}
