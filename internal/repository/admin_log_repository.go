package repository

import (
	"context"

	"gorm.io/gorm"

	"cardpay/internal/model"
)

// AdminLogRepository appends and reads audit records.
type AdminLogRepository interface {
	Create(ctx context.Context, entry *model.AdminLog) error
	ListRecent(ctx context.Context, limit int) ([]model.AdminLog, error)
}

type adminLogRepository struct {
	db *gorm.DB
}

func NewAdminLogRepository(db *gorm.DB) AdminLogRepository {
	return &adminLogRepository{db: db}
}

func (r *adminLogRepository) Create(ctx context.Context, entry *model.AdminLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *adminLogRepository) ListRecent(ctx context.Context, limit int) ([]model.AdminLog, error) {
	var logs []model.AdminLog
	err := r.db.WithContext(ctx).Order("timestamp DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
