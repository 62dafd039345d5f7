package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AdminAction is the kind of privileged operation recorded in the audit log.
type AdminAction string

const (
	AdminActionCreate AdminAction = "CREATE"
	AdminActionUpdate AdminAction = "UPDATE"
	AdminActionDelete AdminAction = "DELETE"
	AdminActionView   AdminAction = "VIEW"
	AdminActionExport AdminAction = "EXPORT"
	AdminActionLogin  AdminAction = "LOGIN"
)

// AdminLog is an append-only audit record of an admin mutation.
// Rows are never updated or deleted through the API.
type AdminLog struct {
	ID          uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	AdminID     *uuid.UUID  `json:"admin_id" gorm:"type:char(36);index"`
	AdminEmail  string      `json:"admin" gorm:"size:255"`
	Action      AdminAction `json:"action" gorm:"type:varchar(10);not null"`
	TargetModel string      `json:"target_model" gorm:"size:50;not null"`
	TargetID    string      `json:"target_id" gorm:"size:50"`
	Description string      `json:"description" gorm:"type:text"`
	IPAddress   string      `json:"ip_address" gorm:"size:45"`
	Timestamp   time.Time   `json:"timestamp" gorm:"autoCreateTime;index"`
}

// BeforeCreate sets UUID before creating the record.
func (l *AdminLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
