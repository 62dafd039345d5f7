package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus represents the lifecycle state of a transaction.
type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusSuccess TransactionStatus = "SUCCESS"
	TransactionStatusFailed  TransactionStatus = "FAILED"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	return s == TransactionStatusPending || s.Terminal()
}

// Terminal reports whether no transition is allowed out of s.
func (s TransactionStatus) Terminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

// Transaction is the ledger record of a card payment.
// PENDING moves to exactly one of SUCCESS or FAILED, once.
type Transaction struct {
	ID            uuid.UUID         `json:"id" gorm:"type:char(36);primaryKey"`
	UserID        uuid.UUID         `json:"user_id" gorm:"type:char(36);not null;index"`
	CardID        *uuid.UUID        `json:"card_id" gorm:"type:char(36);index"`
	Amount        decimal.Decimal   `json:"amount" gorm:"type:decimal(12,2);not null"`
	Currency      string            `json:"currency" gorm:"size:3;not null;default:'USD'"`
	MerchantName  string            `json:"merchant_name" gorm:"size:200;not null"`
	Description   string            `json:"description" gorm:"type:text"`
	Status        TransactionStatus `json:"status" gorm:"type:varchar(10);not null;default:'PENDING';index"`
	ReferenceID   string            `json:"reference_id" gorm:"size:20;not null;uniqueIndex"`
	FailureReason string            `json:"failure_reason" gorm:"size:255"`
	CreatedAt     time.Time         `json:"created_at" gorm:"index"`
	UpdatedAt     time.Time         `json:"updated_at"`

	// Relations
	User *User `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Card *Card `json:"-" gorm:"foreignKey:CardID;constraint:OnDelete:SET NULL"`
}

// BeforeCreate sets UUID before creating the record.
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}
