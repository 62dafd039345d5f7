package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CardNetwork tags the issuing network of a card.
type CardNetwork string

const (
	CardNetworkVisa       CardNetwork = "VISA"
	CardNetworkMastercard CardNetwork = "MASTERCARD"
	CardNetworkAmex       CardNetwork = "AMEX"
	CardNetworkDiscover   CardNetwork = "DISCOVER"
	CardNetworkOther      CardNetwork = "OTHER"
)

// Valid reports whether n is one of the known networks.
func (n CardNetwork) Valid() bool {
	switch n {
	case CardNetworkVisa, CardNetworkMastercard, CardNetworkAmex, CardNetworkDiscover, CardNetworkOther:
		return true
	}
	return false
}

// Card holds display-safe card metadata. The full number and CVV are never stored.
type Card struct {
	ID             uuid.UUID   `json:"id" gorm:"type:char(36);primaryKey"`
	UserID         uuid.UUID   `json:"user_id" gorm:"type:char(36);not null;index"`
	CardHolderName string      `json:"card_holder_name" gorm:"size:200;not null"`
	LastFourDigits string      `json:"last_four_digits" gorm:"size:4;not null"`
	MaskedNumber   string      `json:"masked_number" gorm:"size:20;not null"` // **** **** **** 1234
	CardType       CardNetwork `json:"card_type" gorm:"type:varchar(20);not null;default:'OTHER'"`
	ExpiryMonth    int         `json:"expiry_month" gorm:"not null"`
	ExpiryYear     int         `json:"expiry_year" gorm:"not null"`
	IsDefault      bool        `json:"is_default" gorm:"default:false;index"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	// Relations
	User *User `json:"-" gorm:"foreignKey:UserID"`
}

// BeforeCreate sets UUID before creating the record.
func (c *Card) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
