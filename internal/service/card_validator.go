package service

import (
	"strings"

	"cardpay/internal/errors"
)

// maskPrefix is prepended to the last four digits for display.
const maskPrefix = "**** **** **** "

var validCardLengths = map[int]bool{13: true, 14: true, 15: true, 16: true, 19: true}

// CardValidator validates raw card input. It never retains the number.
type CardValidator struct{}

// NewCardValidator creates a new card validator.
func NewCardValidator() *CardValidator {
	return &CardValidator{}
}

// Normalize strips spaces and hyphens and checks the digit count.
func (v *CardValidator) Normalize(cardNumber string) (string, error) {
	clean := strings.NewReplacer(" ", "", "-", "").Replace(cardNumber)
	if !validCardLengths[len(clean)] {
		return "", errors.ErrInvalidCardNumber
	}
	for _, r := range clean {
		if r < '0' || r > '9' {
			return "", errors.ErrInvalidCardNumber
		}
	}
	return clean, nil
}

// Mask derives the stored display fields from a normalized number.
func (v *CardValidator) Mask(clean string) (lastFour, masked string) {
	lastFour = clean[len(clean)-4:]
	return lastFour, maskPrefix + lastFour
}

// ValidateExpiry checks month and year ranges.
func (v *CardValidator) ValidateExpiry(month, year int) *errors.ValidationError {
	verr := &errors.ValidationError{}
	if month < 1 || month > 12 {
		verr.Add("expiry_month", "must be between 1 and 12")
	}
	if year < 2024 || year > 2040 {
		verr.Add("expiry_year", "must be between 2024 and 2040")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}
