package service

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"cardpay/internal/db"
	apperrors "cardpay/internal/errors"
)

// storeError classifies persistence failures: lost lock races become
// ErrConflict and missing rows become notFound.
func storeError(err error, notFound error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound) && notFound != nil:
		return notFound
	case db.IsLockConflict(err):
		return fmt.Errorf("%s: %w", op, apperrors.ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// passThrough keeps domain errors raised inside a unit of work intact.
func passThrough(err error, op string) error {
	var verr *apperrors.ValidationError
	if errors.As(err, &verr) {
		return err
	}
	for _, sentinel := range []error{
		apperrors.ErrCardNotFound, apperrors.ErrTransactionNotFound, apperrors.ErrUserNotFound,
		apperrors.ErrConflict, apperrors.ErrInvalidTransition, apperrors.ErrForbidden,
	} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	return storeError(err, nil, op)
}
