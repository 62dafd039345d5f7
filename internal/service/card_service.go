package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
	"cardpay/internal/repository"
)

// CreateCardInput carries a new card. CardNumber is used to derive the
// display fields and then dropped.
type CreateCardInput struct {
	CardHolderName string
	CardNumber     string
	CardType       model.CardNetwork
	ExpiryMonth    int
	ExpiryYear     int
	IsDefault      bool
}

// UpdateCardInput is a partial update; nil fields are left alone.
type UpdateCardInput struct {
	CardHolderName *string
	IsDefault      *bool
}

// CardService handles card operations.
type CardService interface {
	Create(ctx context.Context, userID uuid.UUID, in CreateCardInput) (*model.Card, error)
	List(ctx context.Context, userID uuid.UUID) ([]model.Card, error)
	Get(ctx context.Context, userID, cardID uuid.UUID) (*model.Card, error)
	Update(ctx context.Context, userID, cardID uuid.UUID, in UpdateCardInput) (*model.Card, error)
	Delete(ctx context.Context, userID, cardID uuid.UUID) error
}

type cardService struct {
	cardRepo  repository.CardRepository
	validator *CardValidator
	log       *slog.Logger
}

// NewCardService creates a new card service.
func NewCardService(cardRepo repository.CardRepository, log *slog.Logger) CardService {
	if log == nil {
		log = slog.Default()
	}
	return &cardService{
		cardRepo:  cardRepo,
		validator: NewCardValidator(),
		log:       log,
	}
}

func validateHolderName(name string) (string, *apperrors.ValidationError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperrors.NewValidationError("card_holder_name", "required")
	}
	if len(name) > 200 {
		return "", apperrors.NewValidationError("card_holder_name", "must be at most 200 characters")
	}
	return name, nil
}

// Create stores the card's masked form. Setting it as default clears the
// user's other defaults in the same transaction.
func (s *cardService) Create(ctx context.Context, userID uuid.UUID, in CreateCardInput) (*model.Card, error) {
	holder, verr := validateHolderName(in.CardHolderName)
	if verr == nil {
		verr = &apperrors.ValidationError{}
	}
	if !in.CardType.Valid() {
		verr.Add("card_type", "must be one of VISA, MASTERCARD, AMEX, DISCOVER, OTHER")
	}
	if expErr := s.validator.ValidateExpiry(in.ExpiryMonth, in.ExpiryYear); expErr != nil {
		for field, msg := range expErr.Fields {
			verr.Add(field, msg)
		}
	}
	if !verr.Empty() {
		return nil, verr
	}

	clean, err := s.validator.Normalize(in.CardNumber)
	if err != nil {
		return nil, err
	}
	lastFour, masked := s.validator.Mask(clean)

	card := &model.Card{
		ID:             uuid.New(),
		UserID:         userID,
		CardHolderName: holder,
		LastFourDigits: lastFour,
		MaskedNumber:   masked,
		CardType:       in.CardType,
		ExpiryMonth:    in.ExpiryMonth,
		ExpiryYear:     in.ExpiryYear,
		IsDefault:      in.IsDefault,
	}

	err = s.cardRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.CardRepository) error {
		if card.IsDefault {
			if err := repo.LockOwner(ctx, userID); err != nil {
				return storeError(err, apperrors.ErrUserNotFound, "lock owner")
			}
			if err := repo.ClearDefault(ctx, userID, card.ID); err != nil {
				return storeError(err, nil, "clear default")
			}
		}
		return storeError(repo.Create(ctx, card), nil, "create card")
	})
	if err != nil {
		return nil, passThrough(err, "create card")
	}

	s.log.Info("card added", slog.String("card_id", card.ID.String()), slog.String("user_id", userID.String()))
	return card, nil
}

func (s *cardService) List(ctx context.Context, userID uuid.UUID) ([]model.Card, error) {
	cards, err := s.cardRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, storeError(err, nil, "list cards")
	}
	return cards, nil
}

// Get returns the card if it belongs to userID.
func (s *cardService) Get(ctx context.Context, userID, cardID uuid.UUID) (*model.Card, error) {
	card, err := s.cardRepo.FindByIDForUser(ctx, cardID, userID)
	if err != nil {
		return nil, storeError(err, apperrors.ErrCardNotFound, "get card")
	}
	return card, nil
}

func (s *cardService) Update(ctx context.Context, userID, cardID uuid.UUID, in UpdateCardInput) (*model.Card, error) {
	fields := map[string]interface{}{}
	if in.CardHolderName != nil {
		holder, verr := validateHolderName(*in.CardHolderName)
		if verr != nil {
			return nil, verr
		}
		fields["card_holder_name"] = holder
	}
	if in.IsDefault != nil {
		fields["is_default"] = *in.IsDefault
	}

	var updated *model.Card
	err := s.cardRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.CardRepository) error {
		if in.IsDefault != nil && *in.IsDefault {
			if err := repo.LockOwner(ctx, userID); err != nil {
				return storeError(err, apperrors.ErrCardNotFound, "lock owner")
			}
		}
		if _, err := repo.FindByIDForUser(ctx, cardID, userID); err != nil {
			return storeError(err, apperrors.ErrCardNotFound, "get card")
		}
		if in.IsDefault != nil && *in.IsDefault {
			if err := repo.ClearDefault(ctx, userID, cardID); err != nil {
				return storeError(err, nil, "clear default")
			}
		}
		if len(fields) > 0 {
			if err := repo.UpdateFields(ctx, cardID, fields); err != nil {
				return storeError(err, apperrors.ErrCardNotFound, "update card")
			}
		}
		card, err := repo.FindByIDForUser(ctx, cardID, userID)
		if err != nil {
			return storeError(err, apperrors.ErrCardNotFound, "reload card")
		}
		updated = card
		return nil
	})
	if err != nil {
		return nil, passThrough(err, "update card")
	}
	return updated, nil
}

// Delete removes the card; transactions that used it keep a null card reference.
func (s *cardService) Delete(ctx context.Context, userID, cardID uuid.UUID) error {
	err := s.cardRepo.WithTransaction(ctx, func(ctx context.Context, repo repository.CardRepository) error {
		if _, err := repo.FindByIDForUser(ctx, cardID, userID); err != nil {
			return storeError(err, apperrors.ErrCardNotFound, "get card")
		}
		return storeError(repo.Delete(ctx, cardID), apperrors.ErrCardNotFound, "delete card")
	})
	if err != nil {
		return passThrough(err, "delete card")
	}
	s.log.Info("card removed", slog.String("card_id", cardID.String()), slog.String("user_id", userID.String()))
	return nil
}
