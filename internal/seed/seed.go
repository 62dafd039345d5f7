// Package seed creates the bootstrap accounts used by operators and demos.
package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cardpay/internal/model"
	"cardpay/internal/repository"
	"cardpay/internal/service"
)

const (
	DefaultAdminEmail    = "admin@creditcard.com"
	DefaultAdminPassword = "Admin@123456"

	DefaultDemoEmail    = "demo@creditcard.com"
	DefaultDemoPassword = "Demo@123456"
	demoCardNumber      = "4111 1111 1111 1111"
)

// Seeder creates accounts directly through the repositories.
type Seeder struct {
	repos *repository.Repositories
	cards service.CardService
	log   *slog.Logger
}

func New(repos *repository.Repositories, log *slog.Logger) *Seeder {
	if log == nil {
		log = slog.Default()
	}
	return &Seeder{
		repos: repos,
		cards: service.NewCardService(repos.Cards, log),
		log:   log,
	}
}

// EnsureAdmin creates an active admin unless the email is already registered.
// It reports whether a user was created.
func (s *Seeder) EnsureAdmin(ctx context.Context, email, password string) (bool, error) {
	user, created, err := s.ensureUser(ctx, email, password, &model.User{
		FirstName: "System",
		LastName:  "Admin",
		IsAdmin:   true,
	})
	if err != nil {
		return false, err
	}
	if created {
		s.log.Info("admin created", slog.String("email", user.Email))
	}
	return created, nil
}

// EnsureDemo creates a regular user with one default card. Existing users
// keep their cards; a card is only added when they have none.
func (s *Seeder) EnsureDemo(ctx context.Context, email, password string) (*model.User, *model.Card, error) {
	user, _, err := s.ensureUser(ctx, email, password, &model.User{
		FirstName: "Demo",
		LastName:  "User",
	})
	if err != nil {
		return nil, nil, err
	}

	cards, err := s.cards.List(ctx, user.ID)
	if err != nil {
		return nil, nil, err
	}
	if len(cards) > 0 {
		return user, &cards[0], nil
	}

	card, err := s.cards.Create(ctx, user.ID, service.CreateCardInput{
		CardHolderName: "Demo User",
		CardNumber:     demoCardNumber,
		CardType:       model.CardNetworkVisa,
		ExpiryMonth:    12,
		ExpiryYear:     2030,
		IsDefault:      true,
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Info("demo user ready", slog.String("email", user.Email), slog.String("card", card.MaskedNumber))
	return user, card, nil
}

func (s *Seeder) ensureUser(ctx context.Context, email, password string, tmpl *model.User) (*model.User, bool, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := s.repos.Users.FindByEmail(ctx, email)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, fmt.Errorf("find user: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, false, fmt.Errorf("hash password: %w", err)
	}
	tmpl.Email = email
	tmpl.PasswordHash = string(hashed)
	tmpl.IsActive = true
	if err := s.repos.Users.Create(ctx, tmpl); err != nil {
		return nil, false, fmt.Errorf("create user: %w", err)
	}
	return tmpl, true, nil
}
