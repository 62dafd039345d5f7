package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"cardpay/internal/auth"
	"cardpay/internal/cache"
	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
	"cardpay/internal/repository"
)

const (
	bcryptCost        = 10
	minPasswordLength = 8
	profileCacheTTL   = 5 * time.Minute
)

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// equalizeTiming burns one bcrypt comparison so unknown emails take as long as known ones.
func equalizeTiming(password string) {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("timing-equalizer"), bcryptCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}

func profileCacheKey(id uuid.UUID) string {
	return "profile:" + id.String()
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Email     string
	Password  string
	Password2 string
	FirstName string
	LastName  string
	Phone     string
}

// TokenPair is returned on successful login.
type TokenPair struct {
	AccessToken  string `json:"access"`
	RefreshToken string `json:"refresh"`
}

// AuthService handles authentication operations.
type AuthService interface {
	Register(ctx context.Context, in RegisterInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (TokenPair, *model.User, error)
	RefreshToken(ctx context.Context, refreshToken string) (accessToken string, err error)
	Logout(ctx context.Context, refreshToken string) error
	Profile(ctx context.Context, userID uuid.UUID) (*model.User, error)
	ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, newPassword2 string) error
}

type authService struct {
	userRepo   repository.UserRepository
	jwtService *auth.JWTService
	tokenStore auth.TokenStoreInterface
	cache      *cache.Client
	log        *slog.Logger
}

// NewAuthService creates a new authentication service. cache may be nil.
func NewAuthService(userRepo repository.UserRepository, jwtService *auth.JWTService, tokenStore auth.TokenStoreInterface, cache *cache.Client, log *slog.Logger) AuthService {
	if log == nil {
		log = slog.Default()
	}
	return &authService{
		userRepo:   userRepo,
		jwtService: jwtService,
		tokenStore: tokenStore,
		cache:      cache,
		log:        log,
	}
}

func validatePassword(field, password, confirm string) *apperrors.ValidationError {
	if len(password) < minPasswordLength {
		return apperrors.NewValidationError(field, fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}
	if password != confirm {
		return apperrors.NewValidationError(field, "passwords do not match")
	}
	return nil
}

// Register creates a new user with a hashed password.
func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if email == "" {
		return nil, apperrors.NewValidationError("email", "required")
	}
	if verr := validatePassword("password", in.Password, in.Password2); verr != nil {
		return nil, verr
	}

	_, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, apperrors.ErrEmailTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check user existence: %w", err)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.New(),
		Email:        email,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		Phone:        strings.TrimSpace(in.Phone),
		PasswordHash: string(hashedPassword),
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.log.Info("user registered", slog.String("user_id", user.ID.String()))
	return user, nil
}

// Login authenticates a user and returns access and refresh tokens.
func (s *authService) Login(ctx context.Context, email, password string) (TokenPair, *model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return TokenPair{}, nil, fmt.Errorf("find user: %w", err)
		}
		equalizeTiming(password)
		return TokenPair{}, nil, apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return TokenPair{}, nil, apperrors.ErrInvalidCredentials
	}
	if !user.IsActive {
		return TokenPair{}, nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Role())
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("generate access token: %w", err)
	}

	tokenID, refreshToken, err := s.jwtService.GenerateRefreshToken(user.ID, user.Email, user.Role())
	if err != nil {
		return TokenPair{}, nil, fmt.Errorf("generate refresh token: %w", err)
	}

	if err := s.tokenStore.StoreRefreshToken(ctx, tokenID, user.ID, s.jwtService.RefreshTTL()); err != nil {
		return TokenPair{}, nil, fmt.Errorf("store refresh token: %w", err)
	}

	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, user, nil
}

// RefreshToken validates a refresh token and returns a new access token
// carrying the user's current role.
func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return "", apperrors.ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return "", apperrors.ErrInvalidRefreshToken
	}

	storedUserID, err := s.tokenStore.GetRefreshToken(ctx, claims.ID)
	if errors.Is(err, auth.ErrTokenNotFound) {
		return "", apperrors.ErrInvalidRefreshToken
	}
	if err != nil {
		return "", err
	}
	if storedUserID != userID {
		return "", apperrors.ErrInvalidRefreshToken
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.ErrInvalidRefreshToken
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	if !user.IsActive {
		return "", apperrors.ErrInvalidRefreshToken
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email, user.Role())
	if err != nil {
		return "", fmt.Errorf("generate access token: %w", err)
	}
	return accessToken, nil
}

// Logout revokes a refresh token. Access tokens stay valid until they expire.
func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwtService.ValidateRefreshToken(refreshToken)
	if err != nil {
		return apperrors.ErrInvalidRefreshToken
	}
	return s.tokenStore.DeleteRefreshToken(ctx, claims.ID)
}

// Profile returns the user, served from cache when possible.
func (s *authService) Profile(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	var cached model.User
	if s.cache.GetJSON(ctx, profileCacheKey(userID), &cached) {
		return &cached, nil
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	s.cache.SetJSON(ctx, profileCacheKey(userID), user, profileCacheTTL)
	return user, nil
}

// ChangePassword replaces the password after checking the old one.
func (s *authService) ChangePassword(ctx context.Context, userID uuid.UUID, oldPassword, newPassword, newPassword2 string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrUserNotFound
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(oldPassword)); err != nil {
		return apperrors.NewValidationError("old_password", "incorrect password")
	}
	if verr := validatePassword("new_password", newPassword, newPassword2); verr != nil {
		return verr
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdateFields(ctx, userID, map[string]interface{}{"password_hash": string(hashed)}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	_ = s.cache.Delete(ctx, profileCacheKey(userID))
	s.log.Info("password changed", slog.String("user_id", userID.String()))
	return nil
}
