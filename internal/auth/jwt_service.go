package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"

	"cardpay/internal/config"
	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
)

const (
	// AccessTokenExpiry is the default lifetime of access tokens.
	AccessTokenExpiry = 15 * time.Minute
	// RefreshTokenExpiry is the default lifetime of refresh tokens.
	RefreshTokenExpiry = 7 * 24 * time.Hour
	// ServiceTokenExpiry is the default lifetime of service-to-service tokens.
	ServiceTokenExpiry = time.Minute
)

// Values of the token_use claim.
const (
	TokenUseAccess  = "access"
	TokenUseRefresh = "refresh"
)

// Claims represents JWT claims shared by both services.
type Claims struct {
	Role     string `json:"role"`
	Email    string `json:"email,omitempty"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// UserID parses the subject as a user id. Service tokens have no user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// JWTService signs and verifies tokens against a key ring.
type JWTService struct {
	keys       *Keyring
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	serviceTTL time.Duration
	now        func() time.Time
}

// Option customises a JWTService.
type Option func(*JWTService)

// WithTTLs overrides token lifetimes. Zero values keep the defaults.
func WithTTLs(access, refresh, service time.Duration) Option {
	return func(s *JWTService) {
		if access > 0 {
			s.accessTTL = access
		}
		if refresh > 0 {
			s.refreshTTL = refresh
		}
		if service > 0 {
			s.serviceTTL = service
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(s *JWTService) { s.now = now }
}

// NewJWTService creates a new JWT service.
func NewJWTService(keys *Keyring, issuer string, opts ...Option) *JWTService {
	s := &JWTService{
		keys:       keys,
		issuer:     issuer,
		accessTTL:  AccessTokenExpiry,
		refreshTTL: RefreshTokenExpiry,
		serviceTTL: ServiceTokenExpiry,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// KeyIDs reports the signing kid and every kid accepted for verification.
func (s *JWTService) KeyIDs() (active string, accepted []string) {
	active, _ = s.keys.Active()
	return active, s.keys.KIDs()
}

// FromConfig builds the JWT service both binaries share from the key ring settings.
func FromConfig(cfg *config.Config) (*JWTService, error) {
	keys, err := LoadKeyring(cfg.JWTKeys, cfg.JWTActiveKID, cfg.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("load key ring: %w", err)
	}
	return NewJWTService(keys, cfg.JWTIssuer,
		WithTTLs(cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.ServiceTokenTTL),
	), nil
}

// RefreshTTL is how long refresh tokens (and their store entries) live.
func (s *JWTService) RefreshTTL() time.Duration {
	return s.refreshTTL
}

// GenerateAccessToken generates a new access token for the user.
func (s *JWTService) GenerateAccessToken(userID uuid.UUID, email, role string) (string, error) {
	claims := s.newClaims(userID.String(), role, TokenUseAccess, s.accessTTL)
	claims.Email = email
	return s.sign(claims)
}

// GenerateRefreshToken generates a new refresh token for the user.
// The token ID is returned separately for storage in Redis.
func (s *JWTService) GenerateRefreshToken(userID uuid.UUID, email, role string) (tokenID string, token string, err error) {
	tokenID = uuid.NewString()
	claims := s.newClaims(userID.String(), role, TokenUseRefresh, s.refreshTTL)
	claims.Email = email
	claims.ID = tokenID
	token, err = s.sign(claims)
	return tokenID, token, err
}

// GenerateServiceToken mints a short-lived access token with the service role.
func (s *JWTService) GenerateServiceToken(serviceName string) (string, error) {
	return s.sign(s.newClaims(serviceName, model.RoleService, TokenUseAccess, s.serviceTTL))
}

// ValidateAccessToken verifies an access token.
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.validate(tokenString, TokenUseAccess)
}

// ValidateRefreshToken verifies a refresh token and requires a token id.
func (s *JWTService) ValidateRefreshToken(tokenString string) (*Claims, error) {
	claims, err := s.validate(tokenString, TokenUseRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}

func (s *JWTService) newClaims(subject, role, use string, ttl time.Duration) *Claims {
	now := s.now()
	return &Claims{
		Role:     role,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
}

func (s *JWTService) sign(claims *Claims) (string, error) {
	kid, secret := s.keys.Active()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["kid"] = kid
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *JWTService) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		_, secret := s.keys.Active()
		return secret, nil
	}
	secret, ok := s.keys.Lookup(kid)
	if !ok {
		return nil, fmt.Errorf("unknown key id %q", kid)
	}
	return secret, nil
}

// validate checks signature first, then expiry, then the remaining claims.
// Time checks use the service clock rather than the parser's global one.
func (s *JWTService) validate(tokenString, use string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	token, err := parser.ParseWithClaims(tokenString, &Claims{}, s.keyFunc)
	if err != nil {
		return nil, apperrors.ErrUnauthorized
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.ErrUnauthorized
	}

	now := s.now()
	if claims.ExpiresAt == nil {
		return nil, apperrors.ErrUnauthorized
	}
	if !claims.VerifyExpiresAt(now, true) {
		return nil, apperrors.ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now, false) {
		return nil, apperrors.ErrUnauthorized
	}
	if s.issuer != "" && !claims.VerifyIssuer(s.issuer, true) {
		return nil, apperrors.ErrUnauthorized
	}
	if claims.Subject == "" || claims.TokenUse != use {
		return nil, apperrors.ErrUnauthorized
	}
	switch claims.Role {
	case model.RoleUser, model.RoleAdmin, model.RoleService:
	default:
		return nil, apperrors.ErrUnauthorized
	}
	return claims, nil
}
