package auth

import (
	"errors"

	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	apperrors "cardpay/internal/errors"
)

const (
	// ContextKey is where the authenticated Principal is stored on the echo context.
	ContextKey   = "principal"
	authErrorKey = "auth_error"
)

// Principal is the verified caller of a request.
type Principal struct {
	Claims *Claims
	// Token is the raw bearer token, kept so it can be forwarded downstream.
	Token string
}

// Middleware verifies the bearer access token on every request it wraps.
func Middleware(svc *JWTService) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:Authorization:Bearer ",
		ContextKey:  ContextKey,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			claims, err := svc.ValidateAccessToken(token)
			if err != nil {
				c.Set(authErrorKey, err)
				return nil, err
			}
			return &Principal{Claims: claims, Token: token}, nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			if cause, ok := c.Get(authErrorKey).(error); ok {
				err = cause
			}
			if !errors.Is(err, apperrors.ErrTokenExpired) {
				err = apperrors.ErrUnauthorized
			}
			httpErr := apperrors.MapErrorToHTTP(err)
			return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
		},
	})
}

// RequireRole rejects callers whose role is not in roles.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFromContext(c)
			if !ok {
				httpErr := apperrors.MapErrorToHTTP(apperrors.ErrUnauthorized)
				return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
			}
			for _, role := range roles {
				if p.Claims.Role == role {
					return next(c)
				}
			}
			httpErr := apperrors.MapErrorToHTTP(apperrors.ErrForbidden)
			return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
		}
	}
}

// PrincipalFromContext returns the caller stored by Middleware.
func PrincipalFromContext(c echo.Context) (*Principal, bool) {
	p, ok := c.Get(ContextKey).(*Principal)
	return p, ok && p != nil && p.Claims != nil
}
