package router

import (
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"cardpay/internal/auth"
	"cardpay/internal/config"
	apperrors "cardpay/internal/errors"
	"cardpay/internal/handler"
	"cardpay/internal/logging"
	"cardpay/internal/metrics"
	"cardpay/internal/model"
)

// LedgerHandlers groups the handlers served by the ledger API.
type LedgerHandlers struct {
	Auth         *handler.AuthHandler
	Cards        *handler.CardHandler
	Transactions *handler.TransactionHandler
	Admin        *handler.AdminHandler
}

// New returns an echo instance with the middleware both services share.
func New(cfg *config.Config, logger *slog.Logger, registry *prometheus.Registry) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.RequestID())
	e.Use(middleware.Recover())
	e.Use(logging.RequestLogger(logger))
	e.Use(metrics.Middleware())
	e.Use(middleware.BodyLimit("1M"))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: cfg.CORSOrigins,
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		}))
	}

	e.GET("/metrics", echo.WrapHandler(metrics.Handler(registry)))
	return e
}

// RegisterLedger wires the ledger API routes.
func RegisterLedger(e *echo.Echo, cfg *config.Config, jwtService *auth.JWTService, h LedgerHandlers) {
	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")
	jwtAuth := auth.Middleware(jwtService)

	// Public routes
	limited := loginLimiter(cfg.LoginRateLimit)
	api.POST("/auth/register", h.Auth.Register, limited...)
	api.POST("/auth/login", h.Auth.Login, limited...)
	api.POST("/auth/token/refresh", h.Auth.Refresh)

	// Secured routes (require JWT authentication)
	secured := api.Group("", jwtAuth)
	secured.POST("/auth/logout", h.Auth.Logout)
	secured.GET("/auth/profile", h.Auth.Profile)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)

	owner := secured.Group("", auth.RequireRole(model.RoleUser, model.RoleAdmin))
	owner.GET("/cards", h.Cards.List)
	owner.POST("/cards", h.Cards.Create)
	owner.GET("/cards/:id", h.Cards.Get)
	owner.PATCH("/cards/:id", h.Cards.Update)
	owner.DELETE("/cards/:id", h.Cards.Delete)

	owner.GET("/transactions", h.Transactions.List)
	owner.POST("/transactions", h.Transactions.Create)
	owner.GET("/transactions/:id", h.Transactions.Get)

	internal := secured.Group("/internal", auth.RequireRole(model.RoleService, model.RoleAdmin))
	internal.GET("/transactions/:reference_id", h.Transactions.GetByReference)
	internal.PATCH("/transactions/:reference_id/status", h.Transactions.UpdateStatus)

	admin := secured.Group("/admin-panel", auth.RequireRole(model.RoleAdmin))
	admin.GET("/users", h.Admin.ListUsers)
	admin.GET("/users/:id", h.Admin.GetUser)
	admin.PATCH("/users/:id", h.Admin.UpdateUser)
	admin.DELETE("/users/:id", h.Admin.DeleteUser)
	admin.GET("/cards", h.Admin.ListCards)
	admin.GET("/transactions", h.Admin.ListTransactions)
	admin.GET("/summary/daily", h.Admin.DailySummary)
	admin.GET("/logs", h.Admin.ListLogs)
}

// RegisterEngine wires the decision engine routes.
func RegisterEngine(e *echo.Echo, jwtService *auth.JWTService, payments *handler.PaymentHandler) {
	e.GET("/health", payments.Health)
	e.POST("/payments/process", payments.Process,
		auth.Middleware(jwtService),
		auth.RequireRole(model.RoleUser, model.RoleAdmin),
	)
}

// loginLimiter throttles credential endpoints per client IP. perSecond <= 0 disables it.
func loginLimiter(perSecond float64) []echo.MiddlewareFunc {
	if perSecond <= 0 {
		return nil
	}
	burst := int(perSecond)
	if burst < 1 {
		burst = 1
	}
	return []echo.MiddlewareFunc{middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(perSecond),
			Burst:     burst,
			ExpiresIn: 3 * time.Minute,
		}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{
				Error: "cannot identify client",
				Code:  "FORBIDDEN",
			})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "too many requests",
				Code:  "RATE_LIMITED",
			})
		},
	})}
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator reports field errors under their JSON names.
func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &CustomValidator{validator: v}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
