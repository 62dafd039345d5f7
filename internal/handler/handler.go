package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"cardpay/internal/auth"
	apperrors "cardpay/internal/errors"
	"cardpay/internal/service"
)

// fail converts a service error into the JSON error envelope.
func fail(err error) *echo.HTTPError {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// bindAndValidate decodes the request body into req and runs struct validation.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return fail(apperrors.NewValidationError("body", "invalid request body"))
	}
	if err := c.Validate(req); err != nil {
		return fail(validationFailure(err))
	}
	return nil
}

func validationFailure(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return apperrors.NewValidationError("body", err.Error())
	}
	verr := &apperrors.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), describeTag(fe))
	}
	return verr
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "oneof":
		return "must be one of " + fe.Param()
	case "uuid":
		return "must be a UUID"
	case "eqfield":
		return "must match " + strings.ToLower(fe.Param())
	}
	return "is invalid"
}

// pathUUID parses a path id. A malformed id cannot name a row, so it is notFound.
func pathUUID(c echo.Context, name string, notFound error) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, notFound
	}
	return id, nil
}

func queryInt(c echo.Context, name string, verr *apperrors.ValidationError) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		verr.Add(name, "must be an integer")
		return 0
	}
	return n
}

func transactionQuery(c echo.Context) (service.TransactionQuery, error) {
	verr := &apperrors.ValidationError{}
	q := service.TransactionQuery{
		Status:    c.QueryParam("status"),
		Search:    c.QueryParam("q"),
		DateFrom:  c.QueryParam("date_from"),
		DateTo:    c.QueryParam("date_to"),
		AmountMin: c.QueryParam("amount_min"),
		AmountMax: c.QueryParam("amount_max"),
		UserID:    c.QueryParam("user_id"),
		Ordering:  c.QueryParam("ordering"),
		Page:      queryInt(c, "page", verr),
		PageSize:  queryInt(c, "page_size", verr),
	}
	if !verr.Empty() {
		return q, verr
	}
	return q, nil
}

// currentUser returns the authenticated principal and its user id.
func currentUser(c echo.Context) (*auth.Principal, uuid.UUID, error) {
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return nil, uuid.Nil, fail(apperrors.ErrUnauthorized)
	}
	id, err := p.Claims.UserID()
	if err != nil {
		return nil, uuid.Nil, fail(apperrors.ErrForbidden)
	}
	return p, id, nil
}

// actorFromContext snapshots the caller for audit records.
func actorFromContext(c echo.Context) service.Actor {
	actor := service.Actor{IP: clientIP(c)}
	p, ok := auth.PrincipalFromContext(c)
	if !ok {
		return actor
	}
	actor.Subject = p.Claims.Subject
	actor.Email = p.Claims.Email
	actor.Role = p.Claims.Role
	if id, err := p.Claims.UserID(); err == nil {
		actor.ID = &id
	}
	return actor
}

func clientIP(c echo.Context) string {
	if xff := c.Request().Header.Get(echo.HeaderXForwardedFor); xff != "" {
		if first := strings.TrimSpace(strings.Split(xff, ",")[0]); first != "" {
			return first
		}
	}
	return c.RealIP()
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

func message(c echo.Context, status int, msg string) error {
	return c.JSON(status, MessageResponse{Message: msg})
}
