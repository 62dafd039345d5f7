package errors

import (
	"errors"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrInvalidAmount is returned when amount is not a positive fixed-point value.
	ErrInvalidAmount = errors.New("amount must be greater than zero")
	// ErrInvalidCardNumber is returned when a raw card number fails format checks.
	ErrInvalidCardNumber = errors.New("invalid card number format")

	// ErrInvalidCredentials is the single authentication failure for login.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrInvalidRefreshToken is returned when a refresh token is unknown, revoked or expired.
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	// ErrUnauthorized is returned when a bearer token is missing or fails verification.
	ErrUnauthorized = errors.New("invalid token")
	// ErrTokenExpired is returned when a bearer token is past its exp claim.
	ErrTokenExpired = errors.New("token has expired")
	// ErrForbidden is returned when the caller's role does not allow the operation.
	ErrForbidden = errors.New("permission denied")

	// ErrNotFound is returned when an entity is absent or not owned by the caller.
	ErrNotFound = errors.New("not found")
	// ErrCardNotFound is returned when a card is absent or belongs to another user.
	ErrCardNotFound = errors.New("card not found")
	// ErrTransactionNotFound is returned when a transaction is absent or not visible.
	ErrTransactionNotFound = errors.New("transaction not found")
	// ErrUserNotFound is returned when a user is absent.
	ErrUserNotFound = errors.New("user not found")

	// ErrEmailTaken is returned on registration with an existing email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidTransition is returned when a status change violates the transaction state machine.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrConflict is returned when a concurrent mutation won a lock race. Safe to retry.
	ErrConflict = errors.New("concurrent update conflict")
	// ErrDownstreamUnavailable is returned when the ledger cannot be reached in time. Safe to retry.
	ErrDownstreamUnavailable = errors.New("downstream service unavailable")
)

// ValidationError carries field-level detail for malformed input.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records another field failure and returns the receiver.
func (e *ValidationError) Add(field, message string) *ValidationError {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	e.Fields[field] = message
	return e
}

// Empty reports whether no field failures were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// RelayError is returned by the decision engine when the outcome could not be
// written back. The transaction identified by ReferenceID stays PENDING.
type RelayError struct {
	ReferenceID string
	Err         error
}

func (e *RelayError) Error() string {
	return "relay outcome for " + e.ReferenceID + ": " + e.Err.Error()
}

func (e *RelayError) Unwrap() error {
	return e.Err
}

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
	Fields     map[string]string
	Details    map[string]string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error:   e.Message,
		Code:    e.Code,
		Fields:  e.Fields,
		Details: e.Details,
	}
}

// IsRetryable reports whether the caller may safely repeat the operation.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrDownstreamUnavailable) || errors.Is(err, ErrConflict)
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		httpErr := NewHTTPError(http.StatusBadRequest, "validation failed", "VALIDATION_ERROR")
		httpErr.Fields = validationErr.Fields
		return httpErr
	}

	var httpErr *HTTPError
	switch {
	case errors.Is(err, ErrInvalidAmount):
		httpErr = NewHTTPError(http.StatusBadRequest, ErrInvalidAmount.Error(), "INVALID_AMOUNT")
	case errors.Is(err, ErrInvalidCardNumber):
		httpErr = NewHTTPError(http.StatusBadRequest, ErrInvalidCardNumber.Error(), "INVALID_CARD_NUMBER")
	case errors.Is(err, ErrInvalidCredentials):
		httpErr = NewHTTPError(http.StatusUnauthorized, ErrInvalidCredentials.Error(), "INVALID_CREDENTIALS")
	case errors.Is(err, ErrInvalidRefreshToken):
		httpErr = NewHTTPError(http.StatusUnauthorized, ErrInvalidRefreshToken.Error(), "INVALID_REFRESH_TOKEN")
	case errors.Is(err, ErrTokenExpired):
		httpErr = NewHTTPError(http.StatusUnauthorized, ErrTokenExpired.Error(), "TOKEN_EXPIRED")
	case errors.Is(err, ErrUnauthorized):
		httpErr = NewHTTPError(http.StatusUnauthorized, ErrUnauthorized.Error(), "UNAUTHORIZED")
	case errors.Is(err, ErrForbidden):
		httpErr = NewHTTPError(http.StatusForbidden, ErrForbidden.Error(), "FORBIDDEN")
	case errors.Is(err, ErrCardNotFound):
		httpErr = NewHTTPError(http.StatusNotFound, ErrCardNotFound.Error(), "CARD_NOT_FOUND")
	case errors.Is(err, ErrTransactionNotFound):
		httpErr = NewHTTPError(http.StatusNotFound, ErrTransactionNotFound.Error(), "TRANSACTION_NOT_FOUND")
	case errors.Is(err, ErrUserNotFound):
		httpErr = NewHTTPError(http.StatusNotFound, ErrUserNotFound.Error(), "USER_NOT_FOUND")
	case errors.Is(err, ErrNotFound):
		httpErr = NewHTTPError(http.StatusNotFound, ErrNotFound.Error(), "NOT_FOUND")
	case errors.Is(err, ErrEmailTaken):
		httpErr = NewHTTPError(http.StatusConflict, ErrEmailTaken.Error(), "EMAIL_TAKEN")
	case errors.Is(err, ErrInvalidTransition):
		httpErr = NewHTTPError(http.StatusConflict, ErrInvalidTransition.Error(), "INVALID_TRANSITION")
	case errors.Is(err, ErrConflict):
		httpErr = NewHTTPError(http.StatusConflict, ErrConflict.Error(), "CONFLICT")
	case errors.Is(err, ErrDownstreamUnavailable):
		httpErr = NewHTTPError(http.StatusServiceUnavailable, ErrDownstreamUnavailable.Error(), "DOWNSTREAM_UNAVAILABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}

	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		httpErr.Details = map[string]string{"reference_id": relayErr.ReferenceID}
	}
	return httpErr
}
