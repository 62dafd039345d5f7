package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "cardpay/internal/errors"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"forwarded chain", "203.0.113.7, 10.0.0.1", "10.0.0.2:5000", "203.0.113.7"},
		{"single forwarded", "198.51.100.4", "10.0.0.2:5000", "198.51.100.4"},
		{"remote address", "", "192.0.2.10:1234", "192.0.2.10"},
	}

	e := echo.New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set(echo.HeaderXForwardedFor, tt.xff)
			}
			c := e.NewContext(req, httptest.NewRecorder())
			assert.Equal(t, tt.want, clientIP(c))
		})
	}
}

func TestValidationFailureUsesFieldNames(t *testing.T) {
	type payload struct {
		Email string `validate:"required,email"`
		Name  string `validate:"max=3"`
	}
	err := validator.New().Struct(payload{Email: "nope", Name: "too long"})
	require.Error(t, err)

	var verr *apperrors.ValidationError
	require.True(t, errors.As(validationFailure(err), &verr))
	assert.Equal(t, "must be a valid email address", verr.Fields["Email"])
	assert.Equal(t, "must be at most 3", verr.Fields["Name"])
}

func TestFailRendersEnvelope(t *testing.T) {
	he := fail(&apperrors.RelayError{ReferenceID: "REF", Err: apperrors.ErrDownstreamUnavailable})
	assert.Equal(t, http.StatusServiceUnavailable, he.Code)

	body, ok := he.Message.(apperrors.ErrorResponse)
	require.True(t, ok)
	assert.Equal(t, "DOWNSTREAM_UNAVAILABLE", body.Code)
	assert.Equal(t, "REF", body.Details["reference_id"])
}

func TestTransactionQueryRejectsNonNumericPage(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/?page=two&page_size=5&status=success", nil)
	c := e.NewContext(req, httptest.NewRecorder())

	_, err := transactionQuery(c)
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "page")
	assert.NotContains(t, verr.Fields, "page_size")
}
