package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"cardpay/internal/engine"
	apperrors "cardpay/internal/errors"
)

// PaymentProcessor runs a payment end to end.
type PaymentProcessor interface {
	Process(ctx context.Context, bearer string, req engine.PaymentRequest) (*engine.PaymentOutcome, error)
}

// PaymentHandler handles payment endpoints on the decision engine.
type PaymentHandler struct {
	processor PaymentProcessor
}

// NewPaymentHandler creates a new payment handler.
func NewPaymentHandler(processor PaymentProcessor) *PaymentHandler {
	return &PaymentHandler{processor: processor}
}

// PaymentRequest represents a card payment request.
type PaymentRequest struct {
	CardID       string          `json:"card_id" validate:"required,uuid"`
	Amount       decimal.Decimal `json:"amount" swaggertype:"string" example:"250.00"`
	Currency     string          `json:"currency"`
	MerchantName string          `json:"merchant_name" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=500"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	Version string `json:"version"`
}

// Process godoc
// @Summary Process a card payment
// @Description Records a PENDING transaction on the ledger, decides it and writes the outcome back.
// @Tags payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PaymentRequest true "Payment data"
// @Success 200 {object} engine.PaymentOutcome
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Failure 503 {object} errors.ErrorResponse
// @Router /payments/process [post]
func (h *PaymentHandler) Process(c echo.Context) error {
	p, _, err := currentUser(c)
	if err != nil {
		return err
	}

	var req PaymentRequest
	if err := c.Bind(&req); err != nil {
		return fail(apperrors.NewValidationError("body", "invalid request body"))
	}
	if !req.Amount.IsPositive() {
		return fail(apperrors.ErrInvalidAmount)
	}
	if err := c.Validate(&req); err != nil {
		return fail(validationFailure(err))
	}

	outcome, err := h.processor.Process(c.Request().Context(), p.Token, engine.PaymentRequest{
		CardID:       req.CardID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		MerchantName: req.MerchantName,
		Description:  req.Description,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, outcome)
}

// Health godoc
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *PaymentHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{
		Status:  "healthy",
		Service: "payment-processing",
		Version: "1.0.0",
	})
}
