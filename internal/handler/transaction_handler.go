package handler

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
	"cardpay/internal/service"
)

// TransactionHandler serves the caller's transactions and the internal
// status endpoints used by the decision engine.
type TransactionHandler struct {
	txnService service.TransactionService
}

func NewTransactionHandler(txnService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{txnService: txnService}
}

// CreateTransactionRequest records a PENDING transaction.
type CreateTransactionRequest struct {
	CardID       string          `json:"card_id" validate:"required,uuid"`
	Amount       decimal.Decimal `json:"amount" swaggertype:"string" example:"250.00"`
	Currency     string          `json:"currency"`
	MerchantName string          `json:"merchant_name" validate:"required"`
	Description  string          `json:"description"`
}

// UpdateStatusRequest moves a PENDING transaction to a terminal status.
type UpdateStatusRequest struct {
	Status        string `json:"status" validate:"required"`
	FailureReason string `json:"failure_reason"`
}

// Create godoc
// @Summary Record a PENDING transaction
// @Tags transactions
// @Accept json
// @Produce json
// @Param request body CreateTransactionRequest true "Payment details"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /transactions [post]
func (h *TransactionHandler) Create(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req CreateTransactionRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		return fail(apperrors.NewValidationError("card_id", "must be a UUID"))
	}

	txn, err := h.txnService.Create(c.Request().Context(), userID, service.CreateTransactionInput{
		CardID:       cardID,
		Amount:       req.Amount,
		Currency:     req.Currency,
		MerchantName: req.MerchantName,
		Description:  req.Description,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, newTransactionResponse(txn))
}

// List godoc
// @Summary List my transactions
// @Tags transactions
// @Produce json
// @Param status query string false "PENDING, SUCCESS or FAILED"
// @Param q query string false "Merchant or reference substring"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD, inclusive"
// @Param amount_min query string false "Minimum amount"
// @Param amount_max query string false "Maximum amount"
// @Param ordering query string false "created_at, -created_at, amount or -amount"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size, at most 100"
// @Success 200 {object} TransactionPageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /transactions [get]
func (h *TransactionHandler) List(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}

	q, err := transactionQuery(c)
	if err != nil {
		return fail(err)
	}

	page, err := h.txnService.List(c.Request().Context(), userID, q)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newTransactionPageResponse(page))
}

// Get godoc
// @Summary Get one of my transactions
// @Tags transactions
// @Produce json
// @Param id path string true "Transaction ID"
// @Success 200 {object} TransactionResponse
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /transactions/{id} [get]
func (h *TransactionHandler) Get(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}
	id, err := pathUUID(c, "id", apperrors.ErrTransactionNotFound)
	if err != nil {
		return fail(err)
	}

	txn, err := h.txnService.Get(c.Request().Context(), userID, id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newTransactionResponse(txn))
}

// UpdateStatus godoc
// @Summary Settle a PENDING transaction
// @Description Service or admin only. Succeeds once per transaction.
// @Tags internal
// @Accept json
// @Produce json
// @Param reference_id path string true "Reference ID"
// @Param request body UpdateStatusRequest true "Terminal status"
// @Success 200 {object} TransactionResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /internal/transactions/{reference_id}/status [patch]
func (h *TransactionHandler) UpdateStatus(c echo.Context) error {
	var req UpdateStatusRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	status := model.TransactionStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	txn, err := h.txnService.UpdateStatus(c.Request().Context(), actorFromContext(c), c.Param("reference_id"), status, req.FailureReason)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newTransactionResponse(txn))
}

// GetByReference godoc
// @Summary Read a transaction by reference id
// @Tags internal
// @Produce json
// @Param reference_id path string true "Reference ID"
// @Success 200 {object} TransactionResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /internal/transactions/{reference_id} [get]
func (h *TransactionHandler) GetByReference(c echo.Context) error {
	txn, err := h.txnService.GetByReference(c.Request().Context(), c.Param("reference_id"))
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newTransactionResponse(txn))
}
