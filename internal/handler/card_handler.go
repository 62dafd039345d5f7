package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/model"
	"cardpay/internal/service"
)

// CardHandler serves the caller's own cards.
type CardHandler struct {
	cardService service.CardService
}

func NewCardHandler(cardService service.CardService) *CardHandler {
	return &CardHandler{cardService: cardService}
}

// CreateCardRequest represents a new card. CardNumber is never stored or echoed.
type CreateCardRequest struct {
	CardHolderName string `json:"card_holder_name" validate:"required,max=200"`
	CardNumber     string `json:"card_number" validate:"required,max=23"`
	CardType       string `json:"card_type" validate:"required"`
	ExpiryMonth    int    `json:"expiry_month" validate:"required"`
	ExpiryYear     int    `json:"expiry_year" validate:"required"`
	IsDefault      bool   `json:"is_default"`
}

// UpdateCardRequest is a partial update.
type UpdateCardRequest struct {
	CardHolderName *string `json:"card_holder_name"`
	IsDefault      *bool   `json:"is_default"`
}

// Create godoc
// @Summary Add a card
// @Tags cards
// @Accept json
// @Produce json
// @Param request body CreateCardRequest true "Card details"
// @Success 201 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /cards [post]
func (h *CardHandler) Create(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}

	var req CreateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	card, err := h.cardService.Create(c.Request().Context(), userID, service.CreateCardInput{
		CardHolderName: req.CardHolderName,
		CardNumber:     req.CardNumber,
		CardType:       model.CardNetwork(strings.ToUpper(req.CardType)),
		ExpiryMonth:    req.ExpiryMonth,
		ExpiryYear:     req.ExpiryYear,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusCreated, newCardResponse(card))
}

// List godoc
// @Summary List my cards
// @Tags cards
// @Produce json
// @Success 200 {array} CardResponse
// @Failure 401 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /cards [get]
func (h *CardHandler) List(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}

	cards, err := h.cardService.List(c.Request().Context(), userID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newCardResponses(cards))
}

// Get godoc
// @Summary Get one of my cards
// @Tags cards
// @Produce json
// @Param id path string true "Card ID"
// @Success 200 {object} CardResponse
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /cards/{id} [get]
func (h *CardHandler) Get(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cardID, err := pathUUID(c, "id", apperrors.ErrCardNotFound)
	if err != nil {
		return fail(err)
	}

	card, err := h.cardService.Get(c.Request().Context(), userID, cardID)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newCardResponse(card))
}

// Update godoc
// @Summary Rename a card or make it the default
// @Tags cards
// @Accept json
// @Produce json
// @Param id path string true "Card ID"
// @Param request body UpdateCardRequest true "Fields to change"
// @Success 200 {object} CardResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /cards/{id} [patch]
func (h *CardHandler) Update(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cardID, err := pathUUID(c, "id", apperrors.ErrCardNotFound)
	if err != nil {
		return fail(err)
	}

	var req UpdateCardRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	card, err := h.cardService.Update(c.Request().Context(), userID, cardID, service.UpdateCardInput{
		CardHolderName: req.CardHolderName,
		IsDefault:      req.IsDefault,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newCardResponse(card))
}

// Delete godoc
// @Summary Delete a card
// @Description Transactions made with the card are kept and lose their card reference.
// @Tags cards
// @Param id path string true "Card ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /cards/{id} [delete]
func (h *CardHandler) Delete(c echo.Context) error {
	_, userID, err := currentUser(c)
	if err != nil {
		return err
	}
	cardID, err := pathUUID(c, "id", apperrors.ErrCardNotFound)
	if err != nil {
		return fail(err)
	}

	if err := h.cardService.Delete(c.Request().Context(), userID, cardID); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}
