package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "cardpay/internal/errors"
	"cardpay/internal/service"
)

// AdminHandler serves the admin panel. All routes require the admin role.
type AdminHandler struct {
	adminService service.AdminService
}

func NewAdminHandler(adminService service.AdminService) *AdminHandler {
	return &AdminHandler{adminService: adminService}
}

// UpdateUserRequest toggles account flags.
type UpdateUserRequest struct {
	IsActive *bool `json:"is_active"`
	IsAdmin  *bool `json:"is_admin"`
}

// ListUsers godoc
// @Summary List users
// @Tags admin
// @Produce json
// @Success 200 {array} UserResponse
// @Failure 403 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /admin-panel/users [get]
func (h *AdminHandler) ListUsers(c echo.Context) error {
	users, err := h.adminService.ListUsers(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	out := make([]UserResponse, 0, len(users))
	for i := range users {
		out = append(out, newUserResponse(&users[i]))
	}
	return c.JSON(http.StatusOK, out)
}

// GetUser godoc
// @Summary Get a user
// @Tags admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} UserResponse
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /admin-panel/users/{id} [get]
func (h *AdminHandler) GetUser(c echo.Context) error {
	id, err := pathUUID(c, "id", apperrors.ErrUserNotFound)
	if err != nil {
		return fail(err)
	}
	user, err := h.adminService.GetUser(c.Request().Context(), id)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

// UpdateUser godoc
// @Summary Activate, deactivate, promote or demote a user
// @Tags admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param request body UpdateUserRequest true "Flags to change"
// @Success 200 {object} UserResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /admin-panel/users/{id} [patch]
func (h *AdminHandler) UpdateUser(c echo.Context) error {
	id, err := pathUUID(c, "id", apperrors.ErrUserNotFound)
	if err != nil {
		return fail(err)
	}
	var req UpdateUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.adminService.UpdateUser(c.Request().Context(), actorFromContext(c), id, service.UpdateUserInput{
		IsActive: req.IsActive,
		IsAdmin:  req.IsAdmin,
	})
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newUserResponse(user))
}

// DeleteUser godoc
// @Summary Delete a user with their cards and transactions
// @Tags admin
// @Param id path string true "User ID"
// @Success 204
// @Failure 404 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /admin-panel/users/{id} [delete]
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	id, err := pathUUID(c, "id", apperrors.ErrUserNotFound)
	if err != nil {
		return fail(err)
	}
	if err := h.adminService.DeleteUser(c.Request().Context(), actorFromContext(c), id); err != nil {
		return fail(err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ListCards godoc
// @Summary List all cards with their owners
// @Tags admin
// @Produce json
// @Success 200 {array} CardResponse
// @Security BearerAuth
// @Router /admin-panel/cards [get]
func (h *AdminHandler) ListCards(c echo.Context) error {
	cards, err := h.adminService.ListCards(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newCardResponses(cards))
}

// ListTransactions godoc
// @Summary List all transactions
// @Tags admin
// @Produce json
// @Param status query string false "PENDING, SUCCESS or FAILED"
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD, inclusive"
// @Param user_id query string false "Owner"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size, at most 100"
// @Success 200 {object} TransactionPageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /admin-panel/transactions [get]
func (h *AdminHandler) ListTransactions(c echo.Context) error {
	q, err := transactionQuery(c)
	if err != nil {
		return fail(err)
	}
	page, err := h.adminService.ListTransactions(c.Request().Context(), q)
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, newTransactionPageResponse(page))
}

// DailySummary godoc
// @Summary Transaction count and total per day and status
// @Tags admin
// @Produce json
// @Param date_from query string false "YYYY-MM-DD"
// @Param date_to query string false "YYYY-MM-DD, inclusive"
// @Success 200 {array} DailySummaryResponse
// @Failure 400 {object} errors.ErrorResponse
// @Security BearerAuth
// @Router /admin-panel/summary/daily [get]
func (h *AdminHandler) DailySummary(c echo.Context) error {
	rows, err := h.adminService.DailySummary(c.Request().Context(), c.QueryParam("date_from"), c.QueryParam("date_to"))
	if err != nil {
		return fail(err)
	}
	out := make([]DailySummaryResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, DailySummaryResponse{
			Date:   r.Date,
			Status: string(r.Status),
			Count:  r.Count,
			Total:  r.Total.StringFixed(2),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// ListLogs godoc
// @Summary Latest admin actions
// @Tags admin
// @Produce json
// @Success 200 {array} model.AdminLog
// @Security BearerAuth
// @Router /admin-panel/logs [get]
func (h *AdminHandler) ListLogs(c echo.Context) error {
	logs, err := h.adminService.ListLogs(c.Request().Context())
	if err != nil {
		return fail(err)
	}
	return c.JSON(http.StatusOK, logs)
}
