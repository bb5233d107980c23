package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

// AuthHandler serves the account-level auth routes that are not bound to a
// terminal.
type AuthHandler struct {
	service ports.TerminalService
}

func NewAuthHandler(service ports.TerminalService) *AuthHandler {
	return &AuthHandler{service: service}
}

// RequestPasswordReset sends a reset link when the address belongs to a staff
// member. The response does not reveal whether it does.
//
// @Summary      Request password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetRequest  true  "Account email"
// @Success      202   {object}  messageResponse
// @Failure      401   {object}  authResponse
// @Failure      503   {object}  authResponse
// @Router       /auth/password-reset [post]
func (h *AuthHandler) RequestPasswordReset(c echo.Context) error {
	var req resetRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := h.service.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, messageResponse{Message: "If the address belongs to a staff account, a reset link is on its way."})
}

// ConfirmPasswordReset sets a new password using a reset token.
//
// @Summary      Confirm password reset
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        body  body      resetConfirmRequest  true  "Token and new password"
// @Success      200   {object}  messageResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  authResponse
// @Router       /auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c echo.Context) error {
	var req resetConfirmRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := h.service.ConfirmPasswordReset(c.Request().Context(), req.Token, req.Password); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, messageResponse{Message: "password updated"})
}

// Capabilities returns the UI gates for the caller's role. They only decide
// which buttons are shown; mutating routes check the role again.
//
// @Summary      Caller capabilities
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  domain.Capabilities
// @Failure      401  {object}  errorResponse
// @Failure      423  {object}  errorResponse
// @Router       /me/capabilities [get]
func (h *AuthHandler) Capabilities(c echo.Context) error {
	cl, err := ctxClaims(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, domain.CapabilitiesFor(cl.Role))
}
