package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// Context keys set by the Auth middleware.
const (
	CtxUserID     = "user_id"
	CtxRole       = "role"
	CtxTerminalID = "terminal_id"
)

type claims struct {
	UserID     string
	Role       domain.Role
	TerminalID string
}

// ctxClaims extracts the auth claims injected by the Auth middleware and
// fails fast when they are missing or carry an unknown role.
func ctxClaims(c echo.Context) (claims, error) {
	userID, _ := c.Get(CtxUserID).(string)
	roleStr, _ := c.Get(CtxRole).(string)
	terminalID, _ := c.Get(CtxTerminalID).(string)
	if userID == "" || roleStr == "" {
		return claims{}, echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}

	role, err := domain.ParseRole(roleStr)
	if err != nil {
		return claims{}, echo.NewHTTPError(http.StatusUnauthorized, "token carries an unknown role")
	}
	return claims{UserID: userID, Role: role, TerminalID: terminalID}, nil
}
