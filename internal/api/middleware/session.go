package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/api/handler"
	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// SessionReader is the part of the terminal service the gate needs.
type SessionReader interface {
	Session(ctx context.Context, terminalID string) (domain.SessionSnapshot, error)
}

// RequireActiveSession runs after Auth. It rejects tokens whose terminal is
// locked (423) or no longer signed in as the token's user (401), so a token
// outlives neither a lock nor a logout.
func RequireActiveSession(sessions SessionReader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			terminalID, _ := c.Get(handler.CtxTerminalID).(string)
			userID, _ := c.Get(handler.CtxUserID).(string)

			snap, err := sessions.Session(c.Request().Context(), terminalID)
			if errors.Is(err, domain.ErrTerminalNotFound) {
				return echo.NewHTTPError(http.StatusUnauthorized, "terminal session not found")
			}
			if err != nil {
				return err
			}

			if snap.IsLocked {
				return echo.NewHTTPError(http.StatusLocked, "terminal is locked")
			}
			if snap.State != domain.StateAuthenticated || snap.CurrentUser == nil || snap.CurrentUser.ID != userID {
				return echo.NewHTTPError(http.StatusUnauthorized, "session has ended")
			}
			return next(c)
		}
	}
}
