package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

// AuthStatus maps an authentication failure type to its HTTP status.
func AuthStatus(t domain.ErrorType) int {
	switch t {
	case domain.ErrorInvalidCredentials, domain.ErrorInvalidPin:
		return http.StatusUnauthorized
	case domain.ErrorPinNotFound, domain.ErrorUserNotFound:
		return http.StatusNotFound
	case domain.ErrorNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// RenderAuthError writes ae in the authentication result envelope.
func RenderAuthError(c echo.Context, ae *domain.AuthError, session *domain.SessionSnapshot) error {
	if session != nil {
		pub := session.Public()
		session = &pub
	}
	return c.JSON(AuthStatus(ae.Type), authResponse{
		Error: &authErrorBody{
			Type:    ae.Type,
			Message: ae.Message,
			Tone:    ae.Type.Tone(),
		},
		Session: session,
	})
}

// writeAuthResult renders the outcome of an authenticating operation.
// Errors other than *domain.AuthError are left to the HTTP error handler.
func writeAuthResult(c echo.Context, res *ports.AuthResult, err error) error {
	if err != nil {
		var ae *domain.AuthError
		if !errors.As(err, &ae) {
			return err
		}
		var session *domain.SessionSnapshot
		if res != nil {
			session = &res.Session
		}
		return RenderAuthError(c, ae, session)
	}
	session := res.Session.Public()
	return c.JSON(http.StatusOK, authResponse{
		Success: true,
		Session: &session,
		Token:   res.Token,
	})
}

// writeSnapshot renders a non-authenticating transition such as lock or select.
func writeSnapshot(c echo.Context, snap domain.SessionSnapshot, err error) error {
	if err != nil {
		var ae *domain.AuthError
		if errors.As(err, &ae) {
			return RenderAuthError(c, ae, nil)
		}
		return err
	}
	snap = snap.Public()
	return c.JSON(http.StatusOK, authResponse{Success: true, Session: &snap})
}
