package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/core/domain"
	"github.com/garagedesk/staff-auth/internal/core/ports"
)

// TerminalHandler exposes the session state machine of each shared terminal.
type TerminalHandler struct {
	service ports.TerminalService
}

func NewTerminalHandler(service ports.TerminalService) *TerminalHandler {
	return &TerminalHandler{service: service}
}

// Create registers a new terminal.
//
// @Summary      Register a terminal
// @Tags         terminals
// @Produce      json
// @Success      201  {object}  authResponse
// @Router       /terminals [post]
func (h *TerminalHandler) Create(c echo.Context) error {
	snap, err := h.service.NewTerminal(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, authResponse{Success: true, Session: &snap})
}

// Session returns the current session snapshot of a terminal.
//
// @Summary      Get terminal session
// @Tags         terminals
// @Produce      json
// @Param        terminal_id  path      string  true  "Terminal ID"
// @Success      200          {object}  authResponse
// @Failure      404          {object}  errorResponse
// @Router       /terminals/{terminal_id}/session [get]
func (h *TerminalHandler) Session(c echo.Context) error {
	snap, err := h.service.Session(c.Request().Context(), c.Param("terminal_id"))
	return writeSnapshot(c, snap, err)
}

// Login signs a user in with email and password.
//
// @Summary      Standard login
// @Tags         terminals
// @Accept       json
// @Produce      json
// @Param        terminal_id  path      string        true  "Terminal ID"
// @Param        body         body      loginRequest  true  "Credentials"
// @Success      200          {object}  authResponse
// @Failure      401          {object}  authResponse
// @Failure      503          {object}  authResponse
// @Router       /terminals/{terminal_id}/login [post]
func (h *TerminalHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	res, err := h.service.Login(c.Request().Context(), c.Param("terminal_id"), req.Email, req.Password)
	return writeAuthResult(c, res, err)
}

// SelectUser picks a profile on the quick-access grid.
//
// @Summary      Select quick-access profile
// @Tags         quick-access
// @Accept       json
// @Produce      json
// @Param        terminal_id  path      string             true  "Terminal ID"
// @Param        body         body      selectUserRequest  true  "Profile"
// @Success      200          {object}  authResponse
// @Failure      404          {object}  authResponse
// @Failure      422          {object}  errorResponse
// @Router       /terminals/{terminal_id}/quick-access/select [post]
func (h *TerminalHandler) SelectUser(c echo.Context) error {
	var req selectUserRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	snap, err := h.service.SelectUser(c.Request().Context(), c.Param("terminal_id"), req.ProfileID)
	return writeSnapshot(c, snap, err)
}

// SubmitPin checks the PIN of the selected profile.
//
// @Summary      Quick-access PIN
// @Tags         quick-access
// @Accept       json
// @Produce      json
// @Param        terminal_id  path      string      true  "Terminal ID"
// @Param        body         body      pinRequest  true  "PIN"
// @Success      200          {object}  authResponse
// @Failure      401          {object}  authResponse
// @Failure      404          {object}  authResponse
// @Router       /terminals/{terminal_id}/quick-access/pin [post]
func (h *TerminalHandler) SubmitPin(c echo.Context) error {
	var req pinRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.service.SubmitPin(c.Request().Context(), c.Param("terminal_id"), req.Pin)
	return writeAuthResult(c, res, err)
}

// SubmitManagerPassword checks the password of the selected manager.
//
// @Summary      Quick-access manager password
// @Tags         quick-access
// @Accept       json
// @Produce      json
// @Param        terminal_id  path      string           true  "Terminal ID"
// @Param        body         body      passwordRequest  true  "Password"
// @Success      200          {object}  authResponse
// @Failure      401          {object}  authResponse
// @Router       /terminals/{terminal_id}/quick-access/manager-password [post]
func (h *TerminalHandler) SubmitManagerPassword(c echo.Context) error {
	var req passwordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.service.SubmitManagerPassword(c.Request().Context(), c.Param("terminal_id"), req.Password)
	return writeAuthResult(c, res, err)
}

// Lock locks the terminal screen for the signed-in user.
//
// @Summary      Lock screen
// @Tags         terminals
// @Produce      json
// @Param        terminal_id  path      string  true  "Terminal ID"
// @Success      200          {object}  authResponse
// @Failure      409          {object}  errorResponse
// @Router       /terminals/{terminal_id}/lock [post]
func (h *TerminalHandler) Lock(c echo.Context) error {
	snap, err := h.service.LockScreen(c.Request().Context(), c.Param("terminal_id"))
	return writeSnapshot(c, snap, err)
}

// UnlockWithPin unlocks the terminal with the locked user's PIN.
//
// @Summary      Unlock with PIN
// @Tags         terminals
// @Accept       json
// @Produce      json
// @Param        terminal_id  path      string      true  "Terminal ID"
// @Param        body         body      pinRequest  true  "PIN"
// @Success      200          {object}  authResponse
// @Failure      401          {object}  authResponse
// @Router       /terminals/{terminal_id}/unlock/pin [post]
func (h *TerminalHandler) UnlockWithPin(c echo.Context) error {
	var req pinRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.service.UnlockWithPin(c.Request().Context(), c.Param("terminal_id"), req.Pin)
	return writeAuthResult(c, res, err)
}

// UnlockWithPassword unlocks the terminal with the locked user's password.
//
// @Summary      Unlock with password
// @Tags         terminals
// @Accept       json
// @Produce      json
// @Param        terminal_id  path      string           true  "Terminal ID"
// @Param        body         body      passwordRequest  true  "Password"
// @Success      200          {object}  authResponse
// @Failure      401          {object}  authResponse
// @Router       /terminals/{terminal_id}/unlock/password [post]
func (h *TerminalHandler) UnlockWithPassword(c echo.Context) error {
	var req passwordRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.service.UnlockWithPassword(c.Request().Context(), c.Param("terminal_id"), req.Password)
	return writeAuthResult(c, res, err)
}

// Logout ends the session on the terminal.
//
// @Summary      Logout
// @Tags         terminals
// @Produce      json
// @Param        terminal_id  path      string  true  "Terminal ID"
// @Success      200          {object}  authResponse
// @Failure      409          {object}  errorResponse
// @Failure      423          {object}  errorResponse
// @Router       /terminals/{terminal_id}/logout [post]
func (h *TerminalHandler) Logout(c echo.Context) error {
	snap, err := h.service.Logout(c.Request().Context(), c.Param("terminal_id"))
	return writeSnapshot(c, snap, err)
}

// Surfaces lists the login surfaces of the terminal.
//
// @Summary      Login surfaces
// @Tags         surfaces
// @Produce      json
// @Param        terminal_id  path      string  true  "Terminal ID"
// @Success      200          {object}  surfacesResponse
// @Router       /terminals/{terminal_id}/surfaces [get]
func (h *TerminalHandler) Surfaces(c echo.Context) error {
	views, err := h.service.Surfaces(c.Request().Context(), c.Param("terminal_id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, surfacesResponse{Surfaces: views})
}

// SetSurfaceOpen forwards an open or dismiss request from a login surface.
// Dismissing is ignored while the terminal is locked.
//
// @Summary      Open or dismiss a surface
// @Tags         surfaces
// @Accept       json
// @Produce      json
// @Param        terminal_id  path      string             true  "Terminal ID"
// @Param        kind         path      string             true  "full_page, switch_dialog or floating_widget"
// @Param        body         body      openChangeRequest  true  "Requested state"
// @Success      200          {object}  domain.SurfaceView
// @Failure      400          {object}  errorResponse
// @Router       /terminals/{terminal_id}/surfaces/{kind}/open-change [post]
func (h *TerminalHandler) SetSurfaceOpen(c echo.Context) error {
	var req openChangeRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	kind := domain.SurfaceKind(c.Param("kind"))
	view, err := h.service.SetSurfaceOpen(c.Request().Context(), c.Param("terminal_id"), kind, *req.Open)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, view)
}

// QuickAccessProfiles returns the staff roster grouped by role.
//
// @Summary      Quick-access roster
// @Tags         quick-access
// @Produce      json
// @Success      200  {object}  quickAccessResponse
// @Router       /profiles/quick-access [get]
func (h *TerminalHandler) QuickAccessProfiles(c echo.Context) error {
	groups, err := h.service.QuickAccessProfiles(c.Request().Context())
	if err != nil {
		return err
	}
	for i := range groups {
		for j, p := range groups[i].Profiles {
			groups[i].Profiles[j] = p.Public()
		}
	}
	return c.JSON(http.StatusOK, quickAccessResponse{Groups: groups})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}
	return nil
}
