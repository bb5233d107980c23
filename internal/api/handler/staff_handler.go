package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/garagedesk/staff-auth/internal/core/ports"
)

type StaffHandler struct {
	service ports.StaffService
}

func NewStaffHandler(service ports.StaffService) *StaffHandler {
	return &StaffHandler{service: service}
}

// Create provisions a staff account.
//
// @Summary      Create staff account
// @Tags         staff
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body  body      createStaffRequest  true  "Staff details"
// @Success      201   {object}  domain.UserProfile
// @Failure      400   {object}  errorResponse
// @Failure      403   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Router       /staff [post]
func (h *StaffHandler) Create(c echo.Context) error {
	var req createStaffRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	profile, err := h.service.Create(c.Request().Context(), ports.CreateStaffInput{
		FullName:  req.FullName,
		Email:     req.Email,
		Password:  req.Password,
		Pin:       req.Pin,
		Role:      req.Role,
		Phone:     req.Phone,
		Address:   req.Address,
		AvatarURL: req.AvatarURL,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, profile)
}
