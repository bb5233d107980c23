package handler

import "github.com/garagedesk/staff-auth/internal/core/domain"

// errorResponse is the envelope for failures that are not authentication
// results (bad payloads, unknown terminals, forbidden routes).
type errorResponse struct {
	Error string `json:"error"`
}

// authErrorBody is the AuthError as rendered to login surfaces.
type authErrorBody struct {
	Type    domain.ErrorType `json:"type"`
	Message string           `json:"message"`
	Tone    string           `json:"tone"`
}

// authResponse is returned by every operation that can authenticate a user.
type authResponse struct {
	Success bool                    `json:"success"`
	Error   *authErrorBody          `json:"error,omitempty"`
	Session *domain.SessionSnapshot `json:"session,omitempty"`
	Token   string                  `json:"token,omitempty"`
}

// --- Requests ---

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type selectUserRequest struct {
	ProfileID string `json:"profile_id" validate:"required"`
}

type pinRequest struct {
	Pin string `json:"pin" validate:"required"`
}

type passwordRequest struct {
	Password string `json:"password" validate:"required"`
}

type openChangeRequest struct {
	Open *bool `json:"open" validate:"required"`
}

type resetRequest struct {
	Email string `json:"email"`
}

type resetConfirmRequest struct {
	Token    string `json:"token"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

type createStaffRequest struct {
	FullName  string `json:"full_name"  validate:"required"`
	Email     string `json:"email"      validate:"required,email"`
	Password  string `json:"password"   validate:"required,min=6"`
	Pin       string `json:"pin"        validate:"omitempty,len=4,numeric"`
	Role      string `json:"role"       validate:"required,oneof=Manager Technician 'Front Desk'"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	AvatarURL string `json:"avatar_url" validate:"omitempty,url"`
}

// --- Responses ---

type surfacesResponse struct {
	Surfaces []domain.SurfaceView `json:"surfaces"`
}

type quickAccessResponse struct {
	Groups []domain.RoleGroup `json:"groups"`
}

type messageResponse struct {
	Message string `json:"message"`
}
