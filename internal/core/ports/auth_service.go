package ports

import (
	"context"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// AuthResult is returned by every operation that can authenticate a user.
// Token is set only when the operation produced an authenticated session.
type AuthResult struct {
	Session domain.SessionSnapshot
	Token   string
}

// TerminalService drives the per-terminal session state machines.
type TerminalService interface {
	NewTerminal(ctx context.Context) (domain.SessionSnapshot, error)
	Session(ctx context.Context, terminalID string) (domain.SessionSnapshot, error)

	Login(ctx context.Context, terminalID, email, password string) (*AuthResult, error)
	SelectUser(ctx context.Context, terminalID, profileID string) (domain.SessionSnapshot, error)
	SubmitPin(ctx context.Context, terminalID, pin string) (*AuthResult, error)
	SubmitManagerPassword(ctx context.Context, terminalID, password string) (*AuthResult, error)
	LockScreen(ctx context.Context, terminalID string) (domain.SessionSnapshot, error)
	UnlockWithPin(ctx context.Context, terminalID, pin string) (*AuthResult, error)
	UnlockWithPassword(ctx context.Context, terminalID, password string) (*AuthResult, error)
	Logout(ctx context.Context, terminalID string) (domain.SessionSnapshot, error)

	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
	QuickAccessProfiles(ctx context.Context) ([]domain.RoleGroup, error)

	Surfaces(ctx context.Context, terminalID string) ([]domain.SurfaceView, error)
	SetSurfaceOpen(ctx context.Context, terminalID string, kind domain.SurfaceKind, open bool) (domain.SurfaceView, error)
}

// CreateStaffInput carries a new staff account.
type CreateStaffInput struct {
	FullName  string
	Email     string
	Password  string
	Pin       string // optional
	Role      string
	Phone     string
	Address   string
	AvatarURL string
}

// StaffService provisions staff accounts.
type StaffService interface {
	Create(ctx context.Context, input CreateStaffInput) (*domain.UserProfile, error)
}
