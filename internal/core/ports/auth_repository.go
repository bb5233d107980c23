package ports

import (
	"context"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// CredentialStore verifies staff credentials. Failures the store can explain
// are returned as *domain.AuthError; any other error is treated as unexpected.
type CredentialStore interface {
	VerifyEmailPassword(ctx context.Context, email, password string) (*domain.UserProfile, error)
	VerifyPin(ctx context.Context, userID, pin string) (*domain.UserProfile, error)
	VerifyManagerPassword(ctx context.Context, userID, password string) (*domain.UserProfile, error)
	// RequestPasswordReset must succeed silently for unknown addresses.
	RequestPasswordReset(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, token, newPassword string) error
}

// ProfileDirectory lists the staff roster shown on quick-access grids.
type ProfileDirectory interface {
	ListProfiles(ctx context.Context) ([]domain.UserProfile, error)
	GetProfile(ctx context.Context, id string) (*domain.UserProfile, error)
}

// StaffRepository persists provisioned staff accounts.
type StaffRepository interface {
	Create(ctx context.Context, account *domain.StaffAccount) (*domain.StaffAccount, error)
}

// ResetTokenStore issues single-use password reset tokens.
type ResetTokenStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	// Consume returns the user id bound to token and invalidates it. Unknown
	// or expired tokens yield domain.ErrInvalidResetToken.
	Consume(ctx context.Context, token string) (string, error)
}

// ResetNotifier delivers a reset token to the account owner.
type ResetNotifier interface {
	SendPasswordReset(ctx context.Context, profile domain.UserProfile, token string) error
}
