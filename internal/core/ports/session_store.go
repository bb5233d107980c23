package ports

import (
	"context"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// SessionStore shares the durable part of terminal sessions (current user and
// lock flag) between service instances.
type SessionStore interface {
	Save(ctx context.Context, s domain.PersistedSession) error
	// Load returns domain.ErrTerminalNotFound for unknown terminals.
	Load(ctx context.Context, terminalID string) (*domain.PersistedSession, error)
}
