package ports

import "github.com/garagedesk/staff-auth/internal/core/domain"

// AuditSink accepts audit events without blocking the caller on persistence.
type AuditSink interface {
	Record(event domain.AuthEvent)
}
