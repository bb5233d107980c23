package domain

import (
	"regexp"
	"time"
)

const (
	MaxPinAttempts       = 3
	PinLockoutResetDelay = 3000 * time.Millisecond
	MinPasswordLength    = 6
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether s has the shape accepted by the login forms.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// SessionState is the top-level state of a terminal session.
type SessionState string

const (
	StateUnauthenticated SessionState = "unauthenticated"
	StateAuthenticated   SessionState = "authenticated"
	StateLocked          SessionState = "locked"
)

// QuickAccessStep is the sub-state of the quick-access flow.
type QuickAccessStep string

const (
	StepSelectUser      QuickAccessStep = "select_user"
	StepPinEntry        QuickAccessStep = "pin_entry"
	StepManagerPassword QuickAccessStep = "manager_password"
)

// StepFor returns the entry step for a selected profile.
func StepFor(p UserProfile) QuickAccessStep {
	if p.IsManager() {
		return StepManagerPassword
	}
	return StepPinEntry
}

// SessionSnapshot is a read-only copy of a terminal's session.
type SessionSnapshot struct {
	TerminalID   string          `json:"terminal_id"`
	State        SessionState    `json:"state"`
	CurrentUser  *UserProfile    `json:"current_user,omitempty"`
	IsLocked     bool            `json:"is_locked"`
	Step         QuickAccessStep `json:"step"`
	SelectedUser *UserProfile    `json:"selected_user,omitempty"`
	PinAttempts  int             `json:"pin_attempts"`
	Error        *AuthError      `json:"error,omitempty"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Public returns the snapshot with contact details removed from its profiles.
func (s SessionSnapshot) Public() SessionSnapshot {
	if s.CurrentUser != nil {
		u := s.CurrentUser.Public()
		s.CurrentUser = &u
	}
	if s.SelectedUser != nil {
		u := s.SelectedUser.Public()
		s.SelectedUser = &u
	}
	return s
}

// PersistedSession is the part of a session that survives a process restart
// or is shared between service instances.
type PersistedSession struct {
	TerminalID  string       `json:"terminal_id"`
	CurrentUser *UserProfile `json:"current_user,omitempty"`
	IsLocked    bool         `json:"is_locked"`
	UpdatedAt   time.Time    `json:"updated_at"`
}
