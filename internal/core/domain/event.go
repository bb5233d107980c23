package domain

import "time"

// AuthMethod names the operation that produced an AuthEvent.
type AuthMethod string

const (
	MethodPassword        AuthMethod = "password"
	MethodPin             AuthMethod = "pin"
	MethodManagerPassword AuthMethod = "manager_password"
	MethodLock            AuthMethod = "lock"
	MethodLogout          AuthMethod = "logout"
	MethodPasswordReset   AuthMethod = "password_reset"
)

// AuthEvent is one entry of the authentication audit trail.
type AuthEvent struct {
	TerminalID string
	Method     AuthMethod
	ProfileID  string // optional
	Email      string // optional
	Success    bool
	ErrorType  ErrorType // empty on success
	Attempt    int       // PIN attempt number, 0 otherwise
	Timestamp  time.Time
}
