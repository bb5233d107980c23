package domain

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUserNotFound      = errors.New("user not found")
	ErrUserExists        = errors.New("user already exists")
	ErrForbidden         = errors.New("access forbidden")
	ErrTerminalNotFound  = errors.New("terminal not found")
	ErrNoActiveSession   = errors.New("no active session")
	ErrSessionLocked     = errors.New("session is locked")
	ErrInvalidResetToken = errors.New("invalid or expired reset token")
)

// ErrorType classifies every authentication failure.
type ErrorType string

const (
	ErrorInvalidCredentials ErrorType = "INVALID_CREDENTIALS"
	ErrorInvalidPin         ErrorType = "INVALID_PIN"
	ErrorPinNotFound        ErrorType = "PIN_NOT_FOUND"
	ErrorUserNotFound       ErrorType = "USER_NOT_FOUND"
	ErrorNetwork            ErrorType = "NETWORK_ERROR"
	ErrorUnknown            ErrorType = "UNKNOWN_ERROR"
)

// Alert tones used when rendering an AuthError.
const (
	ToneDestructive = "destructive"
	ToneWarning     = "warning"
	ToneInfo        = "info"
)

// Tone selects how a login surface styles the alert for this error type.
func (t ErrorType) Tone() string {
	switch t {
	case ErrorPinNotFound, ErrorUserNotFound:
		return ToneWarning
	case ErrorNetwork:
		return ToneInfo
	default:
		return ToneDestructive
	}
}

// AuthError is the single failure channel of every authentication operation.
type AuthError struct {
	Type    ErrorType `json:"type"`
	Message string    `json:"message"`
}

func (e *AuthError) Error() string {
	return string(e.Type) + ": " + e.Message
}

// NewAuthError builds an AuthError.
func NewAuthError(t ErrorType, msg string) *AuthError {
	return &AuthError{Type: t, Message: msg}
}

// AsAuthError extracts an AuthError from err. Any other error is reported as
// UNKNOWN_ERROR with a generic message.
func AsAuthError(err error) *AuthError {
	if err == nil {
		return nil
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae
	}
	return NewAuthError(ErrorUnknown, MsgUnexpected)
}

const (
	MsgInvalidEmail     = "Please enter a valid email address."
	MsgPasswordTooShort = "Password must be at least 6 characters long."
	MsgUnexpected       = "An unexpected error occurred. Please try again."
	MsgPinLockout       = "Maximum PIN attempts reached (3). Please try again later or use standard login."
	MsgRequestCancelled = "The request was cancelled before it completed."
	MsgSuperseded       = "This sign-in was replaced by a newer selection."
	MsgManagerUsesPass  = "Managers must sign in with their password."
	MsgNotManager       = "Only managers can sign in with a manager password."
	MsgBadLogin         = "Invalid email or password."
	MsgBadPin           = "Invalid PIN"
	MsgBadManagerPass   = "Invalid manager password."
	MsgPinNotSet        = "No PIN is set for this user. Please use standard login."
	MsgUserNotFound     = "User not found."
	MsgNetwork          = "Unable to reach the authentication service. Check your connection and try again."
)
