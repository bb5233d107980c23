// Package notify delivers password reset links to staff.
package notify

import (
	"context"
	"net/url"

	"github.com/rs/zerolog"

	"github.com/garagedesk/staff-auth/internal/core/domain"
)

// LogNotifier writes reset links to the service log instead of sending mail.
// It is meant for development terminals and the on-prem installs that relay
// the link by hand. The link carries a live token, so it is only written at
// debug level.
type LogNotifier struct {
	baseURL string
	log     zerolog.Logger
}

func NewLogNotifier(baseURL string, log zerolog.Logger) *LogNotifier {
	return &LogNotifier{baseURL: baseURL, log: log}
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, profile domain.UserProfile, token string) error {
	link := n.baseURL + "/reset-password?token=" + url.QueryEscape(token)
	n.log.Info().
		Str("user_id", profile.ID).
		Msg("password reset issued")
	n.log.Debug().
		Str("user_id", profile.ID).
		Str("email", profile.Email).
		Str("reset_link", link).
		Msg("password reset link")
	return nil
}
