// Package notify delivers invitation emails.
package notify

import (
	"context"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// InviteMessage is everything an invitation email needs.
type InviteMessage struct {
	Email     string
	OrgName   string
	Role      string
	Token     string
	ExpiresAt time.Time
}

// Notifier sends invitation messages. Implementations return an error when
// the message was not accepted for delivery.
type Notifier interface {
	SendInvite(ctx context.Context, msg InviteMessage) error
}

// AcceptURL builds the link a recipient follows to accept an invitation.
func AcceptURL(baseURL, token string) string {
	return baseURL + "/invite?invite_token=" + url.QueryEscape(token)
}

// LogNotifier logs the accept link instead of sending mail. It is used in
// development when no email provider key is configured.
type LogNotifier struct {
	BaseURL string
}

func (n LogNotifier) SendInvite(_ context.Context, msg InviteMessage) error {
	log.Info().
		Str("email", msg.Email).
		Str("org", msg.OrgName).
		Str("role", msg.Role).
		Str("accept_url", AcceptURL(n.BaseURL, msg.Token)).
		Msg("Invitation email (not sent, no provider configured)")
	return nil
}
