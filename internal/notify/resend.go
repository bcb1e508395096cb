package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultResendEndpoint is the Resend email API.
const DefaultResendEndpoint = "https://api.resend.com/emails"

// ErrDeliveryRejected is returned when the provider answers with a non-2xx status.
var ErrDeliveryRejected = errors.New("email provider rejected message")

var inviteHTML = template.Must(template.New("invite").Parse(`<p>Hello,</p>
<p>You've been invited to join the organization <strong>{{.OrgName}}</strong> as {{.Article}} {{.Role}}.</p>
<p><a href="{{.AcceptURL}}" style="background:#000;color:#fff;padding:12px 20px;text-decoration:none;border-radius:6px;">Accept Invitation</a></p>
<p>This invitation expires {{.Expires}}. If you weren't expecting it, you can ignore this email.</p>
`))

// ResendNotifier posts invitation emails to the Resend API.
type ResendNotifier struct {
	apiKey     string
	from       string
	baseURL    string
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

// NewResendNotifier creates a notifier whose requests are bounded by timeout.
func NewResendNotifier(apiKey, from, baseURL string, timeout time.Duration) *ResendNotifier {
	return &ResendNotifier{
		apiKey:     apiKey,
		from:       from,
		baseURL:    baseURL,
		endpoint:   DefaultResendEndpoint,
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
	}
}

// WithEndpoint points the notifier at a different API URL.
func (n *ResendNotifier) WithEndpoint(endpoint string) *ResendNotifier {
	n.endpoint = endpoint
	return n
}

type resendPayload struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

func (n *ResendNotifier) SendInvite(ctx context.Context, msg InviteMessage) error {
	body, err := n.render(msg)
	if err != nil {
		return fmt.Errorf("failed to render invite email: %w", err)
	}

	payload, err := json.Marshal(resendPayload{
		From:    n.from,
		To:      []string{msg.Email},
		Subject: fmt.Sprintf("You've been invited to join %s", msg.OrgName),
		HTML:    body,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+n.apiKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn().Err(err).Dur("timeout", n.timeout).Msg("Invitation email timed out")
		} else {
			log.Warn().Err(err).Msg("Failed to send invitation email")
		}
		return fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		log.Warn().
			Int("status_code", resp.StatusCode).
			Str("response", string(snippet)).
			Msg("Email provider rejected invitation")
		return fmt.Errorf("%w: status %d", ErrDeliveryRejected, resp.StatusCode)
	}

	log.Info().Str("org", msg.OrgName).Str("role", msg.Role).Msg("Invitation email sent")
	return nil
}

func (n *ResendNotifier) render(msg InviteMessage) (string, error) {
	article := "a"
	if strings.IndexAny(strings.ToLower(msg.Role), "aeiou") == 0 {
		article = "an"
	}

	var buf bytes.Buffer
	err := inviteHTML.Execute(&buf, map[string]string{
		"OrgName":   msg.OrgName,
		"Role":      msg.Role,
		"Article":   article,
		"AcceptURL": AcceptURL(n.baseURL, msg.Token),
		"Expires":   msg.ExpiresAt.UTC().Format("Jan 2, 2006 15:04 MST"),
	})
	return buf.String(), err
}
