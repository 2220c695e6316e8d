package telegram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"SocialPoster/internal/ports"
)

// Alerter pushes operator notifications to a Telegram chat via bot API.
// Conditions like an expired session need a human; this is how they hear.
type Alerter struct {
	botToken string
	chatID   string
	client   *http.Client
}

var _ ports.Alerter = (*Alerter)(nil)

// NewAlerter registers bot token and chat identifier.
func NewAlerter(botToken, chatID string) *Alerter {
	return &Alerter{
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 5 * time.Second},
	}
}

// Alert posts a plain-text message to Telegram.
func (a *Alerter) Alert(ctx context.Context, message string) error {
	if a.botToken == "" || a.chatID == "" || a.client == nil {
		return fmt.Errorf("telegram alerter misconfigured")
	}

	endpoint := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", a.botToken)
	form := url.Values{}
	form.Set("chat_id", a.chatID)
	form.Set("text", message)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}

	return nil
}
