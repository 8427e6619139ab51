package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/alanyoungcy/solwatch/internal/domain"
)

// Discord rejects message content longer than this many characters.
const discordMaxContent = 2000

// discordMessage is the execute-webhook body. AllowedMentions is always
// sent empty so a wallet address or token name can never ping anyone.
type discordMessage struct {
	Content         string                 `json:"content"`
	Username        string                 `json:"username,omitempty"`
	AllowedMentions discordAllowedMentions `json:"allowed_mentions"`
}

type discordAllowedMentions struct {
	Parse []string `json:"parse"`
}

// DiscordSender posts alerts to a channel webhook.
type DiscordSender struct {
	webhookURL string
	username   string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender that posts as "solwatch".
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		username:   "solwatch",
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts one alert. The title line is bold; content over Discord's limit
// is cut and marked with an ellipsis.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	content := message
	if title != "" {
		content = "**" + title + "**\n" + message
	}

	body, err := json.Marshal(discordMessage{
		Content:         truncateRunes(content, discordMaxContent),
		Username:        d.username,
		AllowedMentions: discordAllowedMentions{Parse: []string{}},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("discord: %w (retry after %ss)", domain.ErrRateLimited, resp.Header.Get("Retry-After"))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string {
	return "discord"
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit-1]) + "…"
}
