package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

type DiscordWebhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type DiscordEmbed struct {
	Title     string                `json:"title"`
	Color     int                   `json:"color"`
	Fields    []DiscordWebhookField `json:"fields"`
	Footer    *DiscordFooter        `json:"footer,omitempty"`
	Timestamp string                `json:"timestamp"`
}

type DiscordFooter struct {
	Text string `json:"text"`
}

type DiscordWebhookRequest struct {
	Username string         `json:"username"`
	Embeds   []DiscordEmbed `json:"embeds"`
}

type SlackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type SlackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Fields    []SlackField `json:"fields"`
	Footer    string       `json:"footer"`
	Timestamp int64        `json:"ts"`
}

type SlackWebhookRequest struct {
	Username    string            `json:"username"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Text        string            `json:"text"`
	Attachments []SlackAttachment `json:"attachments"`
}

const (
	ColorRed = 16711680 // #FF0000

	Username = "Taskflow"

	WebhookSlack   = "slack"
	WebhookDiscord = "discord"
)

// WebhookAlerter posts operator alerts to a Slack or Discord incoming webhook.
// A nil *WebhookAlerter is valid and discards alerts.
type WebhookAlerter struct {
	url    string
	kind   string
	client *http.Client
}

// NewWebhookAlerter returns nil when url is empty.
func NewWebhookAlerter(url, kind string) *WebhookAlerter {
	if url == "" {
		return nil
	}
	if kind != WebhookDiscord {
		kind = WebhookSlack
	}
	return &WebhookAlerter{
		url:    url,
		kind:   kind,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *WebhookAlerter) Alert(ctx context.Context, title string, fields map[string]string) error {
	if a == nil {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var payload any
	switch a.kind {
	case WebhookDiscord:
		embedFields := make([]DiscordWebhookField, 0, len(keys))
		for _, k := range keys {
			embedFields = append(embedFields, DiscordWebhookField{Name: k, Value: fields[k], Inline: len(fields[k]) < 40})
		}
		payload = DiscordWebhookRequest{
			Username: Username,
			Embeds: []DiscordEmbed{{
				Title:     "🚨 **" + title + "**",
				Color:     ColorRed,
				Fields:    embedFields,
				Footer:    &DiscordFooter{Text: "Taskflow operator alert"},
				Timestamp: time.Now().Format(time.RFC3339),
			}},
		}
	default:
		slackFields := make([]SlackField, 0, len(keys))
		for _, k := range keys {
			slackFields = append(slackFields, SlackField{Title: k, Value: fields[k], Short: len(fields[k]) < 40})
		}
		payload = SlackWebhookRequest{
			Username:  Username,
			IconEmoji: ":rotating_light:",
			Text:      ":rotating_light: *" + title + "*",
			Attachments: []SlackAttachment{{
				Color:     "danger",
				Title:     title,
				Fields:    slackFields,
				Footer:    "Taskflow operator alert",
				Timestamp: time.Now().Unix(),
			}},
		}
	}

	return a.post(ctx, payload)
}

func (a *WebhookAlerter) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", a.kind, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build %s webhook request: %w", a.kind, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s webhook: %w", a.kind, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%s webhook returned status %d", a.kind, resp.StatusCode)
	}

	return nil
}
