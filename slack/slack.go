// Package slack posts operator alerts to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pantrygen"
)

type Client struct {
	webhookURL string
	httpClient pantrygen.HTTPClient
}

func NewClient(webhookURL string, httpClient pantrygen.HTTPClient) *Client {
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

// PostMessage sends text to channel. Non-200 responses are errors that carry
// Slack's short error body (e.g. "invalid_payload").
func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	payload, err := json.Marshal(map[string]any{
		"channel": channel,
		"text":    message,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		if detail := strings.TrimSpace(string(body)); detail != "" {
			return fmt.Errorf("failed to post message: %s: %s", resp.Status, detail)
		}
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}
	return nil
}

// Alerter reports dropped items to a channel. It implements pantrygen.AlertSink.
type Alerter struct {
	client  pantrygen.SlackClient
	channel string
}

func NewAlerter(client pantrygen.SlackClient, channel string) *Alerter {
	return &Alerter{client: client, channel: channel}
}

func (a *Alerter) ReportDropped(ctx context.Context, task string, dropped []pantrygen.DroppedItem) error {
	if len(dropped) == 0 {
		return nil
	}
	return a.client.PostMessage(ctx, a.channel, FormatDropped(task, dropped))
}

// FormatDropped renders one line per dropped item with the reason it was removed.
func FormatDropped(task string, dropped []pantrygen.DroppedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, ":warning: %s: removed %d generated item(s)\n", task, len(dropped))
	for _, d := range dropped {
		fmt.Fprintf(&b, "• *%s* (%s)", d.Name, d.Reason)
		switch {
		case len(d.Violations) > 0:
			parts := make([]string, len(d.Violations))
			for i, v := range d.Violations {
				parts[i] = fmt.Sprintf("%s: %s", v.Member, v)
			}
			fmt.Fprintf(&b, ": %s", strings.Join(parts, "; "))
		case len(d.Unknown) > 0:
			fmt.Fprintf(&b, ": unknown ingredients %s", strings.Join(d.Unknown, ", "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
