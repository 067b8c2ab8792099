// Package relay pushes progress events to a remote API instance so
// background workers can publish to subscribers they do not hold.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PranavReddyGaddam/Signal/domain"
)

// PushRequest is the body for internal event delivery.
type PushRequest struct {
	SessionID string       `json:"session_id"`
	Event     domain.Event `json:"event"`
}

// PushResponse acknowledges internal event delivery.
type PushResponse struct {
	OK bool `json:"ok"`
}

// Client delivers events over HTTP to the internal events endpoint of
// the instance holding the session's subscribers.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new relay client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// Publish sends the event to the remote hub. Delivery is best-effort
// from the publisher's point of view; the remote prunes dead observers.
func (c *Client) Publish(sessionID string, event domain.Event) {
	if c.baseURL == "" {
		return
	}
	body, err := json.Marshal(PushRequest{SessionID: sessionID, Event: event})
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/internal/events", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("WARN: failed to push event to relay: %v", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Printf("WARN: relay returned status %d", resp.StatusCode)
	}
}
