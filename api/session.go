package api

import (
	"context"
	"fmt"
)

// SessionResponse is the body returned by the session-creation endpoints.
type SessionResponse struct {
	Stream struct {
		SessionID string `json:"sessionid"`
		URL       string `json:"url"`
	} `json:"stream"`
}

// CreateSession obtains a streaming session key from the given
// session-creation endpoint. A response without a session id is a
// configuration error.
func (c *Client) CreateSession(ctx context.Context, ep Endpoint) (string, error) {
	var resp SessionResponse
	if err := c.Call(ctx, ep, nil, nil, &resp); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	if resp.Stream.SessionID == "" {
		return "", fmt.Errorf("create session: response has no session id")
	}

	return resp.Stream.SessionID, nil
}
