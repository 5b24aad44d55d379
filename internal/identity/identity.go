// Package identity resolves a visitor's domain identity from the customer
// API. The relay treats that API as a black box: a lookup that fails for any
// reason degrades to a placeholder identity instead of failing the
// conversation.
package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// the resolved human-readable identity behind a visitor connection
type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// looks up visitor identities
type Resolver interface {
	Resolve(ctx context.Context, userID string) (Identity, error)
}

// http client shared by all lookups
var httpClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// resolves identities against the customer REST API
type Client struct {
	baseURL string
	token   string
}

func NewClient(baseURL, token string) *Client {
	return &Client{baseURL: baseURL, token: token}
}

// fetches the customer record for a user id
func (c *Client) Resolve(ctx context.Context, userID string) (Identity, error) {
	url := fmt.Sprintf("%s/customers/%s", c.baseURL, userID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Identity{}, fmt.Errorf("failed to build identity request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return Identity{}, fmt.Errorf("identity lookup failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // defer cleanup

	if resp.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("identity lookup returned status %d", resp.StatusCode)
	}

	var ident Identity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return Identity{}, fmt.Errorf("failed to decode identity response: %w", err)
	}

	if ident.ID == "" {
		ident.ID = userID
	}

	return ident, nil
}

// returns the degraded identity used when lookup fails or the visitor is
// anonymous; the conversation proceeds either way
func Placeholder(userID string) Identity {
	name := "Guest"

	if userID != "" {
		short := userID
		if len(short) > 8 {
			short = short[:8]
		}

		name = "Visitor " + short
	}

	return Identity{
		ID:          userID,
		DisplayName: name,
	}
}
