package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrUnavailable is returned when the oracle could not be reached or
// did not answer in time. A press is never admitted on this error.
var ErrUnavailable = errors.New("challenge oracle unavailable")

// Result is the oracle's verdict for a single challenge token.
type Result struct {
	Success     bool     `json:"success"`
	ErrorCodes  []string `json:"error-codes,omitempty"`
	ChallengeTS string   `json:"challenge_ts,omitempty"`
}

// Client verifies challenge tokens against an external oracle over a
// bounded-timeout HTTP request.
type Client struct {
	endpoint string
	secret   string
	client   *http.Client
}

// NewClient creates a verification client for the given oracle endpoint.
func NewClient(endpoint, secret string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		secret:   secret,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Verify submits a token to the oracle. A transport failure or timeout
// returns ErrUnavailable; a negative verdict returns a Result with
// Success false and the oracle's error codes.
func (c *Client) Verify(ctx context.Context, token string) (Result, error) {
	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		log.Error().Err(err).Msg("challenge oracle request failed")
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Msg("challenge oracle returned non-2xx status")
		return Result{}, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}

	return result, nil
}
