package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

const embedBaseURL = "https://embed.gog.com"

// Client talks to the GOG embed API. The zero value is usable; NewClient
// wires the shared HTTP client with a sane timeout.
type Client struct {
	httpClient *http.Client
	// BaseURL overrides the embed API endpoint, mainly for tests.
	BaseURL string
}

// NewClient creates a Client for the GOG embed API.
func NewClient() *Client {
	return &Client{httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (c *Client) base() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return embedBaseURL
}

func (c *Client) http() *http.Client {
	if c.httpClient == nil {
		return &http.Client{Timeout: 30 * time.Second}
	}
	return c.httpClient
}

func createRequest(ctx context.Context, method, url, accessToken string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to create request")
		return nil, err
	}
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", accessToken))
	return req, nil
}

// sendRequest sends a request, retrying transient failures and server errors
// with exponential backoff.
func (c *Client) sendRequest(req *http.Request) (*http.Response, error) {
	var resp *http.Response
	var err error

	const maxRetries = 3
	backoff := 1 * time.Second

	for i := 0; i < maxRetries; i++ {
		resp, err = c.http().Do(req)
		if err != nil {
			log.Warn().Err(err).Int("attempt", i+1).Int("max_attempts", maxRetries).Msg("Request failed, retrying...")
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		if resp.StatusCode >= 500 {
			log.Warn().Int("status", resp.StatusCode).Int("attempt", i+1).Int("max_attempts", maxRetries).Msg("Server error, retrying...")
			closeResponseBody(resp)
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		break
	}

	if err != nil {
		log.Error().Err(err).Msg("Failed to send request after multiple retries")
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().Int("status", resp.StatusCode).Msg("HTTP request failed with non-successful status")
		closeResponseBody(resp)
		return nil, fmt.Errorf("HTTP request failed with status %d", resp.StatusCode)
	}
	return resp, nil
}

func readResponseBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error().Err(err).Msg("Failed to read response body")
		return nil, err
	}
	return body, nil
}

// closeResponseBody drains and closes a body so the connection can be reused.
func closeResponseBody(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, resp.Body, 1024*1024)
	_ = resp.Body.Close()
}
