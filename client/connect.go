package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// ConnectGame is one linked-platform title that can be claimed into the GOG
// library.
type ConnectGame struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"` // READY_TO_LINK, LINKED, UNAVAILABLE
}

// GetConnectGames lists the titles available through the linked-account
// (Connect) integration for the given platform user id.
func (c *Client) GetConnectGames(ctx context.Context, accessToken string, userID int) ([]ConnectGame, error) {
	url := fmt.Sprintf("%s/api/v1/users/%d/gamesConnect", c.base(), userID)
	req, err := createRequest(ctx, "GET", url, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, err
	}

	var response struct {
		Items []ConnectGame `json:"items"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		log.Error().Err(err).Msg("Failed to parse connect games")
		return nil, err
	}
	return response.Items, nil
}

// ClaimConnectGame claims one linkable title into the library.
func (c *Client) ClaimConnectGame(ctx context.Context, accessToken string, userID, gameID int) error {
	url := fmt.Sprintf("%s/api/v1/users/%d/gamesConnect/%d/claim", c.base(), userID, gameID)
	req, err := createRequest(ctx, "POST", url, accessToken)
	if err != nil {
		return err
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return err
	}
	closeResponseBody(resp)
	log.Info().Int("gameID", gameID).Msg("Claimed connect game")
	return nil
}

// GetUserID fetches the numeric id of the logged-in user, needed by the
// Connect endpoints.
func (c *Client) GetUserID(ctx context.Context, accessToken string) (int, error) {
	url := fmt.Sprintf("%s/userData.json", c.base())
	req, err := createRequest(ctx, "GET", url, accessToken)
	if err != nil {
		return 0, err
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := readResponseBody(resp)
	if err != nil {
		return 0, err
	}

	var response struct {
		UserID json.Number `json:"userId"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return 0, err
	}
	id, err := response.UserID.Int64()
	if err != nil {
		return 0, fmt.Errorf("unexpected user id %q: %w", response.UserID, err)
	}
	return int(id), nil
}
