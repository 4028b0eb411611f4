package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
)

// FilterParams narrows a filtered-products listing. The zero value selects
// every owned product of the default media type.
type FilterParams struct {
	MediaType int    // 1 selects games
	Search    string // free-text title search
}

// FilteredProductPage is one page of a filtered-products listing.
type FilteredProductPage struct {
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Products   []Product `json:"products"`
}

// GetGameDetails fetches and parses the details of one owned game. It
// returns the parsed details plus the raw JSON document for caching.
func (c *Client) GetGameDetails(ctx context.Context, accessToken string, gameID int) (Game, string, error) {
	url := fmt.Sprintf("%s/account/gameDetails/%d.json", c.base(), gameID)
	req, err := createRequest(ctx, "GET", url, accessToken)
	if err != nil {
		return Game{}, "", err
	}

	resp, err := c.sendRequest(req)
	if err != nil {
		return Game{}, "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Debug().Err(err).Msg("Failed to close response body")
		}
	}()

	body, err := readResponseBody(resp)
	if err != nil {
		return Game{}, "", err
	}

	var game Game
	if err := json.Unmarshal(body, &game); err != nil {
		log.Error().Err(err).Msg("Failed to parse game data")
		return Game{}, "", err
	}
	return game, string(body), nil
}

// GetFilteredProducts fetches one page of products matching the filter, in
// the order the API returns them.
func (c *Client) GetFilteredProducts(ctx context.Context, accessToken string, filter FilterParams, page int) (*FilteredProductPage, error) {
	query := url.Values{}
	if filter.MediaType != 0 {
		query.Set("mediaType", strconv.Itoa(filter.MediaType))
	}
	if filter.Search != "" {
		query.Set("search", filter.Search)
	}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}

	reqURL := fmt.Sprintf("%s/account/getFilteredProducts?%s", c.base(), query.Encode())
	req, err := createRequest(ctx, "GET", reqURL, accessToken)
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

	var parsed FilteredProductPage
	if err := json.Unmarshal(body, &parsed); err != nil {
		log.Error().Err(err).Msg("Failed to parse filtered products")
		return nil, err
	}
	return &parsed, nil
}

// GetAllFilteredProducts walks every page of a filtered listing and returns
// the concatenated products in API order.
func (c *Client) GetAllFilteredProducts(ctx context.Context, accessToken string, filter FilterParams) ([]Product, error) {
	var all []Product
	page := 1
	for {
		pageData, err := c.GetFilteredProducts(ctx, accessToken, filter, page)
		if err != nil {
			return nil, err
		}
		all = append(all, pageData.Products...)
		if pageData.TotalPages == 0 || page >= pageData.TotalPages {
			break
		}
		page++
	}
	return all, nil
}

// GetGames fetches the ids of every owned game.
func (c *Client) GetGames(ctx context.Context, accessToken string) ([]int, error) {
	url := fmt.Sprintf("%s/user/data/games", c.base())
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
		Owned []int `json:"owned"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		log.Error().Err(err).Msg("Failed to parse owned games")
		return nil, err
	}
	return response.Owned, nil
}

// DownloadURL resolves a manual download path from the catalogue metadata
// into an absolute URL on the embed API host.
func (c *Client) DownloadURL(manualURL string) string {
	return c.base() + manualURL
}
