package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/pkg/pool"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotFound means the requested id resolves to no owned title.
	ErrNotFound = errors.New("title not found in the catalogue")
	// ErrCatalogUnavailable wraps any upstream transport failure.
	ErrCatalogUnavailable = errors.New("catalogue unavailable")
)

// API is the narrow slice of the platform client the view needs.
type API interface {
	GetGameDetails(ctx context.Context, accessToken string, gameID int) (client.Game, string, error)
	GetAllFilteredProducts(ctx context.Context, accessToken string, filter client.FilterParams) ([]client.Product, error)
	GetGames(ctx context.Context, accessToken string) ([]int, error)
}

// TokenSource yields a read-only access token for the duration of one call.
type TokenSource interface {
	AccessToken() (string, error)
}

// Title is a resolved reference to exactly one catalogue entry. Immutable
// once resolved.
type Title struct {
	ID      int
	Name    string
	Details client.Game
	RawData string
}

// View resolves user requests (id, query, "all owned") against the remote
// catalogue, caching details in the local database.
type View struct {
	api    API
	tokens TokenSource
	games  db.GameRepository
}

// NewView constructs a catalogue view.
func NewView(api API, tokens TokenSource, games db.GameRepository) *View {
	return &View{api: api, tokens: tokens, games: games}
}

// ResolveByID resolves a numeric id to a Title, preferring the local cache
// and falling back to the remote catalogue.
func (v *View) ResolveByID(ctx context.Context, id int) (*Title, error) {
	if v.games != nil {
		if cached, err := v.games.GetByID(ctx, id); err == nil && cached != nil {
			details, err := client.ParseGameData(cached.Data)
			if err == nil {
				return &Title{ID: id, Name: details.Title, Details: details, RawData: cached.Data}, nil
			}
			log.Warn().Err(err).Int("gameID", id).Msg("Cached game data unparsable, refetching")
		}
	}

	token, err := v.tokens.AccessToken()
	if err != nil {
		return nil, err
	}
	details, raw, err := v.api.GetGameDetails(ctx, token, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if details.Title == "" {
		return nil, ErrNotFound
	}
	if v.games != nil {
		if err := v.games.Put(ctx, db.Game{ID: id, Title: details.Title, Data: raw}); err != nil {
			log.Warn().Err(err).Int("gameID", id).Msg("Failed to cache game details")
		}
	}
	return &Title{ID: id, Name: details.Title, Details: details, RawData: raw}, nil
}

// ResolveByQuery searches the remote catalogue. Results keep the upstream
// order; an empty result is a zero-length slice, not an error.
func (v *View) ResolveByQuery(ctx context.Context, query string) ([]client.Product, error) {
	token, err := v.tokens.AccessToken()
	if err != nil {
		return nil, err
	}
	products, err := v.api.GetAllFilteredProducts(ctx, token, client.FilterParams{MediaType: 1, Search: query})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return products, nil
}

// ListOwned lists every owned title; the zero filter imposes no constraint.
func (v *View) ListOwned(ctx context.Context, filter client.FilterParams) ([]client.Product, error) {
	if filter.MediaType == 0 {
		filter.MediaType = 1
	}
	token, err := v.tokens.AccessToken()
	if err != nil {
		return nil, err
	}
	products, err := v.api.GetAllFilteredProducts(ctx, token, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	return products, nil
}

// RefreshCache re-fetches the details of every owned game into the local
// cache, fanning out over numWorkers. Progress runs from 0.0 to 1.0.
func (v *View) RefreshCache(ctx context.Context, numWorkers int, progressCb func(float64)) error {
	token, err := v.tokens.AccessToken()
	if err != nil {
		return err
	}

	gameIDs, err := v.api.GetGames(ctx, token)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	if len(gameIDs) == 0 {
		log.Info().Msg("No games found in the account.")
		if progressCb != nil {
			progressCb(1.0)
		}
		return nil
	}

	if err := v.games.Clear(ctx); err != nil {
		return fmt.Errorf("failed to empty catalogue cache: %w", err)
	}

	var processed atomic.Int64
	total := float64(len(gameIDs))

	workerFunc := func(ctx context.Context, id int) error {
		defer func() {
			count := processed.Add(1)
			if progressCb != nil {
				progressCb(float64(count) / total)
			}
		}()

		details, raw, fetchErr := v.api.GetGameDetails(ctx, token, id)
		if fetchErr != nil {
			log.Warn().Err(fetchErr).Int("gameID", id).Msg("Failed to fetch game details")
			return nil // one title failing does not abort the refresh
		}
		if details.Title != "" {
			if err := v.games.Put(ctx, db.Game{ID: id, Title: details.Title, Data: raw}); err != nil {
				log.Error().Err(err).Int("gameID", id).Msg("Failed to cache game details")
			}
		}
		return nil
	}

	_ = pool.Run(ctx, gameIDs, numWorkers, workerFunc)
	return ctx.Err()
}
