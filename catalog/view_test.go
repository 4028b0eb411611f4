package catalog_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ganderhq/gander/catalog"
	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	details     map[int]string
	products    []client.Product
	owned       []int
	detailCalls int
	err         error
}

func (f *fakeAPI) GetGameDetails(ctx context.Context, token string, id int) (client.Game, string, error) {
	f.detailCalls++
	if f.err != nil {
		return client.Game{}, "", f.err
	}
	raw, ok := f.details[id]
	if !ok {
		return client.Game{}, "{}", nil
	}
	game, err := client.ParseGameData(raw)
	return game, raw, err
}

func (f *fakeAPI) GetAllFilteredProducts(ctx context.Context, token string, filter client.FilterParams) ([]client.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.products, nil
}

func (f *fakeAPI) GetGames(ctx context.Context, token string) ([]int, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.owned, nil
}

type staticToken string

func (s staticToken) AccessToken() (string, error) { return string(s), nil }

type memGames struct {
	rows map[int]db.Game
}

func (m *memGames) Put(ctx context.Context, g db.Game) error {
	if m.rows == nil {
		m.rows = map[int]db.Game{}
	}
	m.rows[g.ID] = g
	return nil
}

func (m *memGames) GetByID(ctx context.Context, id int) (*db.Game, error) {
	g, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &g, nil
}

func (m *memGames) List(ctx context.Context) ([]db.Game, error) {
	out := make([]db.Game, 0, len(m.rows))
	for _, g := range m.rows {
		out = append(out, g)
	}
	return out, nil
}

func (m *memGames) SearchByTitle(ctx context.Context, q string) ([]db.Game, error) { return nil, nil }

func (m *memGames) Clear(ctx context.Context) error {
	m.rows = map[int]db.Game{}
	return nil
}

func TestResolveByIDCachesDetails(t *testing.T) {
	api := &fakeAPI{details: map[int]string{7: `{"title":"Starlight Drifter","downloads":[],"extras":[]}`}}
	games := &memGames{}
	view := catalog.NewView(api, staticToken("tok"), games)

	title, err := view.ResolveByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Starlight Drifter", title.Name)
	assert.Equal(t, 1, api.detailCalls)

	// Second resolve is served from the cache.
	_, err = view.ResolveByID(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, api.detailCalls)
}

func TestResolveByIDUnknownTitle(t *testing.T) {
	api := &fakeAPI{details: map[int]string{}}
	view := catalog.NewView(api, staticToken("tok"), &memGames{})

	_, err := view.ResolveByID(context.Background(), 999)
	assert.ErrorIs(t, err, catalog.ErrNotFound)
}

func TestResolveByQueryMapsTransportFailure(t *testing.T) {
	api := &fakeAPI{err: errors.New("connection refused")}
	view := catalog.NewView(api, staticToken("tok"), &memGames{})

	_, err := view.ResolveByQuery(context.Background(), "anything")
	assert.ErrorIs(t, err, catalog.ErrCatalogUnavailable)
}

func TestResolveByQueryEmptyIsNotAnError(t *testing.T) {
	api := &fakeAPI{}
	view := catalog.NewView(api, staticToken("tok"), &memGames{})

	products, err := view.ResolveByQuery(context.Background(), "no such game")
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestRefreshCacheReplacesRows(t *testing.T) {
	api := &fakeAPI{
		owned: []int{1, 2},
		details: map[int]string{
			1: `{"title":"One","downloads":[],"extras":[]}`,
			2: `{"title":"Two","downloads":[],"extras":[]}`,
		},
	}
	games := &memGames{rows: map[int]db.Game{9: {ID: 9, Title: "Stale"}}}
	view := catalog.NewView(api, staticToken("tok"), games)

	var last float64
	err := view.RefreshCache(context.Background(), 2, func(p float64) { last = p })
	require.NoError(t, err)
	assert.InDelta(t, 1.0, last, 0.001)

	rows, err := games.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, rows, 2)
	stale, _ := games.GetByID(context.Background(), 9)
	assert.Nil(t, stale, "stale rows are cleared before the refresh")
}
