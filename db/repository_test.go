package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/ganderhq/gander/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) {
	t.Helper()
	db.Path = filepath.Join(t.TempDir(), "gander.db")
	require.NoError(t, db.InitDB())
	t.Cleanup(func() { _ = db.CloseDB() })
}

func TestTokenRepositoryRoundTrip(t *testing.T) {
	setupDB(t)
	repo := db.NewTokenRepository(db.Db)
	ctx := context.Background()

	got, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty database should yield no token")

	tok := &db.Token{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresAt: "2030-01-01T00:00:00Z"}
	require.NoError(t, repo.Upsert(ctx, tok))

	got, err = repo.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "access-1", got.AccessToken)

	// Upsert replaces rather than adding a second row.
	require.NoError(t, repo.Upsert(ctx, &db.Token{AccessToken: "access-2", RefreshToken: "refresh-2", ExpiresAt: "2031-01-01T00:00:00Z"}))
	got, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "access-2", got.AccessToken)
}

func TestGameRepositorySearchAndClear(t *testing.T) {
	setupDB(t)
	repo := db.NewGameRepository(db.Db)
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, db.Game{ID: 42, Title: "Starlight Drifter", Data: "{}"}))
	require.NoError(t, repo.Put(ctx, db.Game{ID: 43, Title: "Moonlight Racer", Data: "{}"}))

	games, err := repo.SearchByTitle(ctx, "light")
	require.NoError(t, err)
	assert.Len(t, games, 2)

	game, err := repo.GetByID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, game)
	assert.Equal(t, "Starlight Drifter", game.Title)

	missing, err := repo.GetByID(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, repo.Clear(ctx))
	games, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestInstallRepositoryUpsert(t *testing.T) {
	setupDB(t)
	repo := db.NewInstallRepository(db.Db)
	ctx := context.Background()

	rec := db.Install{GameID: 42, Name: "Starlight Drifter", Path: "/games/starlight", Platform: "native", Version: "1.0"}
	require.NoError(t, repo.Upsert(ctx, rec))

	rec.Version = "1.1"
	require.NoError(t, repo.Upsert(ctx, rec))

	got, err := repo.GetByGameID(ctx, 42)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "1.1", got.Version)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSettingRepository(t *testing.T) {
	setupDB(t)
	repo := db.NewSettingRepository(db.Db)
	ctx := context.Background()

	val, err := repo.Get(ctx, db.SettingSyncPath)
	require.NoError(t, err)
	assert.Empty(t, val)

	require.NoError(t, repo.Set(ctx, db.SettingSyncPath, "~/gog-saves"))
	require.NoError(t, repo.Set(ctx, db.SettingSyncPath, "~/saves"))

	val, err = repo.Get(ctx, db.SettingSyncPath)
	require.NoError(t, err)
	assert.Equal(t, "~/saves", val)
}
