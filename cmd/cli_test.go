package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMain sets up the database once for all tests in this package.
func TestMain(m *testing.M) {
	tmpDir, err := os.MkdirTemp("", "gander-cmd-test-")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create temp dir for testing")
	}
	db.Path = filepath.Join(tmpDir, "gander.db")
	if err := db.InitDB(); err != nil {
		log.Fatal().Err(err).Msg("Failed to init db for testing")
	}

	exitCode := m.Run()

	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close db after testing")
	}
	_ = os.RemoveAll(tmpDir)
	os.Exit(exitCode)
}

// cleanDBTables ensures test isolation by clearing tables before each test.
func cleanDBTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{"games", "tokens", "installs", "settings"} {
		require.NoError(t, db.Db.Exec("DELETE FROM "+table).Error)
	}
}

func TestCreateRootCmd(t *testing.T) {
	rootCmd := createRootCmd(newApp())
	assert.Equal(t, "gander", rootCmd.Use)

	var names []string
	for _, sub := range rootCmd.Commands() {
		assert.NotEqual(t, "help", sub.Use, "default help command should be replaced")
		names = append(names, sub.Name())
	}
	for _, want := range []string{"login", "catalogue", "download", "extras", "install", "update", "sync", "connect", "file", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, clierr.ExitUsage, exitCodeFor(clierr.New(clierr.Usage, "bad flags", nil)))
	assert.Equal(t, clierr.ExitInternal, exitCodeFor(clierr.New(clierr.Transport, "down", nil)))
	assert.Equal(t, clierr.ExitInternal, exitCodeFor(errors.New("plain")))

	// Wrapped structured errors still map to their exit code.
	wrapped := fmt.Errorf("context: %w", clierr.New(clierr.Usage, "no results", nil))
	assert.Equal(t, clierr.ExitUsage, exitCodeFor(wrapped))
}

func TestVersionCmdPrintsInfo(t *testing.T) {
	cmd := versionCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	require.NoError(t, cmd.Execute())

	out := buf.String()
	assert.Contains(t, out, "Gander version:")
	assert.Contains(t, out, "Go version:")
	assert.Contains(t, out, "Platform:")
}

func TestDownloadRequiresASelector(t *testing.T) {
	cleanDBTables(t)
	cmd := downloadCmd(newApp())
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, clierr.ExitUsage, exitCodeFor(err))
}

func TestExtrasRequiresIDOrSearch(t *testing.T) {
	cleanDBTables(t)
	cmd := extrasCmd(newApp())
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, clierr.ExitUsage, exitCodeFor(err))

	// The game can also be picked by search, like the download command.
	assert.NotNil(t, cmd.Flags().Lookup("search"))
	assert.NotNil(t, cmd.Flags().Lookup("first"))
}

func TestCatalogueSearchEmptyExitsUsage(t *testing.T) {
	cleanDBTables(t)
	cmd := searchCmd(newApp())
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetErr(new(bytes.Buffer))
	cmd.SetArgs([]string{"no-such-game"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, clierr.ExitUsage, exitCodeFor(err))
}

func TestSlugify(t *testing.T) {
	assert.Equal(t, "Starlight-Drifter", slugify("Starlight Drifter"))
	assert.Equal(t, "Some-Game-2", slugify("Some: Game® 2"))
	assert.Equal(t, "game", slugify("  game  "))
}

func TestExpandTilde(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	got, err := expandTilde("~/saves")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "saves"), got)

	got, err = expandTilde("/absolute/saves")
	require.NoError(t, err)
	assert.Equal(t, "/absolute/saves", got)
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "English", languageName("en"))
	assert.Equal(t, "Deutsch", languageName("de"))
	assert.Equal(t, "English", languageName("xx"), "unknown codes fall back to English")
}

func TestSyncSetPath(t *testing.T) {
	cleanDBTables(t)
	a := newApp()
	cmd := syncSetPathCmd(a)
	cmd.SetOut(new(bytes.Buffer))
	cmd.SetArgs([]string{"~/gog-saves"})
	require.NoError(t, cmd.Execute())

	stored, err := a.settings.Get(cmd.Context(), db.SettingSyncPath)
	require.NoError(t, err)
	assert.Equal(t, "~/gog-saves", stored, "setting keeps the ~ unexpanded")
}
