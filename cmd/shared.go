package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ganderhq/gander/auth"
	"github.com/ganderhq/gander/catalog"
	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/download"
	"github.com/ganderhq/gander/install"
	"github.com/ganderhq/gander/ui"
)

// gameLanguages maps language codes to the native names the catalogue
// uses as download-group labels.
var gameLanguages = map[string]string{
	"en":      "English",
	"fr":      "Français",            // French
	"de":      "Deutsch",             // German
	"es":      "Español",             // Spanish
	"it":      "Italiano",            // Italian
	"ru":      "Русский",             // Russian
	"pl":      "Polski",              // Polish
	"pt-BR":   "Português do Brasil", // Portuguese (Brazil)
	"zh-Hans": "简体中文",                // Simplified Chinese
	"ja":      "日本語",                 // Japanese
	"ko":      "한국어",                 // Korean
}

// languageName resolves a language code to the catalogue label, falling
// back to English for unknown codes.
func languageName(code string) string {
	if name, ok := gameLanguages[code]; ok {
		return name
	}
	return gameLanguages["en"]
}

// tokenRepoStorer adapts a TokenRepository to the auth.TokenStorer
// interface.
type tokenRepoStorer struct{ repo db.TokenRepository }

func (s *tokenRepoStorer) GetTokenRecord() (*db.Token, error) {
	return s.repo.Get(context.Background())
}

func (s *tokenRepoStorer) UpsertTokenRecord(token *db.Token) error {
	return s.repo.Upsert(context.Background(), token)
}

// app wires the long-lived collaborators the commands share.
type app struct {
	api      *client.Client
	gogAuth  *client.GogAuth
	session  *auth.Session
	prompter *ui.Prompter
	games    db.GameRepository
	installs db.InstallRepository
	settings db.SettingRepository
}

func newApp() *app {
	gogAuth := &client.GogAuth{Headless: true}
	tokens := db.NewTokenRepository(db.Db)
	return &app{
		api:      client.NewClient(),
		gogAuth:  gogAuth,
		session:  auth.NewSession(&tokenRepoStorer{repo: tokens}, gogAuth),
		prompter: ui.NewPrompter(),
		games:    db.NewGameRepository(db.Db),
		installs: db.NewInstallRepository(db.Db),
		settings: db.NewSettingRepository(db.Db),
	}
}

func (a *app) view() *catalog.View {
	return catalog.NewView(a.api, a.session, a.games)
}

func (a *app) pipeline() *download.Pipeline {
	return download.NewPipeline(ui.NewBarReporter())
}

func (a *app) installer() *install.Manager {
	return install.NewManager(a.installs)
}

// ensureAuth makes sure a valid token is held before any API work,
// falling back to the code-paste login when the stored token cannot be
// refreshed.
func (a *app) ensureAuth(ctx context.Context) error {
	return a.session.Ensure(ctx, func(ctx context.Context, s *auth.Session) error {
		fmt.Println("No valid session. Open this URL in a browser, log in, and paste the code parameter:")
		fmt.Println("  " + client.GOGLoginURL)
		code, err := a.prompter.Input("Code: ")
		if err != nil {
			return err
		}
		if code == "" {
			return fmt.Errorf("no code entered")
		}
		return s.LoginWithCode(ctx, code)
	})
}

// syncRoot returns the configured save-sync directory with ~ expanded.
func (a *app) syncRoot(ctx context.Context) (string, error) {
	path, err := a.settings.Get(ctx, db.SettingSyncPath)
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("no sync path configured; run 'gander sync set-path <dir>' first")
	}
	return expandTilde(path)
}

// expandTilde resolves a leading ~ against the home directory.
func expandTilde(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(path, "~"), "/")), nil
	}
	return path, nil
}
