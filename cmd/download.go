package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ganderhq/gander/catalog"
	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/download"
	"github.com/ganderhq/gander/install"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// downloadOptions collects the download command's flags.
type downloadOptions struct {
	gameID       int
	search       string
	first        bool
	all          bool
	installAfter bool
	output       string
	language     string
	windows      bool
	extras       bool
	desktop      bool
	menu         bool
	shortcuts    bool
	numThreads   int
}

// downloadCmd creates the command that fetches installer payloads, and
// optionally installs them afterwards.
func downloadCmd(a *app) *cobra.Command {
	var opts downloadOptions

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download game files from GOG",
		Long:  "Download installer payloads for one game (by id or search) or for the whole library",
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeDownload(cmd, a, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.gameID, "id", "i", 0, "ID of the game to download")
	cmd.Flags().StringVarP(&opts.search, "search", "s", "", "Search the library and download the selected match")
	cmd.Flags().BoolVar(&opts.first, "first", false, "Take the first search result instead of asking")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Download every game in the library")
	cmd.Flags().BoolVar(&opts.installAfter, "install-after", false, "Install the game after downloading")
	cmd.Flags().StringVarP(&opts.output, "output", "o", ".", "Directory to download into")
	cmd.Flags().StringVarP(&opts.language, "lang", "l", "en", "Game language [en, fr, de, es, it, ru, pl, pt-BR, zh-Hans, ja, ko]")
	cmd.Flags().BoolVarP(&opts.windows, "windows", "w", false, "Download the windows variant instead of the native one")
	cmd.Flags().BoolVarP(&opts.extras, "extras", "e", false, "Also download extra content files")
	cmd.Flags().BoolVar(&opts.desktop, "desktop", false, "Create a desktop shortcut when installing")
	cmd.Flags().BoolVar(&opts.menu, "menu", false, "Create an application-menu shortcut when installing")
	cmd.Flags().BoolVar(&opts.shortcuts, "shortcuts", false, "Create both desktop and menu shortcuts when installing")
	cmd.Flags().IntVarP(&opts.numThreads, "threads", "t", 5, "Number of worker threads for extras [1-20]")

	return cmd
}

func executeDownload(cmd *cobra.Command, a *app, opts downloadOptions) error {
	ctx := cmd.Context()
	if opts.numThreads < 1 || opts.numThreads > 20 {
		return clierr.New(clierr.Usage, "Number of threads must be between 1 and 20.", nil)
	}
	if opts.shortcuts {
		opts.desktop, opts.menu = true, true
	}
	if !opts.all && opts.gameID == 0 && opts.search == "" {
		return clierr.New(clierr.Usage, "One of --id, --search, or --all is required.", nil)
	}

	if err := a.ensureAuth(ctx); err != nil {
		return clierr.New(clierr.Auth, "Not logged in. Run 'gander login' first.", err)
	}

	targets, err := pickTargets(ctx, a, opts)
	if err != nil {
		return err
	}

	if opts.all && opts.installAfter {
		// Installing a whole library in one run is not supported; the
		// payloads are still downloaded.
		cmd.PrintErrln("Warning: --install-after does not work with --all; skipping installation.")
		opts.installAfter = false
	}

	for _, target := range targets {
		if err := downloadOne(ctx, cmd, a, target, opts); err != nil {
			if len(targets) == 1 {
				return err
			}
			cmd.PrintErrf("Error: %s (%d): %v\n", target.Title, target.ID, err)
			log.Warn().Err(err).Int("gameID", target.ID).Msg("Download failed")
		}
	}
	return nil
}

// pickTargets resolves the id/search/all flags into a product list.
func pickTargets(ctx context.Context, a *app, opts downloadOptions) ([]client.Product, error) {
	view := a.view()
	switch {
	case opts.all:
		products, err := view.ListOwned(ctx, client.FilterParams{})
		if err != nil {
			return nil, clierr.New(clierr.Transport, "Failed to list the library.", err)
		}
		if len(products) == 0 {
			return nil, clierr.New(clierr.Usage, "Your library is empty.", nil)
		}
		return products, nil

	case opts.gameID != 0:
		title, err := view.ResolveByID(ctx, opts.gameID)
		if err != nil {
			return nil, resolveError(opts.gameID, err)
		}
		return []client.Product{{ID: title.ID, Title: title.Name}}, nil

	case opts.search != "":
		candidates, err := view.ResolveByQuery(ctx, opts.search)
		if err != nil {
			return nil, clierr.New(clierr.Transport, "Search failed.", err)
		}
		policy := catalog.Interactive
		if opts.first {
			policy = catalog.First
		}
		product, err := catalog.Resolve(candidates, policy, a.prompter)
		switch {
		case errors.Is(err, catalog.ErrNoMatch):
			return nil, clierr.New(clierr.Usage, fmt.Sprintf("No games matching %q.", opts.search), err)
		case errors.Is(err, catalog.ErrSelectionAborted):
			return nil, clierr.New(clierr.Usage, "Selection cancelled.", err)
		case err != nil:
			return nil, clierr.New(clierr.Internal, "Selection failed.", err)
		}
		return []client.Product{product}, nil

	default:
		return nil, clierr.New(clierr.Usage, "One of --id, --search, or --all is required.", nil)
	}
}

func downloadOne(ctx context.Context, cmd *cobra.Command, a *app, product client.Product, opts downloadOptions) error {
	title, err := a.view().ResolveByID(ctx, product.ID)
	if err != nil {
		return resolveError(product.ID, err)
	}

	files := title.Details.FilesFor(languageName(opts.language), opts.windows)
	var installers []client.PlatformFile
	for _, file := range files {
		if !file.IsPatch() && file.ManualURL != nil {
			installers = append(installers, file)
		}
	}
	if len(installers) == 0 {
		return clierr.New(clierr.NotFound,
			fmt.Sprintf("No installer files for %s with the selected language/platform.", title.Name), nil)
	}

	token, err := a.session.AccessToken()
	if err != nil {
		return clierr.New(clierr.Auth, "Session expired mid-run; login again.", err)
	}

	gameDir := filepath.Join(opts.output, slugify(title.Name))
	pipeline := a.pipeline()

	var artifacts []*download.Artifact
	for _, file := range installers {
		req := download.Request{
			URL:         a.api.DownloadURL(*file.ManualURL),
			DestDir:     gameDir,
			AccessToken: token,
		}
		if crc, ok := file.CRC32(); ok {
			req.ExpectedCRC = crc
			req.HasCRC = true
		}
		artifact, err := pipeline.Fetch(ctx, req)
		if err != nil {
			return downloadError(file.Name, err)
		}
		artifacts = append(artifacts, artifact)
	}

	if opts.extras && len(title.Details.Extras) > 0 {
		err := pipeline.FetchExtras(ctx, title.Details.Extras, a.api.DownloadURL, token, download.ExtrasOptions{
			DestDir: filepath.Join(gameDir, "extras"),
			Workers: opts.numThreads,
		})
		if err != nil {
			cmd.PrintErrln("Warning: some extras failed to download.")
			log.Warn().Err(err).Msg("Extras download incomplete")
		}
	}

	cmd.Printf("Downloaded %s to %s\n", title.Name, gameDir)

	if opts.installAfter {
		root := filepath.Join(opts.output, "installed", slugify(title.Name))
		record, err := a.installer().Install(ctx, artifacts[0], root, install.Options{
			GameID:  title.ID,
			Name:    title.Name,
			Version: installers[0].VersionOrUnknown(),
			Windows: opts.windows,
			Desktop: opts.desktop,
			Menu:    opts.menu,
		})
		if err != nil {
			return installError(err)
		}
		cmd.Printf("Installed %s (version %s) to %s\n", record.Name, record.Version, record.Path)
	}
	return nil
}

func downloadError(name string, err error) error {
	switch {
	case errors.Is(err, download.ErrIntegrityMismatch):
		return clierr.New(clierr.Transport, fmt.Sprintf("File %s failed verification; re-run to retry.", name), err)
	case errors.Is(err, download.ErrTooManyRedirects):
		return clierr.New(clierr.Transport, fmt.Sprintf("File %s could not be resolved to a payload.", name), err)
	default:
		return clierr.New(clierr.Transport, fmt.Sprintf("Failed to download %s.", name), err)
	}
}

func installError(err error) error {
	switch {
	case errors.Is(err, install.ErrExtractionFailed):
		return clierr.New(clierr.Internal, "Installer could not be extracted.", err)
	case errors.Is(err, install.ErrInstallerProcessFailed):
		return clierr.New(clierr.Internal, "Installer process failed.", err)
	default:
		return clierr.New(clierr.Internal, "Installation failed.", err)
	}
}

// slugify turns a game title into a safe directory name.
func slugify(title string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == ' ', r == '-', r == '_', r == '.':
			return '-'
		default:
			return -1
		}
	}, title)
	return strings.Trim(slug, "-")
}
