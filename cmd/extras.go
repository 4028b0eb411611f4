package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ganderhq/gander/catalog"
	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/download"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/spf13/cobra"
)

// extrasCmd creates the command for downloading a game's extra content
// (manuals, soundtracks, wallpapers) separately from the installers.
func extrasCmd(a *app) *cobra.Command {
	var gameID int
	var search string
	var first bool
	var all bool
	var name string
	var output string
	var numThreads int

	cmd := &cobra.Command{
		Use:   "extras",
		Short: "Download extra content for a game",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if gameID == 0 && search == "" {
				return clierr.New(clierr.Usage, "One of --id or --search is required.", nil)
			}
			if err := a.ensureAuth(ctx); err != nil {
				return clierr.New(clierr.Auth, "Not logged in. Run 'gander login' first.", err)
			}

			title, err := resolveExtrasTarget(ctx, a, gameID, search, first)
			if err != nil {
				return err
			}
			if len(title.Details.Extras) == 0 {
				return clierr.New(clierr.NotFound, fmt.Sprintf("%s has no extras.", title.Name), nil)
			}

			selected := title.Details.Extras
			filter := name
			if !all && name == "" {
				selected, err = pickExtras(a, title.Details.Extras)
				if err != nil {
					return clierr.New(clierr.Internal, "Selection failed.", err)
				}
				if len(selected) == 0 {
					return clierr.New(clierr.Usage, "Nothing selected.", nil)
				}
				filter = ""
			}

			token, err := a.session.AccessToken()
			if err != nil {
				return clierr.New(clierr.Auth, "Session expired; login again.", err)
			}

			destDir := filepath.Join(output, slugify(title.Name), "extras")
			err = a.pipeline().FetchExtras(ctx, selected, a.api.DownloadURL, token, download.ExtrasOptions{
				DestDir:    destDir,
				NameFilter: filter,
				Workers:    numThreads,
			})
			switch {
			case errors.Is(err, download.ErrNoSuchExtra):
				return clierr.New(clierr.NotFound, fmt.Sprintf("No extra named %q; names match exactly after trimming spaces.", name), err)
			case err != nil:
				return clierr.New(clierr.Transport, "Some extras failed to download.", err)
			}
			cmd.Printf("Extras for %s downloaded to %s\n", title.Name, destDir)
			return nil
		},
	}

	cmd.Flags().IntVarP(&gameID, "id", "i", 0, "ID of the game")
	cmd.Flags().StringVarP(&search, "search", "s", "", "Search the library and use the selected match")
	cmd.Flags().BoolVar(&first, "first", false, "Take the first search result instead of asking")
	cmd.Flags().BoolVar(&all, "all", false, "Download every extra without asking")
	cmd.Flags().StringVar(&name, "name", "", "Download only the extra with this exact (trimmed, case-sensitive) name")
	cmd.Flags().StringVarP(&output, "output", "o", ".", "Directory to download into")
	cmd.Flags().IntVarP(&numThreads, "threads", "t", 5, "Number of worker threads [1-20]")

	return cmd
}

// resolveExtrasTarget picks the one game the extras belong to, by id or by
// a search with first-match/interactive selection.
func resolveExtrasTarget(ctx context.Context, a *app, gameID int, search string, first bool) (*catalog.Title, error) {
	if gameID != 0 {
		title, err := a.view().ResolveByID(ctx, gameID)
		if err != nil {
			return nil, resolveError(gameID, err)
		}
		return title, nil
	}

	candidates, err := a.view().ResolveByQuery(ctx, search)
	if err != nil {
		return nil, clierr.New(clierr.Transport, "Search failed.", err)
	}
	policy := catalog.Interactive
	if first {
		policy = catalog.First
	}
	product, err := catalog.Resolve(candidates, policy, a.prompter)
	switch {
	case errors.Is(err, catalog.ErrNoMatch):
		return nil, clierr.New(clierr.Usage, fmt.Sprintf("No games matching %q.", search), err)
	case errors.Is(err, catalog.ErrSelectionAborted):
		return nil, clierr.New(clierr.Usage, "Selection cancelled.", err)
	case err != nil:
		return nil, clierr.New(clierr.Internal, "Selection failed.", err)
	}

	title, err := a.view().ResolveByID(ctx, product.ID)
	if err != nil {
		return nil, resolveError(product.ID, err)
	}
	return title, nil
}

// pickExtras asks the user to choose a subset of extras.
func pickExtras(a *app, extras []client.Extra) ([]client.Extra, error) {
	items := make([]string, len(extras))
	for i, extra := range extras {
		items[i] = fmt.Sprintf("%s (%s)", extra.Name, extra.Size)
	}
	picked, err := a.prompter.PickMany("Select extras to download:", items)
	if err != nil {
		return nil, err
	}
	selected := make([]client.Extra, 0, len(picked))
	for _, index := range picked {
		selected = append(selected, extras[index])
	}
	return selected, nil
}
