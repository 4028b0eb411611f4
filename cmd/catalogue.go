package cmd

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ganderhq/gander/auth"
	"github.com/ganderhq/gander/catalog"
	"github.com/ganderhq/gander/client"
	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// catalogueCmd groups the local game catalogue operations.
func catalogueCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogue",
		Short: "Manage the game catalogue",
	}

	cmd.AddCommand(
		listCmd(a),
		searchCmd(a),
		infoCmd(a),
		refreshCmd(a),
		exportCmd(a),
	)

	return cmd
}

func listCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the list of all games in the catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			games, err := a.games.List(cmd.Context())
			if err != nil {
				return clierr.New(clierr.Internal, "Unable to list games.", err)
			}
			if len(games) == 0 {
				cmd.Println("No games found in the catalogue. Use `gander catalogue refresh` to update the catalogue.")
				return nil
			}
			renderGameTable(games)
			log.Info().Msgf("Successfully listed %d games in the catalogue.", len(games))
			return nil
		},
	}
}

func searchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search the catalogue by title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			games, err := a.games.SearchByTitle(cmd.Context(), args[0])
			if err != nil {
				return clierr.New(clierr.Internal, "Search failed.", err)
			}
			if len(games) == 0 {
				return clierr.New(clierr.Usage, fmt.Sprintf("No games matching %q in the catalogue.", args[0]), nil)
			}
			renderGameTable(games)
			return nil
		},
	}
}

func renderGameTable(games []db.Game) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Row ID", "Game ID", "Game Title"})
	table.SetColMinWidth(2, 60)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAutoWrapText(false)
	table.SetRowLine(false)

	for i, game := range games {
		cleanedTitle := strings.ReplaceAll(game.Title, "\n", " ")
		table.Append([]string{
			fmt.Sprintf("%d", i+1),
			fmt.Sprintf("%d", game.ID),
			cleanedTitle,
		})
	}
	table.Render()
}

func infoCmd(a *app) *cobra.Command {
	var gameID int
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show information about a specific game",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.ensureAuth(ctx); err != nil {
				return clierr.New(clierr.Auth, "Not logged in.", err)
			}

			title, err := a.view().ResolveByID(ctx, gameID)
			if err != nil {
				return resolveError(gameID, err)
			}

			cmd.Printf("Title: %s (ID: %d)\n", title.Name, title.ID)
			for _, download := range title.Details.Downloads {
				cmd.Printf("\n%s:\n", download.Language)
				printFiles(cmd, "windows", download.Platforms.Windows)
				printFiles(cmd, "linux", download.Platforms.Linux)
				printFiles(cmd, "mac", download.Platforms.Mac)
			}
			if len(title.Details.Extras) > 0 {
				cmd.Println("\nExtras:")
				for _, extra := range title.Details.Extras {
					cmd.Printf("  %s (%s)\n", extra.Name, extra.Size)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&gameID, "id", "i", 0, "ID of the game to show its information")
	if err := cmd.MarkFlagRequired("id"); err != nil {
		log.Error().Err(err).Msg("Failed to mark 'id' flag as required")
	}
	return cmd
}

func printFiles(cmd *cobra.Command, platform string, files []client.PlatformFile) {
	for _, file := range files {
		kind := "installer"
		if file.IsPatch() {
			kind = "patch"
		}
		cmd.Printf("  [%s] %s  version=%s  size=%s  (%s)\n",
			platform, file.Name, file.VersionOrUnknown(), file.Size, kind)
	}
}

// resolveError maps a ResolveByID failure to a user-facing error.
func resolveError(gameID int, err error) error {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		return clierr.New(clierr.NotFound, fmt.Sprintf("No game with ID %d in your library.", gameID), err)
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		return clierr.New(clierr.Transport, "The catalogue is unreachable; try again later.", err)
	case errors.Is(err, auth.ErrNoToken):
		return clierr.New(clierr.Auth, "Not logged in.", err)
	default:
		return clierr.New(clierr.Internal, "Failed to resolve the game.", err)
	}
}

func refreshCmd(a *app) *cobra.Command {
	var numWorkers int
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the catalogue from the remote library",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if err := a.ensureAuth(ctx); err != nil {
				return clierr.New(clierr.Auth, "Not logged in.", err)
			}

			bar := progressbar.NewOptions(100,
				progressbar.OptionSetDescription("Refreshing catalogue"),
				progressbar.OptionThrottle(250*time.Millisecond),
				progressbar.OptionClearOnFinish(),
			)
			err := a.view().RefreshCache(ctx, numWorkers, func(fraction float64) {
				_ = bar.Set(int(fraction * 100))
			})
			_ = bar.Finish()
			if err != nil {
				return clierr.New(clierr.Transport, "Failed to refresh the catalogue.", err)
			}
			cmd.Println("Catalogue refreshed.")
			return nil
		},
	}

	cmd.Flags().IntVarP(&numWorkers, "threads", "t", 5, "Number of worker threads to use [1-20]")
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "export [exportDir]",
		Short: "Export the catalogue to a file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			games, err := a.games.List(cmd.Context())
			if err != nil {
				return clierr.New(clierr.Internal, "Unable to export games.", err)
			}
			if len(games) == 0 {
				return clierr.New(clierr.Usage, "Catalogue is empty; nothing to export.", nil)
			}

			if err := os.MkdirAll(args[0], 0o755); err != nil {
				return clierr.New(clierr.Internal, "Cannot create export directory.", err)
			}

			var path string
			switch format {
			case "json":
				path = filepath.Join(args[0], "catalogue.json")
				err = exportJSON(path, games)
			case "csv":
				path = filepath.Join(args[0], "catalogue.csv")
				err = exportCSV(path, games)
			default:
				return clierr.New(clierr.Usage, fmt.Sprintf("Unsupported export format %q; use json or csv.", format), nil)
			}
			if err != nil {
				return clierr.New(clierr.Internal, "Export failed.", err)
			}
			cmd.Println("Catalogue exported to", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "csv", "Export format [json, csv]")
	return cmd
}

// exportJSON writes the raw cached details documents keyed by game id.
func exportJSON(path string, games []db.Game) error {
	docs := make(map[int]json.RawMessage, len(games))
	for _, game := range games {
		if json.Valid([]byte(game.Data)) {
			docs[game.ID] = json.RawMessage(game.Data)
		}
	}
	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// exportCSV writes the id/title listing.
func exportCSV(path string, games []db.Game) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"game_id", "title"}); err != nil {
		_ = file.Close()
		return err
	}
	for _, game := range games {
		if err := writer.Write([]string{fmt.Sprintf("%d", game.ID), game.Title}); err != nil {
			_ = file.Close()
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
