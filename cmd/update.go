package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/ganderhq/gander/update"
	"github.com/spf13/cobra"
)

// updateCmd creates the command that brings installed games up to the
// latest published version, preferring delta patches.
func updateCmd(a *app) *cobra.Command {
	var gameID int
	var all bool
	var force bool
	var noDelta bool
	var language string
	var output string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update installed games",
		Long:  "Check installed games against the catalogue and apply delta patches or full re-downloads",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !all && gameID == 0 {
				return clierr.New(clierr.Usage, "One of --id or --all is required.", nil)
			}
			if err := a.ensureAuth(ctx); err != nil {
				return clierr.New(clierr.Auth, "Not logged in. Run 'gander login' first.", err)
			}

			downloadDir := output
			if downloadDir == "" {
				home, err := os.UserHomeDir()
				if err != nil {
					return clierr.New(clierr.Internal, "Cannot locate the home directory.", err)
				}
				downloadDir = filepath.Join(home, ".gander", "downloads")
			}

			source := update.NewCatalogSource(a.api, a.session, a.api.DownloadURL, downloadDir, languageName(language))
			engine := update.NewEngine(a.installs, source, a.pipeline(), a.installer())

			if all {
				result, err := update.Batch(ctx, engine, a.installs, force, !noDelta)
				if err != nil {
					return clierr.New(clierr.Internal, "Batch update failed.", err)
				}
				printBatchResult(cmd, result)
				if len(result.Failed) > 0 {
					return clierr.New(clierr.Internal,
						fmt.Sprintf("%d of %d updates failed.", len(result.Failed), len(result.Failed)+len(result.Updated)+len(result.UpToDate)), nil)
				}
				return nil
			}

			record, err := a.installs.GetByGameID(ctx, gameID)
			if err != nil {
				return clierr.New(clierr.Internal, "Cannot read the install record.", err)
			}
			if record == nil {
				return clierr.New(clierr.NotFound, fmt.Sprintf("Game %d is not installed.", gameID), nil)
			}

			updated, err := engine.Update(ctx, *record, force, !noDelta)
			switch {
			case errors.Is(err, update.ErrDeltaApplyFailed):
				return clierr.New(clierr.Internal, "Patch could not be applied; the previous version was restored.", err)
			case errors.Is(err, update.ErrRefetchFailed):
				return clierr.New(clierr.Transport, "Full re-download failed; the install is unchanged.", err)
			case err != nil:
				return clierr.New(clierr.Internal, "Update failed.", err)
			}

			if updated.Version == record.Version && !force {
				cmd.Printf("%s is already up to date (version %s).\n", record.Name, record.Version)
			} else {
				cmd.Printf("%s updated to version %s.\n", updated.Name, updated.Version)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&gameID, "id", "i", 0, "ID of the game to update")
	cmd.Flags().BoolVar(&all, "all", false, "Update every installed game")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-install even when the versions already match")
	cmd.Flags().BoolVar(&noDelta, "no-delta", false, "Skip delta patches and always re-download in full")
	cmd.Flags().StringVarP(&language, "lang", "l", "en", "Game language for the payload lookup")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Directory for downloaded payloads (default ~/.gander/downloads)")

	return cmd
}

func printBatchResult(cmd *cobra.Command, result *update.BatchResult) {
	for _, name := range result.Updated {
		cmd.Printf("updated    %s\n", name)
	}
	for _, name := range result.UpToDate {
		cmd.Printf("up to date %s\n", name)
	}
	failed := make([]string, 0, len(result.Failed))
	for name := range result.Failed {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		cmd.Printf("failed     %s: %v\n", name, result.Failed[name])
	}
}
