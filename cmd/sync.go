package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/ganderhq/gander/savesync"
	"github.com/spf13/cobra"
)

// syncCmd groups the save-game synchronization operations. Saves are
// mirrored into a per-game directory under the configured sync root.
func syncCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize save-game data",
	}

	cmd.AddCommand(
		syncSetPathCmd(a),
		syncDirectionCmd(a, "push", "Copy newer local saves to the sync directory", savesync.PushOnly),
		syncDirectionCmd(a, "pull", "Copy newer synced saves back to the game", savesync.PullOnly),
		syncDirectionCmd(a, "both", "Exchange saves in both directions, newest wins", savesync.Both),
	)

	return cmd
}

func syncSetPathCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-path [dir]",
		Short: "Set the directory save games are mirrored into",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Stored verbatim; ~ expands at use time so the setting
			// stays portable across machines.
			if err := a.settings.Set(cmd.Context(), db.SettingSyncPath, args[0]); err != nil {
				return clierr.New(clierr.Internal, "Failed to save the sync path.", err)
			}
			cmd.Println("Sync path set to", args[0])
			return nil
		},
	}
}

func syncDirectionCmd(a *app, use, short string, mode savesync.Mode) *cobra.Command {
	var gameID int
	var localDir string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			record, err := a.installs.GetByGameID(ctx, gameID)
			if err != nil {
				return clierr.New(clierr.Internal, "Cannot read the install record.", err)
			}
			if record == nil {
				return clierr.New(clierr.NotFound, fmt.Sprintf("Game %d is not installed.", gameID), nil)
			}

			root, err := a.syncRoot(ctx)
			if err != nil {
				return clierr.New(clierr.Usage, err.Error(), err)
			}
			remoteDir := filepath.Join(root, slugify(record.Name))

			local, err := expandTilde(localDir)
			if err != nil {
				return clierr.New(clierr.Internal, "Cannot expand the save directory.", err)
			}

			plan, err := savesync.BuildPlan(local, remoteDir)
			if err != nil {
				return clierr.New(clierr.Internal, "Failed to compare save directories.", err)
			}
			if dryRun {
				for _, action := range plan.Actions {
					cmd.Printf("%-5s %s\n", action.Op, action.Rel)
				}
				return nil
			}

			result := savesync.Apply(plan, mode)
			cmd.Printf("Pushed %d, pulled %d file(s).\n", len(result.Pushed), len(result.Pulled))
			if len(result.Failed) > 0 {
				for rel, ferr := range result.Failed {
					cmd.PrintErrf("failed %s: %v\n", rel, ferr)
				}
				return clierr.New(clierr.Internal, fmt.Sprintf("%d file(s) failed to sync.", len(result.Failed)), nil)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&gameID, "id", "i", 0, "ID of the installed game")
	cmd.Flags().StringVar(&localDir, "saves", "", "The game's local save directory")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without copying anything")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("saves")

	return cmd
}
