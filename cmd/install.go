package cmd

import (
	"os"

	"github.com/ganderhq/gander/download"
	"github.com/ganderhq/gander/install"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/spf13/cobra"
)

// installCmd creates the command that installs an already-downloaded
// installer payload into a game root.
func installCmd(a *app) *cobra.Command {
	var gameID int
	var name string
	var version string
	var windows bool
	var desktop bool
	var menu bool
	var shortcuts bool

	cmd := &cobra.Command{
		Use:   "install [installerFile] [installDir]",
		Short: "Install a downloaded game payload",
		Long:  "Unpack a downloaded installer into the given directory and record the installation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			installerPath, root := args[0], args[1]
			if _, err := os.Stat(installerPath); err != nil {
				return clierr.New(clierr.Usage, "Installer file does not exist.", err)
			}
			if shortcuts {
				desktop, menu = true, true
			}

			if name == "" {
				// Fall back to the cached catalogue entry when only an
				// id was given.
				if gameID != 0 {
					if cached, err := a.games.GetByID(ctx, gameID); err == nil && cached != nil {
						name = cached.Title
					}
				}
				if name == "" {
					return clierr.New(clierr.Usage, "--name is required when the game is not in the catalogue.", nil)
				}
			}

			record, err := a.installer().Install(ctx, &download.Artifact{Path: installerPath}, root, install.Options{
				GameID:  gameID,
				Name:    name,
				Version: version,
				Windows: windows,
				Desktop: desktop,
				Menu:    menu,
			})
			if err != nil {
				return installError(err)
			}
			cmd.Printf("Installed %s (version %s) to %s\n", record.Name, record.Version, record.Path)
			return nil
		},
	}

	cmd.Flags().IntVarP(&gameID, "id", "i", 0, "ID of the game being installed")
	cmd.Flags().StringVar(&name, "name", "", "Name of the game (defaults to the catalogue title for --id)")
	cmd.Flags().StringVar(&version, "version", "", "Version of the payload being installed")
	cmd.Flags().BoolVarP(&windows, "windows", "w", false, "Treat the payload as a windows installer and run it through wine")
	cmd.Flags().BoolVar(&desktop, "desktop", false, "Create a desktop shortcut")
	cmd.Flags().BoolVar(&menu, "menu", false, "Create an application-menu shortcut")
	cmd.Flags().BoolVar(&shortcuts, "shortcuts", false, "Create both desktop and menu shortcuts")

	return cmd
}
