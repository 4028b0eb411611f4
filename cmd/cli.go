package cmd

import (
	"errors"
	"os"

	"github.com/ganderhq/gander/db"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func Execute() {
	initializeDatabase()
	defer closeDatabase()

	rootCmd := createRootCmd(newApp())
	rootCmd.PersistentFlags().BoolP("help", "h", false, "Show help for a command")

	if err := rootCmd.Execute(); err != nil {
		rootCmd.PrintErrln("Error:", err.Error())
		log.Error().Err(err).Msg("Command execution failed.")
		os.Exit(exitCodeFor(err))
	}
}

func createRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "gander",
		Short:         "A library mirroring tool for GOG",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		loginCmd(a),
		catalogueCmd(a),
		downloadCmd(a),
		extrasCmd(a),
		installCmd(a),
		updateCmd(a),
		syncCmd(a),
		connectCmd(a),
		fileCmd(),
		versionCmd(),
	)

	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SetHelpCommand(&cobra.Command{
		Use:    "no-help",
		Hidden: true,
	})

	return rootCmd
}

// exitCodeFor maps a command failure to the process exit code. Usage
// mistakes and empty search results exit with 64; everything else with 1.
func exitCodeFor(err error) int {
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		return cliErr.ExitCode()
	}
	return clierr.ExitInternal
}

func initializeDatabase() {
	if err := db.InitDB(); err != nil {
		log.Error().Err(err).Msg("Failed to initialize database")
		os.Exit(clierr.ExitInternal)
	}
}

func closeDatabase() {
	if err := db.CloseDB(); err != nil {
		log.Error().Err(err).Msg("Failed to close the database.")
		os.Exit(clierr.ExitInternal)
	}
}
