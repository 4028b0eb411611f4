package cmd

import (
	"errors"

	"github.com/ganderhq/gander/auth"
	"github.com/ganderhq/gander/pkg/clierr"
	"github.com/spf13/cobra"
)

// loginCmd creates the command for logging into GOG.com, either with a
// pasted one-time code or with username/password through the automated
// login form.
func loginCmd(a *app) *cobra.Command {
	var code string
	var useCredentials bool
	var headless bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Login to GOG.com",
		Long:  "Login to GOG.com with a one-time code or with your username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if code != "" {
				if err := a.session.LoginWithCode(ctx, code); err != nil {
					return clierr.New(clierr.Auth, "Failed to login with the given code.", err)
				}
				cmd.Println("Login was successful.")
				return nil
			}

			if !useCredentials {
				// Same flow ensureAuth uses: print the URL, read the code.
				if err := a.ensureAuth(ctx); err != nil {
					return clierr.New(clierr.Auth, "Failed to login to GOG.com.", err)
				}
				cmd.Println("Login was successful.")
				return nil
			}

			cmd.Println("Please enter your GOG username and password.")
			username, err := a.prompter.Input("GOG username: ")
			if err != nil {
				return clierr.New(clierr.Internal, "Failed to read input.", err)
			}
			password, err := a.prompter.Password("GOG password: ")
			if err != nil {
				return clierr.New(clierr.Internal, "Failed to read password.", err)
			}
			if username == "" || password == "" {
				return clierr.New(clierr.Usage, "Username and password cannot be empty.", nil)
			}

			a.gogAuth.Headless = headless
			mfa := func() (string, error) {
				return a.prompter.Input("Two-factor code: ")
			}
			if err := a.session.LoginWithCredentials(ctx, username, password, mfa); err != nil {
				return loginError(err)
			}
			cmd.Println("Login was successful.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&code, "code", "c", "", "One-time login code from the browser redirect")
	cmd.Flags().BoolVarP(&useCredentials, "username", "u", false, "Login with username and password instead of a code")
	cmd.Flags().BoolVarP(&headless, "headless", "n", true, "Login in headless mode without showing the browser window? [true, false]")

	return cmd
}

func loginError(err error) error {
	switch {
	case errors.Is(err, auth.ErrIncorrectCredentials):
		return clierr.New(clierr.Auth, "Incorrect username or password.", err)
	case errors.Is(err, auth.ErrRateLimited):
		return clierr.New(clierr.Auth, "Too many login attempts; wait a while and try again.", err)
	default:
		return clierr.New(clierr.Auth, "Failed to login to GOG.com.", err)
	}
}
