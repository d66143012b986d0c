package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"chitchat/internal/client/api"
	"chitchat/internal/client/auth"
)

var loginCreds auth.Credentials

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newClientDeps()
		if err != nil {
			return err
		}

		session, err := deps.auth.Login(cmd.Context(), loginCreds)
		if err != nil {
			return err
		}

		printSession(cmd.OutOrStdout(), session)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the session token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newClientDeps()
		if err != nil {
			return err
		}

		if err := deps.auth.Logout(); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := newClientDeps()
		if err != nil {
			return err
		}

		session, err := deps.auth.Validate(cmd.Context())
		if err != nil {
			return err
		}

		if session == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
			return nil
		}

		printSession(cmd.OutOrStdout(), session)
		return nil
	},
}

func printSession(w io.Writer, s *api.Session) {
	fmt.Fprintf(w, "%s in #%s\n", s.User.Name, s.Channel)
}

func init() {
	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)

	loginCmd.Flags().StringVar(&loginCreds.Name, "name", "", "Display name (required)")
	loginCmd.Flags().StringVar(&loginCreds.Email, "email", "", "Email, used for the Gravatar avatar")
	loginCmd.Flags().StringVar(&loginCreds.Channel, "channel", auth.DefaultChannel, "Channel to join")
}
