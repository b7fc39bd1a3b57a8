package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewLoginCommand creates the login command
func NewLoginCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Obtain and cache an access token",
		Long: `Authenticate against Azure Active Directory and cache the token.

Interactive logins use the device code flow; if a client secret is
configured the service principal is used instead and no interaction is
required.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			if err := client.Login(cmd.Context()); err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			return nil
		},
	}
}

// NewLogoutCommand creates the logout command
func NewLogoutCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the cached access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			if err := client.Logout(); err != nil {
				return fmt.Errorf("logout failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}
