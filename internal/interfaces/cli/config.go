package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/microsoft/project-freta/pkg/freta"
)

// NewConfigCommand creates the config command
func NewConfigCommand(container *Container) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage client configuration",
		Long: `View and update the client configuration.

Settings are stored in a JSON file under ~/.cache/freta (or the
directory named by FRETA_CACHE_DIR). Secrets are masked on display.`,
	}

	configCmd.AddCommand(NewConfigShowCommand(container))
	configCmd.AddCommand(NewConfigPathCommand(container))
	configCmd.AddCommand(NewConfigSetCommand(container))

	return configCmd
}

// NewConfigShowCommand creates the show subcommand
func NewConfigShowCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(container.ConfigPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			return printResult(cmd, container, cfg.Redacted())
		},
	}
}

// NewConfigPathCommand creates the path subcommand
func NewConfigPathCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := container.ConfigPath
			if path == "" {
				var err error
				path, err = freta.ConfigPath()
				if err != nil {
					return err
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

// NewConfigSetCommand creates the set subcommand
func NewConfigSetCommand(container *Container) *cobra.Command {
	var (
		endpoint     string
		authority    string
		clientID     string
		clientSecret string
		clearSecret  bool
	)

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update configuration values",
		Long: `Update one or more configuration values and save the file.

Only the flags you pass are changed; everything else keeps its current
value. Use --clear-secret to remove a stored client secret.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(container.ConfigPath)
			if err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}

			if cmd.Flags().Changed("endpoint") {
				cfg.Endpoint = endpoint
			}
			if cmd.Flags().Changed("authority") {
				cfg.Authority = authority
			}
			if cmd.Flags().Changed("client-id") {
				cfg.ClientID = clientID
			}
			if cmd.Flags().Changed("client-secret") {
				cfg.ClientSecret = clientSecret
			}
			if clearSecret {
				cfg.ClientSecret = ""
			}

			if err := cfg.Save(); err != nil {
				return fmt.Errorf("save configuration: %w", err)
			}
			return printResult(cmd, container, cfg.Redacted())
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Service endpoint URL")
	cmd.Flags().StringVar(&authority, "authority", "", "OAuth2 authority URL")
	cmd.Flags().StringVar(&clientID, "client-id", "", "Application (client) ID")
	cmd.Flags().StringVar(&clientSecret, "client-secret", "", "Client secret for service principal logins")
	cmd.Flags().BoolVar(&clearSecret, "clear-secret", false, "Remove the stored client secret")

	return cmd
}
