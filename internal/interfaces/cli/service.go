package cli

import (
	"github.com/spf13/cobra"
)

// NewRegionsCommand creates the regions command
func NewRegionsCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "regions",
		Short: "List regions available for image analysis",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			regions, err := client.Regions(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, container, regions)
		},
	}
}

// NewVersionsCommand creates the versions command
func NewVersionsCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "Show service component versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			versions, err := client.Versions(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, container, versions)
		},
	}
}

// NewSearchFiltersCommand creates the search-filters command
func NewSearchFiltersCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "search-filters",
		Short: "List filters accepted by images list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			filters, err := client.SearchFilters(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, container, filters)
		},
	}
}
