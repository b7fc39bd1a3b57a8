package cli

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewArtifactsCommand creates the artifacts command group
func NewArtifactsCommand(container *Container) *cobra.Command {
	artifactsCmd := &cobra.Command{
		Use:     "artifacts",
		Aliases: []string{"artifact"},
		Short:   "Retrieve analysis artifacts",
		Long: `List and fetch the artifacts produced by an image analysis,
such as the forensic report (report.json) and extracted files.`,
	}

	artifactsCmd.AddCommand(newArtifactsListCommand(container))
	artifactsCmd.AddCommand(newArtifactsGetCommand(container))
	artifactsCmd.AddCommand(newArtifactsDownloadCommand(container))

	return artifactsCmd
}

func newArtifactsListCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "list <image-id>",
		Short: "List artifacts produced for an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			names, err := client.Artifacts.List(cmd.Context(), args[0], owner)
			if err != nil {
				return err
			}
			return printResult(cmd, container, names)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")

	return cmd
}

func newArtifactsGetCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "get <image-id> <filename>",
		Short: "Print an artifact to stdout",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			data, err := client.Artifacts.Get(cmd.Context(), args[0], args[1], owner)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")

	return cmd
}

func newArtifactsDownloadCommand(container *Container) *cobra.Command {
	var (
		owner  string
		output string
	)

	cmd := &cobra.Command{
		Use:   "download <image-id> <filename>",
		Short: "Download an artifact to a local file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			dest := output
			if dest == "" {
				dest = filepath.Base(args[1])
			}
			return client.Artifacts.Download(cmd.Context(), args[0], args[1], owner, dest)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination path (defaults to the artifact name)")

	return cmd
}
