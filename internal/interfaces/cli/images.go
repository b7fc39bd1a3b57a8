package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/microsoft/project-freta/pkg/freta"
)

// NewImagesCommand creates the images command group
func NewImagesCommand(container *Container) *cobra.Command {
	imagesCmd := &cobra.Command{
		Use:     "images",
		Aliases: []string{"image"},
		Short:   "Manage memory images",
		Long: `Upload, inspect, and manage memory images.

Images are VM memory snapshots submitted for forensic analysis. Most
subcommands accept --owner to operate on images shared by another
account; by default they act on your own images.`,
	}

	imagesCmd.AddCommand(newImagesListCommand(container))
	imagesCmd.AddCommand(newImagesStatusCommand(container))
	imagesCmd.AddCommand(newImagesUploadCommand(container))
	imagesCmd.AddCommand(newImagesUploadSASCommand(container))
	imagesCmd.AddCommand(newImagesAnalyzeCommand(container))
	imagesCmd.AddCommand(newImagesCancelCommand(container))
	imagesCmd.AddCommand(newImagesDeleteCommand(container))
	imagesCmd.AddCommand(newImagesUpdateCommand(container))
	imagesCmd.AddCommand(newImagesFormatsCommand(container))
	imagesCmd.AddCommand(newImagesMonitorCommand(container))
	imagesCmd.AddCommand(newImagesWatchCommand(container))

	return imagesCmd
}

func newImagesListCommand(container *Container) *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List images visible to you",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			images, err := client.Images.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return printResult(cmd, container, images)
		},
	}

	cmd.Flags().StringVar(&filter, "search-filter", "", "Search filter (see the search-filters command)")

	return cmd
}

func newImagesStatusCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "status <image-id>",
		Short: "Show the analysis status of an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			image, err := client.Images.Status(cmd.Context(), args[0], owner)
			if err != nil {
				return err
			}
			return printResult(cmd, container, image)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")

	return cmd
}

func newImagesUploadCommand(container *Container) *cobra.Command {
	var (
		name      string
		imageType string
		region    string
		profile   string
		wait      bool
	)

	cmd := &cobra.Command{
		Use:   "upload <path>",
		Short: "Upload an image and queue it for analysis",
		Long: `Upload a memory image and queue it for analysis.

The file is transferred to blob storage via a short-lived SAS URL and
analysis starts automatically. Pass --wait to block until the report is
available.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}

			path := args[0]
			if name == "" {
				name = filepath.Base(path)
			}

			result, err := client.Images.Upload(cmd.Context(), name, imageType, region, path, profile)
			if err != nil {
				return fmt.Errorf("upload %s: %w", path, err)
			}

			if !wait {
				return printResult(cmd, container, result)
			}

			image, err := client.Images.Monitor(cmd.Context(), result.ImageID, result.OwnerID, freta.NewSink(os.Stderr))
			if err != nil {
				return err
			}
			return printResult(cmd, container, image)
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Image name (defaults to the file name)")
	cmd.Flags().StringVar(&imageType, "format", "lime", "Image format (see the formats command)")
	cmd.Flags().StringVar(&region, "region", "", "Region to analyze the image in")
	cmd.Flags().StringVar(&profile, "profile", "", "Optional kernel profile file to upload alongside the image")
	cmd.Flags().BoolVar(&wait, "wait", false, "Block until analysis finishes")

	return cmd
}

func newImagesUploadSASCommand(container *Container) *cobra.Command {
	var (
		imageType string
		region    string
	)

	cmd := &cobra.Command{
		Use:   "upload-sas <name>",
		Short: "Obtain SAS URLs for uploading an image yourself",
		Long: `Obtain short-lived SAS URLs for an image upload without transferring
any data. Useful for uploading with external tooling such as azcopy.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			token, err := client.Images.UploadSAS(cmd.Context(), args[0], imageType, region)
			if err != nil {
				return err
			}
			return printResult(cmd, container, token)
		},
	}

	cmd.Flags().StringVar(&imageType, "format", "lime", "Image format (see the formats command)")
	cmd.Flags().StringVar(&region, "region", "", "Region to analyze the image in")

	return cmd
}

func newImagesAnalyzeCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "analyze <image-id>",
		Short: "Queue an uploaded image for (re-)analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			if err := client.Images.Analyze(cmd.Context(), args[0], owner); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Analysis queued")
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")

	return cmd
}

func newImagesCancelCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "cancel <image-id>",
		Short: "Cancel a queued or running analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			if err := client.Images.CancelAnalysis(cmd.Context(), args[0], owner); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Analysis cancelled")
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")

	return cmd
}

func newImagesDeleteCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "delete <image-id>",
		Short: "Delete an image and its analysis results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			if err := client.Images.Delete(cmd.Context(), args[0], owner); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Image deleted")
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")

	return cmd
}

func newImagesUpdateCommand(container *Container) *cobra.Command {
	var (
		owner string
		name  string
	)

	cmd := &cobra.Command{
		Use:   "update <image-id>",
		Short: "Update image metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			image, err := client.Images.Update(cmd.Context(), args[0], owner, name)
			if err != nil {
				return err
			}
			return printResult(cmd, container, image)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")
	cmd.Flags().StringVar(&name, "name", "", "New name for the image")

	return cmd
}

func newImagesFormatsCommand(container *Container) *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List supported image formats",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			formats, err := client.Images.Formats(cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd, container, formats)
		},
	}
}

func newImagesMonitorCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "monitor <image-id>",
		Short: "Wait for an image analysis to finish",
		Long: `Poll an image until its analysis reaches a terminal state.

On an interactive terminal progress is shown with a spinner; otherwise
each state change is printed on its own line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			image, err := client.Images.Monitor(cmd.Context(), args[0], owner, freta.NewSink(os.Stderr))
			if err != nil {
				return err
			}
			return printResult(cmd, container, image)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the image (defaults to your own)")

	return cmd
}
