package cli

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/microsoft/project-freta/pkg/freta"
)

// NewWaitImagesCommand creates the wait-images command
func NewWaitImagesCommand(container *Container) *cobra.Command {
	var owner string

	cmd := &cobra.Command{
		Use:   "wait-images <image-id> [image-id...]",
		Short: "Wait for several image analyses to finish",
		Long: `Poll multiple images concurrently until every analysis reaches a
terminal state. State changes are printed one per line, prefixed with
the image ID. Exits non-zero if any analysis fails.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}

			out := &lockedWriter{w: cmd.ErrOrStderr()}
			group, ctx := errgroup.WithContext(cmd.Context())

			results := make([]*freta.Image, len(args))
			for i, imageID := range args {
				group.Go(func() error {
					sink := &labeledSink{w: out, label: imageID}
					image, err := client.Images.Monitor(ctx, imageID, owner, sink)
					if err != nil {
						return fmt.Errorf("image %s: %w", imageID, err)
					}
					results[i] = image
					return nil
				})
			}

			if err := group.Wait(); err != nil {
				return err
			}
			return printResult(cmd, container, results)
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "Owner ID of the images (defaults to your own)")

	return cmd
}

// lockedWriter serializes line writes from concurrent monitors.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// labeledSink prints each distinct progress message on its own line,
// prefixed with the image ID so interleaved output stays readable.
type labeledSink struct {
	w     io.Writer
	label string
	last  string
}

func (s *labeledSink) Message(msg string) {
	if msg == s.last {
		return
	}
	s.last = msg
	fmt.Fprintf(s.w, "%s: %s\n", s.label, msg)
}

func (s *labeledSink) Done() {}

var _ freta.Sink = (*labeledSink)(nil)
