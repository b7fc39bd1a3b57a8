package cli

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/microsoft/project-freta/pkg/freta"
)

// WatchFlags holds command-line flags for the images watch command
type WatchFlags struct {
	Filter      string
	RefreshRate time.Duration
}

func newImagesWatchCommand(container *Container) *cobra.Command {
	flags := &WatchFlags{}

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Live terminal view of image analysis progress",
		Long: `Launch an interactive terminal view of your images, refreshed
continuously. Similar to 'watch freta images list' but with state
highlighting and keyboard controls.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := container.Client()
			if err != nil {
				return err
			}
			return runWatch(cmd, client, flags)
		},
	}

	cmd.Flags().StringVar(&flags.Filter, "search-filter", "", "Search filter (see the search-filters command)")
	cmd.Flags().DurationVar(&flags.RefreshRate, "refresh", 2*time.Second, "Refresh rate for live updates")

	return cmd
}

// runWatch starts the live view
func runWatch(cmd *cobra.Command, client *freta.Client, flags *WatchFlags) error {
	model := newWatchModel(cmd, client, flags)

	program := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("watch failed: %w", err)
	}
	return nil
}

// watchModel holds the state for the Bubble Tea live view
type watchModel struct {
	cmd          *cobra.Command
	client       *freta.Client
	flags        *WatchFlags
	images       []freta.Image
	paused       bool
	lastUpdate   time.Time
	windowWidth  int
	windowHeight int
	err          error
}

func newWatchModel(cmd *cobra.Command, client *freta.Client, flags *WatchFlags) watchModel {
	return watchModel{
		cmd:        cmd,
		client:     client,
		flags:      flags,
		lastUpdate: time.Now(),
	}
}

type watchTickMsg time.Time

type imagesLoadedMsg struct {
	images []freta.Image
}

type watchErrMsg struct {
	err error
}

func (m watchModel) tickCmd() tea.Cmd {
	return tea.Tick(m.flags.RefreshRate, func(t time.Time) tea.Msg {
		return watchTickMsg(t)
	})
}

func (m watchModel) loadImagesCmd() tea.Cmd {
	return func() tea.Msg {
		images, err := m.client.Images.List(m.cmd.Context(), m.flags.Filter)
		if err != nil {
			return watchErrMsg{err: err}
		}
		return imagesLoadedMsg{images: images}
	}
}

// Init implements the Bubble Tea init method
func (m watchModel) Init() tea.Cmd {
	return tea.Batch(
		m.tickCmd(),
		m.loadImagesCmd(),
	)
}

// Update implements the Bubble Tea update method
func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case " ":
			m.paused = !m.paused
			return m, nil

		case "r":
			return m, m.loadImagesCmd()
		}

	case watchTickMsg:
		if !m.paused {
			return m, tea.Batch(
				m.tickCmd(),
				m.loadImagesCmd(),
			)
		}
		return m, m.tickCmd()

	case imagesLoadedMsg:
		m.images = msg.images
		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case watchErrMsg:
		m.err = msg.err
		return m, nil
	}

	return m, nil
}

// View implements the Bubble Tea view method
func (m watchModel) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'q' to quit", m.err)
	}

	header := m.renderHeader()
	table := m.renderImageTable()
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, table, footer)
}

func (m watchModel) renderHeader() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Render("Freta Images")

	status := "LIVE"
	statusStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("46"))
	if m.paused {
		status = "PAUSED"
		statusStyle = statusStyle.Foreground(lipgloss.Color("196"))
	}

	info := fmt.Sprintf("Images: %d | Updated: %s | Refresh: %v",
		len(m.images),
		m.lastUpdate.Format("15:04:05"),
		m.flags.RefreshRate,
	)

	return lipgloss.JoinHorizontal(lipgloss.Left,
		title,
		"  ",
		info,
		"  ",
		statusStyle.Render(status),
	)
}

func (m watchModel) renderImageTable() string {
	if len(m.images) == 0 {
		return lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("\n  No images to display.\n")
	}

	headerStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))
	rows := []string{headerStyle.Render(fmt.Sprintf("%-36s │ %-30s │ %-10s │ %-20s │ %s",
		"IMAGE ID", "NAME", "REGION", "STATE", "UPDATED"))}

	maxRows := m.windowHeight - 5
	images := m.images
	if maxRows > 0 && len(images) > maxRows {
		images = images[:maxRows]
	}

	for _, img := range images {
		state := lipgloss.NewStyle().
			Foreground(stateColor(img.State)).
			Render(fmt.Sprintf("%-20s", img.State))

		rows = append(rows, fmt.Sprintf("%-36s │ %-30s │ %-10s │ %s │ %s",
			img.ImageID,
			truncate(img.MachineID, 30),
			img.Region,
			state,
			img.Timestamp,
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func (m watchModel) renderFooter() string {
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Render("q: quit │ space: pause │ r: refresh")
}

func stateColor(state freta.ImageState) lipgloss.Color {
	switch state {
	case freta.StateReportAvailable:
		return lipgloss.Color("46") // green
	case freta.StateFailed:
		return lipgloss.Color("196") // red
	case freta.StateAnalyzing:
		return lipgloss.Color("226") // yellow
	default:
		return lipgloss.Color("252")
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 3 {
		return s[:n]
	}
	return s[:n-3] + "..."
}
