package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/microsoft/project-freta/pkg/freta"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// Container holds the dependencies shared by CLI commands. The service
// client is created lazily so commands like "config" and "version" work
// without touching the network or the token cache.
type Container struct {
	ConfigPath string
	Format     string
	Query      string
	Verbosity  int

	// Per-invocation overrides of stored config values.
	Endpoint     string
	ClientSecret string

	Logger *slog.Logger

	client *freta.Client
}

// Client returns the service client, constructing it on first use from the
// configured (or default) config file. Flag overrides win over the
// environment and the file.
func (c *Container) Client() (*freta.Client, error) {
	if c.client != nil {
		return c.client, nil
	}

	cfg, err := loadConfig(c.ConfigPath)
	if err != nil {
		return nil, err
	}
	if c.Endpoint != "" {
		cfg.Endpoint = c.Endpoint
	}
	if c.ClientSecret != "" {
		cfg.ClientSecret = c.ClientSecret
	}

	client, err := freta.NewWithConfig(cfg, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("initialize client: %w", err)
	}
	c.client = client
	return client, nil
}

func loadConfig(path string) (*freta.Config, error) {
	if path != "" {
		return freta.LoadConfigFrom(path)
	}
	return freta.LoadConfig()
}

// NewRootCommand builds the base command with all subcommands attached.
func NewRootCommand(container *Container) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "freta",
		Short: "Project Freta - memory forensics as a service",
		Long: `Project Freta client for submitting memory images for analysis.

Upload VM memory snapshots, track analysis progress, and fetch the
resulting forensic reports and artifacts.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			container.Logger = newLogger(container.Verbosity)
		},
	}

	rootCmd.SetVersionTemplate(fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH))

	rootCmd.PersistentFlags().CountVarP(&container.Verbosity, "verbose", "v", "Increase log verbosity (repeatable)")
	rootCmd.PersistentFlags().StringVar(&container.Format, "format", "json", "Output format (json or raw)")
	rootCmd.PersistentFlags().StringVar(&container.Query, "query", "", "JMESPath expression applied to the output")
	rootCmd.PersistentFlags().StringVar(&container.ConfigPath, "config", container.ConfigPath, "Config file path (default is ~/.cache/freta/config.json)")
	rootCmd.PersistentFlags().StringVar(&container.Endpoint, "endpoint", "", "Service endpoint URL, overriding the config file")
	rootCmd.PersistentFlags().StringVar(&container.ClientSecret, "client-secret", "", "Client secret for service principal logins, overriding the config file")

	rootCmd.AddCommand(NewLoginCommand(container))
	rootCmd.AddCommand(NewLogoutCommand(container))
	rootCmd.AddCommand(NewConfigCommand(container))
	rootCmd.AddCommand(NewImagesCommand(container))
	rootCmd.AddCommand(NewArtifactsCommand(container))
	rootCmd.AddCommand(NewRegionsCommand(container))
	rootCmd.AddCommand(NewVersionsCommand(container))
	rootCmd.AddCommand(NewSearchFiltersCommand(container))
	rootCmd.AddCommand(NewWaitImagesCommand(container))

	return rootCmd
}

// newLogger maps -v counts to slog levels: warnings by default, info at -v,
// debug at -vv and beyond.
func newLogger(verbosity int) *slog.Logger {
	level := slog.LevelWarn
	switch {
	case verbosity == 1:
		level = slog.LevelInfo
	case verbosity >= 2:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return "unknown"
}

// Execute runs the root command and exits non-zero on error.
func Execute(ctx context.Context, container *Container) {
	rootCmd := NewRootCommand(container)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
