// Package cli provides the hostd command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	osagent "github.com/felixgeelhaar/osagent"
	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
	infraconfig "github.com/felixgeelhaar/osagent/infrastructure/config"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// Version information set at build time.
var (
	Version   = osagent.Version
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// ErrRunFailed is returned after a failed run has been reported.
var ErrRunFailed = errors.New("run failed")

// App represents the CLI application.
type App struct {
	root   *cobra.Command
	stdout io.Writer
	stderr io.Writer
}

// New creates a new CLI application.
func New() *App {
	app := &App{
		stdout: os.Stdout,
		stderr: os.Stderr,
	}

	app.root = &cobra.Command{
		Use:   "hostd",
		Short: "Host runtime for a sandboxed WebAssembly planner",
		Long: `hostd runs a WebAssembly planning component against a task. The component
plans, and the host executes its planned actions through capability providers
confined to a single workspace directory.

Results are written to stdout. Logs and traces go to stderr.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	app.root.AddCommand(
		app.newVersionCmd(),
		app.newStepCmd(),
		app.newInspectCmd(),
		app.newValidateCmd(),
		app.newExportSchemaCmd(),
		app.newRunsCmd(),
	)

	return app
}

// WithOutput sets custom output writers.
func (a *App) WithOutput(stdout, stderr io.Writer) *App {
	a.stdout = stdout
	a.stderr = stderr
	a.root.SetOut(stdout)
	a.root.SetErr(stderr)
	return a
}

// Execute runs the CLI application.
func (a *App) Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return a.root.ExecuteContext(ctx)
}

// ExecuteWithArgs runs the CLI with specific arguments (useful for testing).
func (a *App) ExecuteWithArgs(ctx context.Context, args []string) error {
	a.root.SetArgs(args)
	return a.Execute(ctx)
}

func (a *App) newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(a.stdout, "hostd version %s\n", Version)
			_, _ = fmt.Fprintf(a.stdout, "  Git commit: %s\n", GitCommit)
			_, _ = fmt.Fprintf(a.stdout, "  Build date: %s\n", BuildDate)
		},
	}
}

// loadConfig reads the config file at path, or starts from the defaults
// when path is empty.
func loadConfig(path string, strict bool) (*domainconfig.HostConfig, error) {
	if path == "" {
		cfg := domainconfig.Default()
		return &cfg, nil
	}
	loader := infraconfig.NewLoaderWithOptions(infraconfig.WithStrictEnv(strict))
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initLogging configures the process logger from the built config.
func (a *App) initLogging(cfg *domainconfig.HostConfig) {
	logging.Init(logging.FromHostConfig(cfg.Logging, a.stderr))
}
