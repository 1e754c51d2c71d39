package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/osagent/application"
	"github.com/felixgeelhaar/osagent/domain/agent"
	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
	infraconfig "github.com/felixgeelhaar/osagent/infrastructure/config"
	"github.com/felixgeelhaar/osagent/infrastructure/guest/wasm"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
	inframw "github.com/felixgeelhaar/osagent/infrastructure/middleware"
	"github.com/felixgeelhaar/osagent/infrastructure/observability"
	"github.com/felixgeelhaar/osagent/infrastructure/storage"
)

// shutdownTimeout bounds telemetry flushing after a run.
const shutdownTimeout = 5 * time.Second

type stepOptions struct {
	configPath  string
	component   string
	workspace   string
	task        string
	observation string
	step        uint32
	allowProc   []string
	maxSteps    int
	restarts    int
	jsonOutput  bool
	logLevel    string
	logFormat   string
}

func (a *App) newStepCmd() *cobra.Command {
	opts := &stepOptions{}

	cmd := &cobra.Command{
		Use:   "step",
		Short: "Run the planner against a task",
		Long: `Instantiate the planning component and drive it until it completes, fails
or exhausts the step bound. Every planned action runs inside the workspace.

Examples:
  # Run a task in the current directory
  hostd step --task "summarize the README"

  # Allow the planner to run ls and git
  hostd step --task "list branches" --allow-proc ls --allow-proc git

  # Resume from a recorded observation
  hostd step --task "continue" --step 3 --observation '{"hint":"src"}' --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStep(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to host configuration file")
	cmd.Flags().StringVar(&opts.component, "component", "", "Path to the planner component (default "+domainconfig.DefaultComponent+")")
	cmd.Flags().StringVar(&opts.workspace, "workspace", "", "Workspace root (default .)")
	cmd.Flags().StringVar(&opts.task, "task", "", "Task handed to the planner (required)")
	cmd.Flags().StringVar(&opts.observation, "observation", "{}", "Initial observation data as JSON")
	cmd.Flags().Uint32Var(&opts.step, "step", 0, "Initial step number")
	cmd.Flags().StringArrayVar(&opts.allowProc, "allow-proc", nil, "Allow the planner to spawn CMD (repeatable)")
	cmd.Flags().IntVar(&opts.maxSteps, "max-steps", 0, "Maximum planner steps (overrides config)")
	cmd.Flags().IntVar(&opts.restarts, "restarts", 0, "Total attempts for retryable failures (overrides config)")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output the run as JSON")
	cmd.Flags().StringVar(&opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	cmd.Flags().StringVar(&opts.logFormat, "log-format", "", "Log format (console, json)")

	_ = cmd.MarkFlagRequired("task")

	return cmd
}

func (a *App) runStep(ctx context.Context, opts *stepOptions) error {
	if !json.Valid([]byte(opts.observation)) {
		return fmt.Errorf("--observation is not valid JSON: %s", opts.observation)
	}

	base, err := loadConfig(opts.configPath, false)
	if err != nil {
		return err
	}
	cfg, err := infraconfig.NewBuilder(base).
		WithWorkspace(opts.workspace).
		WithComponent(opts.component).
		AllowProc(opts.allowProc...).
		WithMaxSteps(opts.maxSteps).
		WithRestarts(opts.restarts).
		WithLogging(opts.logLevel, opts.logFormat).
		Build()
	if err != nil {
		return err
	}
	a.initLogging(cfg)

	telemetry, err := observability.New(ctx, append(observability.FromHostConfig(cfg.Telemetry),
		observability.WithServiceVersion(Version),
		observability.WithWriter(a.stderr),
	)...)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	telemetry.Install()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := telemetry.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Add(logging.ErrorField(err)).Msg("telemetry shutdown failed")
		}
	}()

	stores, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	loader := wasm.NewLoader(wasm.Config{
		MemoryLimitPages: cfg.Guest.MemoryLimitPages,
		StepTimeout:      cfg.Guest.StepTimeout.Duration(),
	})
	defer func() { _ = loader.Close(context.WithoutCancel(ctx)) }()

	component, err := loader.Load(cfg.Guest.Component)
	if err != nil {
		return err
	}

	runtimeOpts := []application.Option{
		application.WithGuests(application.WasmGuests{Loader: loader, Component: component}),
		application.WithRunStore(stores.Runs),
		application.WithLedgerStore(stores.Ledgers),
		application.WithTracer(telemetry.Tracer(inframw.TracerName)),
	}
	if cfg.Telemetry.Metrics.Enabled {
		runtimeOpts = append(runtimeOpts, application.WithMeter(telemetry.Meter(inframw.TracerName)))
	}
	rt, err := application.NewRuntimeWithOptions(cfg, runtimeOpts...)
	if err != nil {
		return err
	}

	run, runErr := rt.Execute(ctx, application.Task{
		Task:        opts.task,
		Observation: json.RawMessage(opts.observation),
		Step:        opts.step,
	})
	if run == nil {
		return runErr
	}
	if err := a.printRun(run, opts.jsonOutput); err != nil {
		return err
	}
	if runErr != nil {
		return errors.Join(ErrRunFailed, runErr)
	}
	return nil
}

// printRun reports a finished run on stdout.
func (a *App) printRun(run *agent.Run, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	_, _ = fmt.Fprintf(a.stdout, "Run %s\n", run.ID)
	_, _ = fmt.Fprintf(a.stdout, "  Phase: %s\n", run.Phase)
	_, _ = fmt.Fprintf(a.stdout, "  Steps: %d (attempt %d)\n", run.Iterations, run.Attempt)
	_, _ = fmt.Fprintf(a.stdout, "  Actions: %d executed, %d failed\n", run.ActionsExecuted, run.ActionsFailed)
	if d := run.Duration(); d > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Duration: %s\n", d.Round(time.Millisecond))
	}
	switch run.Phase {
	case agent.PhaseCompleted:
		_, _ = fmt.Fprintf(a.stdout, "  Reason: %s\n", run.Reason)
		_, _ = fmt.Fprintf(a.stdout, "  Outcome: %s\n", run.Outcome)
	case agent.PhaseFailed:
		_, _ = fmt.Fprintf(a.stdout, "  Error: %s\n", run.Error)
		if run.Retryable {
			_, _ = fmt.Fprintf(a.stdout, "  Retryable: true\n")
		}
	}
	return nil
}
