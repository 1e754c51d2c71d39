package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/osagent/application"
	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/domain/ledger"
	"github.com/felixgeelhaar/osagent/domain/run"
	"github.com/felixgeelhaar/osagent/infrastructure/storage"
)

type runsOptions struct {
	configPath string
	outputJSON bool
	phases     []string
	task       string
	limit      int
}

func (a *App) newRunsCmd() *cobra.Command {
	opts := &runsOptions{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Query run history and audit ledgers",
		Long: `Read past runs from the run store and their audit ledgers from the audit
store configured in the host configuration. The memory drivers keep nothing
between invocations, so configure sqlite and badger storage to use these
commands.

Examples:
  hostd runs list -c hostd.yaml --phase failed
  hostd runs show -c hostd.yaml 7f9c...
  hostd runs audit -c hostd.yaml 7f9c... --json`,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "Path to host configuration file")
	cmd.PersistentFlags().BoolVar(&opts.outputJSON, "json", false, "Output as JSON")

	list := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withInspection(cmd.Context(), opts, func(svc *application.InspectionService) error {
				return a.listRuns(cmd.Context(), svc, opts)
			})
		},
	}
	list.Flags().StringSliceVar(&opts.phases, "phase", nil, "Only show runs in these phases")
	list.Flags().StringVar(&opts.task, "task", "", "Only show runs whose task contains this text")
	list.Flags().IntVar(&opts.limit, "limit", 20, "Maximum number of runs (0 for all)")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withInspection(cmd.Context(), opts, func(svc *application.InspectionService) error {
				r, err := svc.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printRun(r, opts.outputJSON)
			})
		},
	}

	audit := &cobra.Command{
		Use:   "audit <run-id>",
		Short: "Print the audit ledger of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withInspection(cmd.Context(), opts, func(svc *application.InspectionService) error {
				tl, err := svc.Timeline(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return a.printTimeline(tl, opts.outputJSON)
			})
		},
	}

	cmd.AddCommand(list, show, audit)
	return cmd
}

// withInspection opens the configured stores for the duration of fn.
func (a *App) withInspection(_ context.Context, opts *runsOptions, fn func(*application.InspectionService) error) error {
	cfg, err := loadConfig(opts.configPath, false)
	if err != nil {
		return err
	}
	a.initLogging(cfg)

	stores, err := storage.Open(cfg.Storage)
	if err != nil {
		return err
	}
	defer func() { _ = stores.Close() }()

	return fn(application.NewInspectionService(nil, stores.Runs, stores.Ledgers))
}

func (a *App) listRuns(ctx context.Context, svc *application.InspectionService, opts *runsOptions) error {
	filter := run.ListFilter{
		TaskPattern: opts.task,
		Limit:       opts.limit,
		OrderBy:     run.OrderByStartTime,
		Descending:  true,
	}
	for _, p := range opts.phases {
		phase := agent.Phase(p)
		if !phase.IsValid() {
			return fmt.Errorf("unknown phase: %s", p)
		}
		filter.Phases = append(filter.Phases, phase)
	}

	runs, err := svc.ListRuns(ctx, filter)
	if err != nil {
		return err
	}

	if opts.outputJSON {
		if runs == nil {
			runs = []*agent.Run{}
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(a.stdout, "No runs recorded.")
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPHASE\tSTEPS\tACTIONS\tSTARTED\tTASK")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d/%d\t%s\t%s\n",
			r.ID, r.Phase, r.Iterations, r.ActionsExecuted-r.ActionsFailed, r.ActionsExecuted,
			r.StartTime.Format(time.RFC3339), r.Task)
	}
	return w.Flush()
}

func (a *App) printTimeline(tl *application.Timeline, jsonOutput bool) error {
	if jsonOutput {
		entries := tl.Entries()
		if entries == nil {
			entries = []ledger.Entry{}
		}
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	for _, e := range tl.Entries() {
		_, _ = fmt.Fprintf(a.stdout, "%4d  %s  step=%d  %-17s %s\n",
			e.Seq, e.Timestamp.Format(time.RFC3339Nano), e.Step, e.Type, e.Details)
	}

	calls := tl.ActionCalls()
	_, _ = fmt.Fprintf(a.stdout, "\n%d action(s), %d transition(s), %s\n",
		len(calls), len(tl.Transitions()), tl.Duration().Round(time.Millisecond))
	for _, c := range calls {
		status := "ok"
		if !c.Success {
			status = "error: " + c.Error
		}
		tag := ""
		if c.AuditTag != "" {
			tag = " [" + c.AuditTag + "]"
		}
		_, _ = fmt.Fprintf(a.stdout, "  step %d %s%s %s (%s)\n", c.Step, c.Capability, tag, status, c.Duration.Round(time.Microsecond))
	}
	return nil
}
