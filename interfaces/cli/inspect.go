package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/osagent/application"
	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/infrastructure/guest/wasm"
)

// ErrIncompatible is returned when a component fails the guest ABI check.
var ErrIncompatible = errors.New("component is not compatible with the host")

type inspectOptions struct {
	component  string
	outputJSON bool
}

func (a *App) newInspectCmd() *cobra.Command {
	opts := &inspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "Inspect a planner component",
		Long: `Compile a component without instantiating it, list its imports and exports,
and check it against the guest ABI: exports memory, malloc and step, and
imports only from osagent and wasi_snapshot_preview1.

Examples:
  hostd inspect --component ./agent_core.wasm
  hostd inspect --component ./agent_core.wasm --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.inspectComponent(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.component, "component", domainconfig.DefaultComponent, "Path to the planner component")
	cmd.Flags().BoolVar(&opts.outputJSON, "json", false, "Output as JSON")

	return cmd
}

func (a *App) inspectComponent(ctx context.Context, opts *inspectOptions) error {
	loader := wasm.NewLoader(wasm.Config{})
	defer func() { _ = loader.Close(context.WithoutCancel(ctx)) }()

	report, err := application.NewInspectionService(loader, nil, nil).InspectComponent(ctx, opts.component)
	if err != nil {
		return err
	}

	if opts.outputJSON {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else {
		a.printReport(report)
	}

	if !report.Compatible() {
		return ErrIncompatible
	}
	return nil
}

func (a *App) printReport(r wasm.Report) {
	_, _ = fmt.Fprintf(a.stdout, "Component: %s\n", r.Component)
	_, _ = fmt.Fprintf(a.stdout, "  Digest: %s\n", r.Digest)
	_, _ = fmt.Fprintf(a.stdout, "  Size: %d bytes\n", r.Size)

	_, _ = fmt.Fprintf(a.stdout, "\nImports (%d):\n", len(r.Imports))
	for _, f := range r.Imports {
		_, _ = fmt.Fprintf(a.stdout, "  %s.%s %s\n", f.Module, f.Name, f.Signature())
	}
	_, _ = fmt.Fprintf(a.stdout, "\nExports (%d):\n", len(r.Exports))
	for _, f := range r.Exports {
		_, _ = fmt.Fprintf(a.stdout, "  %s %s\n", f.Name, f.Signature())
	}
	if len(r.Memories) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "\nMemories:\n")
		for _, m := range r.Memories {
			_, _ = fmt.Fprintf(a.stdout, "  %s\n", m)
		}
	}

	if r.Compatible() {
		_, _ = fmt.Fprintf(a.stdout, "\n✓ Guest ABI satisfied\n")
		return
	}
	_, _ = fmt.Fprintf(a.stdout, "\n✗ Guest ABI problems:\n")
	for _, p := range r.Problems {
		_, _ = fmt.Fprintf(a.stdout, "  - %s\n", p)
	}
}
