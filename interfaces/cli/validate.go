package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	infraconfig "github.com/felixgeelhaar/osagent/infrastructure/config"
)

type validateOptions struct {
	configPath string
	strict     bool
	showSchema bool
}

func (a *App) newValidateCmd() *cobra.Command {
	opts := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a host configuration file",
		Long: `Validate a host configuration file for correctness.

This command checks:
  - File format (YAML, JSON or JSONC)
  - Field types and constraints
  - Storage and telemetry settings
  - The workspace root, which must be an existing directory
  - Environment variable references (in strict mode)

Examples:
  # Validate a configuration file
  hostd validate -c hostd.yaml

  # Strict validation (fail on missing env vars)
  hostd validate -c hostd.yaml --strict

  # Show the JSON schema for configuration
  hostd validate --schema`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.showSchema {
				return a.showConfigSchema()
			}
			return a.validateConfig(opts)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to configuration file")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Enable strict validation (fail on missing env vars)")
	cmd.Flags().BoolVar(&opts.showSchema, "schema", false, "Show JSON schema for configuration")

	return cmd
}

func (a *App) validateConfig(opts *validateOptions) error {
	if opts.configPath == "" {
		return fmt.Errorf("configuration file path is required (-c flag)")
	}

	base, err := loadConfig(opts.configPath, opts.strict)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	cfg, err := infraconfig.NewBuilder(base).Build()
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	_, _ = fmt.Fprintf(a.stdout, "✓ Configuration is valid\n")
	_, _ = fmt.Fprintf(a.stdout, "  Workspace: %s\n", cfg.WorkspaceRoot)
	_, _ = fmt.Fprintf(a.stdout, "  Component: %s\n", cfg.Guest.Component)

	_, _ = fmt.Fprintf(a.stdout, "\nConfiguration summary:\n")
	_, _ = fmt.Fprintf(a.stdout, "  Max steps: %d\n", cfg.MaxSteps)
	_, _ = fmt.Fprintf(a.stdout, "  Max handles: %d\n", cfg.MaxHandles)
	_, _ = fmt.Fprintf(a.stdout, "  Attempts: %d\n", cfg.Restart.MaxAttempts)

	if len(cfg.AllowedProcCommands) > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Allowed commands: %d\n", len(cfg.AllowedProcCommands))
		for _, c := range cfg.AllowedProcCommands {
			_, _ = fmt.Fprintf(a.stdout, "    - %s\n", c)
		}
	}
	if cfg.Limits.ActionsPerSecond > 0 {
		_, _ = fmt.Fprintf(a.stdout, "  Rate limiting: enabled (rate=%d, burst=%d)\n",
			cfg.Limits.ActionsPerSecond, cfg.Limits.Burst)
	}
	if cfg.Browser != nil {
		_, _ = fmt.Fprintf(a.stdout, "  Browser: %s\n", cfg.Browser.WebDriverURL)
	}
	_, _ = fmt.Fprintf(a.stdout, "  Storage: runs=%s audit=%s\n", cfg.Storage.Runs.Driver, cfg.Storage.Audit.Driver)

	return nil
}

func (a *App) showConfigSchema() error {
	schemaJSON, err := infraconfig.SchemaJSON()
	if err != nil {
		return fmt.Errorf("failed to generate schema: %w", err)
	}

	_, _ = fmt.Fprintln(a.stdout, schemaJSON)
	return nil
}
