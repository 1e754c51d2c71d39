package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	domainconfig "github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/infrastructure/security/sandbox"
)

// Builder layers command line overrides onto a loaded configuration and
// produces the final, canonicalized HostConfig.
type Builder struct {
	config domainconfig.HostConfig
}

// NewBuilder starts from base, or from the defaults when base is nil.
func NewBuilder(base *domainconfig.HostConfig) *Builder {
	if base == nil {
		return &Builder{config: domainconfig.Default()}
	}
	cfg := *base
	cfg.AllowedProcCommands = append([]string(nil), base.AllowedProcCommands...)
	return &Builder{config: cfg}
}

// WithWorkspace overrides the workspace root.
func (b *Builder) WithWorkspace(root string) *Builder {
	if root != "" {
		b.config.WorkspaceRoot = root
	}
	return b
}

// WithComponent overrides the guest component path.
func (b *Builder) WithComponent(path string) *Builder {
	if path != "" {
		b.config.Guest.Component = path
	}
	return b
}

// AllowProc appends commands to the process allow-list.
func (b *Builder) AllowProc(commands ...string) *Builder {
	for _, cmd := range commands {
		if cmd != "" {
			b.config.AllowedProcCommands = appendUnique(b.config.AllowedProcCommands, cmd)
		}
	}
	return b
}

// WithMaxSteps overrides the step bound when n is positive.
func (b *Builder) WithMaxSteps(n int) *Builder {
	if n > 0 {
		b.config.MaxSteps = n
	}
	return b
}

// WithRestarts overrides the total attempt budget when n is positive.
func (b *Builder) WithRestarts(n int) *Builder {
	if n > 0 {
		b.config.Restart.MaxAttempts = n
	}
	return b
}

// WithStepTimeout overrides the guest step timeout when d is positive.
func (b *Builder) WithStepTimeout(d time.Duration) *Builder {
	if d > 0 {
		b.config.Guest.StepTimeout = domainconfig.Duration(d)
	}
	return b
}

// WithLogging overrides the log level and format when set.
func (b *Builder) WithLogging(level, format string) *Builder {
	if level != "" {
		b.config.Logging.Level = level
	}
	if format != "" {
		b.config.Logging.Format = format
	}
	return b
}

// Build applies defaults, validates and canonicalizes the workspace root,
// which must be an existing directory.
func (b *Builder) Build() (*domainconfig.HostConfig, error) {
	cfg := b.config
	cfg.ApplyDefaults()

	if errs := domainconfig.NewValidator().Validate(&cfg); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %v", domainconfig.ErrValidationFailed, errs)
	}

	root, err := sandbox.CanonicalRoot(cfg.WorkspaceRoot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainconfig.ErrInvalidWorkspace, err)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domainconfig.ErrInvalidWorkspace, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", domainconfig.ErrInvalidWorkspace, root)
	}
	cfg.WorkspaceRoot = root

	return &cfg, nil
}

func appendUnique(list []string, s string) []string {
	if slices.Contains(list, s) {
		return list
	}
	return append(list, s)
}
