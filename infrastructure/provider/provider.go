// Package provider assembles the capability set handed to a guest.
package provider

import (
	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/domain/config"
	"github.com/felixgeelhaar/osagent/infrastructure/provider/denied"
	"github.com/felixgeelhaar/osagent/infrastructure/provider/filesystem"
	"github.com/felixgeelhaar/osagent/infrastructure/provider/process"
	"github.com/felixgeelhaar/osagent/infrastructure/resource"
)

// NewSet builds the providers for one instantiation. The filesystem and
// process providers share table; every other family is denied.
// cfg.WorkspaceRoot must already be canonical.
func NewSet(cfg *config.HostConfig, table *resource.Table) capability.Set {
	browser := denied.Browser{}
	if cfg.Browser == nil {
		browser.Message = denied.BrowserDisabledMessage
	}
	return capability.Set{
		FS:      filesystem.New(cfg.WorkspaceRoot, table),
		Proc:    process.New(cfg.WorkspaceRoot, cfg, table),
		Browser: browser,
		Input:   denied.Input{},
		LLM:     denied.LLM{},
		Policy:  denied.Policy{},
	}
}
