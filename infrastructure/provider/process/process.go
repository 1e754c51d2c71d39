// Package process implements the allow-listed process capability.
//
// Commands run to completion inside Spawn. The returned handle refers to
// the finished process and its fully captured output, which the guest
// drains with bounded reads.
package process

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"syscall"
	"time"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
	"github.com/felixgeelhaar/osagent/infrastructure/resource"
	"github.com/felixgeelhaar/osagent/infrastructure/security/sandbox"
)

// Policy decides whether a program may be spawned.
type Policy interface {
	IsProcAllowed(program string) bool
}

// Provider runs allow-listed commands inside the workspace root.
type Provider struct {
	root   string
	policy Policy
	table  *resource.Table
}

// New creates a process provider.
func New(root string, policy Policy, table *resource.Table) *Provider {
	return &Provider{root: root, policy: policy, table: table}
}

var _ capability.Process = (*Provider)(nil)

// Spawn runs command to completion and returns a handle to its captured
// output.
func (p *Provider) Spawn(ctx context.Context, command string, opts capability.SpawnOptions) (capability.ProcessHandle, error) {
	if !p.policy.IsProcAllowed(command) {
		logging.Warn().Add(logging.Command(command)).Msg("process spawn denied")
		return 0, capability.Denied("command `%s` is not allowed", command)
	}
	if err := checkStdio(opts); err != nil {
		return 0, err
	}

	dir := p.root
	if opts.WorkingDir != "" {
		resolved, err := sandbox.Resolve(p.root, p.root, opts.WorkingDir)
		if err != nil {
			return 0, err
		}
		dir = resolved
	}

	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, command, opts.Args...)
	cmd.Dir = dir
	cmd.Env = make([]string, 0, len(opts.Env))
	for _, v := range opts.Env {
		cmd.Env = append(cmd.Env, v.Key+"="+v.Value)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	status, err := exitStatus(ctx, err)
	if errors.Is(err, exec.ErrNotFound) {
		return 0, capability.NotFound("command `%s` was not found", command)
	}
	if err != nil {
		return 0, capability.FromIO("proc.spawn", err)
	}

	h, err := p.table.Insert(&resource.Process{
		Command: command,
		Stdout:  stdout.Bytes(),
		Stderr:  stderr.Bytes(),
		Status:  status,
	})
	return capability.ProcessHandle(h), err
}

func checkStdio(opts capability.SpawnOptions) error {
	if opts.Stdin != "" && opts.Stdin != capability.StdioNull {
		return capability.InvalidArgument("stdin must be null for now")
	}
	for _, mode := range []capability.StdioMode{opts.Stdout, opts.Stderr} {
		if mode != "" && mode != capability.StdioPipe {
			return capability.InvalidArgument("stdout/stderr must be pipe")
		}
	}
	return nil
}

// exitStatus converts the result of Run. A non-zero exit or a kill is a
// status, not an error; failures to start are returned.
func exitStatus(ctx context.Context, err error) (capability.ExitStatus, error) {
	var status capability.ExitStatus
	if err == nil {
		code := 0
		status.Code = &code
		return status, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return status, err
	}

	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		sig := int(ws.Signal())
		status.Signal = &sig
	} else {
		code := exitErr.ExitCode()
		status.Code = &code
	}
	status.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	return status, nil
}

// ReadStdout drains up to maxBytes of captured stdout.
func (p *Provider) ReadStdout(proc capability.ProcessHandle, maxBytes uint32) (capability.StreamRead, error) {
	entry, err := p.table.Process(proc)
	if err != nil {
		return capability.StreamRead{}, err
	}
	return entry.ReadStdout(maxBytes), nil
}

// ReadStderr drains up to maxBytes of captured stderr.
func (p *Provider) ReadStderr(proc capability.ProcessHandle, maxBytes uint32) (capability.StreamRead, error) {
	entry, err := p.table.Process(proc)
	if err != nil {
		return capability.StreamRead{}, err
	}
	return entry.ReadStderr(maxBytes), nil
}

// Wait returns the exit status recorded at spawn.
func (p *Provider) Wait(proc capability.ProcessHandle) (capability.ExitStatus, error) {
	entry, err := p.table.Process(proc)
	if err != nil {
		return capability.ExitStatus{}, err
	}
	return entry.Status, nil
}

// WriteStdin is denied; stdin is always null.
func (p *Provider) WriteStdin(capability.ProcessHandle, []byte, bool) (uint32, error) {
	return 0, capability.Denied("stdin streaming is not supported")
}

// Signal is denied; processes have already exited.
func (p *Provider) Signal(capability.ProcessHandle, string) error {
	return capability.Denied("signals are not supported")
}

// Close releases the captured buffers.
func (p *Provider) Close(proc capability.ProcessHandle) error {
	if _, err := p.table.Process(proc); err != nil {
		return err
	}
	_, err := p.table.Delete(capability.Handle(proc))
	return err
}
