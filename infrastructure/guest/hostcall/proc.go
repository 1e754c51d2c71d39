package hostcall

import (
	"context"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

type spawnArgs struct {
	Command string                  `json:"command"`
	Options capability.SpawnOptions `json:"options"`
}

type processArgs struct {
	Process capability.ProcessHandle `json:"process"`
}

type processReadArgs struct {
	Process  capability.ProcessHandle `json:"process"`
	MaxBytes uint32                   `json:"max_bytes"`
}

type writeStdinArgs struct {
	Process capability.ProcessHandle `json:"process"`
	Data    []byte                   `json:"data"`
	EOF     bool                     `json:"eof"`
}

type signalArgs struct {
	Process capability.ProcessHandle `json:"process"`
	Signal  string                   `json:"signal"`
}

func registerProcess(d *Dispatcher) {
	d.register("proc.spawn", op(func(ctx context.Context, s capability.Set, a spawnArgs) (capability.ProcessHandle, error) {
		return s.Proc.Spawn(ctx, a.Command, a.Options)
	}))
	d.register("proc.process.read-stdout", op(func(_ context.Context, s capability.Set, a processReadArgs) (capability.StreamRead, error) {
		return s.Proc.ReadStdout(a.Process, a.MaxBytes)
	}))
	d.register("proc.process.read-stderr", op(func(_ context.Context, s capability.Set, a processReadArgs) (capability.StreamRead, error) {
		return s.Proc.ReadStderr(a.Process, a.MaxBytes)
	}))
	d.register("proc.process.wait", op(func(_ context.Context, s capability.Set, a processArgs) (capability.ExitStatus, error) {
		return s.Proc.Wait(a.Process)
	}))
	d.register("proc.process.write-stdin", op(func(_ context.Context, s capability.Set, a writeStdinArgs) (written, error) {
		n, err := s.Proc.WriteStdin(a.Process, a.Data, a.EOF)
		return written{Written: uint64(n)}, err
	}))
	d.register("proc.process.signal", op(func(_ context.Context, s capability.Set, a signalArgs) (empty, error) {
		return empty{}, s.Proc.Signal(a.Process, a.Signal)
	}))
	d.register("proc.process.close", op(func(_ context.Context, s capability.Set, a processArgs) (empty, error) {
		return empty{}, s.Proc.Close(a.Process)
	}))
}
