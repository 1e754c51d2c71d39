// Package wasm hosts the planning component on wazero.
//
// Each instantiation gets its own runtime with WASI preview1 (no preopens,
// env or args) and the osagent host module. Compilation is shared through
// a cache owned by the Loader.
package wasm

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
	"github.com/zeebo/blake3"
)

// Errors returned by the loader.
var (
	ErrComponentNotFound = errors.New("component not found")
	ErrCompileFailed     = errors.New("failed to compile component")
	ErrInstantiate       = errors.New("failed to instantiate component")
	ErrABI               = errors.New("component does not implement the guest ABI")
)

// Config bounds guest execution.
type Config struct {
	// MemoryLimitPages caps linear memory in 64KiB pages. Zero keeps the
	// wazero default.
	MemoryLimitPages uint32

	// StepTimeout bounds a single step call. Zero disables the bound.
	StepTimeout time.Duration
}

// Component is a loaded guest binary.
type Component struct {
	Name   string
	Digest string
	binary []byte
}

// NewComponent wraps an in-memory binary.
func NewComponent(name string, binary []byte) *Component {
	sum := blake3.Sum256(binary)
	return &Component{
		Name:   name,
		Digest: hex.EncodeToString(sum[:]),
		binary: binary,
	}
}

// Size returns the binary size in bytes.
func (c *Component) Size() int {
	return len(c.binary)
}

// Loader compiles and instantiates components.
type Loader struct {
	config Config
	cache  wazero.CompilationCache
}

// NewLoader creates a loader with a fresh compilation cache.
func NewLoader(cfg Config) *Loader {
	return &Loader{
		config: cfg,
		cache:  wazero.NewCompilationCache(),
	}
}

// Load reads a component from disk.
func (l *Loader) Load(path string) (*Component, error) {
	binary, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrComponentNotFound, path)
		}
		return nil, fmt.Errorf("failed to read component %s: %w", path, err)
	}
	return NewComponent(path, binary), nil
}

func (l *Loader) newRuntime(ctx context.Context) wazero.Runtime {
	cfg := wazero.NewRuntimeConfig().
		WithCloseOnContextDone(true).
		WithCompilationCache(l.cache)
	if l.config.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(l.config.MemoryLimitPages)
	}
	return wazero.NewRuntimeWithConfig(ctx, cfg)
}

// Instantiate creates an isolated guest instance wired to calls.
func (l *Loader) Instantiate(ctx context.Context, c *Component, calls HostCalls, opts ...InstanceOption) (*Instance, error) {
	o := instanceOptions{sink: logSink}
	for _, opt := range opts {
		opt(&o)
	}

	rt := l.newRuntime(ctx)
	inst := &Instance{
		runtime:     rt,
		calls:       calls,
		sink:        o.sink,
		stepTimeout: l.config.StepTimeout,
	}

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, rt); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("%w: wasi: %v", ErrInstantiate, err)
	}
	if err := inst.instantiateHostModule(ctx); err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("%w: host module: %v", ErrInstantiate, err)
	}

	compiled, err := rt.CompileModule(ctx, c.binary)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrCompileFailed, err)
	}
	if problems := checkABI(compiled); len(problems) > 0 {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("%w: %s", ErrABI, problems[0])
	}

	modCfg := wazero.NewModuleConfig().
		WithName("agent-core").
		WithStdout(newLogWriter("stdout", o.sink)).
		WithStderr(newLogWriter("stderr", o.sink)).
		WithStartFunctions("_initialize")
	mod, err := rt.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = rt.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrInstantiate, err)
	}

	inst.module = mod
	inst.malloc = mod.ExportedFunction(ExportMalloc)
	inst.step = mod.ExportedFunction(ExportStep)
	inst.free = mod.ExportedFunction(ExportFree)
	return inst, nil
}

// Close releases the compilation cache.
func (l *Loader) Close(ctx context.Context) error {
	return l.cache.Close(ctx)
}
