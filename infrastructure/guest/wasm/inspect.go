package wasm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// Function describes an imported or exported function.
type Function struct {
	Module  string   `json:"module,omitempty"`
	Name    string   `json:"name"`
	Params  []string `json:"params"`
	Results []string `json:"results"`
}

// Signature renders the function type in text format notation.
func (f Function) Signature() string {
	return fmt.Sprintf("(%s) -> (%s)", strings.Join(f.Params, ", "), strings.Join(f.Results, ", "))
}

// Report is the outcome of inspecting a component.
type Report struct {
	Component string     `json:"component"`
	Digest    string     `json:"digest"`
	Size      int        `json:"size_bytes"`
	Imports   []Function `json:"imports"`
	Exports   []Function `json:"exports"`
	Memories  []string   `json:"memories"`
	Problems  []string   `json:"problems,omitempty"`
}

// Compatible reports whether the component implements the guest ABI.
func (r Report) Compatible() bool {
	return len(r.Problems) == 0
}

// Inspect compiles c without instantiating it and checks the guest ABI.
func (l *Loader) Inspect(ctx context.Context, c *Component) (Report, error) {
	rt := l.newRuntime(ctx)
	defer rt.Close(ctx)

	compiled, err := rt.CompileModule(ctx, c.binary)
	if err != nil {
		return Report{}, fmt.Errorf("%w: %v", ErrCompileFailed, err)
	}

	report := Report{
		Component: c.Name,
		Digest:    c.Digest,
		Size:      c.Size(),
		Problems:  checkABI(compiled),
	}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		fn := describe(def)
		fn.Module, fn.Name = module, name
		report.Imports = append(report.Imports, fn)
	}
	for name, def := range compiled.ExportedFunctions() {
		fn := describe(def)
		fn.Name = name
		report.Exports = append(report.Exports, fn)
	}
	for name := range compiled.ExportedMemories() {
		report.Memories = append(report.Memories, name)
	}

	sort.Slice(report.Imports, func(a, b int) bool {
		if report.Imports[a].Module != report.Imports[b].Module {
			return report.Imports[a].Module < report.Imports[b].Module
		}
		return report.Imports[a].Name < report.Imports[b].Name
	})
	sort.Slice(report.Exports, func(a, b int) bool { return report.Exports[a].Name < report.Exports[b].Name })
	sort.Strings(report.Memories)
	return report, nil
}

func describe(def api.FunctionDefinition) Function {
	fn := Function{Params: []string{}, Results: []string{}}
	for _, t := range def.ParamTypes() {
		fn.Params = append(fn.Params, api.ValueTypeName(t))
	}
	for _, t := range def.ResultTypes() {
		fn.Results = append(fn.Results, api.ValueTypeName(t))
	}
	return fn
}
