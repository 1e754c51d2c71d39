package wasm

import (
	"encoding/json"
	"fmt"
	"slices"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/felixgeelhaar/osagent/domain/agent"
)

// Guest ABI names.
const (
	HostModule = "osagent"

	ImportCall = "call"
	ImportLog  = "log"

	ExportMemory = "memory"
	ExportMalloc = "malloc"
	ExportStep   = "step"
	ExportFree   = "free"
)

// stepRequest is written into guest memory before each step.
type stepRequest struct {
	Task        string            `json:"task"`
	Observation agent.Observation `json:"observation"`
}

// stepEnvelope is the guest's reply; exactly one side is set.
type stepEnvelope struct {
	OK  *agent.StepResponse `json:"ok,omitempty"`
	Err *agent.AgentError   `json:"err,omitempty"`
}

func decodeEnvelope(data []byte) (agent.StepResponse, error) {
	var env stepEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return agent.StepResponse{}, fmt.Errorf("%w: %v", agent.ErrMalformedResponse, err)
	}
	switch {
	case env.OK != nil && env.Err != nil:
		return agent.StepResponse{}, fmt.Errorf("%w: both ok and err set", agent.ErrMalformedResponse)
	case env.Err != nil:
		return agent.StepResponse{}, env.Err
	case env.OK == nil:
		return agent.StepResponse{}, fmt.Errorf("%w: neither ok nor err set", agent.ErrMalformedResponse)
	}
	if err := env.OK.Validate(); err != nil {
		return agent.StepResponse{}, err
	}
	return *env.OK, nil
}

func pack(ptr, length uint32) uint64 {
	return uint64(ptr)<<32 | uint64(length)
}

func unpack(v uint64) (ptr, length uint32) {
	return uint32(v >> 32), uint32(v)
}

type signature struct {
	params  []api.ValueType
	results []api.ValueType
}

var (
	i32 = api.ValueTypeI32
	i64 = api.ValueTypeI64

	requiredExports = map[string]signature{
		ExportMalloc: {params: []api.ValueType{i32}, results: []api.ValueType{i32}},
		ExportStep:   {params: []api.ValueType{i32, i32}, results: []api.ValueType{i64}},
	}
	optionalExports = map[string]signature{
		ExportFree: {params: []api.ValueType{i32, i32}},
	}
)

func (s signature) matches(def api.FunctionDefinition) bool {
	return slices.Equal(def.ParamTypes(), s.params) && slices.Equal(def.ResultTypes(), s.results)
}

// checkABI lists every way compiled deviates from the guest ABI.
func checkABI(compiled wazero.CompiledModule) []string {
	var problems []string

	if _, ok := compiled.ExportedMemories()[ExportMemory]; !ok {
		problems = append(problems, "missing export `memory`")
	}

	exports := compiled.ExportedFunctions()
	for _, name := range []string{ExportMalloc, ExportStep} {
		def, ok := exports[name]
		if !ok {
			problems = append(problems, fmt.Sprintf("missing export `%s`", name))
			continue
		}
		if !requiredExports[name].matches(def) {
			problems = append(problems, fmt.Sprintf("export `%s` has the wrong signature", name))
		}
	}
	if def, ok := exports[ExportFree]; ok && !optionalExports[ExportFree].matches(def) {
		problems = append(problems, fmt.Sprintf("export `%s` has the wrong signature", ExportFree))
	}

	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		switch module {
		case HostModule:
			if name != ImportCall && name != ImportLog {
				problems = append(problems, fmt.Sprintf("unknown host import `%s.%s`", module, name))
			}
		case wasi_snapshot_preview1.ModuleName:
		default:
			problems = append(problems, fmt.Sprintf("import from unsupported module `%s`", module))
		}
	}
	return problems
}
