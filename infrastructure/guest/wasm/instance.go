package wasm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/felixgeelhaar/osagent/domain/agent"
	"github.com/felixgeelhaar/osagent/infrastructure/logging"
)

// HostCalls serves the osagent.call import. Handle receives the raw
// request and returns the encoded response envelope.
type HostCalls interface {
	Handle(ctx context.Context, request []byte) []byte
}

// LogSink receives guest log lines and forwarded stdio.
type LogSink func(level, message string)

// InstanceOption configures an instance.
type InstanceOption func(*instanceOptions)

type instanceOptions struct {
	sink LogSink
}

// WithLogSink routes guest logs to sink instead of the default logger.
func WithLogSink(sink LogSink) InstanceOption {
	return func(o *instanceOptions) {
		if sink != nil {
			o.sink = sink
		}
	}
}

// Instance is one isolated guest. It is not safe for concurrent steps.
type Instance struct {
	runtime     wazero.Runtime
	module      api.Module
	calls       HostCalls
	sink        LogSink
	stepTimeout time.Duration

	malloc api.Function
	step   api.Function
	free   api.Function
}

var _ agent.Guest = (*Instance)(nil)

var logLevels = []string{"trace", "debug", "info", "warn", "error"}

func levelName(level uint32) string {
	if int(level) < len(logLevels) {
		return logLevels[level]
	}
	return "info"
}

func (i *Instance) instantiateHostModule(ctx context.Context) error {
	_, err := i.runtime.NewHostModuleBuilder(HostModule).
		NewFunctionBuilder().
		WithFunc(i.hostCall).
		WithParameterNames("ptr", "len").
		Export(ImportCall).
		NewFunctionBuilder().
		WithFunc(i.hostLog).
		WithParameterNames("level", "ptr", "len").
		Export(ImportLog).
		Instantiate(ctx)
	return err
}

// hostCall reads a request from guest memory, dispatches it and writes
// the response into a guest allocated buffer.
func (i *Instance) hostCall(ctx context.Context, mod api.Module, ptr, length uint32) uint64 {
	request, ok := mod.Memory().Read(ptr, length)
	if !ok {
		panic(fmt.Errorf("host call request out of bounds: %d+%d", ptr, length))
	}
	response := i.calls.Handle(ctx, bytes.Clone(request))

	out, err := i.write(ctx, mod, response)
	if err != nil {
		panic(err)
	}
	return pack(out, uint32(len(response)))
}

func (i *Instance) hostLog(_ context.Context, mod api.Module, level, ptr, length uint32) {
	msg, ok := mod.Memory().Read(ptr, length)
	if !ok {
		return
	}
	i.sink(levelName(level), string(msg))
}

// write copies data into a buffer obtained from the guest's malloc.
func (i *Instance) write(ctx context.Context, mod api.Module, data []byte) (uint32, error) {
	malloc := mod.ExportedFunction(ExportMalloc)
	if malloc == nil {
		return 0, errors.New("guest does not export malloc")
	}
	res, err := malloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("malloc(%d): %w", len(data), err)
	}
	ptr := uint32(res[0])
	if !mod.Memory().Write(ptr, data) {
		return 0, fmt.Errorf("malloc returned out of bounds buffer %d+%d", ptr, len(data))
	}
	return ptr, nil
}

// Step sends the task and observation to the guest and decodes its reply.
// A guest reported failure is returned as *agent.AgentError.
func (i *Instance) Step(ctx context.Context, task string, obs agent.Observation) (agent.StepResponse, error) {
	if i.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.stepTimeout)
		defer cancel()
	}

	request, err := json.Marshal(stepRequest{Task: task, Observation: obs})
	if err != nil {
		return agent.StepResponse{}, fmt.Errorf("encode step request: %w", err)
	}

	ptr, err := i.write(ctx, i.module, request)
	if err != nil {
		return agent.StepResponse{}, i.trap(ctx, err)
	}

	res, err := i.step.Call(ctx, uint64(ptr), uint64(len(request)))
	if err != nil {
		return agent.StepResponse{}, i.trap(ctx, err)
	}

	outPtr, outLen := unpack(res[0])
	view, ok := i.module.Memory().Read(outPtr, outLen)
	if !ok {
		return agent.StepResponse{}, fmt.Errorf("%w: response out of bounds %d+%d", agent.ErrMalformedResponse, outPtr, outLen)
	}
	response := bytes.Clone(view)

	if i.free != nil {
		if _, err := i.free.Call(ctx, uint64(outPtr), uint64(outLen)); err != nil {
			return agent.StepResponse{}, i.trap(ctx, err)
		}
	}

	return decodeEnvelope(response)
}

func (i *Instance) trap(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: step exceeded %s", agent.ErrGuestTrap, i.stepTimeout)
	}
	return fmt.Errorf("%w: %v", agent.ErrGuestTrap, err)
}

// Close tears down the module and its runtime.
func (i *Instance) Close(ctx context.Context) error {
	return i.runtime.Close(ctx)
}

// logWriter forwards guest stdio line by line.
type logWriter struct {
	stream string
	sink   LogSink
	buf    []byte
}

func newLogWriter(stream string, sink LogSink) *logWriter {
	return &logWriter{stream: stream, sink: sink}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.buf = append(w.buf, p...)
	for {
		idx := bytes.IndexByte(w.buf, '\n')
		if idx < 0 {
			break
		}
		line := strings.TrimRight(string(w.buf[:idx]), "\r")
		w.buf = w.buf[idx+1:]
		level := "debug"
		if w.stream == "stderr" {
			level = "warn"
		}
		w.sink(level, w.stream+": "+line)
	}
	return len(p), nil
}

func logSink(level, message string) {
	var event *logging.LogEvent
	switch level {
	case "trace":
		event = logging.Trace()
	case "debug":
		event = logging.Debug()
	case "warn":
		event = logging.Warn()
	case "error":
		event = logging.Error()
	default:
		event = logging.Info()
	}
	event.Add(logging.Component("guest")).Msg(message)
}
