// Package hostcall decodes guest host calls and routes them to the
// capability providers.
//
// A call is {"op": name, "args": {...}}. Handles travel as plain unsigned
// integers and byte payloads as base64 strings.
package hostcall

import (
	"bytes"
	"context"
	"encoding/json"
	"sort"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

// Request is a single host call issued by the guest.
type Request struct {
	Op   string          `json:"op"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response is the envelope written back to the guest.
type Response struct {
	OK    json.RawMessage   `json:"ok,omitempty"`
	Error *capability.Error `json:"error,omitempty"`
}

type handlerFunc func(ctx context.Context, set capability.Set, args json.RawMessage) (any, error)

// Dispatcher routes host calls to a capability set.
type Dispatcher struct {
	set      capability.Set
	handlers map[string]handlerFunc
}

// New creates a dispatcher over set.
func New(set capability.Set) *Dispatcher {
	d := &Dispatcher{set: set, handlers: make(map[string]handlerFunc)}
	registerFilesystem(d)
	registerProcess(d)
	registerBrowser(d)
	registerInput(d)
	registerLLM(d)
	registerPolicy(d)
	return d
}

func (d *Dispatcher) register(op string, h handlerFunc) {
	d.handlers[op] = h
}

// Ops returns the sorted list of supported operations.
func (d *Dispatcher) Ops() []string {
	ops := make([]string, 0, len(d.handlers))
	for op := range d.handlers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// Call executes op and returns its JSON encoded result.
func (d *Dispatcher) Call(ctx context.Context, op string, args json.RawMessage) (json.RawMessage, error) {
	h, ok := d.handlers[op]
	if !ok {
		return nil, capability.InvalidArgument("unknown host call")
	}
	out, err := h(ctx, d.set, args)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, capability.Internal("encode %s result: %v", op, err)
	}
	return data, nil
}

// Handle decodes a raw request and always produces a response envelope.
func (d *Dispatcher) Handle(ctx context.Context, raw []byte) []byte {
	var req Request
	var resp Response
	if err := json.Unmarshal(raw, &req); err != nil {
		resp.Error = capability.InvalidArgument("malformed host call: %v", err)
	} else if out, err := d.Call(ctx, req.Op, req.Args); err != nil {
		resp.Error = capability.FromIO(req.Op, err)
	} else {
		resp.OK = out
	}
	data, _ := json.Marshal(resp)
	return data
}

// decode unmarshals args into T, rejecting unknown fields. Absent args
// decode to the zero value.
func decode[T any](args json.RawMessage) (T, error) {
	var v T
	if len(bytes.TrimSpace(args)) == 0 || string(args) == "null" {
		return v, nil
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return v, capability.InvalidArgument("invalid arguments: %v", err)
	}
	return v, nil
}

// op adapts a typed handler to the dispatcher table.
func op[A any, R any](fn func(ctx context.Context, set capability.Set, args A) (R, error)) handlerFunc {
	return func(ctx context.Context, set capability.Set, raw json.RawMessage) (any, error) {
		args, err := decode[A](raw)
		if err != nil {
			return nil, err
		}
		return fn(ctx, set, args)
	}
}

// empty is the result of operations that return nothing.
type empty struct{}

type written struct {
	Written uint64 `json:"written"`
}
