package application

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/domain/middleware"
	"github.com/felixgeelhaar/osagent/infrastructure/security/sandbox"
)

const (
	// defaultReadBytes is the fs.read_file limit when max_bytes is absent.
	defaultReadBytes uint64 = 4096

	// streamChunk is the bounded read size used to drain process output.
	streamChunk uint32 = 64 * 1024
)

type actionFunc func(ctx context.Context, e *Executor, input json.RawMessage) (any, error)

// ExecutorConfig contains configuration for the executor.
type ExecutorConfig struct {
	// Root is the canonical workspace root, used for reporting paths.
	Root string
	// Capabilities are the providers of the current instantiation.
	Capabilities capability.Set
	// Middleware wraps every action. Nil means no middleware.
	Middleware middleware.Middleware
	// DefaultProfile is the browser profile used when a session names none.
	DefaultProfile string
}

// Executor turns planned actions into capability calls. Actions run in
// order and each failure stays local to its report. An Executor belongs to
// one run and is not safe for concurrent use.
type Executor struct {
	root           string
	caps           capability.Set
	handler        middleware.Handler
	defaultProfile string

	sessions map[string]capability.SessionHandle
	elements map[string]capability.ElementHandle
}

// NewExecutor creates an executor over the given providers.
func NewExecutor(cfg ExecutorConfig) *Executor {
	e := &Executor{
		root:           cfg.Root,
		caps:           cfg.Capabilities,
		defaultProfile: cfg.DefaultProfile,
		sessions:       make(map[string]capability.SessionHandle),
		elements:       make(map[string]capability.ElementHandle),
	}
	chain := cfg.Middleware
	if chain == nil {
		chain = middleware.Noop()
	}
	e.handler = chain(e.dispatch)
	return e
}

var actions = map[string]actionFunc{
	capability.ActionListDir:           bind(listDir),
	capability.ActionReadFile:          bind(readFile),
	capability.ActionSpawn:             bind(spawn),
	capability.ActionOpenSession:       bind(openSession),
	capability.ActionSessionGoto:       bind(sessionGoto),
	capability.ActionSessionDescribe:   bind(describePage),
	capability.ActionSessionFind:       bind(findElement),
	capability.ActionElementClick:      bind(clickElement),
	capability.ActionElementTypeText:   bind(typeText),
	capability.ActionElementInnerText:  bind(innerText),
	capability.ActionSessionScreenshot: bind(screenshot),
}

// Capabilities returns the sorted action capability names.
func Capabilities() []string {
	names := make([]string, 0, len(actions))
	for name := range actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Execute runs a batch and returns one report per action, in order.
func (e *Executor) Execute(ctx context.Context, runID string, step uint32, batch []capability.PlannedAction) []capability.ActionReport {
	reports := make([]capability.ActionReport, 0, len(batch))
	for i, action := range batch {
		execCtx := &middleware.ExecutionContext{
			RunID:  runID,
			Step:   step,
			Index:  i,
			Action: action,
			Input:  json.RawMessage(action.Input),
		}
		output, err := e.handler(ctx, execCtx)
		if err != nil {
			reports = append(reports, capability.Failed(action.Capability, err))
			continue
		}
		reports = append(reports, capability.Succeeded(action.Capability, output))
	}
	return reports
}

// dispatch is the innermost handler of the middleware chain.
func (e *Executor) dispatch(ctx context.Context, execCtx *middleware.ExecutionContext) (json.RawMessage, error) {
	name := execCtx.Action.Capability

	var object map[string]json.RawMessage
	if err := json.Unmarshal(execCtx.Input, &object); err != nil {
		return nil, capability.InvalidArgument("capability `%s` input is not valid JSON: %v", name, err)
	}
	if object == nil {
		return nil, capability.InvalidArgument("capability `%s` input is not valid JSON: expected an object", name)
	}

	fn, ok := actions[name]
	if !ok {
		return nil, capability.InvalidArgument("unsupported capability `%s`", name)
	}

	result, err := fn(ctx, e, execCtx.Input)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(result)
	if err != nil {
		return nil, capability.Internal("capability `%s` output could not be encoded: %v", name, err)
	}
	return out, nil
}

func bind[T any](fn func(ctx context.Context, e *Executor, in T) (any, error)) actionFunc {
	return func(ctx context.Context, e *Executor, input json.RawMessage) (any, error) {
		var in T
		if err := json.Unmarshal(input, &in); err != nil {
			return nil, capability.InvalidArgument("invalid input: %v", err)
		}
		return fn(ctx, e, in)
	}
}

type listDirInput struct {
	Path *string `json:"path"`
}

type listDirOutput struct {
	Path    string                `json:"path"`
	Entries []capability.DirEntry `json:"entries"`
}

func listDir(_ context.Context, e *Executor, in listDirInput) (any, error) {
	fs := e.caps.FS
	workspace, err := fs.OpenWorkspace()
	if err != nil {
		return nil, err
	}
	defer fs.CloseDir(workspace)

	dir := workspace
	if in.Path != nil && strings.TrimSpace(*in.Path) != "" {
		dir, err = fs.OpenDir(workspace, *in.Path)
		if err != nil {
			return nil, err
		}
		defer fs.CloseDir(dir)
	}

	entries, err := fs.ListDir(dir)
	if err != nil {
		return nil, err
	}
	if entries == nil {
		entries = []capability.DirEntry{}
	}
	path, err := fs.DirPath(dir)
	if err != nil {
		return nil, err
	}
	return listDirOutput{Path: path, Entries: entries}, nil
}

type readFileInput struct {
	Path     string  `json:"path"`
	MaxBytes *uint64 `json:"max_bytes"`
}

type readFileOutput struct {
	Path      string `json:"path"`
	Truncated bool   `json:"truncated"`
	Encoding  string `json:"encoding"`
	Contents  string `json:"contents"`
}

func readFile(_ context.Context, e *Executor, in readFileInput) (any, error) {
	if strings.TrimSpace(in.Path) == "" {
		return nil, capability.InvalidArgument("fs.read_file requires a non-empty `path`")
	}
	limit := defaultReadBytes
	if in.MaxBytes != nil {
		limit = *in.MaxBytes
	}
	if limit == math.MaxUint64 {
		limit--
	}

	fs := e.caps.FS
	workspace, err := fs.OpenWorkspace()
	if err != nil {
		return nil, err
	}
	defer fs.CloseDir(workspace)

	file, err := fs.OpenFile(workspace, in.Path, capability.OpenOptions{Read: true})
	if err != nil {
		return nil, err
	}
	defer fs.CloseFile(file)

	data, err := fs.Read(file, limit+1)
	if err != nil {
		return nil, err
	}
	truncated := uint64(len(data)) > limit
	if truncated {
		data = data[:limit]
	}
	path, err := fs.FilePath(file)
	if err != nil {
		return nil, err
	}

	out := readFileOutput{Path: path, Truncated: truncated}
	if utf8.Valid(data) {
		out.Encoding, out.Contents = "utf-8", string(data)
	} else {
		out.Encoding, out.Contents = "base64", base64.StdEncoding.EncodeToString(data)
	}
	return out, nil
}

type spawnInput struct {
	Command   string              `json:"command"`
	Args      []string            `json:"args"`
	Cwd       *string             `json:"cwd"`
	Env       []capability.EnvVar `json:"env"`
	TimeoutMs *uint64             `json:"timeout_ms"`
}

// spawnOutput reports the exit code as status. Signal and TimedOut are only
// present when the process did not exit on its own.
type spawnOutput struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	Cwd      string   `json:"cwd"`
	Status   *int     `json:"status"`
	Signal   *int     `json:"signal,omitempty"`
	TimedOut bool     `json:"timed_out,omitempty"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

func spawn(ctx context.Context, e *Executor, in spawnInput) (any, error) {
	if strings.TrimSpace(in.Command) == "" {
		return nil, capability.InvalidArgument("proc.spawn requires `command`")
	}
	if in.Args == nil {
		in.Args = []string{}
	}

	opts := capability.SpawnOptions{Args: in.Args, Env: in.Env}
	cwd := e.root
	if in.Cwd != nil && strings.TrimSpace(*in.Cwd) != "" {
		opts.WorkingDir = *in.Cwd
		resolved, err := sandbox.Resolve(e.root, e.root, *in.Cwd)
		if err != nil {
			return nil, err
		}
		cwd = resolved
	}
	if in.TimeoutMs != nil {
		opts.TimeoutMs = *in.TimeoutMs
	}

	proc := e.caps.Proc
	handle, err := proc.Spawn(ctx, in.Command, opts)
	if err != nil {
		return nil, err
	}
	defer proc.Close(handle)

	stdout, err := drain(func() (capability.StreamRead, error) { return proc.ReadStdout(handle, streamChunk) })
	if err != nil {
		return nil, err
	}
	stderr, err := drain(func() (capability.StreamRead, error) { return proc.ReadStderr(handle, streamChunk) })
	if err != nil {
		return nil, err
	}
	status, err := proc.Wait(handle)
	if err != nil {
		return nil, err
	}

	return spawnOutput{
		Command:  in.Command,
		Args:     in.Args,
		Cwd:      cwd,
		Status:   status.Code,
		Signal:   status.Signal,
		TimedOut: status.TimedOut,
		Stdout:   strings.ToValidUTF8(string(stdout), "�"),
		Stderr:   strings.ToValidUTF8(string(stderr), "�"),
	}, nil
}

func drain(read func() (capability.StreamRead, error)) ([]byte, error) {
	var buf bytes.Buffer
	for {
		chunk, err := read()
		if err != nil {
			return nil, err
		}
		buf.Write(chunk.Data)
		if chunk.EOF || len(chunk.Data) == 0 {
			return buf.Bytes(), nil
		}
	}
}

func normalizedAlias(alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", capability.InvalidArgument("alias must be non-empty")
	}
	return alias, nil
}

func (e *Executor) session(alias string) (string, capability.SessionHandle, error) {
	alias, err := normalizedAlias(alias)
	if err != nil {
		return "", 0, err
	}
	h, ok := e.sessions[alias]
	if !ok {
		return "", 0, capability.NotFound("unknown browser session `%s`", alias)
	}
	return alias, h, nil
}

func (e *Executor) element(alias string) (string, capability.ElementHandle, error) {
	alias, err := normalizedAlias(alias)
	if err != nil {
		return "", 0, err
	}
	h, ok := e.elements[alias]
	if !ok {
		return "", 0, capability.NotFound("unknown browser element `%s`", alias)
	}
	return alias, h, nil
}

type openSessionInput struct {
	Alias          string  `json:"alias"`
	Profile        *string `json:"profile"`
	Headless       *bool   `json:"headless"`
	AllowDownloads *bool   `json:"allow_downloads"`
}

func openSession(ctx context.Context, e *Executor, in openSessionInput) (any, error) {
	alias, err := normalizedAlias(in.Alias)
	if err != nil {
		return nil, err
	}
	if _, exists := e.sessions[alias]; exists {
		return nil, capability.Conflict("browser session `%s` already exists", alias)
	}

	opts := capability.SessionOptions{Profile: e.defaultProfile, Headless: true}
	if in.Profile != nil {
		opts.Profile = *in.Profile
	}
	if in.Headless != nil {
		opts.Headless = *in.Headless
	}
	if in.AllowDownloads != nil {
		opts.AllowDownloads = *in.AllowDownloads
	}

	h, err := e.caps.Browser.OpenSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	e.sessions[alias] = h
	return map[string]string{"session": alias}, nil
}

type gotoInput struct {
	Session   string  `json:"session"`
	URL       string  `json:"url"`
	TimeoutMs *uint64 `json:"timeout_ms"`
}

func sessionGoto(ctx context.Context, e *Executor, in gotoInput) (any, error) {
	alias, h, err := e.session(in.Session)
	if err != nil {
		return nil, err
	}
	page, err := e.caps.Browser.Goto(ctx, h, in.URL, in.TimeoutMs)
	if err != nil {
		return nil, err
	}
	return map[string]string{"session": alias, "url": page.URL}, nil
}

type describeInput struct {
	Session     string `json:"session"`
	IncludeHTML *bool  `json:"include_html"`
}

type describeOutput struct {
	Session string  `json:"session"`
	URL     string  `json:"url"`
	Title   string  `json:"title"`
	HTML    *string `json:"html"`
}

func describePage(ctx context.Context, e *Executor, in describeInput) (any, error) {
	alias, h, err := e.session(in.Session)
	if err != nil {
		return nil, err
	}
	includeHTML := in.IncludeHTML != nil && *in.IncludeHTML
	page, err := e.caps.Browser.DescribePage(ctx, h, includeHTML)
	if err != nil {
		return nil, err
	}
	out := describeOutput{Session: alias, URL: page.URL, Title: page.Title}
	if includeHTML {
		out.HTML = &page.HTML
	}
	return out, nil
}

type findInput struct {
	Session   string              `json:"session"`
	Selector  capability.Selector `json:"selector"`
	TimeoutMs *uint64             `json:"timeout_ms"`
	Alias     string              `json:"alias"`
}

func findElement(ctx context.Context, e *Executor, in findInput) (any, error) {
	sessionAlias, h, err := e.session(in.Session)
	if err != nil {
		return nil, err
	}
	elementAlias, err := normalizedAlias(in.Alias)
	if err != nil {
		return nil, err
	}
	if _, exists := e.elements[elementAlias]; exists {
		return nil, capability.Conflict("browser element `%s` already exists", elementAlias)
	}
	switch in.Selector.Kind {
	case capability.SelectorCSS, capability.SelectorXPath, capability.SelectorText:
	default:
		return nil, capability.InvalidArgument("unknown selector kind %q", in.Selector.Kind)
	}

	el, err := e.caps.Browser.Find(ctx, h, in.Selector, in.TimeoutMs)
	if err != nil {
		return nil, err
	}
	e.elements[elementAlias] = el
	return map[string]string{"session": sessionAlias, "element": elementAlias}, nil
}

type elementInput struct {
	Element string `json:"element"`
}

func clickElement(ctx context.Context, e *Executor, in elementInput) (any, error) {
	alias, h, err := e.element(in.Element)
	if err != nil {
		return nil, err
	}
	if err := e.caps.Browser.Click(ctx, h); err != nil {
		return nil, err
	}
	return map[string]string{"element": alias}, nil
}

type typeTextInput struct {
	Element string  `json:"element"`
	Text    *string `json:"text"`
	Submit  *bool   `json:"submit"`
}

func typeText(ctx context.Context, e *Executor, in typeTextInput) (any, error) {
	alias, h, err := e.element(in.Element)
	if err != nil {
		return nil, err
	}
	var text string
	if in.Text != nil {
		text = *in.Text
	}
	if err := e.caps.Browser.TypeText(ctx, h, text, in.Submit != nil && *in.Submit); err != nil {
		return nil, err
	}
	return map[string]string{"element": alias}, nil
}

func innerText(ctx context.Context, e *Executor, in elementInput) (any, error) {
	alias, h, err := e.element(in.Element)
	if err != nil {
		return nil, err
	}
	text, err := e.caps.Browser.InnerText(ctx, h)
	if err != nil {
		return nil, err
	}
	return map[string]string{"element": alias, "text": text}, nil
}

type screenshotInput struct {
	Session string                     `json:"session"`
	Kind    *capability.ScreenshotKind `json:"kind"`
}

func screenshot(ctx context.Context, e *Executor, in screenshotInput) (any, error) {
	alias, h, err := e.session(in.Session)
	if err != nil {
		return nil, err
	}
	kind := capability.ScreenshotPNG
	if in.Kind != nil {
		kind = *in.Kind
	}
	if kind != capability.ScreenshotPNG && kind != capability.ScreenshotJPEG {
		return nil, capability.InvalidArgument("unknown screenshot kind %q", kind)
	}
	shot, err := e.caps.Browser.Screenshot(ctx, h, kind)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"session":     alias,
		"kind":        string(shot.Kind),
		"data_base64": base64.StdEncoding.EncodeToString(shot.Data),
	}, nil
}
