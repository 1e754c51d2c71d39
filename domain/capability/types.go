package capability

import "encoding/json"

// EntryKind classifies a directory entry.
type EntryKind string

const (
	EntryFile      EntryKind = "file"
	EntryDirectory EntryKind = "directory"
	EntrySymlink   EntryKind = "symlink"
	EntryOther     EntryKind = "other"
)

// DirEntry describes one entry of a directory listing.
type DirEntry struct {
	Name       string    `json:"name"`
	Kind       EntryKind `json:"kind"`
	SizeBytes  *uint64   `json:"size_bytes"`
	ModifiedMs *uint64   `json:"modified_ms"`
}

// EntryMetadata is the result of a metadata query.
type EntryMetadata struct {
	DirEntry
	Readonly bool `json:"readonly"`
}

// OpenOptions controls how a file is opened. Append implies write.
type OpenOptions struct {
	Read     bool `json:"read"`
	Write    bool `json:"write"`
	Append   bool `json:"append"`
	Create   bool `json:"create"`
	Truncate bool `json:"truncate"`
}

// StdioMode selects how a child stream is wired.
type StdioMode string

const (
	StdioNull    StdioMode = "null"
	StdioPipe    StdioMode = "pipe"
	StdioInherit StdioMode = "inherit"
)

// EnvVar is a single environment variable for a spawned process.
type EnvVar struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SpawnOptions configures process execution. Empty stdio modes take the
// only supported values: null stdin, piped stdout and stderr.
type SpawnOptions struct {
	Args       []string  `json:"argv,omitempty"`
	WorkingDir string    `json:"working_dir,omitempty"`
	Env        []EnvVar  `json:"env,omitempty"`
	Stdin      StdioMode `json:"stdin,omitempty"`
	Stdout     StdioMode `json:"stdout,omitempty"`
	Stderr     StdioMode `json:"stderr,omitempty"`
	TimeoutMs  uint64    `json:"timeout_ms,omitempty"`
}

// ExitStatus is the terminal status of a finished process.
type ExitStatus struct {
	Code     *int `json:"code"`
	Signal   *int `json:"signal"`
	TimedOut bool `json:"timed_out"`
}

// StreamRead is one chunk drained from a captured process stream.
type StreamRead struct {
	Data []byte `json:"data"`
	EOF  bool   `json:"eof"`
}

// SessionHandle refers to a browser session.
type SessionHandle Handle

// ElementHandle refers to an element located in a browser session.
type ElementHandle Handle

// SessionOptions configures a browser session.
type SessionOptions struct {
	Profile        string `json:"profile,omitempty"`
	Headless       bool   `json:"headless"`
	AllowDownloads bool   `json:"allow_downloads"`
}

// SelectorKind selects the element lookup strategy.
type SelectorKind string

const (
	SelectorCSS   SelectorKind = "css"
	SelectorXPath SelectorKind = "xpath"
	SelectorText  SelectorKind = "text"
)

// Selector locates an element.
type Selector struct {
	Kind  SelectorKind `json:"kind"`
	Value string       `json:"value"`
}

// PageState describes the current browser page.
type PageState struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	HTML  string `json:"html,omitempty"`
}

// ScreenshotKind is the image encoding of a screenshot.
type ScreenshotKind string

const (
	ScreenshotPNG  ScreenshotKind = "png"
	ScreenshotJPEG ScreenshotKind = "jpeg"
)

// Screenshot is an encoded page capture.
type Screenshot struct {
	Kind ScreenshotKind `json:"kind"`
	Data []byte         `json:"data"`
}

// KeyChord is a set of keys pressed together.
type KeyChord struct {
	Keys []string `json:"keys"`
}

// PointerMove moves the pointer to absolute coordinates.
type PointerMove struct {
	X int32 `json:"x"`
	Y int32 `json:"y"`
}

// MouseButton identifies a mouse button.
type MouseButton string

// ScrollDelta is a scroll wheel movement.
type ScrollDelta struct {
	DX int32 `json:"dx"`
	DY int32 `json:"dy"`
}

// Message is a single LLM chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMOptions tunes a completion request.
type LLMOptions struct {
	Model       string  `json:"model,omitempty"`
	MaxTokens   uint32  `json:"max_tokens,omitempty"`
	Temperature float32 `json:"temperature,omitempty"`
}

// ToolSchema describes a tool offered to the model.
type ToolSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Completion is the text produced by the model.
type Completion struct {
	Content string `json:"content"`
}

// ToolCall is a tool invocation chosen by the model.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResponse is the result of a tool-calling request.
type ToolResponse struct {
	Calls []ToolCall `json:"calls"`
}

// BudgetSnapshot reports a budget after a claim.
type BudgetSnapshot struct {
	Kind      string `json:"kind"`
	Remaining uint64 `json:"remaining"`
}

// PolicySnapshot describes the capabilities granted to the guest.
type PolicySnapshot struct {
	Capabilities []string         `json:"capabilities"`
	Budgets      []BudgetSnapshot `json:"budgets"`
}

// GrantRequest asks for an additional capability.
type GrantRequest struct {
	Capability string `json:"capability"`
	Reason     string `json:"reason"`
}

// GrantResponse answers a grant request.
type GrantResponse struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason,omitempty"`
}

// AuditEvent is an event the guest asks the host to record.
type AuditEvent struct {
	Kind    string          `json:"kind"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail,omitempty"`
}
