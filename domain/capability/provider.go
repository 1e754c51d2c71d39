// Package capability defines the host capabilities a guest may invoke and
// the error and handle types shared by every provider.
package capability

import "context"

// Filesystem is the sandboxed filesystem capability.
type Filesystem interface {
	OpenWorkspace() (DirHandle, error)
	OpenDir(parent DirHandle, path string) (DirHandle, error)
	EnsureDir(parent DirHandle, path string) (DirHandle, error)
	RemoveDir(parent DirHandle, path string, recursive bool) error
	RemoveFile(parent DirHandle, path string) error
	Rename(parent DirHandle, from, to string) error
	ListDir(dir DirHandle) ([]DirEntry, error)
	// Metadata describes path relative to dir, or dir itself when path is nil.
	Metadata(dir DirHandle, path *string) (EntryMetadata, error)
	OpenFile(parent DirHandle, path string, opts OpenOptions) (FileHandle, error)
	CloseDir(dir DirHandle) error

	Read(file FileHandle, maxBytes uint64) ([]byte, error)
	ReadToString(file FileHandle, maxBytes uint64) (string, error)
	Write(file FileHandle, data []byte) (uint64, error)
	WriteString(file FileHandle, contents string, newline bool) (uint64, error)
	SetLength(file FileHandle, length uint64) error
	Flush(file FileHandle) error
	CloseFile(file FileHandle) error

	DirPath(dir DirHandle) (string, error)
	FilePath(file FileHandle) (string, error)
}

// Process is the allow-listed process capability.
type Process interface {
	Spawn(ctx context.Context, command string, opts SpawnOptions) (ProcessHandle, error)
	ReadStdout(proc ProcessHandle, maxBytes uint32) (StreamRead, error)
	ReadStderr(proc ProcessHandle, maxBytes uint32) (StreamRead, error)
	Wait(proc ProcessHandle) (ExitStatus, error)
	WriteStdin(proc ProcessHandle, chunk []byte, eof bool) (uint32, error)
	Signal(proc ProcessHandle, signal string) error
	Close(proc ProcessHandle) error
}

// Browser is the browser automation capability.
type Browser interface {
	OpenSession(ctx context.Context, opts SessionOptions) (SessionHandle, error)
	CloseSession(session SessionHandle) error
	Goto(ctx context.Context, session SessionHandle, url string, timeoutMs *uint64) (PageState, error)
	DescribePage(ctx context.Context, session SessionHandle, includeHTML bool) (PageState, error)
	Screenshot(ctx context.Context, session SessionHandle, kind ScreenshotKind) (Screenshot, error)
	Eval(ctx context.Context, session SessionHandle, expression string) ([]byte, error)
	Find(ctx context.Context, session SessionHandle, sel Selector, timeoutMs *uint64) (ElementHandle, error)
	QueryAll(ctx context.Context, session SessionHandle, sel Selector) ([]ElementHandle, error)
	Click(ctx context.Context, element ElementHandle) error
	TypeText(ctx context.Context, element ElementHandle, text string, submit bool) error
	Clear(ctx context.Context, element ElementHandle) error
	Attribute(ctx context.Context, element ElementHandle, name string) (*string, error)
	InnerText(ctx context.Context, element ElementHandle) (string, error)
	HTML(ctx context.Context, element ElementHandle) (string, error)
}

// Input is the keyboard and pointer capability.
type Input interface {
	KeySequence(text string) error
	SendKeyChord(chord KeyChord) error
	MouseMove(motion PointerMove) error
	MouseClick(button MouseButton, holdMs *uint64) error
	MouseScroll(delta ScrollDelta) error
}

// LLM is the language model capability.
type LLM interface {
	Complete(ctx context.Context, messages []Message, opts LLMOptions) (Completion, error)
	CallTools(ctx context.Context, messages []Message, tools []ToolSchema, opts LLMOptions) (ToolResponse, error)
}

// Policy is the policy introspection capability.
type Policy interface {
	Describe() (PolicySnapshot, error)
	ClaimBudget(kind string, units uint64) (BudgetSnapshot, error)
	RequestCapability(req GrantRequest) (GrantResponse, error)
	LogEvent(event AuditEvent) error
}

// Set groups the providers available to one guest instantiation.
type Set struct {
	FS      Filesystem
	Proc    Process
	Browser Browser
	Input   Input
	LLM     LLM
	Policy  Policy
}
