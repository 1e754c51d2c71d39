// Package resource provides the handle table that owns every OS resource
// opened on behalf of a guest.
package resource

import (
	"bytes"
	"errors"
	"os"
	"sync/atomic"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

// DefaultCapacity is the maximum number of live handles.
const DefaultCapacity = 1024

var (
	errInvalidHandle = capability.InvalidArgument("invalid handle")
	errTableFull     = capability.Limit("too many open capability handles")
	errHasChildren   = capability.Conflict("resource has live children")
)

// Entry is a resource owned by the table.
type Entry interface {
	kind() string
}

// Dir is an opened directory.
type Dir struct {
	Path string
}

// File is an opened file.
type File struct {
	Path string
	File *os.File
}

// Process is a finished child process with its captured output.
type Process struct {
	Command   string
	Stdout    []byte
	Stderr    []byte
	stdoutPos int
	stderrPos int
	Status    capability.ExitStatus
}

func (*Dir) kind() string     { return "dir" }
func (*File) kind() string    { return "file" }
func (*Process) kind() string { return "process" }

// ReadStdout drains up to max bytes of stdout from the cursor.
func (p *Process) ReadStdout(max uint32) capability.StreamRead {
	return drain(p.Stdout, &p.stdoutPos, max)
}

// ReadStderr drains up to max bytes of stderr from the cursor.
func (p *Process) ReadStderr(max uint32) capability.StreamRead {
	return drain(p.Stderr, &p.stderrPos, max)
}

func drain(data []byte, pos *int, max uint32) capability.StreamRead {
	remaining := len(data) - *pos
	take := min(remaining, int(max))
	chunk := bytes.Clone(data[*pos : *pos+take])
	if chunk == nil {
		chunk = []byte{}
	}
	*pos += take
	return capability.StreamRead{Data: chunk, EOF: *pos >= len(data)}
}

type slot struct {
	generation uint32
	entry      Entry
	parent     capability.Handle
	hasParent  bool
	children   int
}

// tableTags hands every table its own tag so handles do not resolve across
// tables. Tag 0 is never issued, which keeps the zero handle invalid.
var tableTags atomic.Uint32

func nextTag() uint16 {
	for {
		if tag := uint16(tableTags.Add(1)); tag != 0 {
			return tag
		}
	}
}

// Table maps handles to live resources. A handle carries the generation of
// its slot so a handle to a deleted entry is never valid again, even after
// the slot is reused. A slot whose generation is exhausted is retired. A
// handle also carries the tag of its table and is rejected by any other
// table.
//
// Table is not safe for concurrent use; it belongs to one guest
// instantiation.
type Table struct {
	tag      uint16
	slots    []slot
	free     []uint32
	live     int
	capacity int
}

// Option configures a Table.
type Option func(*Table)

// WithCapacity sets the maximum number of live handles.
func WithCapacity(n int) Option {
	return func(t *Table) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// NewTable creates an empty table.
func NewTable(opts ...Option) *Table {
	t := &Table{tag: nextTag(), capacity: DefaultCapacity}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	return t.live
}

// Insert stores a root entry.
func (t *Table) Insert(e Entry) (capability.Handle, error) {
	return t.insert(e, 0, false)
}

// InsertChild stores an entry that depends on parent. The parent cannot be
// deleted while the child is live.
func (t *Table) InsertChild(parent capability.Handle, e Entry) (capability.Handle, error) {
	if _, err := t.lookup(parent); err != nil {
		return 0, err
	}
	return t.insert(e, parent, true)
}

func (t *Table) insert(e Entry, parent capability.Handle, hasParent bool) (capability.Handle, error) {
	if t.live >= t.capacity {
		return 0, errTableFull
	}

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		if len(t.slots) > capability.MaxIndex {
			return 0, errTableFull
		}
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, slot{})
	}

	s := &t.slots[idx]
	s.generation++
	s.entry = e
	s.parent = parent
	s.hasParent = hasParent
	s.children = 0
	t.live++

	if hasParent {
		t.slots[parent.Index()].children++
	}
	return capability.NewHandle(t.tag, idx, s.generation), nil
}

func (t *Table) lookup(h capability.Handle) (*slot, error) {
	idx := h.Index()
	if h.Tag() != t.tag || int(idx) >= len(t.slots) {
		return nil, errInvalidHandle
	}
	s := &t.slots[idx]
	if s.entry == nil || s.generation != h.Generation() {
		return nil, errInvalidHandle
	}
	return s, nil
}

// Get returns the entry behind h.
func (t *Table) Get(h capability.Handle) (Entry, error) {
	s, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	return s.entry, nil
}

// Dir returns the directory behind h.
func (t *Table) Dir(h capability.DirHandle) (*Dir, error) {
	return get[*Dir](t, capability.Handle(h))
}

// File returns the file behind h.
func (t *Table) File(h capability.FileHandle) (*File, error) {
	return get[*File](t, capability.Handle(h))
}

// Process returns the process behind h.
func (t *Table) Process(h capability.ProcessHandle) (*Process, error) {
	return get[*Process](t, capability.Handle(h))
}

func get[E Entry](t *Table, h capability.Handle) (E, error) {
	var zero E
	entry, err := t.Get(h)
	if err != nil {
		return zero, err
	}
	typed, ok := entry.(E)
	if !ok {
		return zero, errInvalidHandle
	}
	return typed, nil
}

// Delete removes h and returns its entry. Open files are not closed; the
// caller owns the returned entry.
func (t *Table) Delete(h capability.Handle) (Entry, error) {
	s, err := t.lookup(h)
	if err != nil {
		return nil, err
	}
	if s.children > 0 {
		return nil, errHasChildren
	}

	entry := s.entry
	if s.hasParent {
		if p := &t.slots[s.parent.Index()]; p.generation == s.parent.Generation() && p.children > 0 {
			p.children--
		}
	}
	s.entry = nil
	s.hasParent = false
	t.release(h.Index())
	t.live--
	return entry, nil
}

func (t *Table) release(idx uint32) {
	if t.slots[idx].generation < capability.MaxGeneration {
		t.free = append(t.free, idx)
	}
}

// Close releases every live entry regardless of parent links and closes
// open files. The table is empty afterwards.
func (t *Table) Close() error {
	var errs []error
	for i := range t.slots {
		s := &t.slots[i]
		if s.entry == nil {
			continue
		}
		if f, ok := s.entry.(*File); ok && f.File != nil {
			if err := f.File.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		s.entry = nil
		s.children = 0
		s.hasParent = false
		t.release(uint32(i))
	}
	t.live = 0
	return errors.Join(errs...)
}
