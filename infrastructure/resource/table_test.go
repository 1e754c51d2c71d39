package resource

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

func TestTable_InsertGet(t *testing.T) {
	t.Parallel()

	table := NewTable()
	h, err := table.Insert(&Dir{Path: "/work"})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	dir, err := table.Dir(capability.DirHandle(h))
	if err != nil {
		t.Fatalf("Dir() error = %v", err)
	}
	if dir.Path != "/work" {
		t.Errorf("Dir().Path = %q, want /work", dir.Path)
	}
	if table.Len() != 1 {
		t.Errorf("Len() = %d, want 1", table.Len())
	}
}

func TestTable_WrongType(t *testing.T) {
	t.Parallel()

	table := NewTable()
	h, _ := table.Insert(&Dir{Path: "/work"})

	_, err := table.File(capability.FileHandle(h))
	if !errors.Is(err, capability.ErrInvalidArgument) {
		t.Errorf("File() error = %v, want invalid argument", err)
	}
	if err.Error() != "invalid handle" {
		t.Errorf("File() error = %q, want %q", err.Error(), "invalid handle")
	}
}

func TestTable_StaleHandle(t *testing.T) {
	t.Parallel()

	table := NewTable()
	h1, _ := table.Insert(&Dir{Path: "/a"})
	if _, err := table.Delete(h1); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	h2, _ := table.Insert(&Dir{Path: "/b"})
	if h1.Index() != h2.Index() {
		t.Fatalf("slot not reused: %v vs %v", h1, h2)
	}
	if h1 == h2 {
		t.Fatal("reused slot returned identical handle")
	}

	if _, err := table.Get(h1); !errors.Is(err, capability.ErrInvalidArgument) {
		t.Errorf("Get(stale) error = %v, want invalid argument", err)
	}
	if _, err := table.Delete(h1); !errors.Is(err, capability.ErrInvalidArgument) {
		t.Errorf("Delete(stale) error = %v, want invalid argument", err)
	}
	if _, err := table.Get(h2); err != nil {
		t.Errorf("Get(fresh) error = %v", err)
	}
}

func TestTable_UnknownHandle(t *testing.T) {
	t.Parallel()

	table := NewTable()
	for _, h := range []capability.Handle{0, capability.NewHandle(table.tag, 42, 1)} {
		if _, err := table.Get(h); !errors.Is(err, capability.ErrInvalidArgument) {
			t.Errorf("Get(%v) error = %v, want invalid argument", h, err)
		}
	}
}

func TestTable_ForeignHandle(t *testing.T) {
	t.Parallel()

	a, b := NewTable(), NewTable()
	h, _ := a.Insert(&Dir{Path: "/a"})
	if _, err := b.Insert(&Dir{Path: "/b"}); err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if _, err := b.Get(h); !errors.Is(err, capability.ErrInvalidArgument) {
		t.Errorf("Get(foreign) error = %v, want invalid argument", err)
	}
	if _, err := b.Delete(h); !errors.Is(err, capability.ErrInvalidArgument) {
		t.Errorf("Delete(foreign) error = %v, want invalid argument", err)
	}
	if b.Len() != 1 {
		t.Errorf("Len() = %d, want 1", b.Len())
	}
	if dir, err := a.Dir(capability.DirHandle(h)); err != nil || dir.Path != "/a" {
		t.Errorf("Dir(own) = %v, %v, want /a", dir, err)
	}
}

func TestTable_RetiresExhaustedSlot(t *testing.T) {
	t.Parallel()

	table := NewTable()
	h, _ := table.Insert(&Dir{})
	table.slots[h.Index()].generation = capability.MaxGeneration
	if _, err := table.Delete(capability.NewHandle(table.tag, h.Index(), capability.MaxGeneration)); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	next, _ := table.Insert(&Dir{})
	if next.Index() == h.Index() {
		t.Errorf("Insert() reused exhausted slot %d", h.Index())
	}
}

func TestTable_Capacity(t *testing.T) {
	t.Parallel()

	table := NewTable(WithCapacity(2))
	for i := 0; i < 2; i++ {
		if _, err := table.Insert(&Dir{}); err != nil {
			t.Fatalf("Insert(%d) error = %v", i, err)
		}
	}

	_, err := table.Insert(&Dir{})
	if !errors.Is(err, capability.ErrLimit) {
		t.Fatalf("Insert() error = %v, want limit", err)
	}
	if err.Error() != "too many open capability handles" {
		t.Errorf("Insert() error = %q", err.Error())
	}
}

func TestTable_Children(t *testing.T) {
	t.Parallel()

	table := NewTable()
	parent, _ := table.Insert(&Dir{Path: "/work"})
	child, err := table.InsertChild(parent, &Dir{Path: "/work/src"})
	if err != nil {
		t.Fatalf("InsertChild() error = %v", err)
	}

	_, err = table.Delete(parent)
	if !errors.Is(err, capability.ErrConflict) {
		t.Fatalf("Delete(parent) error = %v, want conflict", err)
	}
	if err.Error() != "resource has live children" {
		t.Errorf("Delete(parent) error = %q", err.Error())
	}

	if _, err := table.Delete(child); err != nil {
		t.Fatalf("Delete(child) error = %v", err)
	}
	if _, err := table.Delete(parent); err != nil {
		t.Errorf("Delete(parent) after child error = %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
}

func TestTable_InsertChildInvalidParent(t *testing.T) {
	t.Parallel()

	table := NewTable()
	_, err := table.InsertChild(capability.NewHandle(table.tag, 3, 9), &Dir{})
	if !errors.Is(err, capability.ErrInvalidArgument) {
		t.Errorf("InsertChild() error = %v, want invalid argument", err)
	}
}

func TestTable_Close(t *testing.T) {
	t.Parallel()

	f, err := os.Create(filepath.Join(t.TempDir(), "data.txt"))
	if err != nil {
		t.Fatal(err)
	}

	table := NewTable()
	parent, _ := table.Insert(&Dir{Path: "/work"})
	fh, _ := table.InsertChild(parent, &File{Path: f.Name(), File: f})

	if err := table.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if table.Len() != 0 {
		t.Errorf("Len() = %d, want 0", table.Len())
	}
	if _, err := table.Get(fh); err == nil {
		t.Error("Get() after Close() succeeded")
	}
	if _, err := f.Write([]byte("x")); err == nil {
		t.Error("file still open after Close()")
	}
}

func TestProcess_Drain(t *testing.T) {
	t.Parallel()

	p := &Process{Stdout: []byte("hello world")}

	first := p.ReadStdout(5)
	if string(first.Data) != "hello" || first.EOF {
		t.Errorf("ReadStdout(5) = (%q, %v), want (hello, false)", first.Data, first.EOF)
	}
	rest := p.ReadStdout(100)
	if string(rest.Data) != " world" || !rest.EOF {
		t.Errorf("ReadStdout(100) = (%q, %v), want ( world, true)", rest.Data, rest.EOF)
	}
	after := p.ReadStdout(100)
	if len(after.Data) != 0 || !after.EOF {
		t.Errorf("ReadStdout() past end = (%q, %v), want empty eof", after.Data, after.EOF)
	}

	empty := p.ReadStderr(10)
	if len(empty.Data) != 0 || !empty.EOF {
		t.Errorf("ReadStderr() on empty = (%q, %v), want empty eof", empty.Data, empty.EOF)
	}
}
