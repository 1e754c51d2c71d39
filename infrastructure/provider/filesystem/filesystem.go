// Package filesystem implements the sandboxed filesystem capability.
package filesystem

import (
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/felixgeelhaar/osagent/domain/capability"
	"github.com/felixgeelhaar/osagent/infrastructure/resource"
	"github.com/felixgeelhaar/osagent/infrastructure/security/sandbox"
)

// Provider serves filesystem operations confined to a workspace root.
// Every handle it returns lives in the shared resource table.
type Provider struct {
	root  string
	table *resource.Table
}

// New creates a provider for the canonical workspace root.
func New(root string, table *resource.Table) *Provider {
	return &Provider{root: root, table: table}
}

var _ capability.Filesystem = (*Provider)(nil)

// OpenWorkspace returns a handle to the workspace root.
func (p *Provider) OpenWorkspace() (capability.DirHandle, error) {
	h, err := p.table.Insert(&resource.Dir{Path: p.root})
	return capability.DirHandle(h), err
}

func (p *Provider) resolve(parent capability.DirHandle, path string) (string, error) {
	dir, err := p.table.Dir(parent)
	if err != nil {
		return "", err
	}
	return sandbox.Resolve(p.root, dir.Path, path)
}

// OpenDir opens an existing directory beneath parent.
func (p *Provider) OpenDir(parent capability.DirHandle, path string) (capability.DirHandle, error) {
	target, err := p.resolve(parent, path)
	if err != nil {
		return 0, err
	}
	info, err := os.Stat(target)
	if err != nil {
		return 0, capability.FromIO("fs.open-dir", err)
	}
	if !info.IsDir() {
		return 0, capability.InvalidArgument("path is not a directory")
	}
	h, err := p.table.InsertChild(capability.Handle(parent), &resource.Dir{Path: target})
	return capability.DirHandle(h), err
}

// EnsureDir creates a directory and its ancestors beneath parent.
func (p *Provider) EnsureDir(parent capability.DirHandle, path string) (capability.DirHandle, error) {
	target, err := p.resolve(parent, path)
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(target, 0o755); err != nil {
		return 0, capability.FromIO("fs.ensure-dir", err)
	}
	h, err := p.table.InsertChild(capability.Handle(parent), &resource.Dir{Path: target})
	return capability.DirHandle(h), err
}

// RemoveDir removes a directory beneath parent.
func (p *Provider) RemoveDir(parent capability.DirHandle, path string, recursive bool) error {
	target, err := p.resolve(parent, path)
	if err != nil {
		return err
	}
	if recursive {
		// RemoveAll succeeds on missing paths; keep not-found visible.
		if _, err := os.Lstat(target); err != nil {
			return capability.FromIO("fs.remove-dir", err)
		}
		err = os.RemoveAll(target)
	} else {
		var info fs.FileInfo
		if info, err = os.Lstat(target); err == nil && !info.IsDir() {
			return capability.InvalidArgument("path is not a directory")
		}
		if err == nil {
			err = os.Remove(target)
		}
	}
	if err != nil {
		return capability.FromIO("fs.remove-dir", err)
	}
	return nil
}

// RemoveFile removes a file beneath parent.
func (p *Provider) RemoveFile(parent capability.DirHandle, path string) error {
	target, err := p.resolve(parent, path)
	if err != nil {
		return err
	}
	info, err := os.Lstat(target)
	if err != nil {
		return capability.FromIO("fs.remove-file", err)
	}
	if info.IsDir() {
		return capability.InvalidArgument("path is a directory")
	}
	if err := os.Remove(target); err != nil {
		return capability.FromIO("fs.remove-file", err)
	}
	return nil
}

// Rename moves from to to, both resolved beneath parent.
func (p *Provider) Rename(parent capability.DirHandle, from, to string) error {
	src, err := p.resolve(parent, from)
	if err != nil {
		return err
	}
	dst, err := p.resolve(parent, to)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err != nil {
		return capability.FromIO("fs.rename", err)
	}
	return nil
}

// ListDir lists dir in filesystem order.
func (p *Provider) ListDir(dir capability.DirHandle) ([]capability.DirEntry, error) {
	d, err := p.table.Dir(dir)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(d.Path)
	if err != nil {
		return nil, capability.FromIO("fs.list-dir", err)
	}
	defer f.Close()

	names, err := f.Readdirnames(-1)
	if err != nil {
		return nil, capability.FromIO("fs.list-dir", err)
	}

	entries := make([]capability.DirEntry, 0, len(names))
	for _, name := range names {
		info, err := os.Lstat(filepath.Join(d.Path, name))
		if err != nil {
			return nil, capability.FromIO("fs.list-dir", err)
		}
		entries = append(entries, toEntry(name, info))
	}
	return entries, nil
}

// Metadata describes path beneath dir, or dir itself when path is nil.
func (p *Provider) Metadata(dir capability.DirHandle, path *string) (capability.EntryMetadata, error) {
	d, err := p.table.Dir(dir)
	if err != nil {
		return capability.EntryMetadata{}, err
	}
	target := d.Path
	if path != nil {
		if target, err = sandbox.Resolve(p.root, d.Path, *path); err != nil {
			return capability.EntryMetadata{}, err
		}
	}

	info, err := os.Stat(target)
	if err != nil {
		return capability.EntryMetadata{}, capability.FromIO("fs.metadata", err)
	}

	name := filepath.Base(target)
	if name == string(filepath.Separator) || name == "." {
		name = "."
	}
	return capability.EntryMetadata{
		DirEntry: toEntry(name, info),
		Readonly: info.Mode().Perm()&0o222 == 0,
	}, nil
}

// OpenFile opens a file beneath parent. Append implies write.
func (p *Provider) OpenFile(parent capability.DirHandle, path string, opts capability.OpenOptions) (capability.FileHandle, error) {
	target, err := p.resolve(parent, path)
	if err != nil {
		return 0, err
	}

	f, err := os.OpenFile(target, openFlags(opts), 0o644)
	if err != nil {
		return 0, capability.FromIO("fs.open-file", err)
	}
	h, err := p.table.InsertChild(capability.Handle(parent), &resource.File{Path: target, File: f})
	if err != nil {
		_ = f.Close()
		return 0, err
	}
	return capability.FileHandle(h), nil
}

func openFlags(opts capability.OpenOptions) int {
	write := opts.Write || opts.Append
	var flags int
	switch {
	case opts.Read && write:
		flags = os.O_RDWR
	case write:
		flags = os.O_WRONLY
	default:
		flags = os.O_RDONLY
	}
	if opts.Append {
		flags |= os.O_APPEND
	}
	if opts.Create {
		flags |= os.O_CREATE
	}
	if opts.Truncate {
		flags |= os.O_TRUNC
	}
	return flags
}

// CloseDir releases a directory handle.
func (p *Provider) CloseDir(dir capability.DirHandle) error {
	if _, err := p.table.Dir(dir); err != nil {
		return err
	}
	_, err := p.table.Delete(capability.Handle(dir))
	return err
}

// Read reads at most maxBytes from the current offset.
func (p *Provider) Read(file capability.FileHandle, maxBytes uint64) ([]byte, error) {
	return p.read(file, maxBytes, "fs.file.read")
}

// ReadToString reads at most maxBytes and requires valid UTF-8.
func (p *Provider) ReadToString(file capability.FileHandle, maxBytes uint64) (string, error) {
	data, err := p.read(file, maxBytes, "fs.file.read-to-string")
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", capability.InvalidArgument("file is not valid UTF-8")
	}
	return string(data), nil
}

func (p *Provider) read(file capability.FileHandle, maxBytes uint64, op string) ([]byte, error) {
	f, err := p.table.File(file)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(io.LimitReader(f.File, int64(min(maxBytes, uint64(1<<62)))))
	if err != nil {
		return nil, capability.FromIO(op, err)
	}
	return data, nil
}

// Write writes data and returns the number of bytes written.
func (p *Provider) Write(file capability.FileHandle, data []byte) (uint64, error) {
	return p.write(file, data, "fs.file.write")
}

// WriteString writes contents, optionally followed by a newline.
func (p *Provider) WriteString(file capability.FileHandle, contents string, newline bool) (uint64, error) {
	data := []byte(contents)
	if newline {
		data = append(data, '\n')
	}
	return p.write(file, data, "fs.file.write-string")
}

func (p *Provider) write(file capability.FileHandle, data []byte, op string) (uint64, error) {
	f, err := p.table.File(file)
	if err != nil {
		return 0, err
	}
	n, err := f.File.Write(data)
	if err != nil {
		return uint64(n), capability.FromIO(op, err)
	}
	return uint64(n), nil
}

// SetLength truncates or extends the file.
func (p *Provider) SetLength(file capability.FileHandle, length uint64) error {
	f, err := p.table.File(file)
	if err != nil {
		return err
	}
	if err := f.File.Truncate(int64(min(length, uint64(1<<62)))); err != nil {
		return capability.FromIO("fs.file.set-len", err)
	}
	return nil
}

// Flush commits written data to storage.
func (p *Provider) Flush(file capability.FileHandle) error {
	f, err := p.table.File(file)
	if err != nil {
		return err
	}
	if err := f.File.Sync(); err != nil {
		return capability.FromIO("fs.file.flush", err)
	}
	return nil
}

// CloseFile releases a file handle and closes the descriptor.
func (p *Provider) CloseFile(file capability.FileHandle) error {
	if _, err := p.table.File(file); err != nil {
		return err
	}
	entry, err := p.table.Delete(capability.Handle(file))
	if err != nil {
		return err
	}
	if err := entry.(*resource.File).File.Close(); err != nil {
		return capability.FromIO("fs.file.close", err)
	}
	return nil
}

// DirPath returns the absolute path behind dir.
func (p *Provider) DirPath(dir capability.DirHandle) (string, error) {
	d, err := p.table.Dir(dir)
	if err != nil {
		return "", err
	}
	return d.Path, nil
}

// FilePath returns the absolute path behind file.
func (p *Provider) FilePath(file capability.FileHandle) (string, error) {
	f, err := p.table.File(file)
	if err != nil {
		return "", err
	}
	return f.Path, nil
}

func toEntry(name string, info fs.FileInfo) capability.DirEntry {
	size := uint64(info.Size())
	entry := capability.DirEntry{
		Name:      name,
		Kind:      entryKind(info.Mode()),
		SizeBytes: &size,
	}
	if mod := info.ModTime(); !mod.IsZero() && mod.UnixMilli() >= 0 {
		ms := uint64(mod.UnixMilli())
		entry.ModifiedMs = &ms
	}
	return entry
}

func entryKind(mode fs.FileMode) capability.EntryKind {
	switch {
	case mode.IsRegular():
		return capability.EntryFile
	case mode.IsDir():
		return capability.EntryDirectory
	case mode&fs.ModeSymlink != 0:
		return capability.EntrySymlink
	default:
		return capability.EntryOther
	}
}
