package hostcall

import (
	"context"

	"github.com/felixgeelhaar/osagent/domain/capability"
)

type dirArgs struct {
	Dir capability.DirHandle `json:"dir"`
}

type dirPathArgs struct {
	Dir  capability.DirHandle `json:"dir"`
	Path string               `json:"path"`
}

type removeDirArgs struct {
	Dir       capability.DirHandle `json:"dir"`
	Path      string               `json:"path"`
	Recursive bool                 `json:"recursive"`
}

type renameArgs struct {
	Dir  capability.DirHandle `json:"dir"`
	From string               `json:"from"`
	To   string               `json:"to"`
}

type metadataArgs struct {
	Dir  capability.DirHandle `json:"dir"`
	Path *string              `json:"path,omitempty"`
}

type openFileArgs struct {
	Dir     capability.DirHandle   `json:"dir"`
	Path    string                 `json:"path"`
	Options capability.OpenOptions `json:"options"`
}

type fileArgs struct {
	File capability.FileHandle `json:"file"`
}

type fileReadArgs struct {
	File     capability.FileHandle `json:"file"`
	MaxBytes uint64                `json:"max_bytes"`
}

type fileWriteArgs struct {
	File capability.FileHandle `json:"file"`
	Data []byte                `json:"data"`
}

type fileWriteStringArgs struct {
	File     capability.FileHandle `json:"file"`
	Contents string                `json:"contents"`
	Newline  bool                  `json:"newline"`
}

type fileSetLenArgs struct {
	File   capability.FileHandle `json:"file"`
	Length uint64                `json:"length"`
}

func registerFilesystem(d *Dispatcher) {
	d.register("fs.open-workspace", op(func(_ context.Context, s capability.Set, _ empty) (capability.DirHandle, error) {
		return s.FS.OpenWorkspace()
	}))
	d.register("fs.open-dir", op(func(_ context.Context, s capability.Set, a dirPathArgs) (capability.DirHandle, error) {
		return s.FS.OpenDir(a.Dir, a.Path)
	}))
	d.register("fs.ensure-dir", op(func(_ context.Context, s capability.Set, a dirPathArgs) (capability.DirHandle, error) {
		return s.FS.EnsureDir(a.Dir, a.Path)
	}))
	d.register("fs.remove-dir", op(func(_ context.Context, s capability.Set, a removeDirArgs) (empty, error) {
		return empty{}, s.FS.RemoveDir(a.Dir, a.Path, a.Recursive)
	}))
	d.register("fs.remove-file", op(func(_ context.Context, s capability.Set, a dirPathArgs) (empty, error) {
		return empty{}, s.FS.RemoveFile(a.Dir, a.Path)
	}))
	d.register("fs.rename", op(func(_ context.Context, s capability.Set, a renameArgs) (empty, error) {
		return empty{}, s.FS.Rename(a.Dir, a.From, a.To)
	}))
	d.register("fs.list-dir", op(func(_ context.Context, s capability.Set, a dirArgs) ([]capability.DirEntry, error) {
		return s.FS.ListDir(a.Dir)
	}))
	d.register("fs.metadata", op(func(_ context.Context, s capability.Set, a metadataArgs) (capability.EntryMetadata, error) {
		return s.FS.Metadata(a.Dir, a.Path)
	}))
	d.register("fs.open-file", op(func(_ context.Context, s capability.Set, a openFileArgs) (capability.FileHandle, error) {
		return s.FS.OpenFile(a.Dir, a.Path, a.Options)
	}))
	d.register("fs.dir.close", op(func(_ context.Context, s capability.Set, a dirArgs) (empty, error) {
		return empty{}, s.FS.CloseDir(a.Dir)
	}))

	d.register("fs.file.read", op(func(_ context.Context, s capability.Set, a fileReadArgs) ([]byte, error) {
		return s.FS.Read(a.File, a.MaxBytes)
	}))
	d.register("fs.file.read-to-string", op(func(_ context.Context, s capability.Set, a fileReadArgs) (string, error) {
		return s.FS.ReadToString(a.File, a.MaxBytes)
	}))
	d.register("fs.file.write", op(func(_ context.Context, s capability.Set, a fileWriteArgs) (written, error) {
		n, err := s.FS.Write(a.File, a.Data)
		return written{Written: n}, err
	}))
	d.register("fs.file.write-string", op(func(_ context.Context, s capability.Set, a fileWriteStringArgs) (written, error) {
		n, err := s.FS.WriteString(a.File, a.Contents, a.Newline)
		return written{Written: n}, err
	}))
	d.register("fs.file.set-len", op(func(_ context.Context, s capability.Set, a fileSetLenArgs) (empty, error) {
		return empty{}, s.FS.SetLength(a.File, a.Length)
	}))
	d.register("fs.file.flush", op(func(_ context.Context, s capability.Set, a fileArgs) (empty, error) {
		return empty{}, s.FS.Flush(a.File)
	}))
	d.register("fs.file.close", op(func(_ context.Context, s capability.Set, a fileArgs) (empty, error) {
		return empty{}, s.FS.CloseFile(a.File)
	}))
}
