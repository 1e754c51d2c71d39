package capability

import "fmt"

// Handle is an opaque reference into a resource table. From the low bits up
// it packs a 24-bit slot index, a 24-bit slot generation and the 16-bit tag
// of the issuing table.
type Handle uint64

const (
	// MaxIndex is the largest slot index a handle can carry.
	MaxIndex = 1<<24 - 1
	// MaxGeneration is the largest slot generation a handle can carry.
	MaxGeneration = 1<<24 - 1
)

// NewHandle packs a table tag, slot index and generation.
func NewHandle(tag uint16, index, generation uint32) Handle {
	return Handle(uint64(tag)<<48 | uint64(generation&MaxGeneration)<<24 | uint64(index&MaxIndex))
}

// Index returns the slot index.
func (h Handle) Index() uint32 { return uint32(h) & MaxIndex }

// Generation returns the slot generation.
func (h Handle) Generation() uint32 { return uint32(h>>24) & MaxGeneration }

// Tag returns the tag of the table that issued h.
func (h Handle) Tag() uint16 { return uint16(h >> 48) }

func (h Handle) String() string {
	return fmt.Sprintf("%d@%d/%d", h.Index(), h.Generation(), h.Tag())
}

// DirHandle refers to an opened directory.
type DirHandle Handle

// FileHandle refers to an opened file.
type FileHandle Handle

// ProcessHandle refers to a finished child process.
type ProcessHandle Handle
