// Package platform implements the W^X executable-memory primitive of
// spec §4.9 and §6: allocate RW, copy the finalized code, flip to RX, and
// invalidate the instruction cache where the architecture requires it.
// Grounded on the teacher's internal/engine/wazevo/engine.go call-site
// shape (`platform.MmapCodeSegment` -> copy -> `platform.MprotectRX`) and
// internal/platform/mmap_test.go's contract, except that a zero-length
// request returns an error instead of panicking (double Munmap fails); the
// teacher's own mmap_linux.go/mmap_darwin.go/
// mmap_windows.go implementation files were filtered out of the retrieval
// pack, so the syscall plumbing below is reconstructed against
// golang.org/x/sys, the standard ecosystem library other ahead-of-time and
// JIT Go projects use for raw mmap/mprotect/VirtualAlloc access.
package platform

import "github.com/codegenlib/jitasm/asm"

// CodeSegment is an executable memory mapping owned by exactly one
// JitFunction (spec §3 "JitFunction handle" ownership). Its Bytes slice
// aliases the live mapping; writing through it after Protect(Executable)
// has flipped the page to RX is undefined behavior on platforms that
// enforce W^X strictly.
type CodeSegment struct {
	Bytes []byte
}

// Protection selects the permission state a CodeSegment is switched to.
type Protection int

const (
	ProtectionWritable Protection = iota
	ProtectionExecutable
)

// MmapCodeSegment allocates n bytes of page-aligned, anonymous,
// read-write memory. n must be > 0.
func MmapCodeSegment(n int) (*CodeSegment, error) {
	if n <= 0 {
		return nil, asm.ErrInvalidArgument
	}
	b, err := mmapRW(n)
	if err != nil {
		return nil, err
	}
	return &CodeSegment{Bytes: b}, nil
}

// Protect switches a CodeSegment's page permissions. Transitioning to
// ProtectionExecutable is the publication point of spec §5: it must not
// be observed as complete by another thread until the copy into Bytes is
// finished and, on AArch64, the instruction cache has been invalidated.
func (c *CodeSegment) Protect(to Protection) error {
	return mprotect(c.Bytes, to)
}

// InvalidateInstructionCache invalidates the I-cache for this segment's
// address range where the architecture requires it (spec §4.9: "A64
// always; x86-64 never").
func (c *CodeSegment) InvalidateInstructionCache() {
	invalidateInstructionCache(c.Bytes)
}

// Munmap releases a CodeSegment's mapping. Calling it twice on the same
// segment is an error, matching the teacher's double-Munmap contract.
func (c *CodeSegment) Munmap() error {
	if len(c.Bytes) == 0 {
		return asm.ErrInvalidArgument
	}
	err := munmap(c.Bytes)
	c.Bytes = nil
	return err
}
