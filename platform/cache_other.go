//go:build !arm64

package platform

// invalidateInstructionCache is a no-op on every architecture other than
// AArch64 (spec §4.9: "x86-64 never").
func invalidateInstructionCache(b []byte) {}
