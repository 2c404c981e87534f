package asm

// FixupKind identifies the shape of a deferred patch recorded while a
// branch or address-of instruction targets an unbound label (spec §3).
type FixupKind int

const (
	FixupRel8 FixupKind = iota
	FixupRel32
	FixupAbs64
	FixupBranch26 // A64 B/BL, ±128 MiB
	FixupBranch19 // A64 conditional/CBZ/CBNZ, ±1 MiB
)

// Fixup is a deferred byte patch: at AtOffset, once Target is bound, the
// Assembler rewrites the displacement (or absolute address, for Abs64) in
// place. InstrEnd is the offset just past the instruction containing the
// fixup, needed to compute PC-relative displacements.
type Fixup struct {
	Kind     FixupKind
	AtOffset int
	InstrEnd int
	Target   Label
}

// AbsoluteRelocation names a location that the JIT runtime must patch with
// a concrete runtime address once code has been placed in memory (spec §6,
// "Output of finalize"). SymbolicTarget is an opaque string the embedder
// assigns meaning to (e.g. "helper.memcpy").
type AbsoluteRelocation struct {
	Offset         int
	SymbolicTarget string
}

// FinalizedCode is the immutable output of Assembler.Finalize.
type FinalizedCode struct {
	Bytes               []byte
	AbsoluteRelocations []AbsoluteRelocation
}
