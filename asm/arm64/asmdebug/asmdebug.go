// Package asmdebug implements the AArch64 counterpart of
// asm/amd64/asmdebug: every instruction this architecture encodes is
// exactly 4 bytes (spec §4.4), so the only invariant worth checking is
// that each Check call advances the cursor by a whole number of 4-byte
// words — and, for the constant-loading synthesis, that it used no more
// than 4 (one movz/movn seed plus up to three movk).
package asmdebug

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/asm/arm64"
)

// Assembler wraps arm64.Assembler, checking Len() deltas are always a
// multiple of 4 bytes and, optionally, bounded by a maximum instruction
// count for multi-instruction synthesis call sites.
type Assembler struct {
	*arm64.Assembler
}

// New wraps a fresh arm64.Assembler in the word-alignment-checking
// decorator.
func New() *Assembler {
	return &Assembler{Assembler: arm64.NewAssembler()}
}

// Check runs emit, then asserts the number of bytes appended is a
// positive multiple of 4 not exceeding maxWords*4 instructions (pass 0 for
// "exactly one instruction").
func (a *Assembler) Check(shape string, maxWords int, emit func() error) error {
	before := a.Len()
	if err := emit(); err != nil {
		return err
	}
	delta := a.Len() - before
	if delta <= 0 || delta%4 != 0 {
		return fmt.Errorf("%w: shape %q encoded to %d bytes, not a positive multiple of 4", asm.ErrInvalidInstruction, shape, delta)
	}
	if maxWords == 0 {
		maxWords = 1
	}
	if delta/4 > maxWords {
		return fmt.Errorf("%w: shape %q used %d instructions, want at most %d", asm.ErrInvalidInstruction, shape, delta/4, maxWords)
	}
	return nil
}
