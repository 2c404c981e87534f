package amd64

import (
	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/builder"
)

// calleeSavedGP is the ordered x86-64 callee-saved general-purpose
// register set this package's register allocator pools draw from once
// caller-saved registers are exhausted (spec §4.7 policies). Win64 and
// SysV share the same physical set; they differ only in shadow space and
// which registers are argument registers.
var calleeSavedGP = []asm.Register{
	GP(RBX, 64), GP(R12, 64), GP(R13, 64), GP(R14, 64), GP(R15, 64),
}

// EmitPrologue emits the canonical x86-64 prologue described in spec
// §4.8: push the callee-saved GPRs the body actually clobbered (per fd),
// `mov rbp, rsp`, then reserve the local stack area — plus, on Win64, the
// 32-byte shadow space above it. Grounded on the teacher's
// isa/amd64/machine_pro_epi_logue.go SetupPrologue shape (update RBP,
// then reserve clobbered-register saves and spill slots), generalized
// from its "panic: TODO" placeholders into real emission.
func (a *Assembler) EmitPrologue(fd *builder.FrameDescriptor) error {
	for _, r := range fd.PreservedRegsUsed {
		if err := a.PushReg(r); err != nil {
			return err
		}
	}
	if err := a.MovRegReg(GP(RBP, 64), GP(RSP, 64)); err != nil {
		return err
	}

	total := fd.LocalSize + fd.ShadowSpaceBytes
	if total > 0 {
		if err := a.AluImmToReg(AluSub, GP(RSP, 64), int64(total)); err != nil {
			return err
		}
	}
	return nil
}

// EmitEpilogue emits the matching epilogue: deallocate the local area,
// restore rsp from rbp, pop callee-saved registers in reverse save order,
// and `ret`.
func (a *Assembler) EmitEpilogue(fd *builder.FrameDescriptor) error {
	if err := a.MovRegReg(GP(RSP, 64), GP(RBP, 64)); err != nil {
		return err
	}
	for i := len(fd.PreservedRegsUsed) - 1; i >= 0; i-- {
		if err := a.PopReg(fd.PreservedRegsUsed[i]); err != nil {
			return err
		}
	}
	a.Ret()
	return nil
}
