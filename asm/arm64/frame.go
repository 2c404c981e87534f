package arm64

import (
	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/builder"
)

// calleeSavedGP is the ordered AAPCS64 callee-saved general-purpose
// register set (x19-x28); x29/x30 are saved unconditionally by the
// frame-pointer pair, not drawn from this pool.
var calleeSavedGP = []asm.Register{
	GP(19, 64), GP(20, 64), GP(21, 64), GP(22, 64), GP(23, 64),
	GP(24, 64), GP(25, 64), GP(26, 64), GP(27, 64), GP(28, 64),
}

// EmitPrologue emits the canonical AAPCS64 prologue of spec §4.8:
// `stp x29, x30, [sp, #-16]!; mov x29, sp`, then a pre-indexed `stp` pair
// for every two callee-saved registers the body clobbered (a lone trailing
// register uses a plain `str`), then `sub sp, sp, #local_size`.
func (a *Assembler) EmitPrologue(fd *builder.FrameDescriptor) error {
	fp, lr := GP(X29, 64), GP(X30, 64)
	sp := asm.Register{ID: XZRSP, SizeBits: 64, Class: asm.RegisterClassGP}
	if err := a.StpPreIndex(fp, lr, sp, -16); err != nil {
		return err
	}
	// mov x29, sp is the alias of `add x29, sp, #0`, not the register-form
	// ORR alias Mov() uses elsewhere: SP (register 31) has no encoding at
	// all as an operand to a data-processing-register instruction, so
	// Mov(fp, sp) would silently assemble `orr x29, xzr, xzr` instead.
	if err := a.AddImm(fp, sp, 0); err != nil {
		return err
	}

	regs := fd.PreservedRegsUsed
	for i := 0; i+1 < len(regs); i += 2 {
		if err := a.StpPreIndex(regs[i], regs[i+1], sp, -16); err != nil {
			return err
		}
	}
	if len(regs)%2 == 1 {
		last := regs[len(regs)-1]
		if err := a.StrImm(last, sp, 0); err != nil {
			return err
		}
	}

	if fd.LocalSize > 0 {
		if err := a.SubImm(sp, sp, int64(fd.LocalSize)); err != nil {
			return err
		}
	}
	return nil
}

// EmitEpilogue emits the matching epilogue: restore sp from the local
// area and saved registers, restore x29/x30, and `ret`.
func (a *Assembler) EmitEpilogue(fd *builder.FrameDescriptor) error {
	sp := asm.Register{ID: XZRSP, SizeBits: 64, Class: asm.RegisterClassGP}
	fp, lr := GP(X29, 64), GP(X30, 64)

	if fd.LocalSize > 0 {
		if err := a.AddImm(sp, sp, int64(fd.LocalSize)); err != nil {
			return err
		}
	}

	regs := fd.PreservedRegsUsed
	if len(regs)%2 == 1 {
		last := regs[len(regs)-1]
		if err := a.LdrImm(last, sp, 0); err != nil {
			return err
		}
	}
	for i := len(regs) - (len(regs) % 2) - 2; i >= 0; i -= 2 {
		if err := a.LdpPostIndex(regs[i], regs[i+1], sp, 16); err != nil {
			return err
		}
	}

	if err := a.LdpPostIndex(fp, lr, sp, 16); err != nil {
		return err
	}
	a.Ret()
	return nil
}
