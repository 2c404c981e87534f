package amd64

import (
	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/regalloc"
)

// callerSavedGP excludes RAX (return value), RSP (stack pointer, never in
// any pool), and RBP (frame pointer while FramePointerEnabled). Win64 and
// SysV reserve a different subset as argument registers, but both draw
// from this same physical set. The frame emitter emits no argument-landing
// moves, and this pool does not exclude the registers that carry incoming
// arguments.
var callerSavedGP = []asm.Register{
	GP(RCX, 64), GP(RDX, 64), GP(RSI, 64), GP(RDI, 64),
	GP(R8, 64), GP(R9, 64), GP(R10, 64), GP(R11, 64),
}

var callerSavedVec = []asm.Register{
	Vec(XMM0, 128), Vec(XMM1, 128), Vec(XMM2, 128), Vec(XMM3, 128),
	Vec(XMM4, 128), Vec(XMM5, 128),
}

var calleeSavedVec = []asm.Register{
	Vec(XMM6, 128), Vec(XMM7, 128), Vec(XMM8, 128), Vec(XMM9, 128),
	Vec(XMM10, 128), Vec(XMM11, 128), Vec(XMM12, 128), Vec(XMM13, 128),
	Vec(XMM14, 128), Vec(XMM15, 128),
}

// DefaultPools returns the x86-64 physical-register pools the allocator
// draws from, reserving RSP/RBP/RAX-as-accumulator-only the way spec
// §4.7's policies require: "Physical registers reserved by the calling
// convention ... are excluded from the pool."
func DefaultPools() regalloc.Pools {
	return regalloc.Pools{
		asm.RegisterClassGP:     regalloc.NewPool(callerSavedGP, calleeSavedGP),
		asm.RegisterClassVector: regalloc.NewPool(callerSavedVec, calleeSavedVec),
	}
}
