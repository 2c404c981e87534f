package arm64

import (
	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/regalloc"
)

// callerSavedGP is x9-x15 (temporaries) plus x0-x7 (argument/result
// registers, reusable once their incoming value has been moved to a
// virtual register's home). x8 (indirect-result), x16-x18 (platform
// reserved), x19-x28 (callee-saved), x29 (FP), x30 (LR), and x31 (SP/XZR)
// are excluded per spec §4.7's reserved-register policy.
var callerSavedGP = []asm.Register{
	GP(0, 64), GP(1, 64), GP(2, 64), GP(3, 64), GP(4, 64), GP(5, 64), GP(6, 64), GP(7, 64),
	GP(9, 64), GP(10, 64), GP(11, 64), GP(12, 64), GP(13, 64), GP(14, 64), GP(15, 64),
}

var callerSavedVec = []asm.Register{
	Vec(0, 128), Vec(1, 128), Vec(2, 128), Vec(3, 128),
	Vec(4, 128), Vec(5, 128), Vec(6, 128), Vec(7, 128),
}

// DefaultPools returns the AArch64 physical-register pools the allocator
// draws from; calleeSavedGP (x19-x28) is defined in frame.go and reused
// here as the callee-saved tier.
func DefaultPools() regalloc.Pools {
	return regalloc.Pools{
		asm.RegisterClassGP:     regalloc.NewPool(callerSavedGP, calleeSavedGP),
		asm.RegisterClassVector: regalloc.NewPool(callerSavedVec, nil),
	}
}
