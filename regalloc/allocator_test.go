package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/asm/amd64"
	"github.com/codegenlib/jitasm/builder"
	"github.com/codegenlib/jitasm/regalloc"
)

func TestAllocateAssignsDistinctPhysicalRegistersCallerSavedFirst(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	v0 := b.NewGPReg(64)
	v1 := b.NewGPReg(64)

	b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(v0)}, 0)
	b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(v1)}, 0)
	b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(v0), asm.RegOperand(v1)}, 0)

	pools := amd64.DefaultPools()
	result, err := regalloc.Allocate(b, pools, amd64.GP(amd64.RBP, 64))
	require.NoError(t, err)
	require.Equal(t, int32(0), result.SpillAreaBytes)
	require.Empty(t, result.ClobberedCalleeSaved)

	for _, n := range b.Nodes() {
		for _, op := range n.Operands {
			require.Equal(t, asm.OperandKindRegister, op.Kind)
			require.False(t, op.Reg.IsVirtual())
			// Caller-saved-first means neither assignment should land on a
			// callee-saved register when the caller-saved tier has room.
			require.NotEqual(t, amd64.RBX, op.Reg.ID)
		}
	}

	both := b.Nodes()[2].Operands
	require.NotEqual(t, both[0].Reg.ID, both[1].Reg.ID)
}

func TestAllocateSpillsFurthestUseWhenPoolExhausted(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())

	// 8 caller-saved + 5 callee-saved GP registers == 13 available; declare
	// one more virtual register than that to force exactly one spill.
	const n = 14
	vregs := make([]asm.Register, n)
	for i := range vregs {
		vregs[i] = b.NewGPReg(64)
	}

	// Every vreg is defined at position i and stays live until the final
	// instruction that uses them all, so all 14 intervals share one end.
	// Which vreg the furthest-use heuristic spills is not the point of
	// this test; the point is that a spill happens, the spill area is
	// non-empty, and exactly one operand of the final instruction becomes
	// a frame-base memory operand.
	for i, v := range vregs {
		b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(v)}, 0)
		_ = i
	}
	lastOperands := make([]asm.Operand, n)
	for i, v := range vregs {
		lastOperands[i] = asm.RegOperand(v)
	}
	b.Inst(asm.InstructionNone, lastOperands, 0)

	pools := amd64.DefaultPools()
	result, err := regalloc.Allocate(b, pools, amd64.GP(amd64.RBP, 64))
	require.NoError(t, err)
	require.Greater(t, result.SpillAreaBytes, int32(0))

	memOperandCount := 0
	for _, op := range b.Nodes()[n].Operands {
		if op.Kind == asm.OperandKindMemory {
			memOperandCount++
			require.Equal(t, amd64.RBP, op.Mem.Base.ID)
			require.True(t, op.Mem.HasBase)
		}
	}
	require.Equal(t, 1, memOperandCount)
}

func TestAllocateRewritesMemoryOperandBaseAndIndex(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	base := b.NewGPReg(64)
	index := b.NewGPReg(64)

	mem := asm.Memory{Base: base, HasBase: true, Index: index, HasIndex: true, Scale: asm.Scale4, SizeBits: 64}
	b.Inst(asm.InstructionNone, []asm.Operand{asm.MemOperand(mem)}, 0)
	// Keep both registers live across a second instruction so neither is
	// a trivially-dead single-use interval.
	b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(base), asm.RegOperand(index)}, 0)

	pools := amd64.DefaultPools()
	_, err := regalloc.Allocate(b, pools, amd64.GP(amd64.RBP, 64))
	require.NoError(t, err)

	rewritten := b.Nodes()[0].Operands[0]
	require.Equal(t, asm.OperandKindMemory, rewritten.Kind)
	require.False(t, rewritten.Mem.Base.IsVirtual())
	require.False(t, rewritten.Mem.Index.IsVirtual())
	require.Equal(t, asm.Scale4, rewritten.Mem.Scale)
}

func TestAllocateFailsWithoutPoolForOperandClass(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	v := b.NewVecReg(128)
	b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(v)}, 0)

	pools := regalloc.Pools{} // no Vector pool registered
	_, err := regalloc.Allocate(b, pools, amd64.GP(amd64.RBP, 64))
	require.ErrorIs(t, err, asm.ErrIllegalVirtReg)
}
