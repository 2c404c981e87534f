package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/asm/amd64"
	"github.com/codegenlib/jitasm/builder"
)

func TestLowerIdentityReturn(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	sig := builder.FunctionSignature{
		CallingConvention: asm.CallingConventionSystemVAMD64,
		ArgumentTypes:      []builder.ValueType{builder.ValueTypeInt64},
		ReturnType:         builder.ValueTypeInt64,
		HasReturn:          true,
	}
	_, err := b.Func(sig, "identity")
	require.NoError(t, err)
	rax := amd64.GP(amd64.RAX, 64)
	rdi := amd64.GP(amd64.RDI, 64)
	b.Inst(amd64.MOVQ, []asm.Operand{asm.RegOperand(rax), asm.RegOperand(rdi)}, 0)
	require.NoError(t, b.EndFunc())

	code, err := amd64.Lower(b)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x48, 0x89, 0xE5, // mov rbp, rsp
		0x48, 0x89, 0xF8, // mov rax, rdi
		0x48, 0x89, 0xEC, // mov rsp, rbp
		0xC3, // ret
	}, code.Bytes)
}

func TestLowerTwoArgumentAdd(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	sig := builder.FunctionSignature{
		CallingConvention: asm.CallingConventionSystemVAMD64,
		ArgumentTypes:      []builder.ValueType{builder.ValueTypeInt64, builder.ValueTypeInt64},
		ReturnType:         builder.ValueTypeInt64,
		HasReturn:          true,
	}
	_, err := b.Func(sig, "add2")
	require.NoError(t, err)
	rax := amd64.GP(amd64.RAX, 64)
	rdi := amd64.GP(amd64.RDI, 64)
	rsi := amd64.GP(amd64.RSI, 64)
	b.Inst(amd64.MOVQ, []asm.Operand{asm.RegOperand(rax), asm.RegOperand(rdi)}, 0)
	b.Inst(amd64.ADDQ, []asm.Operand{asm.RegOperand(rax), asm.RegOperand(rsi)}, 0)
	require.NoError(t, b.EndFunc())

	code, err := amd64.Lower(b)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x48, 0x89, 0xE5, // mov rbp, rsp
		0x48, 0x89, 0xF8, // mov rax, rdi
		0x48, 0x01, 0xF0, // add rax, rsi
		0x48, 0x89, 0xEC, // mov rsp, rbp
		0xC3, // ret
	}, code.Bytes)
}

func TestLowerShortBackwardLoop(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	rcx := amd64.GP(amd64.RCX, 64)

	top := b.NewLabel()
	b.Label(top)
	b.Inst(amd64.SUBQ, []asm.Operand{asm.RegOperand(rcx), asm.ImmOperand(asm.Immediate{Value: 1, WidthBits: 8})}, 0)
	b.Inst(amd64.JCC, []asm.Operand{
		asm.ImmOperand(asm.Immediate{Value: int64(amd64.ConditionNE)}),
		asm.LabelOperand(top),
	}, 0)

	code, err := amd64.Lower(b)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0x48, 0x83, 0xE9, 0x01, // sub rcx, 1
		0x75, 0xFA, // jnz -6 (back to top)
	}, code.Bytes)
}

func TestLowerForwardJmpOverPadding(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	skip := b.NewLabel()
	// Forward, unbound targets default to the 5-byte near form regardless of
	// distance (the short form is only auto-selected for already-bound
	// targets); OptionForceShortBranch is needed to get the 2-byte form here.
	b.Inst(amd64.JMP, []asm.Operand{asm.LabelOperand(skip)}, asm.OptionForceShortBranch)
	b.Inst(amd64.NOP, nil, 0)
	b.Inst(amd64.NOP, nil, 0)
	b.Label(skip)
	b.Inst(amd64.RET, nil, 0)

	code, err := amd64.Lower(b)
	require.NoError(t, err)
	require.Equal(t, []byte{
		0xEB, 0x02, // jmp +2 (forced short form: target is 2 bytes of NOPs away)
		0x90, 0x90,
		0xC3,
	}, code.Bytes)
}

func TestLowerSpillsWhenVirtualRegistersExceedPhysicalPool(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	const n = 14
	vregs := make([]asm.Register, n)
	for i := range vregs {
		vregs[i] = b.NewGPReg(64)
	}
	for _, v := range vregs {
		b.Inst(amd64.MOVQ, []asm.Operand{asm.RegOperand(v), asm.RegOperand(amd64.GP(amd64.RAX, 64))}, 0)
	}
	lastOperands := make([]asm.Operand, n)
	for i, v := range vregs {
		lastOperands[i] = asm.RegOperand(v)
	}
	// Chain every vreg into vregs[0] with ADDQ so all 14 are simultaneously
	// live at the first ADDQ, forcing the scan to spill exactly one
	// (the 13-register GP pool can hold only 13). Whichever vreg spills
	// turns one of these ADDQ operands into a frame-relative memory operand,
	// which only lowers correctly now that lowerAlu handles the
	// register-to-memory and memory-to-register ALU forms.
	b.Inst(amd64.ADDQ, lastOperands[:2], 0)
	for i := 2; i < n; i++ {
		b.Inst(amd64.ADDQ, []asm.Operand{lastOperands[0], lastOperands[i]}, 0)
	}

	code, err := amd64.Lower(b)
	require.NoError(t, err)
	require.NotEmpty(t, code.Bytes)
	// A memory-operand ALU encoding (disp8 ModRM byte) is at least 4 bytes
	// (REX + opcode + ModRM + disp8) vs. 3 for a pure register-register ALU
	// op, so the spilled instruction alone pushes the body past what 14
	// register-only movs + 13 register-only adds would take.
	require.Greater(t, len(code.Bytes), 3*n+3*(n-1))
}
