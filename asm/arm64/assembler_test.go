package arm64_test

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/asm/arm64"
)

// leWord renders a 32-bit instruction word as the 4 little-endian bytes the
// Assembler is expected to emit.
func leWord(w uint32) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], w)
	return b[:]
}

func TestAddImmFromSPProducesCanonicalFramePointerSetup(t *testing.T) {
	a := arm64.NewAssembler()
	// `mov x29, sp` is the ADD-immediate alias, not Mov()'s ORR-register
	// alias: SP has no encoding at all as a data-processing-register
	// operand. This is the second instruction of every AAPCS64 prologue.
	require.NoError(t, a.AddImm(arm64.GP(arm64.X29, 64), asm.Register{ID: arm64.XZRSP, SizeBits: 64, Class: asm.RegisterClassGP}, 0))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, leWord(0x910003FD), code.Bytes) // add x29, sp, #0 == mov x29, sp
}

func TestMovImm64SmallConstantUsesSingleMOVZ(t *testing.T) {
	a := arm64.NewAssembler()
	require.NoError(t, a.MovImm64(arm64.GP(arm64.X0, 64), 5))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, leWord(0xD28000A0), code.Bytes) // movz x0, #5
}

func TestMovImm64AllOnesUsesSingleMOVN(t *testing.T) {
	a := arm64.NewAssembler()
	require.NoError(t, a.MovImm64(arm64.GP(arm64.X0, 64), -1))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 4, len(code.Bytes)) // a single MOVN, no MOVKs needed
}

func TestMovImm64MixedLanesEmitsSeedPlusMovk(t *testing.T) {
	a := arm64.NewAssembler()
	// 0x0001_0000_0000_0005 has a nonzero lane 0 and lane 3, zero lanes 1-2:
	// seeded by MOVZ on lane 0, followed by a single MOVK on lane 3.
	require.NoError(t, a.MovImm64(arm64.GP(arm64.X0, 64), 0x0001000000000005))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 8, len(code.Bytes)) // MOVZ + one MOVK
}

func TestAddSubRegisterForms(t *testing.T) {
	a := arm64.NewAssembler()
	require.NoError(t, a.Add(arm64.GP(arm64.X0, 64), arm64.GP(arm64.X1, 64), arm64.GP(arm64.X2, 64)))
	require.NoError(t, a.Sub(arm64.GP(arm64.X0, 64), arm64.GP(arm64.X1, 64), arm64.GP(arm64.X2, 64)))
	code, err := a.Finalize()
	require.NoError(t, err)
	var want []byte
	want = append(want, leWord(0x8B020020)...) // add x0, x1, x2
	want = append(want, leWord(0xCB020020)...) // sub x0, x1, x2
	require.Equal(t, want, code.Bytes)
}

func TestCmpIsSubsToZeroRegister(t *testing.T) {
	a := arm64.NewAssembler()
	require.NoError(t, a.Cmp(arm64.GP(arm64.X1, 64), arm64.GP(arm64.X2, 64)))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, leWord(0xEB02003F), code.Bytes) // cmp x1, x2
}

func TestMovIsOrrFromZeroRegister(t *testing.T) {
	a := arm64.NewAssembler()
	require.NoError(t, a.Mov(arm64.GP(arm64.X0, 64), arm64.GP(arm64.X1, 64)))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, leWord(0xAA0103E0), code.Bytes) // mov x0, x1
}

func TestAddSubImmediateStackAdjustment(t *testing.T) {
	a := arm64.NewAssembler()
	sp := arm64.GP(arm64.XZRSP, 64)
	require.NoError(t, a.SubImm(sp, sp, 16))
	require.NoError(t, a.AddImm(sp, sp, 16))
	code, err := a.Finalize()
	require.NoError(t, err)
	var want []byte
	want = append(want, leWord(0xD10043FF)...) // sub sp, sp, #16
	want = append(want, leWord(0x910043FF)...) // add sp, sp, #16
	require.Equal(t, want, code.Bytes)
}

func TestStrLdrImmediate(t *testing.T) {
	a := arm64.NewAssembler()
	require.NoError(t, a.StrImm(arm64.GP(arm64.X0, 64), arm64.GP(arm64.X1, 64), 0))
	require.NoError(t, a.LdrImm(arm64.GP(arm64.X0, 64), arm64.GP(arm64.X1, 64), 0))
	code, err := a.Finalize()
	require.NoError(t, err)
	var want []byte
	want = append(want, leWord(0xF9000020)...) // str x0, [x1]
	want = append(want, leWord(0xF9400020)...) // ldr x0, [x1]
	require.Equal(t, want, code.Bytes)
}

func TestStpPreIndexAndLdpPostIndex(t *testing.T) {
	a := arm64.NewAssembler()
	sp := arm64.GP(arm64.XZRSP, 64)
	fp := arm64.GP(arm64.X29, 64)
	lr := arm64.GP(arm64.X30, 64)
	require.NoError(t, a.StpPreIndex(fp, lr, sp, -16))
	require.NoError(t, a.LdpPostIndex(fp, lr, sp, 16))
	code, err := a.Finalize()
	require.NoError(t, err)
	var want []byte
	want = append(want, leWord(0xA9BF7BFD)...) // stp x29, x30, [sp, #-16]!
	want = append(want, leWord(0xA8C17BFD)...) // ldp x29, x30, [sp], #16
	require.Equal(t, want, code.Bytes)
}

func TestRetNopBrBlr(t *testing.T) {
	a := arm64.NewAssembler()
	a.Nop()
	a.Blr(arm64.GP(arm64.X1, 64))
	a.Br(arm64.GP(arm64.X1, 64))
	a.Ret()
	code, err := a.Finalize()
	require.NoError(t, err)
	var want []byte
	want = append(want, leWord(0xD503201F)...) // nop
	want = append(want, leWord(0xD63F0020)...) // blr x1
	want = append(want, leWord(0xD61F0020)...) // br x1
	want = append(want, leWord(0xD65F03C0)...) // ret
	require.Equal(t, want, code.Bytes)
}

func TestBForwardBranchResolvesDisplacement(t *testing.T) {
	a := arm64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.B(l))
	a.Nop()
	require.NoError(t, a.Bind(l))

	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 8, len(code.Bytes))
	// b +8 bytes == imm26 of 2 (scaled by 4)
	require.Equal(t, leWord(0x14000002), code.Bytes[0:4])
}

func TestBLBackwardBranchResolvesDisplacement(t *testing.T) {
	a := arm64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.Bind(l))
	a.Nop()
	require.NoError(t, a.BL(l))

	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 8, len(code.Bytes))
	// bl back 4 bytes from offset 4 == imm26 of -1
	require.Equal(t, leWord(0x97FFFFFF), code.Bytes[4:8])
}

func TestBCondAndCbzCbnzEncodeConditionAndResolve(t *testing.T) {
	a := arm64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.BCond(arm64.ConditionEQ, l))
	require.NoError(t, a.Cbz(arm64.GP(arm64.X0, 64), l))
	require.NoError(t, a.Cbnz(arm64.GP(arm64.X0, 64), l))
	require.NoError(t, a.Bind(l))

	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 12, len(code.Bytes))

	var want []byte
	want = append(want, leWord(0x54000060)...) // b.eq +12 (imm19=3)
	want = append(want, leWord(0xB4000040)...) // cbz x0, +8 (imm19=2)
	want = append(want, leWord(0xB5000020)...) // cbnz x0, +4 (imm19=1)
	require.Equal(t, want, code.Bytes)
}

func TestFinalizeFailsOnUnboundLabel(t *testing.T) {
	a := arm64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.B(l))
	_, err := a.Finalize()
	require.ErrorIs(t, err, asm.ErrUnboundLabel)
}

func TestStaticConstPoolAddressableAfterFinalize(t *testing.T) {
	a := arm64.NewAssembler()
	l := a.AllocateStaticConst([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	a.Ret()
	code, err := a.Finalize()
	require.NoError(t, err)
	require.True(t, len(code.Bytes) >= 8)
	_ = l
}
