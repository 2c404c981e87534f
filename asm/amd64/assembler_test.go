package amd64_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/asm/amd64"
)

func TestMovRegRegAndAluRegReg(t *testing.T) {
	a := amd64.NewAssembler()
	require.NoError(t, a.MovRegReg(amd64.GP(amd64.RAX, 64), amd64.GP(amd64.RDI, 64)))
	require.NoError(t, a.AluRegReg(amd64.AluAdd, amd64.GP(amd64.RAX, 64), amd64.GP(amd64.RSI, 64)))

	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0x89, 0xF8, 0x48, 0x01, 0xF0}, code.Bytes)
}

func TestMovImmToReg32Bit(t *testing.T) {
	a := amd64.NewAssembler()
	require.NoError(t, a.MovImmToReg(amd64.GP(amd64.RCX, 32), 5))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, []byte{0xB9, 0x05, 0x00, 0x00, 0x00}, code.Bytes)
}

func TestMovImmToReg64BitSignExtendedImm32(t *testing.T) {
	a := amd64.NewAssembler()
	require.NoError(t, a.MovImmToReg(amd64.GP(amd64.RAX, 64), 5))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0xC7, 0xC0, 0x05, 0x00, 0x00, 0x00}, code.Bytes)
}

func TestMovImmToReg64BitUsesMovabsForLargeConstant(t *testing.T) {
	a := amd64.NewAssembler()
	const big = int64(0x1_0000_0001)
	require.NoError(t, a.MovImmToReg(amd64.GP(amd64.RAX, 64), big))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 10, len(code.Bytes)) // REX.W + B8 + imm64
	require.Equal(t, byte(0x48), code.Bytes[0])
	require.Equal(t, byte(0xB8), code.Bytes[1])
}

func TestAluImmToRegPrefersShortImm8Form(t *testing.T) {
	a := amd64.NewAssembler()
	require.NoError(t, a.AluImmToReg(amd64.AluAdd, amd64.GP(amd64.RAX, 64), 5))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0x83, 0xC0, 0x05}, code.Bytes)
}

func TestAluImmToRegFallsBackToImm32Form(t *testing.T) {
	a := amd64.NewAssembler()
	require.NoError(t, a.AluImmToReg(amd64.AluAdd, amd64.GP(amd64.RAX, 64), 200))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0x81, 0xC0, 0xC8, 0x00, 0x00, 0x00}, code.Bytes)
}

func TestPushPopRet(t *testing.T) {
	a := amd64.NewAssembler()
	require.NoError(t, a.PushReg(amd64.GP(amd64.RBX, 64)))
	require.NoError(t, a.PopReg(amd64.GP(amd64.RBX, 64)))
	a.Ret()
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, []byte{0x53, 0x5B, 0xC3}, code.Bytes)
}

func TestJmpShortFormForBoundNearbyLabel(t *testing.T) {
	a := amd64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.Bind(l))
	a.Ret() // pad so the backward jump has a nonzero, in-range displacement
	require.NoError(t, a.Jmp(l, false))

	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 3, len(code.Bytes)) // ret + 2-byte short jmp
	require.Equal(t, byte(0xEB), code.Bytes[1])
}

func TestJmpLongFormForUnboundForwardLabel(t *testing.T) {
	a := amd64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.Jmp(l, false))
	require.NoError(t, a.Bind(l))

	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, 5, len(code.Bytes)) // 5-byte near jmp (E9 + rel32)
	require.Equal(t, byte(0xE9), code.Bytes[0])
}

func TestJccEncodesConditionAndResolvesForwardDisplacement(t *testing.T) {
	a := amd64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.Jcc(amd64.ConditionE, l, false))
	a.Nop()
	a.Nop()
	require.NoError(t, a.Bind(l))

	code, err := a.Finalize()
	require.NoError(t, err)
	// short form selected retroactively is not attempted for unbound
	// targets (spec: only forceShort or already-bound targets get the
	// short encoding at emission time), so this is the 6-byte near Jcc.
	require.Equal(t, byte(0x0F), code.Bytes[0])
	require.Equal(t, byte(0x84), code.Bytes[1]) // 0x80 | cc(E)=4
}

func TestFinalizeFailsOnUnboundLabel(t *testing.T) {
	a := amd64.NewAssembler()
	l := a.NewLabel()
	require.NoError(t, a.Jmp(l, false))
	_, err := a.Finalize()
	require.ErrorIs(t, err, asm.ErrUnboundLabel)
}

func TestShiftImmToReg(t *testing.T) {
	a := amd64.NewAssembler()
	require.NoError(t, a.ShiftImmToReg(amd64.ShiftShl, amd64.GP(amd64.RAX, 64), 3))
	code, err := a.Finalize()
	require.NoError(t, err)
	require.Equal(t, []byte{0x48, 0xC1, 0xE0, 0x03}, code.Bytes)
}

func TestStaticConstPoolAddressableAfterFinalize(t *testing.T) {
	a := amd64.NewAssembler()
	l := a.AllocateStaticConst([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	a.Ret()
	code, err := a.Finalize()
	require.NoError(t, err)
	require.True(t, len(code.Bytes) >= 9)
	_ = l
}
