package asmdebug_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/asm/arm64"
	"github.com/codegenlib/jitasm/asm/arm64/asmdebug"
)

func TestCheckPassesForSingleInstruction(t *testing.T) {
	a := asmdebug.New()
	err := a.Check("ret", 0, func() error {
		a.Ret()
		return nil
	})
	require.NoError(t, err)
}

func TestCheckRejectsTooManyInstructions(t *testing.T) {
	a := asmdebug.New()
	err := a.Check("movimm", 1, func() error {
		// A mixed-lane 64-bit constant needs a MOVZ seed plus a MOVK,
		// exceeding the maxWords=1 bound.
		return a.MovImm64(arm64.GP(arm64.X0, 64), 0x0001000000000005)
	})
	require.ErrorIs(t, err, asm.ErrInvalidInstruction)
}

func TestCheckAllowsWithinWordBudget(t *testing.T) {
	a := asmdebug.New()
	err := a.Check("movimm", 2, func() error {
		return a.MovImm64(arm64.GP(arm64.X0, 64), 0x0001000000000005)
	})
	require.NoError(t, err)
}
