package asmdebug_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/asm/amd64"
	"github.com/codegenlib/jitasm/asm/amd64/asmdebug"
)

func TestCheckPassesWithinBounds(t *testing.T) {
	a := asmdebug.New()
	err := a.Check("mov_reg_reg", func() error {
		return a.MovRegReg(amd64.GP(amd64.RAX, 64), amd64.GP(amd64.RDI, 64))
	})
	require.NoError(t, err)
}

func TestCheckFailsOutsideBounds(t *testing.T) {
	a := asmdebug.New()
	err := a.Check("ret", func() error {
		a.Ret()
		a.Nop() // two bytes appended, "ret" bound is exactly 1
		return nil
	})
	require.ErrorIs(t, err, asm.ErrInvalidInstruction)
}

func TestCheckSkipsUnknownShape(t *testing.T) {
	a := asmdebug.New()
	err := a.Check("unregistered_shape", func() error {
		a.Nop()
		a.Nop()
		a.Nop()
		return nil
	})
	require.NoError(t, err)
}

func TestCheckPropagatesEmitError(t *testing.T) {
	a := asmdebug.New()
	l := a.NewLabel()
	require.NoError(t, a.Bind(l))
	err := a.Check("rebind", func() error {
		return a.Bind(l) // already bound: must fail
	})
	require.ErrorIs(t, err, asm.ErrLabelAlreadyBound)
}
