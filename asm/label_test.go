package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
)

func TestLabelManagerBindOnce(t *testing.T) {
	m := asm.NewLabelManager()
	l := m.NewLabel()
	require.False(t, m.IsBound(l))

	require.NoError(t, m.Bind(l, 42))
	require.True(t, m.IsBound(l))

	off, err := m.OffsetOf(l)
	require.NoError(t, err)
	require.Equal(t, uint64(42), off)

	require.ErrorIs(t, m.Bind(l, 100), asm.ErrLabelAlreadyBound)
}

func TestLabelManagerUnboundOffsetFails(t *testing.T) {
	m := asm.NewLabelManager()
	l := m.NewLabel()
	_, err := m.OffsetOf(l)
	require.ErrorIs(t, err, asm.ErrUnboundLabel)
}

func TestLabelManagerNamedLabels(t *testing.T) {
	m := asm.NewLabelManager()
	l, err := m.NewNamedLabel("entry")
	require.NoError(t, err)

	found, ok := m.LookupByName("entry")
	require.True(t, ok)
	require.Equal(t, l.ID, found.ID)

	_, err = m.NewNamedLabel("entry")
	require.ErrorIs(t, err, asm.ErrLabelAlreadyDefined)
}

func TestLabelManagerNameTooLong(t *testing.T) {
	m := asm.NewLabelManager()
	long := make([]byte, asm.MaxLabelNameLength+1)
	_, err := m.NewNamedLabel(string(long))
	require.ErrorIs(t, err, asm.ErrLabelNameTooLong)
}

func TestLabelManagerAllBound(t *testing.T) {
	m := asm.NewLabelManager()
	a := m.NewLabel()
	b := m.NewLabel()

	ok, unbound := m.AllBound()
	require.False(t, ok)
	require.Equal(t, a.ID, unbound.ID)

	require.NoError(t, m.Bind(a, 0))
	ok, unbound = m.AllBound()
	require.False(t, ok)
	require.Equal(t, b.ID, unbound.ID)

	require.NoError(t, m.Bind(b, 4))
	ok, _ = m.AllBound()
	require.True(t, ok)
}
