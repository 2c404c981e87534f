package asm_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
)

func TestStaticConstPoolDeduplicates(t *testing.T) {
	labels := asm.NewLabelManager()
	pool := asm.NewStaticConstPool(labels)

	l1 := pool.Alloc([]byte{1, 2, 3, 4})
	l2 := pool.Alloc([]byte{1, 2, 3, 4})
	l3 := pool.Alloc([]byte{5, 6, 7, 8})

	require.Equal(t, l1.ID, l2.ID)
	require.NotEqual(t, l1.ID, l3.ID)
	require.Len(t, pool.Blobs, 2)
}

func TestStaticConstPoolPlaceBindsAndAligns(t *testing.T) {
	labels := asm.NewLabelManager()
	pool := asm.NewStaticConstPool(labels)
	l1 := pool.Alloc([]byte{0xAA})
	l2 := pool.Alloc([]byte{0xBB, 0xCC})

	buf := asm.NewCodeBuffer(32)
	buf.EmitByte(0x90) // simulate code already written before the pool is placed

	require.NoError(t, pool.Place(buf))

	off1, err := labels.OffsetOf(l1)
	require.NoError(t, err)
	require.Equal(t, uint64(8), off1) // aligned up from 1 to the next 8-byte boundary

	off2, err := labels.OffsetOf(l2)
	require.NoError(t, err)
	require.Equal(t, uint64(16), off2) // next entry re-aligned to 8 after the 1-byte blob
}
