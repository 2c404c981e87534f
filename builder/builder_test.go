package builder_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/builder"
)

func TestNewGPRegDeclaresVirtualRegister(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	r := b.NewGPReg(64)
	require.True(t, r.IsVirtual())
	require.Equal(t, asm.RegisterClassVirtual, r.Class)
	require.Len(t, b.VirtualRegisters(), 1)
	require.Equal(t, 0, b.VirtualRegisters()[0].ID)
	require.Equal(t, 64, b.VirtualRegisters()[0].SizeBits)
}

func TestInstTouchesOperandVirtualRegistersAndExtendsLiveRange(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	v := b.NewGPReg(64)

	b.Inst(asm.InstructionNone, nil, 0) // position 0, no touch
	b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(v)}, 0) // position 1: first use
	b.Inst(asm.InstructionNone, nil, 0)                              // position 2, no touch
	b.Inst(asm.InstructionNone, []asm.Operand{asm.RegOperand(v)}, 0) // position 3: last use

	info := b.VirtualRegisters()[0]
	require.Equal(t, 1, info.FirstUse)
	require.Equal(t, 3, info.LastUse)
}

func TestMemoryOperandCountsBaseAndIndexAsUses(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	base := b.NewGPReg(64)
	index := b.NewGPReg(64)

	mem := asm.Memory{Base: base, HasBase: true, Index: index, HasIndex: true, Scale: asm.Scale1}
	b.Inst(asm.InstructionNone, []asm.Operand{asm.MemOperand(mem)}, 0)

	require.Equal(t, 0, b.VirtualRegisters()[0].FirstUse)
	require.Equal(t, 0, b.VirtualRegisters()[1].FirstUse)
}

func TestLabelAlignEmbedDataCommentAppendNodesInOrder(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	l := b.NewLabel()
	b.Label(l)
	b.Align(builder.AlignCode, 16)
	b.EmbedData([]byte{1, 2, 3, 4}, 4)
	b.Comment("marker")

	nodes := b.Nodes()
	require.Len(t, nodes, 4)
	require.Equal(t, builder.NodeLabelBind, nodes[0].Kind)
	require.Equal(t, builder.NodeAlign, nodes[1].Kind)
	require.Equal(t, 16, nodes[1].AlignTo)
	require.Equal(t, builder.NodeEmbeddedData, nodes[2].Kind)
	require.Equal(t, []byte{1, 2, 3, 4}, nodes[2].Data)
	require.Equal(t, builder.NodeComment, nodes[3].Kind)
	require.Equal(t, "marker", nodes[3].Comment)

	for i, n := range nodes {
		require.Equal(t, i, n.Position)
	}
}

func TestFuncEndFuncNestingGuard(t *testing.T) {
	b := builder.New(asm.NewSystemVAMD64())
	sig := builder.FunctionSignature{CallingConvention: asm.CallingConventionSystemVAMD64}

	_, err := b.Func(sig, "f")
	require.NoError(t, err)

	_, err = b.Func(sig, "nested")
	require.ErrorIs(t, err, asm.ErrInvalidArgument)

	require.NoError(t, b.EndFunc())
	require.ErrorIs(t, b.EndFunc(), asm.ErrInvalidArgument)

	// After closing, a new Func is legal again (sibling, not nested).
	_, err = b.Func(sig, "g")
	require.NoError(t, err)
	require.NoError(t, b.EndFunc())
}

func TestBuildFrameDescriptorLandsArgumentsSysV(t *testing.T) {
	sig := builder.FunctionSignature{
		CallingConvention: asm.CallingConventionSystemVAMD64,
		ArgumentTypes:      []builder.ValueType{builder.ValueTypeInt64, builder.ValueTypeInt64},
	}
	fd := builder.BuildFrameDescriptor(sig)
	require.Len(t, fd.Arguments, 2)
	require.True(t, fd.Arguments[0].InRegister)
	require.True(t, fd.Arguments[1].InRegister)
	require.True(t, fd.FramePointerEnabled)
	require.Equal(t, int32(0), fd.ShadowSpaceBytes)
}

func TestBuildFrameDescriptorWin64ShadowSpaceAndStackSpill(t *testing.T) {
	sig := builder.FunctionSignature{
		CallingConvention: asm.CallingConventionWin64,
		ArgumentTypes: []builder.ValueType{
			builder.ValueTypeInt64, builder.ValueTypeInt64,
			builder.ValueTypeInt64, builder.ValueTypeInt64,
			builder.ValueTypeInt64, // 5th integer arg: spills to the stack
		},
	}
	fd := builder.BuildFrameDescriptor(sig)
	require.Equal(t, int32(32), fd.ShadowSpaceBytes)
	require.True(t, fd.Arguments[3].InRegister)
	require.False(t, fd.Arguments[4].InRegister)
	require.Equal(t, int32(0), fd.Arguments[4].StackOffset)
}

func TestFinalizeFrameAlignsLocalSizeToStackAlignment(t *testing.T) {
	fd := &builder.FrameDescriptor{}
	fd.FinalizeFrame(9, nil)
	require.Equal(t, int32(16), fd.LocalSize)

	fd2 := &builder.FrameDescriptor{}
	fd2.FinalizeFrame(16, nil)
	require.Equal(t, int32(16), fd2.LocalSize)
}

func TestJumpTableResolveComputesRelativeOffsets(t *testing.T) {
	labels := asm.NewLabelManager()
	rel := labels.NewLabel()
	t0 := labels.NewLabel()
	t1 := labels.NewLabel()

	require.NoError(t, labels.Bind(rel, 100))
	require.NoError(t, labels.Bind(t0, 100))
	require.NoError(t, labels.Bind(t1, 108))

	b := builder.New(asm.NewSystemVAMD64())
	resolver := b.BuildJumpTable([]asm.Label{t0, t1}, rel)

	data, err := resolver.Resolve(labels)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0, 0, 8, 0, 0, 0}, data)
}

func TestJumpTableResolveFailsOnUnboundTarget(t *testing.T) {
	labels := asm.NewLabelManager()
	rel := labels.NewLabel()
	require.NoError(t, labels.Bind(rel, 0))
	t0 := labels.NewLabel() // left unbound

	b := builder.New(asm.NewSystemVAMD64())
	resolver := b.BuildJumpTable([]asm.Label{t0}, rel)

	_, err := resolver.Resolve(labels)
	require.ErrorIs(t, err, asm.ErrUnboundLabel)
}
