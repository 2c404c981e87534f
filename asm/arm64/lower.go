package arm64

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/builder"
	"github.com/codegenlib/jitasm/regalloc"
)

// frameBase is x29 (the frame pointer), set up by EmitPrologue.
var frameBase = GP(X29, 64)

// Lower runs the full AArch64 backend pipeline over a Builder's node list,
// mirroring asm/amd64.Lower: allocate registers, rewrite operands, then
// translate each node into Assembler calls with a prologue/epilogue
// wrapped around each function body.
func Lower(b *builder.Builder) (asm.FinalizedCode, error) {
	pools := DefaultPools()
	result, err := regalloc.Allocate(b, pools, frameBase)
	if err != nil {
		return asm.FinalizedCode{}, err
	}

	a := NewAssembler()
	// Allocate the Builder's label ids in this Assembler's LabelManager.
	maxLabel := -1
	for _, n := range b.Nodes() {
		if n.Kind == builder.NodeLabelBind && n.Label.ID > maxLabel {
			maxLabel = n.Label.ID
		}
		for _, op := range n.Operands {
			if op.Kind == asm.OperandKindLabel && op.Lbl.Label.ID > maxLabel {
				maxLabel = op.Lbl.Label.ID
			}
		}
	}
	for i := 0; i <= maxLabel; i++ {
		a.NewLabel()
	}
	var pendingFD *builder.FrameDescriptor

	for _, n := range b.Nodes() {
		switch n.Kind {
		case builder.NodeFunctionBegin:
			fd := builder.BuildFrameDescriptor(*n.Signature)
			fd.FinalizeFrame(result.SpillAreaBytes, result.ClobberedCalleeSaved)
			if err := a.EmitPrologue(fd); err != nil {
				return asm.FinalizedCode{}, err
			}
			pendingFD = fd

		case builder.NodeFunctionEnd:
			if pendingFD == nil {
				return asm.FinalizedCode{}, fmt.Errorf("%w: FunctionEnd without FunctionBegin", asm.ErrInvalidArgument)
			}
			if err := a.EmitEpilogue(pendingFD); err != nil {
				return asm.FinalizedCode{}, err
			}
			pendingFD = nil

		case builder.NodeLabelBind:
			if err := a.Bind(n.Label); err != nil {
				return asm.FinalizedCode{}, err
			}

		case builder.NodeAlign:
			fill := byte(0x1f) // low byte of encodeNOP; callers should prefer 4-byte-aligned sizes
			if n.AlignMode == builder.AlignZero {
				fill = 0
			}
			if err := a.buf.Align(n.AlignTo, fill); err != nil {
				return asm.FinalizedCode{}, err
			}

		case builder.NodeEmbeddedData:
			a.buf.EmitBytes(n.Data)

		case builder.NodeComment, builder.NodeSentinel:

		case builder.NodeInstruction:
			if err := lowerInstruction(a, n); err != nil {
				return asm.FinalizedCode{}, err
			}
		}
	}

	return a.Finalize()
}

func lowerInstruction(a *Assembler, n builder.Node) error {
	ops := n.Operands
	switch n.Instr {
	case MOVZ, MOVK, MOVN:
		// All three map to the single MovImm64 synthesis call: the Builder
		// records intent to load a constant with one IR node, and the
		// encoder decides the actual movz/movk/movn sequence.
		return a.MovImm64(ops[0].Reg, ops[1].Imm.Value)
	case ADD:
		return a.Add(ops[0].Reg, ops[1].Reg, ops[2].Reg)
	case SUB:
		return a.Sub(ops[0].Reg, ops[1].Reg, ops[2].Reg)
	case AND:
		return a.And(ops[0].Reg, ops[1].Reg, ops[2].Reg)
	case ORR:
		return a.Orr(ops[0].Reg, ops[1].Reg, ops[2].Reg)
	case EOR:
		return a.Eor(ops[0].Reg, ops[1].Reg, ops[2].Reg)
	case CMP:
		return a.Cmp(ops[0].Reg, ops[1].Reg)
	case STRImm:
		return a.StrImm(ops[0].Reg, ops[1].Mem.Base, int64(ops[1].Mem.Displacement))
	case LDRImm:
		return a.LdrImm(ops[0].Reg, ops[1].Mem.Base, int64(ops[1].Mem.Displacement))
	case B:
		return a.B(ops[0].Lbl.Label)
	case BL:
		return a.BL(ops[0].Lbl.Label)
	case BCond:
		cond := Condition(ops[0].Imm.Value)
		return a.BCond(cond, ops[1].Lbl.Label)
	case CBZ:
		return a.Cbz(ops[0].Reg, ops[1].Lbl.Label)
	case CBNZ:
		return a.Cbnz(ops[0].Reg, ops[1].Lbl.Label)
	case BR:
		a.Br(ops[0].Reg)
		return nil
	case BLR:
		a.Blr(ops[0].Reg)
		return nil
	case RET:
		a.Ret()
		return nil
	case NOP:
		a.Nop()
		return nil
	default:
		return fmt.Errorf("%w: unsupported arm64 instruction id %d", asm.ErrInvalidInstruction, n.Instr)
	}
}
