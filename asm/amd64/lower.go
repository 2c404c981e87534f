package amd64

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/builder"
	"github.com/codegenlib/jitasm/regalloc"
)

// frameBase is the physical register spilled virtual registers address
// relative to: rbp, exactly as the frame emitter sets up in EmitPrologue.
var frameBase = GP(RBP, 64)

// Lower runs the full x86-64 backend pipeline over a Builder's node list
// (spec §4.5-§4.8): register allocation and operand rewriting, then a
// single walk translating each surviving node into Assembler calls, with
// a prologue/epilogue wrapped around each function body. This is the glue
// the teacher keeps inline in its SSA-lowering machine.go; here it is the
// explicit seam between the architecture-neutral Builder and this
// package's Assembler, since the spec's Builder deliberately knows
// nothing about any one architecture's encoding.
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
	var bodyClobbered []asm.Register

	for _, n := range b.Nodes() {
		switch n.Kind {
		case builder.NodeFunctionBegin:
			fd := builder.BuildFrameDescriptor(*n.Signature)
			// The allocator has already run globally across the whole node
			// list by this point (spec §4.7 does not scope linear scan to a
			// single function boundary in this package's single-function-
			// per-Builder usage model), so the clobbered-callee-saved set
			// and spill size it reported apply to this function's body.
			fd.FinalizeFrame(result.SpillAreaBytes, result.ClobberedCalleeSaved)
			if err := a.EmitPrologue(fd); err != nil {
				return asm.FinalizedCode{}, err
			}
			pendingFD = fd
			bodyClobbered = result.ClobberedCalleeSaved

		case builder.NodeFunctionEnd:
			if pendingFD == nil {
				return asm.FinalizedCode{}, fmt.Errorf("%w: FunctionEnd without FunctionBegin", asm.ErrInvalidArgument)
			}
			if err := a.EmitEpilogue(pendingFD); err != nil {
				return asm.FinalizedCode{}, err
			}
			pendingFD = nil
			_ = bodyClobbered

		case builder.NodeLabelBind:
			if err := a.Bind(n.Label); err != nil {
				return asm.FinalizedCode{}, err
			}

		case builder.NodeAlign:
			fill := byte(0x90) // NOP
			if n.AlignMode == builder.AlignZero {
				fill = 0
			}
			if err := a.buf.Align(n.AlignTo, fill); err != nil {
				return asm.FinalizedCode{}, err
			}

		case builder.NodeEmbeddedData:
			a.buf.EmitBytes(n.Data)

		case builder.NodeComment, builder.NodeSentinel:
			// no bytes emitted

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
	case MOVQ, MOVL, MOVW, MOVB:
		return lowerMov(a, ops)
	case MOVABSQ:
		return a.MovImmToReg(ops[0].Reg, ops[1].Imm.Value)
	case LEAQ:
		return a.Lea(ops[0].Reg, ops[1].Mem)
	case ADDL, ADDQ:
		return lowerAlu(a, AluAdd, ops)
	case SUBL, SUBQ:
		return lowerAlu(a, AluSub, ops)
	case ANDL, ANDQ:
		return lowerAlu(a, AluAnd, ops)
	case ORL, ORQ:
		return lowerAlu(a, AluOr, ops)
	case XORL, XORQ:
		return lowerAlu(a, AluXor, ops)
	case CMPL, CMPQ:
		return lowerAlu(a, AluCmp, ops)
	case TESTL, TESTQ:
		return a.TestRegReg(ops[0].Reg, ops[1].Reg)
	case PUSHQ:
		return a.PushReg(ops[0].Reg)
	case POPQ:
		return a.PopReg(ops[0].Reg)
	case RET:
		a.Ret()
		return nil
	case NOP:
		a.Nop()
		return nil
	case CDQ:
		a.Cdq()
		return nil
	case CQO:
		a.Cqo()
		return nil
	case IMULQ:
		return a.ImulRegReg64(ops[0].Reg, ops[1].Reg)
	case IDIVQ:
		return a.IdivReg64(ops[0].Reg)
	case SHLQ:
		return a.ShiftImmToReg(ShiftShl, ops[0].Reg, uint8(ops[1].Imm.Value))
	case SHRQ:
		return a.ShiftImmToReg(ShiftShr, ops[0].Reg, uint8(ops[1].Imm.Value))
	case SARQ:
		return a.ShiftImmToReg(ShiftSar, ops[0].Reg, uint8(ops[1].Imm.Value))
	case CALL:
		return a.Call(ops[0].Lbl.Label)
	case CALLRM:
		return a.CallReg(ops[0].Reg)
	case JMP:
		return a.Jmp(ops[0].Lbl.Label, n.Options&asm.OptionForceShortBranch != 0)
	case JCC:
		cond := Condition(ops[0].Imm.Value)
		return a.Jcc(cond, ops[1].Lbl.Label, n.Options&asm.OptionForceShortBranch != 0)
	default:
		return fmt.Errorf("%w: unsupported amd64 instruction id %d", asm.ErrInvalidInstruction, n.Instr)
	}
}

func lowerMov(a *Assembler, ops []asm.Operand) error {
	dst, src := ops[0], ops[1]
	switch {
	case dst.Kind == asm.OperandKindRegister && src.Kind == asm.OperandKindRegister:
		return a.MovRegReg(dst.Reg, src.Reg)
	case dst.Kind == asm.OperandKindRegister && src.Kind == asm.OperandKindMemory:
		return a.MovMemToReg(dst.Reg, src.Mem)
	case dst.Kind == asm.OperandKindMemory && src.Kind == asm.OperandKindRegister:
		return a.MovRegToMem(dst.Mem, src.Reg)
	case dst.Kind == asm.OperandKindRegister && src.Kind == asm.OperandKindImmediate:
		return a.MovImmToReg(dst.Reg, src.Imm.Value)
	default:
		return fmt.Errorf("%w: unsupported mov operand shape", asm.ErrInvalidInstruction)
	}
}

func lowerAlu(a *Assembler, op AluOp, ops []asm.Operand) error {
	dst, src := ops[0], ops[1]
	switch {
	case src.Kind == asm.OperandKindImmediate:
		return a.AluImmToReg(op, dst.Reg, src.Imm.Value)
	case dst.Kind == asm.OperandKindRegister && src.Kind == asm.OperandKindMemory:
		return a.AluMemToReg(op, dst.Reg, src.Mem)
	case dst.Kind == asm.OperandKindMemory && src.Kind == asm.OperandKindRegister:
		return a.AluRegToMem(op, dst.Mem, src.Reg)
	case dst.Kind == asm.OperandKindRegister && src.Kind == asm.OperandKindRegister:
		return a.AluRegReg(op, dst.Reg, src.Reg)
	default:
		return fmt.Errorf("%w: unsupported alu operand shape", asm.ErrInvalidInstruction)
	}
}
