package regalloc

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
	"github.com/codegenlib/jitasm/builder"
)

// rewrite performs spec §4.7 step 5: a second walk of the node list,
// replacing every virtual-register operand with either its assigned
// physical register or a frame-base memory operand
// `[frame_base − (local_base + slot_offset)]`.
func rewrite(b *builder.Builder, assignments map[int]*assignment, frameBase asm.Register) error {
	nodes := b.Nodes()
	for i := range nodes {
		n := &nodes[i]
		if n.Kind != builder.NodeInstruction {
			continue
		}
		for j, op := range n.Operands {
			switch op.Kind {
			case asm.OperandKindRegister:
				if op.Reg.IsVirtual() {
					n.Operands[j] = rewriteRegister(op.Reg, assignments, frameBase)
				}
			case asm.OperandKindMemory:
				rewritten, err := rewriteMemory(op.Mem, assignments, frameBase)
				if err != nil {
					return err
				}
				n.Operands[j] = rewritten
			}
		}
	}
	return nil
}

func rewriteRegister(vreg asm.Register, assignments map[int]*assignment, frameBase asm.Register) asm.Operand {
	a := assignments[vreg.VirtualID]
	if a == nil || a.spilled {
		off := int32(0)
		if a != nil {
			off = -a.spillOff
		}
		return asm.MemOperand(asm.Memory{
			Base:         frameBase,
			HasBase:      true,
			Displacement: off,
			SizeBits:     vreg.SizeBits,
		})
	}
	phys := a.physical
	phys.SizeBits = vreg.SizeBits
	return asm.RegOperand(phys)
}

// rewriteMemory rewrites a memory operand's base/index if either was a
// virtual register. A spilled base/index cannot be folded directly into
// the addressing mode (that would require an extra load), so this package
// requires callers to allocate a scratch physical register for any
// virtual register used as a memory base/index that the scan spilled —
// surfaced as ErrIllegalVirtReg rather than silently emitting a
// double-indirect address the encoder cannot express.
func rewriteMemory(m asm.Memory, assignments map[int]*assignment, frameBase asm.Register) (asm.Operand, error) {
	out := m
	if m.HasBase && m.Base.IsVirtual() {
		a := assignments[m.Base.VirtualID]
		if a == nil || a.spilled {
			return asm.Operand{}, fmt.Errorf("%w: spilled virtual register used as a memory base cannot be folded into an addressing mode", asm.ErrIllegalVirtReg)
		}
		out.Base = a.physical
		out.Base.SizeBits = m.Base.SizeBits
	}
	if m.HasIndex && m.Index.IsVirtual() {
		a := assignments[m.Index.VirtualID]
		if a == nil || a.spilled {
			return asm.Operand{}, fmt.Errorf("%w: spilled virtual register used as a memory index cannot be folded into an addressing mode", asm.ErrIllegalVirtReg)
		}
		out.Index = a.physical
		out.Index.SizeBits = m.Index.SizeBits
	}
	_ = frameBase
	return asm.MemOperand(out), nil
}
