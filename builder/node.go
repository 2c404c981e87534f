// Package builder implements the architecture-neutral Builder IR (spec
// §3, §4.6): a flat, emitted-in-order node list that records instructions,
// label binds, alignment directives, embedded data, comments, and function
// boundaries, together with the virtual registers those instructions
// reference. It is re-targeted from the teacher's SSA-lowering node graph
// (internal/engine/wazevo/backend/machine.go) to the simpler flat list the
// spec prescribes: no basic blocks, no dominance, no SSA form — just
// emission order, exactly the shape the register allocator wants to walk.
package builder

import "github.com/codegenlib/jitasm/asm"

// NodeKind discriminates the variants of the Builder IR node (spec §3).
type NodeKind int

const (
	NodeInstruction NodeKind = iota
	NodeLabelBind
	NodeAlign
	NodeEmbeddedData
	NodeComment
	NodeFunctionBegin
	NodeFunctionEnd
	NodeSentinel
)

func (k NodeKind) String() string {
	switch k {
	case NodeInstruction:
		return "Instruction"
	case NodeLabelBind:
		return "LabelBind"
	case NodeAlign:
		return "Align"
	case NodeEmbeddedData:
		return "EmbeddedData"
	case NodeComment:
		return "Comment"
	case NodeFunctionBegin:
		return "FunctionBegin"
	case NodeFunctionEnd:
		return "FunctionEnd"
	case NodeSentinel:
		return "Sentinel"
	default:
		return "Unknown"
	}
}

// AlignMode selects what an Align node pads with.
type AlignMode int

const (
	AlignCode AlignMode = iota // pad with architecture NOP-equivalent bytes
	AlignZero                  // pad with zero bytes (data regions)
)

// Node is one element of a Builder's flat, emitted-in-order node list
// (spec §3 "Node (Builder IR)"). Every node carries a Position, its index
// in emission order — the register allocator's interval construction walk
// keys off Position, not off a pointer-chase through prev/next links, which
// is why the Builder stores nodes in a slice (an arena) rather than the
// teacher's doubly-linked structure: the spec's re-architecture notes (§9)
// call for replacing the SSA dynamic-dispatch/linked-list pair with a
// closed instruction-id switch over an arena + position index.
type Node struct {
	Kind     NodeKind
	Position int

	// NodeInstruction
	Instr    asm.Instruction
	Operands []asm.Operand
	Options  asm.Options

	// NodeLabelBind
	Label asm.Label

	// NodeAlign
	AlignTo   int
	AlignMode AlignMode

	// NodeEmbeddedData
	Data     []byte
	ItemSize int

	// NodeComment
	Comment string

	// NodeFunctionBegin / NodeFunctionEnd
	Signature *FunctionSignature
	Name      string
}

// operandVirtualRegisters returns the virtual registers operand op
// references, including a memory operand's base and index (both count as
// uses per spec §4.7: "Memory operands count as uses of both base and
// index virtual registers").
func operandVirtualRegisters(op asm.Operand) []asm.Register {
	switch op.Kind {
	case asm.OperandKindRegister:
		if op.Reg.IsVirtual() {
			return []asm.Register{op.Reg}
		}
	case asm.OperandKindMemory:
		var out []asm.Register
		if op.Mem.HasBase && op.Mem.Base.IsVirtual() {
			out = append(out, op.Mem.Base)
		}
		if op.Mem.HasIndex && op.Mem.Index.IsVirtual() {
			out = append(out, op.Mem.Index)
		}
		return out
	}
	return nil
}
