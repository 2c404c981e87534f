package builder

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
)

// vregState mirrors spec §3's "Virtual register" lifecycle:
// Declared -> Live(interval) -> Assigned(physical) or Spilled(frame_offset).
// The Builder only ever produces Declared/Live registers; the regalloc
// package keeps the Assigned/Spilled terminal states in its own per-vreg
// map and does not record them here.
type vregState int

const (
	vregDeclared vregState = iota
	vregLive
)

// VirtualRegisterInfo is the Builder-owned bookkeeping record for one
// virtual register (spec §3): its declared size/class plus the
// first/last node position at which it is referenced. The allocator reads
// only Class here and mutates nothing — it builds its intervals from its
// own walk of the node list and keeps its per-vreg state in a private map.
type VirtualRegisterInfo struct {
	ID       int
	SizeBits int
	Class    asm.RegisterClass
	FirstUse int
	LastUse  int
	state    vregState
}

// Builder is the architecture-neutral Builder IR described in spec §4.6.
// It owns a flat, emitted-in-order node list, its virtual registers, and
// the labels instructions reference. A Builder is single-threaded and not
// safe for concurrent use (spec §5: "one Builder/Assembler per thread").
type Builder struct {
	env    asm.Environment
	nodes  []Node
	labels *asm.LabelManager
	vregs  []*VirtualRegisterInfo
	nextV  int

	funcDepth int
}

// New returns an empty Builder targeting env.
func New(env asm.Environment) *Builder {
	return &Builder{env: env, labels: asm.NewLabelManager()}
}

// Environment returns the target this Builder was constructed for.
func (b *Builder) Environment() asm.Environment { return b.env }

// Nodes returns the Builder's node list in emission order. The register
// allocator's two walks (interval construction, then rewrite) both operate
// directly on this slice.
func (b *Builder) Nodes() []Node { return b.nodes }

// VirtualRegisters returns every virtual register this Builder declared,
// in declaration order.
func (b *Builder) VirtualRegisters() []*VirtualRegisterInfo { return b.vregs }

func (b *Builder) append(n Node) *Node {
	n.Position = len(b.nodes)
	b.nodes = append(b.nodes, n)
	return &b.nodes[len(b.nodes)-1]
}

// touch records a use of every virtual register op references at the
// current node position, extending FirstUse/LastUse (spec §4.7 step 1).
func (b *Builder) touch(pos int, operands []asm.Operand) {
	for _, op := range operands {
		for _, reg := range operandVirtualRegisters(op) {
			info := b.vregs[reg.VirtualID]
			if info.state == vregDeclared {
				info.FirstUse = pos
				info.state = vregLive
			}
			info.LastUse = pos
		}
	}
}

// Inst appends an instruction node (spec §4.6 "inst(id, operands[],
// options)"); any virtual-register operand implicitly records a use at the
// newly appended position.
func (b *Builder) Inst(id asm.Instruction, operands []asm.Operand, options asm.Options) *Node {
	n := b.append(Node{Kind: NodeInstruction, Instr: id, Operands: operands, Options: options})
	b.touch(n.Position, operands)
	return n
}

// Label appends a bind node; the label's physical offset is only known
// once the node list is serialized, so this records intent, not a bound
// position (spec §4.6 "label(label) -> LabelNode").
func (b *Builder) Label(l asm.Label) *Node {
	return b.append(Node{Kind: NodeLabelBind, Label: l})
}

// NewLabel allocates a fresh, unbound label.
func (b *Builder) NewLabel() asm.Label { return b.labels.NewLabel() }

// NewNamedLabel allocates a fresh, unbound, named label.
func (b *Builder) NewNamedLabel(name string) (asm.Label, error) {
	return b.labels.NewNamedLabel(name)
}

// Align inserts a padding directive resolved at serialization time (spec
// §4.6 "align(mode, alignment)").
func (b *Builder) Align(mode AlignMode, alignment int) *Node {
	return b.append(Node{Kind: NodeAlign, AlignMode: mode, AlignTo: alignment})
}

// EmbedData emits a verbatim data region, tagging each element's size for
// diagnostics/disassembly (spec §4.6 "embed_data(bytes, item_size)").
func (b *Builder) EmbedData(data []byte, itemSize int) *Node {
	return b.append(Node{Kind: NodeEmbeddedData, Data: data, ItemSize: itemSize})
}

// Comment inserts a no-op annotation node, never lowered to bytes.
func (b *Builder) Comment(text string) *Node {
	return b.append(Node{Kind: NodeComment, Comment: text})
}

// Func opens a function: subsequent nodes until the matching EndFunc are
// wrapped with a prologue/epilogue derived from sig (spec §4.6 "func
// (signature, name?) -> FunctionNode"). Nesting is not supported — a
// function body is the unit the frame emitter wraps; the register
// allocator runs once over the Builder's whole node list.
func (b *Builder) Func(sig FunctionSignature, name string) (*Node, error) {
	if b.funcDepth != 0 {
		return nil, fmt.Errorf("%w: nested Func is not supported", asm.ErrInvalidArgument)
	}
	b.funcDepth++
	sigCopy := sig
	return b.append(Node{Kind: NodeFunctionBegin, Signature: &sigCopy, Name: name}), nil
}

// EndFunc closes the function body opened by the most recent Func call.
func (b *Builder) EndFunc() error {
	if b.funcDepth == 0 {
		return fmt.Errorf("%w: EndFunc with no matching Func", asm.ErrInvalidArgument)
	}
	b.funcDepth--
	b.append(Node{Kind: NodeFunctionEnd})
	return nil
}

// NewGPReg declares a fresh general-purpose virtual register of the given
// width (spec §4.6 "new_gp_reg(size)").
func (b *Builder) NewGPReg(sizeBits int) asm.Register {
	return b.newVirtual(sizeBits, asm.RegisterClassGP)
}

// NewVecReg declares a fresh vector virtual register of the given width
// (spec §4.6 "new_vec_reg(width)").
func (b *Builder) NewVecReg(widthBits int) asm.Register {
	return b.newVirtual(widthBits, asm.RegisterClassVector)
}

func (b *Builder) newVirtual(sizeBits int, class asm.RegisterClass) asm.Register {
	id := b.nextV
	b.nextV++
	info := &VirtualRegisterInfo{ID: id, SizeBits: sizeBits, Class: class}
	b.vregs = append(b.vregs, info)
	return asm.Register{
		ID:        asm.NilRegisterID,
		SizeBits:  sizeBits,
		Class:     asm.RegisterClassVirtual,
		VirtualID: id,
	}
}
