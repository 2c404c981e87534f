package asm

import "fmt"

// Instruction identifies one semantic instruction: a mnemonic plus an
// operand-shape class. Each architecture package defines its own closed
// enumeration of Instruction values via iota, with InstructionNone as the
// zero value, following the teacher's internal/asm/amd64 and
// internal/asm/arm64 consts.go convention.
type Instruction uint16

const InstructionNone Instruction = 0

// ConstantValue is a signed 64-bit immediate operand value.
type ConstantValue = int64

// RegisterClass partitions the physical register file each architecture
// exposes.
type RegisterClass int

const (
	RegisterClassInvalid RegisterClass = iota
	RegisterClassGP                    // general purpose integer registers
	RegisterClassVector                // xmm/ymm/zmm on x86; v/d/s/h/b on arm64
	RegisterClassMask                  // AVX-512 mask registers
	RegisterClassFlag                  // condition-flags pseudo-register
	RegisterClassVirtual                // Builder-level virtual register, not yet assigned
)

// RegisterID is architecture-specific; amd64 and arm64 packages define their
// own named constants over this type (e.g. amd64.RAX, arm64.X0).
type RegisterID uint16

// NilRegisterID is the architecture-independent "no register" sentinel.
const NilRegisterID RegisterID = 0

// Register is an operand referring to a physical or virtual register.
type Register struct {
	ID        RegisterID
	SizeBits  int
	Class     RegisterClass
	VirtualID int // valid only when Class == RegisterClassVirtual; 0 otherwise
}

// IsVirtual reports whether this Register is a Builder-level virtual
// register awaiting allocation.
func (r Register) IsVirtual() bool { return r.Class == RegisterClassVirtual }

func (r Register) String() string {
	if r.IsVirtual() {
		return fmt.Sprintf("v%d", r.VirtualID)
	}
	return fmt.Sprintf("r%d.%d", r.ID, r.SizeBits)
}

// Scale is the index-register multiplier of a Memory operand.
type Scale uint8

const (
	Scale1 Scale = 1
	Scale2 Scale = 2
	Scale4 Scale = 4
	Scale8 Scale = 8
)

// Memory is an addressing-mode operand: [Base + Index*Scale + Displacement],
// optionally segment-prefixed on x86.
type Memory struct {
	Base         Register
	HasBase      bool
	Index        Register
	HasIndex     bool
	Scale        Scale
	Displacement int32
	Segment      SegmentOverride
	SizeBits     int
}

// SegmentOverride names an x86 segment-override prefix; zero value means
// none. Unused on arm64.
type SegmentOverride int

const (
	SegmentNone SegmentOverride = iota
	SegmentFS
	SegmentGS
)

// Immediate is a constant operand with an intended encoding width.
type Immediate struct {
	Value    ConstantValue
	WidthBits int
}

// LabelRef is an operand referring to a not-yet-necessarily-bound code
// position, used by branch and address-of instructions.
type LabelRef struct {
	Label Label
}

// OperandKind tags the active variant of an Operand.
type OperandKind int

const (
	OperandKindNone OperandKind = iota
	OperandKindRegister
	OperandKindMemory
	OperandKindImmediate
	OperandKindLabel
)

// Operand is the tagged union described in spec §3: Register | Memory |
// Immediate | LabelRef. Exactly one of the accessor fields is meaningful,
// selected by Kind.
type Operand struct {
	Kind OperandKind
	Reg  Register
	Mem  Memory
	Imm  Immediate
	Lbl  LabelRef
}

func RegOperand(r Register) Operand   { return Operand{Kind: OperandKindRegister, Reg: r} }
func MemOperand(m Memory) Operand     { return Operand{Kind: OperandKindMemory, Mem: m} }
func ImmOperand(i Immediate) Operand  { return Operand{Kind: OperandKindImmediate, Imm: i} }
func LabelOperand(l Label) Operand    { return Operand{Kind: OperandKindLabel, Lbl: LabelRef{Label: l}} }

func (o Operand) String() string {
	switch o.Kind {
	case OperandKindRegister:
		return o.Reg.String()
	case OperandKindMemory:
		return fmt.Sprintf("[mem+0x%x]", o.Mem.Displacement)
	case OperandKindImmediate:
		return fmt.Sprintf("$0x%x", o.Imm.Value)
	case OperandKindLabel:
		return fmt.Sprintf("label(%d)", o.Lbl.Label.ID)
	default:
		return "<none>"
	}
}

// Options is a bitmask of per-instruction emission hints, matching spec §6.
type Options uint32

const (
	OptionLock Options = 1 << iota
	OptionRep
	OptionRepne
	OptionForceShortBranch
)
