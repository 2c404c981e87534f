package builder

import "github.com/codegenlib/jitasm/asm"

// ValueType names an argument/return value's class+width for ABI lowering
// purposes — enough to decide which argument-register pool (integer vs
// vector) and how many machine words it consumes.
type ValueType int

const (
	ValueTypeInt32 ValueType = iota
	ValueTypeInt64
	ValueTypeFloat32
	ValueTypeFloat64
	ValueTypePointer
)

// FunctionSignature is the Builder-facing description of a function's
// ABI shape (spec §3 "Function signature / frame").
type FunctionSignature struct {
	ReturnType       ValueType
	HasReturn        bool
	ArgumentTypes    []ValueType
	CallingConvention asm.CallingConvention
}

// ArgumentLanding records where one incoming argument lives on entry:
// either a physical register or a caller-provided stack slot (Win64 passes
// the 5th+ integer argument on the stack; AAPCS64 and SysV do too beyond
// their register pools).
type ArgumentLanding struct {
	Index          int
	PhysicalReg    asm.Register
	InRegister     bool
	StackOffset    int32 // valid when !InRegister: offset from incoming SP/FP
}

// FrameDescriptor is the derived, allocator-informed description of a
// function's prologue/epilogue shape (spec §3, §4.8). It is produced in
// two passes: BuildFrameDescriptor computes the ABI-fixed parts before
// register allocation runs, and FinalizeFrame later fills in
// PreservedRegsUsed and LocalSize from the allocator's report of what was
// actually spilled and which callee-saved registers were actually touched.
type FrameDescriptor struct {
	CallingConvention asm.CallingConvention

	// PreservedRegsUsed lists the callee-saved physical registers this
	// function body actually clobbers, in save order; the prologue pushes
	// them in this order and the epilogue pops in reverse.
	PreservedRegsUsed []asm.Register

	// ShadowSpaceBytes is the Win64 32-byte home area reserved above the
	// local slots; zero on SysV and AAPCS64.
	ShadowSpaceBytes int32

	// LocalSize is the local-stack byte count the allocator's spill slots
	// require, rounded up to the 16-byte ABI stack alignment.
	LocalSize int32

	// FramePointerEnabled selects rbp/x29-based frames; BuildFrameDescriptor
	// sets it for every calling convention, and the frame emitters always
	// set up rbp/x29 without reading it.
	FramePointerEnabled bool

	Arguments []ArgumentLanding
}

// stackAlignBytes is the ABI-mandated stack alignment at a call boundary:
// 16 bytes on every calling convention this package supports.
const stackAlignBytes = 16

func alignUp(n int32, align int32) int32 {
	if n%align == 0 {
		return n
	}
	return n + (align - n%align)
}

// intArgRegisterCount returns how many integer arguments each calling
// convention passes in registers; the registers are named only in the
// comments below, so this package stays architecture-neutral.
func intArgRegisterCount(cc asm.CallingConvention) int {
	switch cc {
	case asm.CallingConventionSystemVAMD64:
		return 6 // rdi, rsi, rdx, rcx, r8, r9
	case asm.CallingConventionWin64:
		return 4 // rcx, rdx, r8, r9
	case asm.CallingConventionAAPCS64:
		return 8 // x0-x7
	default:
		return 0
	}
}

// BuildFrameDescriptor derives the ABI-fixed shell of a frame from a
// signature, before the register allocator has decided what to spill or
// which callee-saved registers the body will actually clobber; LocalSize
// and PreservedRegsUsed are filled in afterward by FinalizeFrame, which
// the Lower functions call with the allocator's result.
func BuildFrameDescriptor(sig FunctionSignature) *FrameDescriptor {
	fd := &FrameDescriptor{
		CallingConvention:   sig.CallingConvention,
		FramePointerEnabled: true,
	}
	if sig.CallingConvention == asm.CallingConventionWin64 {
		fd.ShadowSpaceBytes = 32
	}

	maxIntArgs := intArgRegisterCount(sig.CallingConvention)
	intSeen := 0
	for i, t := range sig.ArgumentTypes {
		landing := ArgumentLanding{Index: i}
		if t == ValueTypeFloat32 || t == ValueTypeFloat64 {
			landing.InRegister = true // vector-register argument pools are not exhausted by this package's target workloads
		} else if intSeen < maxIntArgs {
			landing.InRegister = true
			intSeen++
		} else {
			landing.StackOffset = int32(i-maxIntArgs) * 8
		}
		fd.Arguments = append(fd.Arguments, landing)
	}
	return fd
}

// FinalizeFrame aligns LocalSize to the ABI stack alignment once the
// allocator has reported its spill-area size, and records the callee-saved
// registers the body actually used (spec §4.7 "total required local-stack
// size, aligned to the ABI's stack alignment").
func (fd *FrameDescriptor) FinalizeFrame(spillAreaBytes int32, clobberedCalleeSaved []asm.Register) {
	fd.PreservedRegsUsed = clobberedCalleeSaved
	fd.LocalSize = alignUp(spillAreaBytes, stackAlignBytes)
}
