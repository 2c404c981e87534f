// Package arm64 implements the AArch64 Encoder and Assembler layers of
// spec §4.4 and §4.5: every instruction is a fixed 32-bit word, built by
// OR-ing a base opcode with field values. Grounded on the teacher's
// internal/asm/arm64 (impl.go's movz/movk/movn/load64bitConst and
// NodeImpl label bookkeeping).
package arm64

import "github.com/codegenlib/jitasm/asm"

// General-purpose register ids X0-X30, plus the context-dependent
// XZR/SP encoding at id 31 (the zero register when used as a source in
// most forms, the stack pointer when used as a base in load/store and
// ADD/SUB-immediate forms — exactly as the architecture overloads it).
const (
	X0 asm.RegisterID = iota
	X1
	X2
	X3
	X4
	X5
	X6
	X7
	X8
	X9
	X10
	X11
	X12
	X13
	X14
	X15
	X16
	X17
	X18
	X19
	X20
	X21
	X22
	X23
	X24
	X25
	X26
	X27
	X28
	X29 // frame pointer (FP)
	X30 // link register (LR)
	XZRSP
)

// Named vector register ids; only V0-V2 are declared here.
const (
	V0 asm.RegisterID = iota
	V1
	V2
)

// GP constructs a general-purpose register operand; sizeBits is 32 (W form)
// or 64 (X form).
func GP(id asm.RegisterID, sizeBits int) asm.Register {
	return asm.Register{ID: id, SizeBits: sizeBits, Class: asm.RegisterClassGP}
}

// Vec constructs a vector register operand.
func Vec(id asm.RegisterID, sizeBits int) asm.Register {
	return asm.Register{ID: id, SizeBits: sizeBits, Class: asm.RegisterClassVector}
}

func rBits(id asm.RegisterID) uint32 { return uint32(id) & 0x1F }

func sfBit(sizeBits int) uint32 {
	if sizeBits == 64 {
		return 1
	}
	return 0
}

// RegisterName renders a register for diagnostics.
func RegisterName(r asm.Register) string {
	if r.ID == XZRSP {
		if r.SizeBits == 64 {
			return "sp"
		}
		return "wzr"
	}
	prefix := "w"
	if r.SizeBits == 64 {
		prefix = "x"
	}
	return prefix + itoa(int(r.ID))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [4]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
