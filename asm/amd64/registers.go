// Package amd64 implements the x86-64 Encoder and Assembler layers of
// spec §4.3 and §4.5: variable-length encodings with an optional REX
// prefix, ModR/M and SIB byte construction, and label-aware branch
// emission. REX is the only prefix emitted: no operand-size, address-size,
// LOCK, REP/REPNE or segment-override prefix and no VEX prefix is
// produced, so AVX (VEX-encoded) forms are not available. Grounded on the
// teacher's internal/asm/amd64 (impl.go, assembler.go, consts.go) and
// internal/engine/wazevo/backend/isa/amd64 (instr_encoding.go).
package amd64

import "github.com/codegenlib/jitasm/asm"

// General-purpose register ids. Low 3 bits select the ModR/M/SIB field;
// ids ≥ 8 require REX.R/X/B to extend, following the Intel SDM encoding.
const (
	RAX asm.RegisterID = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
)

// XMM0-XMM15 vector register ids, numbered the same way as the GP file so
// the low-3-bits/REX-extension logic is shared.
const (
	XMM0 asm.RegisterID = iota
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
)

// GP constructs a general-purpose register operand of the given bit width
// (8, 16, 32, or 64).
func GP(id asm.RegisterID, sizeBits int) asm.Register {
	return asm.Register{ID: id, SizeBits: sizeBits, Class: asm.RegisterClassGP}
}

// Vec constructs an XMM/YMM register operand.
func Vec(id asm.RegisterID, sizeBits int) asm.Register {
	return asm.Register{ID: id, SizeBits: sizeBits, Class: asm.RegisterClassVector}
}

func low3(id asm.RegisterID) byte   { return byte(id) & 0x7 }
func extBit(id asm.RegisterID) byte { return byte(id>>3) & 0x1 }

// isGpbHi reports whether id/size addresses one of the legacy high-byte
// registers (AH, CH, DH, BH) that cannot be combined with any REX prefix
// (spec §4.3 edge-case policy). Without REX, 8-bit register numbers 4-7
// (the RSP..RDI ids) encode AH, CH, DH, BH.
func isGpbHi(reg asm.Register) bool {
	return reg.Class == asm.RegisterClassGP && reg.SizeBits == 8 && reg.ID >= RSP && reg.ID <= RDI
}

// RegisterName renders a register for diagnostics, following the teacher's
// NodeImpl.String convention of cheap, AT&T-ish names.
func RegisterName(r asm.Register) string {
	names64 := [...]string{"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
		"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15"}
	if r.Class == asm.RegisterClassGP && int(r.ID) < len(names64) {
		return names64[r.ID]
	}
	if r.Class == asm.RegisterClassVector {
		return "xmm" + itoa(int(r.ID))
	}
	return r.String()
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
