package amd64

import (
	"fmt"

	"github.com/codegenlib/jitasm/asm"
)

// rex bit positions, spec §4.3 step 2.
const (
	rexBase byte = 0x40
	rexB    byte = 1 << 0
	rexX    byte = 1 << 1
	rexR    byte = 1 << 2
	rexW    byte = 1 << 3
)

// rexInfo accumulates the REX byte across prefix computation; it is only
// emitted (spec: "emitted only when any of W/R/X/B is set, or to force
// 8-bit-legacy-high register disambiguation") when nonzero or forced.
type rexInfo struct {
	bits  byte
	force bool
}

func (r rexInfo) setW() rexInfo   { r.bits |= rexW; return r }
func (r rexInfo) setR() rexInfo   { r.bits |= rexR; return r }
func (r rexInfo) setX() rexInfo   { r.bits |= rexX; return r }
func (r rexInfo) setB() rexInfo   { r.bits |= rexB; return r }
func (r rexInfo) needed() bool    { return r.bits != 0 || r.force }
func (r rexInfo) byteValue() byte { return rexBase | r.bits }

// encodeREX appends the REX prefix if and only if it carries information,
// per spec §4.3 step 2.
func encodeREX(buf *asm.CodeBuffer, r rexInfo) {
	if r.needed() {
		buf.EmitByte(r.byteValue())
	}
}

// modrm packs the ModR/M byte from its three fields.
func modrm(mod, reg, rm byte) byte {
	return (mod << 6) | ((reg & 0x7) << 3) | (rm & 0x7)
}

// sib packs the SIB byte.
func sib(scale, index, base byte) byte {
	return (scale << 6) | ((index & 0x7) << 3) | (base & 0x7)
}

func scaleBits(s asm.Scale) (byte, error) {
	switch s {
	case 0, asm.Scale1:
		return 0, nil
	case asm.Scale2:
		return 1, nil
	case asm.Scale4:
		return 2, nil
	case asm.Scale8:
		return 3, nil
	default:
		return 0, fmt.Errorf("%w: scale %d", asm.ErrInvalidAddressScale, s)
	}
}

// encodeRegReg emits a register-direct ModR/M byte for `reg op rm` forms
// where both operands are registers (spec §4.3 step 4, mod=11).
func encodeRegReg(buf *asm.CodeBuffer, regField, rmField asm.Register, rex rexInfo) rexInfo {
	if extBit(regField.ID) == 1 {
		rex = rex.setR()
	}
	if extBit(rmField.ID) == 1 {
		rex = rex.setB()
	}
	return rex
}

// emitModRMReg finalizes the emission for a register-direct ModR/M byte.
func emitModRMReg(buf *asm.CodeBuffer, regField, rmField asm.Register) {
	buf.EmitByte(modrm(0b11, low3(regField.ID), low3(rmField.ID)))
}

// memoryEncoding carries the computed mod/rm/sib/disp-width for one Memory
// operand, and whether an extension bit applies to the base/index for REX.
type memoryEncoding struct {
	mod          byte
	rm           byte
	hasSIB       bool
	sibByte      byte
	dispWidth    int // 0, 1, or 4
	disp         int32
	rexX, rexB   bool
}

// encodeMemory computes the ModR/M addressing fields for a Memory operand
// against a given reg-field register, following spec §4.3 step 4-5: SIB is
// used whenever an index is present or the base is in the RSP/R12 family
// (rm=4), mod is chosen to minimize displacement width, and RBP/R13 base
// with a zero displacement is forced to the one-byte-disp8 form to dodge
// the mod=00,rm=101 RIP-relative special case.
func encodeMemory(m asm.Memory) (memoryEncoding, error) {
	var enc memoryEncoding

	if !m.HasBase && !m.HasIndex {
		return enc, fmt.Errorf("%w: absolute addressing without base/index is unsupported", asm.ErrInvalidAddress)
	}

	needsSIB := m.HasIndex || (m.HasBase && low3(m.Base.ID) == 4) // RSP/R12 family requires SIB
	if needsSIB {
		enc.hasSIB = true
		scale, err := scaleBits(m.Scale)
		if err != nil {
			return enc, err
		}
		indexLow := byte(0b100) // no-index encoding
		if m.HasIndex {
			if low3(m.Index.ID) == 4 && m.Index.ID < 8 {
				return enc, fmt.Errorf("%w: RSP cannot be used as an index register", asm.ErrInvalidAddress)
			}
			indexLow = low3(m.Index.ID)
			enc.rexX = extBit(m.Index.ID) == 1
		}
		baseLow := byte(0b101) // no-base encoding (disp32 follows)
		if m.HasBase {
			baseLow = low3(m.Base.ID)
			enc.rexB = extBit(m.Base.ID) == 1
		}
		enc.sibByte = sib(scale, indexLow, baseLow)
		enc.rm = 0b100

		switch {
		case !m.HasBase:
			enc.mod, enc.dispWidth, enc.disp = 0b00, 4, m.Displacement
		case m.Displacement == 0 && low3(m.Base.ID) != 5:
			enc.mod, enc.dispWidth = 0b00, 0
		case fitsInt8(m.Displacement):
			enc.mod, enc.dispWidth, enc.disp = 0b01, 1, m.Displacement
		default:
			enc.mod, enc.dispWidth, enc.disp = 0b10, 4, m.Displacement
		}
		return enc, nil
	}

	// Base-only addressing, no SIB.
	enc.rm = low3(m.Base.ID)
	enc.rexB = extBit(m.Base.ID) == 1
	isBPFamily := low3(m.Base.ID) == 5 // RBP/R13

	switch {
	case m.Displacement == 0 && !isBPFamily:
		enc.mod, enc.dispWidth = 0b00, 0
	case m.Displacement == 0 && isBPFamily:
		// Forced disp8=0 to avoid the mod=00,rm=101 RIP-relative encoding.
		enc.mod, enc.dispWidth, enc.disp = 0b01, 1, 0
	case fitsInt8(m.Displacement):
		enc.mod, enc.dispWidth, enc.disp = 0b01, 1, m.Displacement
	default:
		enc.mod, enc.dispWidth, enc.disp = 0b10, 4, m.Displacement
	}
	return enc, nil
}

func fitsInt8(v int32) bool { return v >= -128 && v <= 127 }

// emitMemory writes the ModR/M (+ SIB) (+ displacement) bytes for a memory
// operand already encoded by encodeMemory, with regField in the ModR/M
// reg position (an opcode extension or a true register).
func emitMemory(buf *asm.CodeBuffer, regField byte, enc memoryEncoding) {
	buf.EmitByte(modrm(enc.mod, regField, enc.rm))
	if enc.hasSIB {
		buf.EmitByte(enc.sibByte)
	}
	switch enc.dispWidth {
	case 1:
		buf.EmitByte(byte(int8(enc.disp)))
	case 4:
		buf.Emit32(uint32(enc.disp))
	}
}

// fitsSignedImm8 reports whether v can be sign-extended from a one-byte
// immediate, used to select the shortest encoding per spec §4.3 step 5.
func fitsSignedImm8(v int64) bool { return v >= -128 && v <= 127 }
